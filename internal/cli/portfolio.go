package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// addPortfolioCommands adds the account mirror commands. All of them
// require a signed-in user.
func addPortfolioCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newPortfolioCmd(app))
	rootCmd.AddCommand(newOrdersCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
}

func newPortfolioCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "portfolio",
		Short: "Show positions and cash for the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.signIn(cmd); err != nil {
				return err
			}
			if err := app.Reconciler.RefreshAll(cmd.Context()); err != nil {
				output.Error("Account refresh failed: %v", err)
				return err
			}
			// Live prices for the valuation join.
			if err := app.Market.PollQuotes(cmd.Context()); err != nil {
				output.Warning("Quote feed unavailable, showing cost basis only")
			}

			positions := app.Market.Positions()
			cash := app.Market.CashBalance()

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"cash":      cash,
					"positions": positions,
				})
			}

			output.Bold("Cash: %s", FormatYuan(cash))
			output.Println()

			if len(positions) == 0 {
				output.Dim("No positions.")
				return nil
			}

			table := NewTable(output, "CODE", "NAME", "QTY", "AVG COST", "MKT VALUE", "PNL")
			for _, p := range positions {
				table.AddRow(
					p.InstrumentCode,
					p.InstrumentName,
					fmt.Sprintf("%d", p.Quantity),
					fmt.Sprintf("%.2f", p.AverageCost),
					FormatYuan(p.MarketValue),
					output.ChangeColor(p.UnrealizedPnL, FormatPnL(p.UnrealizedPnL)),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newOrdersCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "Show order history, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.signIn(cmd); err != nil {
				return err
			}
			if err := app.Reconciler.RefreshOrders(cmd.Context()); err != nil {
				output.Error("Order refresh failed: %v", err)
				return err
			}

			orders := app.Market.Orders()
			if output.IsJSON() {
				return output.JSON(orders)
			}
			if len(orders) == 0 {
				output.Dim("No orders.")
				return nil
			}

			table := NewTable(output, "TIME", "CODE", "NAME", "SIDE", "PRICE", "QTY", "STATUS")
			for _, o := range orders {
				side := output.Red(string(o.Side))
				if o.Side == "SELL" {
					side = output.Green(string(o.Side))
				}
				table.AddRow(
					FormatClock(o.CreatedAt),
					o.InstrumentCode,
					o.InstrumentName,
					side,
					fmt.Sprintf("%.2f", o.Price),
					fmt.Sprintf("%d", o.Quantity),
					string(o.Status),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newWatchCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Show the watchlist joined against live quotes",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.signIn(cmd); err != nil {
				return err
			}
			if err := app.Reconciler.RefreshWatchlist(cmd.Context()); err != nil {
				output.Error("Watchlist refresh failed: %v", err)
				return err
			}
			if err := app.Market.PollQuotes(cmd.Context()); err != nil {
				output.Error("Quote feed unavailable: %v", err)
				return err
			}

			watched := app.Market.Watchlist()
			if output.IsJSON() {
				return output.JSON(watched)
			}
			if len(watched) == 0 {
				output.Dim("Watchlist is empty.")
				return nil
			}

			table := NewTable(output, "CODE", "NAME", "PRICE", "CHANGE%")
			for _, inst := range watched {
				table.AddRow(
					inst.Code,
					inst.DisplayName,
					fmt.Sprintf("%.2f", inst.Price),
					output.FormatChangePercent(inst.ChangePercent),
				)
			}
			table.Render()
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "toggle <code>",
		Short: "Add or remove an instrument from the watchlist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.signIn(cmd); err != nil {
				return err
			}
			if err := app.Reconciler.RefreshWatchlist(cmd.Context()); err != nil {
				output.Error("Watchlist refresh failed: %v", err)
				return err
			}

			code := args[0]
			if err := app.Market.ToggleWatchlist(cmd.Context(), code); err != nil {
				output.Error("Watchlist update failed: %v", err)
				return err
			}
			if app.Reconciler.InWatchlist(code) {
				output.Success("✓ %s added to watchlist", code)
			} else {
				output.Success("✓ %s removed from watchlist", code)
			}
			return nil
		},
	})

	return cmd
}
