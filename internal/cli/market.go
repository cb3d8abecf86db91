package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jinyang756/Wealthgather-exchange/internal/models"
	"github.com/jinyang756/Wealthgather-exchange/pkg/utils"
)

// addMarketCommands adds the one-shot market data commands. Each runs a
// single poll cycle against the feed and renders the result.
func addMarketCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newQuotesCmd(app))
	rootCmd.AddCommand(newIndicesCmd(app))
	rootCmd.AddCommand(newBookCmd(app))
	rootCmd.AddCommand(newMACDCmd(app))
	rootCmd.AddCommand(newBlockCmd(app))
	rootCmd.AddCommand(newIPOCmd(app))
	rootCmd.AddCommand(newNewsCmd(app))
	rootCmd.AddCommand(newStatusCmd(app))
}

func newQuotesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quotes [code...]",
		Short: "Show live quotes",
		Long:  "Poll the quote feed once and show live instrument quotes. With no arguments all configured instruments are shown.",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Market.PollQuotes(cmd.Context()); err != nil {
				output.Error("Quote feed unavailable: %v", err)
				return err
			}

			instruments := app.Market.Instruments()
			if len(args) > 0 {
				want := make(map[string]struct{}, len(args))
				for _, code := range args {
					want[code] = struct{}{}
				}
				var filtered []models.Instrument
				for _, inst := range instruments {
					if _, ok := want[inst.Code]; ok {
						filtered = append(filtered, inst)
					}
				}
				instruments = filtered
			}

			if output.IsJSON() {
				return output.JSON(instruments)
			}

			output.Dim("%s  %s", utils.SessionLabel(utils.CurrentSession()), FormatClock(time.Now()))
			table := NewTable(output, "CODE", "NAME", "PRICE", "CHANGE", "CHANGE%", "VOLUME", "HIGH", "LOW")
			for _, inst := range instruments {
				table.AddRow(
					inst.Code,
					inst.DisplayName,
					fmt.Sprintf("%.2f", inst.Price),
					output.ChangeColor(inst.ChangeAmount, FormatSignedAmount(inst.ChangeAmount)),
					output.FormatChangePercent(inst.ChangePercent),
					FormatVolume(inst.Volume),
					fmt.Sprintf("%.2f", inst.High),
					fmt.Sprintf("%.2f", inst.Low),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newIndicesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "indices",
		Short: "Show market indices",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Market.PollQuotes(cmd.Context()); err != nil {
				output.Error("Quote feed unavailable: %v", err)
				return err
			}

			indices := app.Market.Indices()
			if output.IsJSON() {
				return output.JSON(indices)
			}

			table := NewTable(output, "CODE", "NAME", "VALUE", "CHANGE", "CHANGE%")
			for _, idx := range indices {
				table.AddRow(
					idx.Code,
					idx.DisplayName,
					fmt.Sprintf("%.2f", idx.Value),
					output.ChangeColor(idx.ChangeAmount, FormatSignedAmount(idx.ChangeAmount)),
					output.FormatChangePercent(idx.ChangePercent),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newBookCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "book <code>",
		Short: "Show the 5-level order book for an instrument",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Market.PollQuotes(cmd.Context()); err != nil {
				output.Error("Quote feed unavailable: %v", err)
				return err
			}

			bk, err := app.Market.OrderBook(args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(bk)
			}

			// Asks print top-down so the touch levels meet in the middle.
			for i := len(bk.Asks) - 1; i >= 0; i-- {
				lvl := bk.Asks[i]
				output.Printf("  卖%d  %s  %s\n", i+1, output.Green(fmt.Sprintf("%8.2f", lvl.Price)), FormatVolume(lvl.Volume))
			}
			output.Dim("  ────────────────────")
			for i, lvl := range bk.Bids {
				output.Printf("  买%d  %s  %s\n", i+1, output.Red(fmt.Sprintf("%8.2f", lvl.Price)), FormatVolume(lvl.Volume))
			}
			return nil
		},
	}
}

func newMACDCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "macd <code>",
		Short: "Show the MACD series over an instrument's price history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Market.PollQuotes(cmd.Context()); err != nil {
				output.Error("Quote feed unavailable: %v", err)
				return err
			}

			points, err := app.Market.Indicators(args[0])
			if err != nil {
				return err
			}
			if output.IsJSON() {
				return output.JSON(points)
			}

			table := NewTable(output, "TIME", "PRICE", "DIF", "DEA", "MACD")
			for _, p := range points {
				table.AddRow(
					FormatClock(p.Timestamp),
					fmt.Sprintf("%.2f", p.Value),
					fmt.Sprintf("%.4f", p.DIF),
					fmt.Sprintf("%.4f", p.DEA),
					output.ChangeColor(p.MACD, fmt.Sprintf("%.4f", p.MACD)),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newBlockCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "block",
		Short: "Show the current block trade",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Market.PollQuotes(cmd.Context()); err != nil {
				output.Error("Quote feed unavailable: %v", err)
				return err
			}

			bt := app.Market.BlockTrade()
			if bt == nil {
				output.Dim("No block trade this cycle.")
				return nil
			}
			if output.IsJSON() {
				return output.JSON(bt)
			}

			output.Bold("Block Trade  %s", FormatClock(bt.Time))
			output.Printf("  %s (%s)  %s\n", bt.InstrumentName, bt.InstrumentCode, string(bt.Side))
			output.Printf("  Price:    %.2f  (%.1f%% discount)\n", bt.Price, bt.DiscountPercent)
			output.Printf("  Volume:   %d万股\n", bt.VolumeLots)
			output.Printf("  Amount:   %s万\n", FormatYuan(bt.Amount))
			return nil
		},
	}
}

func newIPOCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "ipo",
		Short: "Show IPO subscription candidates",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.Market.PollQuotes(cmd.Context()); err != nil {
				output.Error("Quote feed unavailable: %v", err)
				return err
			}

			candidates := app.Market.IPOCandidates()
			if output.IsJSON() {
				return output.JSON(candidates)
			}

			table := NewTable(output, "CODE", "NAME", "ISSUE", "P/E", "CAP(万股)", "STATUS")
			for _, c := range candidates {
				table.AddRow(
					c.Code,
					c.Name,
					fmt.Sprintf("%.2f", c.IssuePrice),
					fmt.Sprintf("%.1f", c.PERatio),
					fmt.Sprintf("%.1f", c.SubscriptionCapLots),
					string(c.Status),
				)
			}
			table.Render()
			return nil
		},
	}
}

func newNewsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "news",
		Short: "Show latest market news",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			// Fallback headlines keep the pane useful when the store is
			// unreachable, so the error never surfaces here.
			_ = app.Market.RefreshNews(cmd.Context())

			items := app.Market.News()
			if output.IsJSON() {
				return output.JSON(items)
			}

			for _, item := range items {
				output.Printf("  %s  %s  %s\n", output.DimText(FormatClock(item.Time)), output.Yellow("["+item.Type+"]"), item.Title)
			}
			return nil
		},
	}
}

func newStatusCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session, connectivity and latency status",
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)

			now := time.Now()
			session := utils.SessionAt(now)

			if output.IsJSON() {
				return output.JSON(map[string]interface{}{
					"session":      session,
					"trading":      session.Trading(),
					"next_open":    utils.NextOpenAfter(now),
					"feed_online":  app.Market.FeedConnected(),
					"store_online": app.Market.StoreOnline(),
					"latency_ms":   app.Market.LatencyMs(),
					"store_mode":   app.Config.Store.Mode,
				})
			}

			output.Bold("Market Session")
			output.Printf("  %s", utils.SessionLabel(session))
			if !session.Trading() {
				output.Printf("  (next open %s)", utils.NextOpenAfter(now).Format("01-02 15:04"))
			}
			output.Printf("\n\n")
			output.Bold("Connectivity")
			output.Printf("  Feed:   %s\n", output.ConnStatus(app.Market.FeedConnected()))
			output.Printf("  Store:  %s (%s)\n", output.ConnStatus(app.Market.StoreOnline()), app.Config.Store.Mode)
			output.Printf("  Delay:  %dms\n", app.Market.LatencyMs())
			return nil
		},
	}
}
