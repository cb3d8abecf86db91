package cli

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	apperrors "github.com/jinyang756/Wealthgather-exchange/internal/errors"
	"github.com/jinyang756/Wealthgather-exchange/internal/models"
)

// addTradeCommands adds the order entry commands.
func addTradeCommands(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(newTradeCmd(app, models.OrderSideBuy))
	rootCmd.AddCommand(newTradeCmd(app, models.OrderSideSell))
}

func newTradeCmd(app *App, side models.OrderSide) *cobra.Command {
	use := "buy"
	short := "Buy an instrument"
	if side == models.OrderSideSell {
		use = "sell"
		short = "Sell a held instrument"
	}

	return &cobra.Command{
		Use:   use + " <code> <quantity> <price>",
		Short: short,
		Long:  short + ". Orders whose price deviates from the touch by more than the slippage gate require interactive confirmation.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			if err := app.signIn(cmd); err != nil {
				return err
			}

			code := args[0]
			quantity, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || quantity <= 0 {
				return apperrors.NewValidationError("quantity", args[1], "must be a positive integer")
			}
			price, err := strconv.ParseFloat(args[2], 64)
			if err != nil || price <= 0 {
				return apperrors.NewValidationError("price", args[2], "must be a positive number")
			}

			// Quotes must be live before the guard can price the intent.
			if err := app.Market.PollQuotes(cmd.Context()); err != nil {
				output.Error("Quote feed unavailable: %v", err)
				return err
			}
			if err := app.Reconciler.RefreshAll(cmd.Context()); err != nil {
				output.Error("Account refresh failed: %v", err)
				return err
			}

			inst, ok := app.Market.Instrument(code)
			if !ok {
				return fmt.Errorf("unknown instrument %q", code)
			}

			intent := models.OrderIntent{
				InstrumentCode: inst.Code,
				InstrumentName: inst.DisplayName,
				Side:           side,
				Price:          price,
				Quantity:       quantity,
			}

			result, err := app.Market.SubmitOrder(cmd.Context(), intent)
			if err != nil {
				output.Error("Order rejected: %v", err)
				return err
			}

			if result.Evaluation != nil {
				ev := result.Evaluation
				output.Warning("⚠ Price deviates %.2f%% from the current level (%.2f)", ev.DeviationPercent, ev.ReferencePrice)
				if !confirm(cmd, output) {
					app.Market.CancelOrder()
					output.Dim("Order cancelled.")
					return nil
				}
				result, err = app.Market.ConfirmOrder(cmd.Context())
				if err != nil {
					output.Error("Order rejected: %v", err)
					return err
				}
			}

			if result.Submitted {
				output.Success("✓ %s %s x%d @ %.2f filled", string(side), inst.DisplayName, quantity, price)
			}
			return nil
		},
	}
}

// confirm reads a y/n answer from stdin.
func confirm(cmd *cobra.Command, output *Output) bool {
	output.Printf("Proceed anyway? [y/N] ")
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}
