package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jinyang756/Wealthgather-exchange/internal/sched"
	"github.com/jinyang756/Wealthgather-exchange/internal/stream"
)

// addRunCommand adds the long-running synchronization loop.
func addRunCommand(rootCmd *cobra.Command, app *App) {
	rootCmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the synchronization core until interrupted",
		Long: `Start the periodic quote poll, news refresh, store health check and
latency gauge, plus the account mirror for the signed-in user. Events
are logged as they land. Stop with Ctrl-C.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			output := NewOutput(cmd)
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			defer app.Close()

			if userID, _ := cmd.Flags().GetString("user"); userID != "" {
				if err := app.signIn(cmd); err != nil {
					return err
				}
				if app.Realtime != nil {
					if err := app.Realtime.Connect(ctx, userID); err != nil {
						output.Warning("Realtime feed unavailable, mirrors refresh on demand: %v", err)
					}
				}
				output.Info("Signed in as %s", userID)
			}

			quotes := app.Bus.Subscribe(stream.TopicQuotesUpdated)
			health := app.Bus.Subscribe(stream.TopicHealthChanged)
			orders := app.Bus.Subscribe(stream.TopicOrdersChanged)

			scheduler := sched.New(app.Logger)
			app.Market.Start(ctx, scheduler)
			output.Info("Synchronization core started (poll %s)", app.Config.Market.PollInterval)

			for {
				select {
				case <-ctx.Done():
					scheduler.Wait()
					output.Println()
					output.Dim("Stopped.")
					return nil
				case <-quotes:
					app.Logger.Debug().
						Int("instruments", len(app.Market.Instruments())).
						Int("latency_ms", app.Market.LatencyMs()).
						Msg("quotes updated")
				case <-health:
					app.Logger.Info().
						Bool("feed", app.Market.FeedConnected()).
						Bool("store", app.Market.StoreOnline()).
						Msg("connectivity changed")
				case <-orders:
					app.Logger.Info().
						Int("orders", len(app.Market.Orders())).
						Msg("orders mirror refreshed")
				}
			}
		},
	})
}
