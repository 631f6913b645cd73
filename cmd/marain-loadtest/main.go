package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aeolun/marain/pkg/client"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfg         Config
	metricsAddr string
	verbose     bool
)

var rootCmd = &cobra.Command{
	Use:   "marain-loadtest",
	Short: "Drive a chat server with many headless clients",
	Long: `marain-loadtest logs in a number of bots, moves them into one room and has
each post random chatter at a fixed rate. Every bot waits for its own
messages to come back and reports the round trip.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		level := zapcore.WarnLevel
		if verbose {
			level = zapcore.DebugLevel
		}
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(level)
		logger, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		cfg.Metrics = client.NewMetrics()
		if metricsAddr != "" {
			srv := &http.Server{Addr: metricsAddr, ReadHeaderTimeout: 5 * time.Second}
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(cfg.Metrics.Registry, promhttp.HandlerOpts{}))
			srv.Handler = mux
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("metrics server failed", zap.Error(err))
				}
			}()
			defer srv.Close()
		}

		fmt.Printf("Starting load test: %d clients, %.2f msg/s each, %s against %s\n",
			cfg.Clients, cfg.Rate, cfg.Duration, cfg.Server)

		stats, err := Run(ctx, cfg, logger, os.Stdout)
		stats.PrintSummary(os.Stdout, cfg.Duration)
		return err
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVarP(&cfg.Server, "server", "s", "localhost:1337", "server address")
	flags.IntVarP(&cfg.Clients, "clients", "n", 10, "number of concurrent clients")
	flags.DurationVarP(&cfg.Duration, "duration", "d", 30*time.Second, "how long to post")
	flags.Float64VarP(&cfg.Rate, "rate", "r", 1, "messages per second per client")
	flags.StringVar(&cfg.Room, "room", "loadtest", "room every client moves into")
	flags.DurationVar(&cfg.Ramp, "ramp", 5*time.Second, "spread client logins over this period")
	flags.DurationVar(&cfg.ReportInterval, "report", 5*time.Second, "progress report interval, 0 disables")
	flags.StringVar(&metricsAddr, "metrics-addr", "", "serve client metrics on this address")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "marain-loadtest: %v\n", err)
		os.Exit(1)
	}
}
