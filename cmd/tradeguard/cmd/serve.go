package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/tradeguard/health"
	"github.com/rustyeddy/tradeguard/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the status and risk HTTP service",
	Long: `Serve breaker status and overrides, the daily risk check and Prometheus
metrics over HTTP. A health report is logged on every --health-interval.

Example:
  tradeguard serve --addr :8090 --health-interval 5m`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var (
	serveAddr           string
	serveHealthInterval time.Duration
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.addr)")
	serveCmd.Flags().DurationVar(&serveHealthInterval, "health-interval", 5*time.Minute, "health report interval, 0 disables")
}

func runServe(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.withGate(ctx); err != nil {
		return err
	}

	cfg := server.DefaultConfig()
	if a.cfg.Server.Addr != "" {
		cfg.Addr = a.cfg.Server.Addr
	}
	if serveAddr != "" {
		cfg.Addr = serveAddr
	}

	if serveHealthInterval > 0 {
		go reportHealth(ctx, health.NewReporter(a.breakers, a.log), serveHealthInterval)
	}

	srv := server.New(cfg, a.breakers, a.gate, a.prom, a.log.With().Str("component", "server").Logger())
	return srv.ListenAndServe(ctx)
}

func reportHealth(ctx context.Context, r *health.Reporter, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.Log(r.Report())
		}
	}
}
