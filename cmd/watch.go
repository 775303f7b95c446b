package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
)

func newWatchCmd(app *app) *cobra.Command {
	var (
		interval    time.Duration
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Enforce duration caps on a timer until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("interval") {
				interval = app.cfg.WatchdogInterval
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if metricsAddr != "" {
				srv := &http.Server{
					Addr:              metricsAddr,
					Handler:           metricsMux(app),
					ReadHeaderTimeout: 5 * time.Second,
				}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						app.logger.Error("metrics server stopped", "addr", metricsAddr, "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
				app.logger.Info("serving metrics", "addr", metricsAddr)
			}

			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "watching live sessions every %s\n", interval)
			return app.watchdog.Run(ctx, interval, nil)
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", time.Minute, "Sweep interval (defaults to watchdog.interval)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")

	return cmd
}

func metricsMux(app *app) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
	return mux
}
