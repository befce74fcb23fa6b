package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ultraviolet/uv/internal/logging"
	"github.com/ultraviolet/uv/internal/metrics"
	"github.com/ultraviolet/uv/internal/observability"
	"github.com/ultraviolet/uv/internal/supervisor"
	"github.com/ultraviolet/uv/internal/transport"
)

func serverCmd() *cobra.Command {
	var (
		address   string
		noBrowser bool
		logLevel  string
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run a long-lived server accepting WebSocket Beam connections",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("address") {
				cfg.Daemon.Address = address
			}
			if cmd.Flags().Changed("no-browser") {
				cfg.Daemon.NoBrowser = noBrowser
			}
			if cmd.Flags().Changed("log-level") {
				cfg.Daemon.LogLevel = logLevel
			}

			logging.SetLevelFromString(cfg.Daemon.LogLevel)
			logging.InitStructured(cfg.Logging.Format, cfg.Logging.Level)

			if err := observability.Init(context.Background(), observability.Config{
				Enabled:     cfg.Tracing.Enabled,
				Exporter:    cfg.Tracing.Exporter,
				Endpoint:    cfg.Tracing.Endpoint,
				ServiceName: cfg.Tracing.ServiceName,
				SampleRate:  cfg.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(context.Background())

			if cfg.Metrics.Enabled {
				metrics.InitPrometheus(cfg.Metrics.Namespace, cfg.Metrics.HistogramBuckets)
			}

			sup, err := supervisor.New(cfg)
			if err != nil {
				return fmt.Errorf("build supervisor: %w", err)
			}

			mux := http.NewServeMux()
			mux.HandleFunc("/beam", func(w http.ResponseWriter, r *http.Request) {
				ws, err := transport.Upgrade(w, r)
				if err != nil {
					logging.Op().Warn("websocket upgrade failed", "error", err)
					return
				}
				sup.RegisterTransport(ws)
				if err := sup.Serve(r.Context(), ws); err != nil {
					logging.Op().Info("beam connection closed", "error", err)
				}
			})
			mux.Handle("/metrics", metrics.PrometheusHandler())

			httpServer := &http.Server{Addr: cfg.Daemon.Address, Handler: mux}
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					logging.Op().Error("http server stopped", "error", err)
				}
			}()
			logging.Op().Info("uv server listening", "address", cfg.Daemon.Address)

			health := supervisor.NewHealthServer()
			healthLis, err := net.Listen("tcp", ":0")
			if err != nil {
				return fmt.Errorf("listen for health server: %w", err)
			}
			go func() {
				if err := health.Serve(healthLis); err != nil {
					logging.Op().Info("health server stopped", "error", err)
				}
			}()
			logging.Op().Info("health check listening", "address", healthLis.Addr().String())

			if !cfg.Daemon.NoBrowser {
				openBrowser(fmt.Sprintf("http://%s/beam", cfg.Daemon.Address))
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			logging.Op().Info("shutdown signal received")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.DrainDeadline())
			defer cancel()

			if err := health.Shutdown(shutdownCtx, func(ctx context.Context) error {
				_ = httpServer.Shutdown(ctx)
				return sup.Shutdown(ctx)
			}); err != nil {
				return fmt.Errorf("drain: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&address, "address", "localhost:8080", "HTTP address to listen on")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not attempt to open a browser at startup")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
	return cmd
}

// openBrowser best-effort launches the platform's default browser; failures
// are logged, never fatal, since a server's reachability never depends on
// having a desktop session attached.
func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		logging.Op().Debug("could not open browser", "error", err)
	}
}
