package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/joss/navigator/internal/logging"
	"github.com/joss/navigator/internal/metrics"
	"github.com/joss/navigator/internal/runtime"
	"github.com/joss/navigator/internal/selftest"
	"github.com/joss/navigator/internal/server"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP server",
		Long: `Serve POST /api/chat for the Jellyfin web client.

The web client forwards the user's Jellyfin session with each request; the
server never stores credentials or conversations.

Examples:
  navigator serve
  navigator serve --addr :9090
  NAVIGATOR_JELLYFIN_URL=http://jellyfin:8096 navigator serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.Server.Addr = addr
			}
			log := logging.New("serve")

			svc, err := buildServices(cfg)
			if err != nil {
				return err
			}

			shutdown := runtime.NewShutdownManager(cfg.Server.ShutdownTimeout)
			shutdown.Register("services", func(ctx context.Context) error { return svc.Close() })

			if cfg.Server.MetricsAddr != "" {
				ms := metrics.NewServer(cfg.Server.MetricsAddr, svc.metrics)
				ms.Start()
				shutdown.Register("metrics-server", ms.Stop)
			}

			srv := server.New(svc.chat, server.Options{
				AllowedOrigins: cfg.Server.AllowedOrigins,
				Metrics:        svc.metrics,
				Ready:          selftest.HealthHandler(svc.checker()),
			})

			httpSrv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			shutdown.Register("http-server", httpSrv.Shutdown)
			shutdown.ListenForSignals()

			log.Info("server_start", map[string]any{
				"addr":     cfg.Server.Addr,
				"jellyfin": cfg.Jellyfin.URL,
				"provider": cfg.Chat.DefaultProvider,
				"config":   cfg.File,
				"audit":    cfg.Audit.Path != "",
			})

			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				shutdown.Shutdown()
				return err
			}
			return shutdown.Shutdown()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	return cmd
}
