package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveNoRefresh bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API, refreshing the dashboard on an interval",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		httpServer := &http.Server{
			Addr:              addr,
			Handler:           a.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("server listening", "addr", addr, "auth", cfg.Auth.Enabled, "mcp", cfg.MCP.Enabled)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		if !serveNoRefresh {
			g.Go(func() error {
				if _, err := a.Dashboard.Refresh(ctx); err != nil {
					logger.Warn("initial refresh failed", "error", err)
				}
				if cfg.Dashboard.RefreshInterval <= 0 {
					return nil
				}
				return a.Dashboard.AutoRefresh(ctx, cfg.Dashboard.RefreshInterval)
			})
		}
		g.Go(func() error {
			<-ctx.Done()
			waitForShutdown(logger, httpServer)
			return nil
		})
		return g.Wait()
	},
}

func init() {
	serveCmd.Flags().BoolVar(&serveNoRefresh, "no-refresh", false, "do not refresh on start or on an interval")
}

func waitForShutdown(logger *slog.Logger, server *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logger.Info("shutting down")
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
}
