package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abhisek/leetbuddy/internal/catalog"
	"github.com/abhisek/leetbuddy/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the enforcement engine and its local HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cmd.SetContext(ctx)

		return withApp(cmd, func(a *app) error {
			if err := a.engine.Startup(ctx); err != nil {
				return fmt.Errorf("startup: %w", err)
			}

			gin.SetMode(gin.ReleaseMode)
			router := server.NewRouter(server.NewHandlers(a.engine, a.log), a.log)

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return server.Serve(ctx, a.cfg.Server.Addr, router, a.log)
			})
			g.Go(func() error {
				tick(ctx, a, a.cfg.Enforcement.TickInterval)
				return nil
			})
			if a.cfg.Catalog.Watch && a.cfg.Catalog.Dir != "" {
				g.Go(func() error {
					return catalog.Watch(ctx, a.cfg.Catalog.Dir, a.catalog, a.log)
				})
			}
			return g.Wait()
		})
	},
}

// tick reconciles on every interval so expiring bypasses and day rollover
// take effect without a request.
func tick(ctx context.Context, a *app, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := a.engine.Tick(ctx); err != nil {
				a.log.Error().Err(err).Msg("tick")
			}
		}
	}
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Run first-time setup: sync solved problems and install the block",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(a *app) error {
			if err := a.engine.Install(cmd.Context()); err != nil {
				return fmt.Errorf("install: %w", err)
			}
			return runStatusWith(cmd, a)
		})
	},
}
