package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kidandcat/sprintboard/internal/api"
	"github.com/kidandcat/sprintboard/internal/jobs"
)

func newServeCommand(configPath *string) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			a, err := openApp(ctx, *configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			if addr != "" {
				a.cfg.Addr = addr
			}

			if err := a.tracker.SyncAdmins(ctx, a.cfg.AdminEmails); err != nil {
				return err
			}

			cron, err := jobs.NewCron(a.cfg.Cron, a.log, a.identity)
			if err != nil {
				return err
			}

			srv := api.New(api.Deps{
				Tracker:  a.tracker,
				Identity: a.identity,
				Admin:    a.admin,
				Logger:   a.log,
			})
			httpSrv := &http.Server{
				Addr:              a.cfg.Addr,
				Handler:           srv.Routes(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.log.Info().Str("addr", a.cfg.Addr).Str("env", a.cfg.Env).Msg("sprintboard listening")
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				cron.Start()
				<-gctx.Done()
				a.log.Info().Msg("shutting down")
				cron.Stop()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overriding the config")
	return cmd
}

func newMigrateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the document tables and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()
			a.log.Info().Str("driver", a.cfg.DB.Driver).Msg("schema up to date")
			return nil
		},
	}
}
