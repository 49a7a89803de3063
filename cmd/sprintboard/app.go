package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/admin"
	"github.com/kidandcat/sprintboard/internal/audit"
	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/config"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/identity"
	"github.com/kidandcat/sprintboard/internal/logger"
	"github.com/kidandcat/sprintboard/internal/mutation"
	"github.com/kidandcat/sprintboard/internal/notify"
	"github.com/kidandcat/sprintboard/internal/tracker"
)

// app is the wired set of services every server-side command needs.
type app struct {
	cfg      config.Config
	log      zerolog.Logger
	store    *docstore.Store
	identity *identity.Service
	tracker  *tracker.Service
	admin    *admin.Service
	notifier *notify.Notifier
}

func openApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg)

	if err := os.MkdirAll(cfg.UploadDir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if cfg.DB.Driver == "sqlite" {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	store, err := docstore.Shared(ctx, docstore.Config{
		Driver:  cfg.DB.Driver,
		DataDir: cfg.DataDir,
		DSN:     cfg.DB.DSN,
		Logger:  log,
		Rules:   access.Rules{},
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	clk := clock.Real()
	aw := audit.NewWriter(store, clk, log)
	ids := identity.New(store, clk, cfg.SessionTTL, log)
	notifier := notify.New(notify.NewMailer(cfg.Email, log), cfg.BaseURL, log)
	tr := tracker.New(tracker.Deps{
		Store:     store,
		Exec:      mutation.NewExecutor(store, aw, clk, log),
		Audit:     aw,
		Identity:  ids,
		Clock:     clk,
		UploadDir: cfg.UploadDir,
		Logger:    log,
		Notifier:  notifier,
	})
	return &app{
		cfg:      cfg,
		log:      log,
		store:    store,
		identity: ids,
		tracker:  tr,
		admin:    admin.New(ids, store, clk, log),
		notifier: notifier,
	}, nil
}

func (a *app) Close() {
	a.notifier.Wait()
	if err := a.store.Close(); err != nil {
		a.log.Warn().Err(err).Msg("close store")
	}
}
