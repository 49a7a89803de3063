// Package jobs runs periodic housekeeping on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/kidandcat/sprintboard/internal/config"
)

type sessionPurger interface {
	PurgeExpiredSessions(ctx context.Context) (int, error)
}

type Cron struct {
	log      zerolog.Logger
	sessions sessionPurger
	c        *cron.Cron
}

func NewCron(cfg config.CronConfig, log zerolog.Logger, sessions sessionPurger) (*Cron, error) {
	loc, err := time.LoadLocation(cfg.TZ)
	if err != nil {
		return nil, fmt.Errorf("cron tz %q: %w", cfg.TZ, err)
	}
	c := cron.New(cron.WithLocation(loc), cron.WithParser(cron.NewParser(cron.Minute|cron.Hour|cron.Dom|cron.Month|cron.Dow)))
	cr := &Cron{log: log, sessions: sessions, c: c}
	if _, err := c.AddFunc(cfg.SessionPurge, cr.purgeSessions); err != nil {
		return nil, fmt.Errorf("cron session_purge %q: %w", cfg.SessionPurge, err)
	}
	return cr, nil
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop stops scheduling and waits for a running job to finish.
func (cr *Cron) Stop() { <-cr.c.Stop().Done() }

func (cr *Cron) purgeSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	n, err := cr.sessions.PurgeExpiredSessions(ctx)
	if err != nil {
		cr.log.Error().Err(err).Msg("cron: session purge failed")
		return
	}
	cr.log.Info().Int("purged", n).Msg("cron: session purge")
}
