package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/sprintboard/internal/config"
)

type fakePurger struct {
	calls int
	err   error
}

func (f *fakePurger) PurgeExpiredSessions(context.Context) (int, error) {
	f.calls++
	return 3, f.err
}

func TestNewCronValidatesSchedule(t *testing.T) {
	_, err := NewCron(config.CronConfig{TZ: "UTC", SessionPurge: "not a schedule"}, zerolog.Nop(), &fakePurger{})
	assert.Error(t, err)

	_, err = NewCron(config.CronConfig{TZ: "Mars/Olympus", SessionPurge: "0 * * * *"}, zerolog.Nop(), &fakePurger{})
	assert.Error(t, err)

	cr, err := NewCron(config.Default().Cron, zerolog.Nop(), &fakePurger{})
	require.NoError(t, err)
	assert.Len(t, cr.c.Entries(), 1)
	cr.Start()
	cr.Stop()
}

func TestPurgeSessions(t *testing.T) {
	p := &fakePurger{}
	cr, err := NewCron(config.Default().Cron, zerolog.Nop(), p)
	require.NoError(t, err)

	cr.purgeSessions()
	assert.Equal(t, 1, p.calls)

	p.err = errors.New("store down")
	cr.purgeSessions()
	assert.Equal(t, 2, p.calls)
}
