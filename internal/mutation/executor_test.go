package mutation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/sprintboard/internal/audit"
	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

var ana = Actor{UserID: "u1", DisplayName: "Ana"}

type fixture struct {
	store *docstore.Store
	exec  *Executor
	audit *audit.Writer
	clock *clock.Fake
}

func newFixture(t *testing.T, rules docstore.Rules) *fixture {
	t.Helper()
	b, err := docstore.OpenSQLite(t.TempDir())
	require.NoError(t, err)
	var opts []docstore.Option
	if rules != nil {
		opts = append(opts, docstore.WithRules(rules))
	}
	s := docstore.New(b, opts...)
	t.Cleanup(func() { s.Close() })
	clk := clock.NewFake(time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC))
	w := audit.NewWriter(s, clk, zerolog.Nop())
	return &fixture{store: s, exec: NewExecutor(s, w, clk, zerolog.Nop()), audit: w, clock: clk}
}

func (f *fixture) seedTask(t *testing.T, status domain.TaskStatus) string {
	t.Helper()
	d, err := docstore.Encode(domain.Task{
		ProjectID: "p1", Title: "Ship it", Status: status,
		Priority: domain.PriorityMedium, Type: domain.TypeTask,
		CreatedAt: f.clock.Now(), UpdatedAt: f.clock.Now(),
	})
	require.NoError(t, err)
	id, err := f.store.Create(docstore.AsSystem(context.Background()), domain.ColTasks, "", d)
	require.NoError(t, err)
	return id
}

func TestUpdateTaskWritesRecordThenAudit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.seedTask(t, domain.TaskBacklog)

	f.clock.Advance(time.Hour)
	task, err := f.exec.UpdateTask(ctx, ana, id, domain.SetTaskStatus{Status: domain.TaskDone})
	require.NoError(t, err)
	assert.Equal(t, domain.TaskDone, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.True(t, task.CompletedAt.Equal(f.clock.Now()))
	assert.True(t, task.UpdatedAt.Equal(f.clock.Now()))

	entries, err := f.audit.List(ctx, audit.Filter{EntityID: id})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Updated task", entries[0].Action)
	assert.Equal(t, "Ana", entries[0].UserName)
	assert.Equal(t, "status=done", entries[0].Details)

	// Leaving done clears completedAt entirely.
	task, err = f.exec.UpdateTask(ctx, ana, id, domain.SetTaskStatus{Status: domain.TaskTodo})
	require.NoError(t, err)
	assert.Nil(t, task.CompletedAt)
	d, err := f.store.Get(ctx, domain.ColTasks, id)
	require.NoError(t, err)
	assert.NotContains(t, d, "completedAt")
}

func TestUpdateTaskRejectsBeforeWriting(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.seedTask(t, domain.TaskTodo)

	_, err := f.exec.UpdateTask(ctx, ana, id)
	assert.ErrorIs(t, err, ErrNoChanges)

	_, err = f.exec.UpdateTask(ctx, ana, id,
		domain.SetTaskTitle{Title: "Renamed"},
		domain.SetTaskStatus{Status: "archived"},
	)
	assert.ErrorIs(t, err, domain.ErrInvalidChange)

	d, err := f.store.Get(ctx, domain.ColTasks, id)
	require.NoError(t, err)
	assert.Equal(t, "Ship it", d["title"])

	entries, err := f.audit.List(ctx, audit.Filter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUpdateMissingRecord(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.exec.UpdateBug(context.Background(), ana, "nope", domain.SetBugStatus{Status: domain.BugClosed})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
	assert.False(t, docstore.IsTransient(err))
}

func TestAuditFailureKeepsRecord(t *testing.T) {
	ctx := context.Background()
	rules := docstore.RulesFunc(func(_ context.Context, _ docstore.Reader, _ docstore.Actor, w docstore.Write) error {
		if w.Collection == domain.ColAuditLogs {
			return errors.New("audit backend unavailable")
		}
		return nil
	})
	f := newFixture(t, rules)
	id := f.seedTask(t, domain.TaskTodo)

	task, err := f.exec.UpdateTask(ctx, ana, id, domain.SetTaskPriority{Priority: domain.PriorityHigh})
	require.Error(t, err)

	var auditErr *AuditError
	require.ErrorAs(t, err, &auditErr)
	assert.True(t, auditErr.RecordCommitted())
	assert.Equal(t, domain.PriorityHigh, task.Priority)

	d, err := f.store.Get(ctx, domain.ColTasks, id)
	require.NoError(t, err)
	assert.Equal(t, "high", d["priority"])
}

func TestUpdateSprintDates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	start := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	d, err := docstore.Encode(domain.Sprint{ProjectID: "p1", Name: "S1", StartDate: start, EndDate: start.AddDate(0, 0, 14), Status: domain.SprintPlanning})
	require.NoError(t, err)
	id, err := f.store.Create(ctx, domain.ColSprints, "", d)
	require.NoError(t, err)

	sprint, err := f.exec.UpdateSprint(ctx, ana, id,
		domain.SetSprintDates{StartDate: start, EndDate: start.AddDate(0, 0, 7)},
		domain.SetSprintStatus{Status: domain.SprintActive},
	)
	require.NoError(t, err)
	assert.Equal(t, domain.SprintActive, sprint.Status)
	assert.True(t, sprint.EndDate.Equal(start.AddDate(0, 0, 7)))

	_, err = f.exec.UpdateSprint(ctx, ana, id, domain.SetSprintDates{StartDate: start, EndDate: start.AddDate(0, 0, -1)})
	assert.ErrorIs(t, err, domain.ErrInvalidChange)
}
