package board

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/audit"
	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/mutation"
	"github.com/kidandcat/sprintboard/internal/optimistic"
)

type stubUpdater struct {
	mu      sync.Mutex
	err     error
	release chan struct{}
	calls   int
}

func (s *stubUpdater) UpdateTask(_ context.Context, id string, changes ...domain.TaskChange) (domain.Task, error) {
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return domain.Task{ID: id}, s.err
}

var t0 = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func seed() []domain.Task {
	return []domain.Task{
		{ID: "t1", Title: "Login page", Status: domain.TaskBacklog, CreatedAt: t0},
		{ID: "t2", Title: "Signup page", Status: domain.TaskBacklog, CreatedAt: t0.Add(time.Minute)},
		{ID: "t3", Title: "Deploy", Status: domain.TaskInReview, CreatedAt: t0},
	}
}

func TestMoveTaskFailureReverts(t *testing.T) {
	up := &stubUpdater{err: errors.New("connection reset"), release: make(chan struct{})}
	b := New(up, clock.NewFake(t0))
	b.Load(seed())

	var notices []optimistic.Notice
	var mu sync.Mutex
	b.OnNotice(func(n optimistic.Notice) {
		mu.Lock()
		notices = append(notices, n)
		mu.Unlock()
	})

	p, err := b.MoveTask(context.Background(), "t1", domain.TaskDone)
	require.NoError(t, err)

	moved, _ := b.Task("t1")
	assert.Equal(t, domain.TaskDone, moved.Status)
	require.NotNil(t, moved.CompletedAt)
	cols := b.Columns()
	assert.Equal(t, domain.TaskDone, cols[len(cols)-1].Status)
	require.Len(t, cols[len(cols)-1].Tasks, 1)

	close(up.release)
	require.Error(t, p.Wait())

	reverted, _ := b.Task("t1")
	assert.Equal(t, domain.TaskBacklog, reverted.Status)
	assert.Nil(t, reverted.CompletedAt)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, notices, 1)
	assert.Equal(t, optimistic.LevelError, notices[0].Level)
	assert.Equal(t, "Could not save", notices[0].Title)
}

func TestMoveTaskValidation(t *testing.T) {
	up := &stubUpdater{}
	b := New(up, clock.NewFake(t0))
	b.Load(seed())

	_, err := b.MoveTask(context.Background(), "t1", "archived")
	assert.ErrorIs(t, err, domain.ErrInvalidChange)
	_, err = b.MoveTask(context.Background(), "missing", domain.TaskDone)
	assert.ErrorIs(t, err, optimistic.ErrUnknownRecord)

	p, err := b.MoveTask(context.Background(), "t1", domain.TaskBacklog)
	require.NoError(t, err)
	require.NoError(t, p.Wait())
	assert.Zero(t, up.calls)
}

func TestColumnsOrder(t *testing.T) {
	b := New(&stubUpdater{}, clock.NewFake(t0))
	b.Load(seed())
	cols := b.Columns()
	require.Len(t, cols, len(domain.TaskStatuses))
	assert.Equal(t, "Backlog", cols[0].Label)
	require.Len(t, cols[0].Tasks, 2)
	assert.Equal(t, "t1", cols[0].Tasks[0].ID)
	assert.Equal(t, "t2", cols[0].Tasks[1].ID)
}

func TestDescribe(t *testing.T) {
	title, _ := Describe(docstore.Deny("nope"))
	assert.Equal(t, "Not allowed", title)
	title, _ = Describe(docstore.ErrNotFound)
	assert.Equal(t, "Task not found", title)
}

func TestMoveThroughExecutor(t *testing.T) {
	ctx := context.Background()
	bk, err := docstore.OpenSQLite(t.TempDir())
	require.NoError(t, err)
	rules := docstore.RulesFunc(func(_ context.Context, _ docstore.Reader, _ docstore.Actor, w docstore.Write) error {
		if w.Collection == domain.ColAuditLogs {
			return errors.New("audit unavailable")
		}
		return nil
	})
	store := docstore.New(bk, docstore.WithRules(rules))
	defer store.Close()

	clk := clock.NewFake(t0)
	exec := mutation.NewExecutor(store, audit.NewWriter(store, clk, zerolog.Nop()), clk, zerolog.Nop())
	d, err := docstore.Encode(domain.Task{Title: "Login page", Status: domain.TaskBacklog, CreatedAt: t0})
	require.NoError(t, err)
	id, err := store.Create(ctx, domain.ColTasks, "", d)
	require.NoError(t, err)

	b := New(ExecutorUpdater{Exec: exec, Actor: mutation.Actor{UserID: "u1", DisplayName: "Ana"}, Store: docstore.Actor{UserID: "u1"}}, clk)
	b.Load([]domain.Task{{ID: id, Title: "Login page", Status: domain.TaskBacklog}})

	p, err := b.MoveTask(ctx, id, domain.TaskDone)
	require.NoError(t, err)
	var auditErr *mutation.AuditError
	require.ErrorAs(t, p.Wait(), &auditErr)

	// The record write stood, so the card stays in done.
	local, _ := b.Task(id)
	assert.Equal(t, domain.TaskDone, local.Status)
	stored, err := store.Get(ctx, domain.ColTasks, id)
	require.NoError(t, err)
	assert.Equal(t, "done", stored["status"])
}

func TestExecutorRejectsNonMember(t *testing.T) {
	ctx := context.Background()
	bk, err := docstore.OpenSQLite(t.TempDir())
	require.NoError(t, err)
	store := docstore.New(bk, docstore.WithRules(access.Rules{}))
	defer store.Close()

	sys := docstore.AsSystem(ctx)
	_, err = store.Create(sys, domain.ColProjects, "p1", docstore.Doc{"name": "Apollo", "ownerId": "u1"})
	require.NoError(t, err)
	_, err = store.Create(sys, docstore.Path(domain.ColProjects, "p1", domain.SubMembers), "u1", docstore.Doc{"role": "owner"})
	require.NoError(t, err)
	d, err := docstore.Encode(domain.Task{ProjectID: "p1", Title: "Login page", Status: domain.TaskBacklog, CreatedAt: t0})
	require.NoError(t, err)
	id, err := store.Create(sys, domain.ColTasks, "", d)
	require.NoError(t, err)

	clk := clock.NewFake(t0)
	exec := mutation.NewExecutor(store, audit.NewWriter(store, clk, zerolog.Nop()), clk, zerolog.Nop())
	b := New(ExecutorUpdater{Exec: exec, Actor: mutation.Actor{UserID: "stranger"}, Store: docstore.Actor{UserID: "stranger"}}, clk)
	b.Load([]domain.Task{{ID: id, ProjectID: "p1", Title: "Login page", Status: domain.TaskBacklog}})

	p, err := b.MoveTask(ctx, id, domain.TaskDone)
	require.NoError(t, err)
	assert.ErrorIs(t, p.Wait(), docstore.ErrPermissionDenied)

	local, _ := b.Task(id)
	assert.Equal(t, domain.TaskBacklog, local.Status)
	stored, err := store.Get(ctx, domain.ColTasks, id)
	require.NoError(t, err)
	assert.Equal(t, "backlog", stored["status"])
}
