// Package board is the Kanban view of a project's tasks. Moving a card
// updates the local board at once; the backing write runs behind it
// and a failure puts the card back.
package board

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/optimistic"
)

// TaskUpdater performs the authoritative task write.
type TaskUpdater interface {
	UpdateTask(ctx context.Context, id string, changes ...domain.TaskChange) (domain.Task, error)
}

type Column struct {
	Status domain.TaskStatus
	Label  string
	Tasks  []domain.Task
}

type Board struct {
	ctrl    *optimistic.Controller[domain.Task]
	updater TaskUpdater
	clock   clock.Clock
}

func New(updater TaskUpdater, clk clock.Clock) *Board {
	return &Board{
		ctrl:    optimistic.New[domain.Task](optimistic.WithDescriber(Describe)),
		updater: updater,
		clock:   clk,
	}
}

// Load installs tasks fetched from the server.
func (b *Board) Load(tasks []domain.Task) {
	m := make(map[string]domain.Task, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	b.ctrl.Replace(m)
}

func (b *Board) Task(id string) (domain.Task, bool) { return b.ctrl.Get(id) }

// MoveTask is the drag-and-drop transition. Any status may follow any
// other. Dropping a card on its own column does nothing.
func (b *Board) MoveTask(ctx context.Context, id string, status domain.TaskStatus) (*optimistic.Pending, error) {
	change := domain.SetTaskStatus{Status: status}
	if err := change.Validate(); err != nil {
		return nil, err
	}
	cur, ok := b.ctrl.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", optimistic.ErrUnknownRecord, id)
	}
	if cur.Status == status {
		return optimistic.Resolved(nil), nil
	}
	return b.Update(ctx, id, change)
}

// Update applies arbitrary task changes optimistically.
func (b *Board) Update(ctx context.Context, id string, changes ...domain.TaskChange) (*optimistic.Pending, error) {
	for _, c := range changes {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	now := b.clock.Now()
	return b.ctrl.Apply(ctx, id,
		func(t domain.Task) domain.Task {
			for _, c := range changes {
				c.ApplyTask(&t, now)
			}
			return t
		},
		func(ctx context.Context, _ domain.Task) error {
			_, err := b.updater.UpdateTask(ctx, id, changes...)
			return err
		},
	)
}

// Columns groups tasks by status in board order. Cards inside a column
// are ordered by creation time.
func (b *Board) Columns() []Column {
	byStatus := make(map[domain.TaskStatus][]domain.Task)
	for _, t := range b.ctrl.Snapshot() {
		byStatus[t.Status] = append(byStatus[t.Status], t)
	}
	cols := make([]Column, 0, len(domain.TaskStatuses))
	for _, s := range domain.TaskStatuses {
		tasks := byStatus[s]
		sort.Slice(tasks, func(i, j int) bool {
			if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
				return tasks[i].ID < tasks[j].ID
			}
			return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
		})
		cols = append(cols, Column{Status: s, Label: s.Label(), Tasks: tasks})
	}
	return cols
}

func (b *Board) Subscribe(fn func(optimistic.Event[domain.Task])) func() {
	return b.ctrl.Subscribe(fn)
}

func (b *Board) OnNotice(fn func(optimistic.Notice)) func() {
	return b.ctrl.OnNotice(fn)
}

func (b *Board) Close() { b.ctrl.Close() }

// Describe words a failed task write for the user.
func Describe(err error) (string, string) {
	switch {
	case errors.Is(err, docstore.ErrPermissionDenied):
		return "Not allowed", "You don't have permission to change this task."
	case errors.Is(err, docstore.ErrNotFound):
		return "Task not found", "The task was deleted by someone else."
	case errors.Is(err, domain.ErrInvalidChange):
		return "Invalid change", err.Error()
	case docstore.IsTransient(err):
		return "Could not save", "The change was not saved and has been undone. Try again."
	}
	return "Update failed", err.Error()
}
