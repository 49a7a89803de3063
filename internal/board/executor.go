package board

import (
	"context"

	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/mutation"
)

// ExecutorUpdater writes through an in-process mutation executor as a
// fixed user.
type ExecutorUpdater struct {
	Exec  *mutation.Executor
	Actor mutation.Actor
	// Store is the acting user for the store's write rules.
	Store docstore.Actor
}

func (u ExecutorUpdater) UpdateTask(ctx context.Context, id string, changes ...domain.TaskChange) (domain.Task, error) {
	return u.Exec.UpdateTask(docstore.WithActor(ctx, u.Store), u.Actor, id, changes...)
}
