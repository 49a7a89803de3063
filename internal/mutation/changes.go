package mutation

import (
	"context"
	"fmt"
	"strings"

	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

// fieldsOf validates every change and merges their fields. Later
// changes to the same field win.
func (e *Executor) fieldsOf(changes []domain.Change) (map[string]any, string, error) {
	if len(changes) == 0 {
		return nil, "", ErrNoChanges
	}
	now := e.clock.Now()
	fields := make(map[string]any)
	parts := make([]string, 0, len(changes))
	for _, c := range changes {
		if err := c.Validate(); err != nil {
			return nil, "", err
		}
		for k, v := range c.Fields(now) {
			fields[k] = v
		}
		parts = append(parts, c.Describe())
	}
	fields["updatedAt"] = now
	return fields, strings.Join(parts, ", "), nil
}

func (e *Executor) update(ctx context.Context, actor Actor, coll, entity, id string, changes []domain.Change, out any) error {
	fields, details, err := e.fieldsOf(changes)
	if err != nil {
		return err
	}
	d, err := e.Apply(ctx, Mutation{
		Actor:      actor,
		Collection: coll,
		Entity:     entity,
		ID:         id,
		Fields:     fields,
		Action:     "Updated " + entity,
		Details:    details,
	})
	if d == nil {
		return err
	}
	if derr := docstore.Decode(d, out); derr != nil {
		return fmt.Errorf("%s %s: %w", entity, id, derr)
	}
	return err
}

// UpdateTask applies task changes. On *AuditError the returned task is
// the committed record.
func (e *Executor) UpdateTask(ctx context.Context, actor Actor, id string, changes ...domain.TaskChange) (domain.Task, error) {
	var t domain.Task
	err := e.update(ctx, actor, domain.ColTasks, "task", id, asChanges(changes), &t)
	return t, err
}

func (e *Executor) UpdateBug(ctx context.Context, actor Actor, id string, changes ...domain.BugChange) (domain.Bug, error) {
	var b domain.Bug
	err := e.update(ctx, actor, domain.ColBugs, "bug", id, asChanges(changes), &b)
	return b, err
}

func (e *Executor) UpdateSprint(ctx context.Context, actor Actor, id string, changes ...domain.SprintChange) (domain.Sprint, error) {
	var s domain.Sprint
	err := e.update(ctx, actor, domain.ColSprints, "sprint", id, asChanges(changes), &s)
	return s, err
}

func (e *Executor) UpdateProject(ctx context.Context, actor Actor, id string, changes ...domain.ProjectChange) (domain.Project, error) {
	var p domain.Project
	err := e.update(ctx, actor, domain.ColProjects, "project", id, asChanges(changes), &p)
	return p, err
}

func asChanges[C domain.Change](cs []C) []domain.Change {
	out := make([]domain.Change, len(cs))
	for i, c := range cs {
		out[i] = c
	}
	return out
}
