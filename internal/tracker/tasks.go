package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

type TaskInput struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Status      domain.TaskStatus   `json:"status"`
	Priority    domain.TaskPriority `json:"priority"`
	ParentID    *string             `json:"parentId"`
	AssigneeID  *string             `json:"assigneeId"`
	SprintID    *string             `json:"sprintId"`
}

type TaskFilter struct {
	SprintID   string
	Status     domain.TaskStatus
	AssigneeID string
	ParentID   string
}

func (s *Service) CreateTask(ctx context.Context, sub access.Subject, projectID string, in TaskInput) (domain.Task, error) {
	if err := s.check(ctx, sub, access.ContributeToProject, access.Target{ProjectID: projectID}); err != nil {
		return domain.Task{}, err
	}

	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Task{}, invalid("title required")
	}
	if in.Status == "" {
		in.Status = domain.TaskBacklog
	}
	if !in.Status.Valid() {
		return domain.Task{}, invalid("unknown task status %q", in.Status)
	}
	if in.Priority == "" {
		in.Priority = domain.PriorityMedium
	}
	if !in.Priority.Valid() {
		return domain.Task{}, invalid("unknown task priority %q", in.Priority)
	}

	now := s.clock.Now()
	t := domain.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		Type:        domain.TypeTask,
		AssigneeID:  strPtr(deref(in.AssigneeID)),
		SprintID:    strPtr(deref(in.SprintID)),
		CreatedBy:   sub.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == domain.TaskDone {
		t.CompletedAt = &now
	}

	if parentID := deref(in.ParentID); parentID != "" {
		parent, err := load[domain.Task](ctx, s.store, domain.ColTasks, parentID, "parent task")
		if err != nil {
			return domain.Task{}, invalid("parent task %s does not exist", parentID)
		}
		if parent.ProjectID != projectID {
			return domain.Task{}, invalid("parent task %s belongs to another project", parentID)
		}
		t.ParentID = &parentID
		t.Type = domain.TypeSubtask
	}
	if t.SprintID != nil {
		if err := s.sprintInProject(ctx, *t.SprintID, projectID); err != nil {
			return domain.Task{}, err
		}
	}

	id, err := create(as(ctx, sub), s.store, domain.ColTasks, "", t)
	if err != nil {
		return domain.Task{}, fmt.Errorf("create task: %w", err)
	}
	t.ID = id
	s.recordCreate(ctx, sub, "Created task", "task", id, t.Title)
	return t, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func (s *Service) sprintInProject(ctx context.Context, sprintID, projectID string) error {
	sp, err := load[domain.Sprint](ctx, s.store, domain.ColSprints, sprintID, "sprint")
	if err != nil {
		return invalid("sprint %s does not exist", sprintID)
	}
	if sp.ProjectID != projectID {
		return invalid("sprint %s belongs to another project", sprintID)
	}
	return nil
}

func (s *Service) GetTask(ctx context.Context, sub access.Subject, id string) (domain.Task, error) {
	t, err := load[domain.Task](ctx, s.store, domain.ColTasks, id, "task")
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.check(ctx, sub, access.ViewProject, access.Target{ProjectID: t.ProjectID}); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ListTasks returns the project's tasks in creation order.
func (s *Service) ListTasks(ctx context.Context, sub access.Subject, projectID string, f TaskFilter) ([]domain.Task, error) {
	if err := s.check(ctx, sub, access.ViewProject, access.Target{ProjectID: projectID}); err != nil {
		return nil, err
	}
	q := docstore.Query{Where: []docstore.Filter{docstore.Where("projectId", projectID)}}
	if f.SprintID != "" {
		q.Where = append(q.Where, docstore.Where("sprintId", f.SprintID))
	}
	if f.Status != "" {
		q.Where = append(q.Where, docstore.Where("status", string(f.Status)))
	}
	if f.AssigneeID != "" {
		q.Where = append(q.Where, docstore.Where("assigneeId", f.AssigneeID))
	}
	if f.ParentID != "" {
		q.Where = append(q.Where, docstore.Where("parentId", f.ParentID))
	}
	return query[domain.Task](ctx, s.store, domain.ColTasks, q)
}

func (s *Service) UpdateTask(ctx context.Context, sub access.Subject, id string, changes ...domain.TaskChange) (domain.Task, error) {
	t, err := load[domain.Task](ctx, s.store, domain.ColTasks, id, "task")
	if err != nil {
		return domain.Task{}, err
	}
	if err := s.check(ctx, sub, access.ContributeToProject, access.Target{ProjectID: t.ProjectID}); err != nil {
		return domain.Task{}, err
	}
	for _, c := range changes {
		if sc, ok := c.(domain.SetTaskSprint); ok && deref(sc.SprintID) != "" {
			if err := s.sprintInProject(ctx, deref(sc.SprintID), t.ProjectID); err != nil {
				return domain.Task{}, err
			}
		}
	}
	return s.exec.UpdateTask(as(ctx, sub), actorOf(sub), id, changes...)
}

// DeleteTask deletes the task and its subtasks.
func (s *Service) DeleteTask(ctx context.Context, sub access.Subject, id string) error {
	t, err := load[domain.Task](ctx, s.store, domain.ColTasks, id, "task")
	if err != nil {
		return err
	}
	if err := s.check(ctx, sub, access.ContributeToProject, access.Target{ProjectID: t.ProjectID}); err != nil {
		return err
	}
	wctx := as(ctx, sub)
	subtasks, err := query[domain.Task](ctx, s.store, domain.ColTasks, docstore.Query{
		Where: []docstore.Filter{docstore.Where("parentId", id)},
	})
	if err != nil {
		return err
	}
	for _, st := range subtasks {
		if err := s.store.Delete(wctx, domain.ColTasks, st.ID); err != nil {
			return fmt.Errorf("delete subtask %s: %w", st.ID, err)
		}
	}
	if err := s.store.Delete(wctx, domain.ColTasks, id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.recordCreate(ctx, sub, "Deleted task", "task", id, t.Title)
	return nil
}

// SubtaskProgress counts the task's subtasks and how many are done.
func (s *Service) SubtaskProgress(ctx context.Context, sub access.Subject, taskID string) (domain.SubtaskProgress, error) {
	t, err := s.GetTask(ctx, sub, taskID)
	if err != nil {
		return domain.SubtaskProgress{}, err
	}
	subtasks, err := s.ListTasks(ctx, sub, t.ProjectID, TaskFilter{ParentID: taskID})
	if err != nil {
		return domain.SubtaskProgress{}, err
	}
	var p domain.SubtaskProgress
	for _, st := range subtasks {
		p.Total++
		if st.Status == domain.TaskDone {
			p.Done++
		}
	}
	return p, nil
}
