package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

func commentsOf(taskID string) string {
	return docstore.Path(domain.ColTasks, taskID, domain.SubComments)
}

func (s *Service) AddComment(ctx context.Context, sub access.Subject, taskID, text string) (domain.Comment, error) {
	t, err := load[domain.Task](ctx, s.store, domain.ColTasks, taskID, "task")
	if err != nil {
		return domain.Comment{}, err
	}
	if err := s.check(ctx, sub, access.ContributeToProject, access.Target{ProjectID: t.ProjectID}); err != nil {
		return domain.Comment{}, err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.Comment{}, invalid("comment text required")
	}

	c := domain.Comment{
		TaskID:    taskID,
		UserID:    sub.UserID,
		UserName:  sub.DisplayName,
		Text:      text,
		CreatedAt: s.clock.Now(),
	}
	id, err := create(as(ctx, sub), s.store, commentsOf(taskID), "", c)
	if err != nil {
		return domain.Comment{}, fmt.Errorf("add comment: %w", err)
	}
	c.ID = id
	return c, nil
}

// ListComments returns the task's comments, oldest first.
func (s *Service) ListComments(ctx context.Context, sub access.Subject, taskID string) ([]domain.Comment, error) {
	if _, err := s.GetTask(ctx, sub, taskID); err != nil {
		return nil, err
	}
	return query[domain.Comment](ctx, s.store, commentsOf(taskID), docstore.Query{})
}

// SubscribeComments streams comments added to the task from now on.
// The caller must Close the subscription.
func (s *Service) SubscribeComments(ctx context.Context, sub access.Subject, taskID string) (*docstore.Subscription, error) {
	if _, err := s.GetTask(ctx, sub, taskID); err != nil {
		return nil, err
	}
	return s.store.Subscribe(commentsOf(taskID)), nil
}
