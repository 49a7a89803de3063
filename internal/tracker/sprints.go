package tracker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/burndown"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

type SprintInput struct {
	Name      string    `json:"name"`
	Goal      string    `json:"goal"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
}

// CreateSprint adds a sprint in planning. Several sprints may be active
// at once; nothing enforces a single active sprint.
func (s *Service) CreateSprint(ctx context.Context, sub access.Subject, projectID string, in SprintInput) (domain.Sprint, error) {
	if err := s.check(ctx, sub, access.ContributeToProject, access.Target{ProjectID: projectID}); err != nil {
		return domain.Sprint{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Sprint{}, invalid("name required")
	}
	dates := domain.SetSprintDates{StartDate: in.StartDate, EndDate: in.EndDate}
	if err := dates.Validate(); err != nil {
		return domain.Sprint{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	now := s.clock.Now()
	sp := domain.Sprint{
		ProjectID: projectID,
		Name:      name,
		Goal:      strings.TrimSpace(in.Goal),
		StartDate: in.StartDate.UTC(),
		EndDate:   in.EndDate.UTC(),
		Status:    domain.SprintPlanning,
		CreatedAt: now,
		UpdatedAt: now,
	}
	id, err := create(as(ctx, sub), s.store, domain.ColSprints, "", sp)
	if err != nil {
		return domain.Sprint{}, fmt.Errorf("create sprint: %w", err)
	}
	sp.ID = id
	s.recordCreate(ctx, sub, "Created sprint", "sprint", id, sp.Name)
	return sp, nil
}

func (s *Service) GetSprint(ctx context.Context, sub access.Subject, id string) (domain.Sprint, error) {
	sp, err := load[domain.Sprint](ctx, s.store, domain.ColSprints, id, "sprint")
	if err != nil {
		return domain.Sprint{}, err
	}
	if err := s.check(ctx, sub, access.ViewProject, access.Target{ProjectID: sp.ProjectID}); err != nil {
		return domain.Sprint{}, err
	}
	return sp, nil
}

func (s *Service) ListSprints(ctx context.Context, sub access.Subject, projectID string) ([]domain.Sprint, error) {
	if err := s.check(ctx, sub, access.ViewProject, access.Target{ProjectID: projectID}); err != nil {
		return nil, err
	}
	return query[domain.Sprint](ctx, s.store, domain.ColSprints, docstore.Query{
		Where:   []docstore.Filter{docstore.Where("projectId", projectID)},
		OrderBy: "startDate",
	})
}

func (s *Service) UpdateSprint(ctx context.Context, sub access.Subject, id string, changes ...domain.SprintChange) (domain.Sprint, error) {
	sp, err := load[domain.Sprint](ctx, s.store, domain.ColSprints, id, "sprint")
	if err != nil {
		return domain.Sprint{}, err
	}
	if err := s.check(ctx, sub, access.ContributeToProject, access.Target{ProjectID: sp.ProjectID}); err != nil {
		return domain.Sprint{}, err
	}
	return s.exec.UpdateSprint(as(ctx, sub), actorOf(sub), id, changes...)
}

func (s *Service) Burndown(ctx context.Context, sub access.Subject, sprintID string) (burndown.Chart, error) {
	sp, err := s.GetSprint(ctx, sub, sprintID)
	if err != nil {
		return burndown.Chart{}, err
	}
	tasks, err := s.ListTasks(ctx, sub, sp.ProjectID, TaskFilter{SprintID: sprintID})
	if err != nil {
		return burndown.Chart{}, err
	}
	return burndown.Compute(sp, tasks, s.clock.Now()), nil
}
