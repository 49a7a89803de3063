package tracker

import (
	"context"
	"fmt"
	"strings"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

type BugInput struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	ReproductionSteps string             `json:"reproductionSteps"`
	EvidenceURL       string             `json:"evidenceUrl"`
	Priority          domain.BugPriority `json:"priority"`
	Severity          domain.BugSeverity `json:"severity"`
	AssigneeID        *string            `json:"assigneeId"`
}

type BugFilter struct {
	Status     domain.BugStatus
	AssigneeID string
}

// CreateBug files a new bug reported by the caller.
func (s *Service) CreateBug(ctx context.Context, sub access.Subject, projectID string, in BugInput) (domain.Bug, error) {
	if err := s.check(ctx, sub, access.ContributeToProject, access.Target{ProjectID: projectID}); err != nil {
		return domain.Bug{}, err
	}
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Bug{}, invalid("title required")
	}
	if in.Priority == "" {
		in.Priority = domain.BugPriorityMedium
	}
	if !in.Priority.Valid() {
		return domain.Bug{}, invalid("unknown bug priority %q", in.Priority)
	}
	if in.Severity == "" {
		in.Severity = domain.SeverityMedium
	}
	if !in.Severity.Valid() {
		return domain.Bug{}, invalid("unknown bug severity %q", in.Severity)
	}

	now := s.clock.Now()
	b := domain.Bug{
		ProjectID:         projectID,
		Title:             title,
		Description:       in.Description,
		ReproductionSteps: in.ReproductionSteps,
		EvidenceURL:       strings.TrimSpace(in.EvidenceURL),
		Priority:          in.Priority,
		Severity:          in.Severity,
		Status:            domain.BugNew,
		AssigneeID:        strPtr(deref(in.AssigneeID)),
		ReportedBy:        sub.UserID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	id, err := create(as(ctx, sub), s.store, domain.ColBugs, "", b)
	if err != nil {
		return domain.Bug{}, fmt.Errorf("create bug: %w", err)
	}
	b.ID = id
	s.recordCreate(ctx, sub, "Reported bug", "bug", id, b.Title)
	return b, nil
}

func (s *Service) GetBug(ctx context.Context, sub access.Subject, id string) (domain.Bug, error) {
	b, err := load[domain.Bug](ctx, s.store, domain.ColBugs, id, "bug")
	if err != nil {
		return domain.Bug{}, err
	}
	if err := s.check(ctx, sub, access.ViewProject, access.Target{ProjectID: b.ProjectID}); err != nil {
		return domain.Bug{}, err
	}
	return b, nil
}

// ListBugs returns the project's bugs, newest first.
func (s *Service) ListBugs(ctx context.Context, sub access.Subject, projectID string, f BugFilter) ([]domain.Bug, error) {
	if err := s.check(ctx, sub, access.ViewProject, access.Target{ProjectID: projectID}); err != nil {
		return nil, err
	}
	q := docstore.Query{Where: []docstore.Filter{docstore.Where("projectId", projectID)}, Desc: true}
	if f.Status != "" {
		q.Where = append(q.Where, docstore.Where("status", string(f.Status)))
	}
	if f.AssigneeID != "" {
		q.Where = append(q.Where, docstore.Where("assigneeId", f.AssigneeID))
	}
	return query[domain.Bug](ctx, s.store, domain.ColBugs, q)
}

func (s *Service) UpdateBug(ctx context.Context, sub access.Subject, id string, changes ...domain.BugChange) (domain.Bug, error) {
	b, err := load[domain.Bug](ctx, s.store, domain.ColBugs, id, "bug")
	if err != nil {
		return domain.Bug{}, err
	}
	if err := s.check(ctx, sub, access.ContributeToProject, access.Target{ProjectID: b.ProjectID}); err != nil {
		return domain.Bug{}, err
	}
	return s.exec.UpdateBug(as(ctx, sub), actorOf(sub), id, changes...)
}

func (s *Service) DeleteBug(ctx context.Context, sub access.Subject, id string) error {
	b, err := load[domain.Bug](ctx, s.store, domain.ColBugs, id, "bug")
	if err != nil {
		return err
	}
	if err := s.check(ctx, sub, access.ContributeToProject, access.Target{ProjectID: b.ProjectID}); err != nil {
		return err
	}
	if err := s.store.Delete(as(ctx, sub), domain.ColBugs, id); err != nil {
		return fmt.Errorf("delete bug: %w", err)
	}
	s.recordCreate(ctx, sub, "Deleted bug", "bug", id, b.Title)
	return nil
}
