package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
	"github.com/kidandcat/sprintboard/internal/identity"
)

// AddMember adds the user whose profile has email to the project.
func (s *Service) AddMember(ctx context.Context, sub access.Subject, projectID, email string, role domain.ProjectRole) (domain.ProjectMember, error) {
	if err := s.check(ctx, sub, access.ManageMembers, access.Target{ProjectID: projectID}); err != nil {
		return domain.ProjectMember{}, err
	}
	if role == "" {
		role = domain.ProjectRoleMember
	}
	if !role.Valid() {
		return domain.ProjectMember{}, invalid("unknown project role %q", role)
	}
	email = identity.NormalizeEmail(email)
	if email == "" {
		return domain.ProjectMember{}, invalid("email required")
	}

	profiles, err := query[domain.UserProfile](ctx, s.store, domain.ColUserProfiles, docstore.Query{
		Where: []docstore.Filter{docstore.Where("email", email)},
		Limit: 1,
	})
	if err != nil {
		return domain.ProjectMember{}, err
	}
	if len(profiles) == 0 {
		return domain.ProjectMember{}, invalid("no user with email %s", email)
	}
	prof := profiles[0]

	m := domain.ProjectMember{
		ProjectID:   projectID,
		UserID:      prof.ID,
		Role:        role,
		DisplayName: prof.DisplayName,
		Email:       prof.Email,
		AddedAt:     s.clock.Now(),
	}
	if _, err := create(as(ctx, sub), s.store, membersOf(projectID), prof.ID, m); err != nil {
		if errors.Is(err, docstore.ErrAlreadyExists) {
			return domain.ProjectMember{}, fmt.Errorf("%s is already a member: %w", email, err)
		}
		return domain.ProjectMember{}, fmt.Errorf("add member: %w", err)
	}
	s.recordCreate(ctx, sub, "Added member", "project", projectID, fmt.Sprintf("%s as %s", email, role))
	if s.notifier != nil {
		if p, err := load[domain.Project](ctx, s.store, domain.ColProjects, projectID, "project"); err == nil {
			s.notifier.MemberAdded(ctx, m.Email, p.Name, p.Slug, sub.DisplayName)
		}
	}
	return m, nil
}

// RemoveMember drops a non-owner from the project. Tasks and bugs
// assigned to them keep their assigneeId.
func (s *Service) RemoveMember(ctx context.Context, sub access.Subject, projectID, userID string) error {
	if err := s.check(ctx, sub, access.RemoveMember, access.Target{ProjectID: projectID, MemberID: userID}); err != nil {
		return err
	}
	if err := s.store.Delete(as(ctx, sub), membersOf(projectID), userID); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	s.recordCreate(ctx, sub, "Removed member", "project", projectID, userID)
	return nil
}

func (s *Service) ListMembers(ctx context.Context, sub access.Subject, projectID string) ([]domain.ProjectMember, error) {
	if err := s.check(ctx, sub, access.ViewProject, access.Target{ProjectID: projectID}); err != nil {
		return nil, err
	}
	return query[domain.ProjectMember](ctx, s.store, membersOf(projectID), docstore.Query{})
}
