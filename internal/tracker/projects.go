package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

const maxSlugAttempts = 100

type ProjectInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CreateProject creates a project owned by the caller, who becomes its
// first owner member.
func (s *Service) CreateProject(ctx context.Context, sub access.Subject, in ProjectInput) (domain.Project, error) {
	if !sub.Authenticated() {
		return domain.Project{}, fmt.Errorf("%w: not signed in", ErrForbidden)
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return domain.Project{}, invalid("name required")
	}
	wctx := as(ctx, sub)

	now := s.clock.Now()
	p := domain.Project{
		ID:          docstore.NewID(),
		Name:        name,
		Description: strings.TrimSpace(in.Description),
		Status:      domain.ProjectActive,
		OwnerID:     sub.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	slug, err := s.reserveSlug(wctx, domain.ColProjectSlugs, domain.MakeSlug(name), "project", p.ID)
	if err != nil {
		return domain.Project{}, err
	}
	p.Slug = slug

	if _, err := create(wctx, s.store, domain.ColProjects, p.ID, p); err != nil {
		if derr := s.store.Delete(wctx, domain.ColProjectSlugs, slug); derr != nil {
			s.logger.Warn().Err(derr).Str("slug", slug).Msg("release project slug")
		}
		return domain.Project{}, fmt.Errorf("create project: %w", err)
	}

	m := domain.ProjectMember{
		ProjectID:   p.ID,
		UserID:      sub.UserID,
		Role:        domain.ProjectRoleOwner,
		DisplayName: sub.DisplayName,
		AddedAt:     now,
	}
	if prof, err := load[domain.UserProfile](ctx, s.store, domain.ColUserProfiles, sub.UserID, "profile"); err == nil {
		m.Email = prof.Email
	}
	if _, err := create(wctx, s.store, membersOf(p.ID), sub.UserID, m); err != nil {
		return domain.Project{}, fmt.Errorf("add owner: %w", err)
	}

	s.recordCreate(ctx, sub, "Created project", "project", p.ID, p.Name)
	return p, nil
}

// reserveSlug claims base, or base-2, base-3... in the index
// collection and returns the one it got.
func (s *Service) reserveSlug(ctx context.Context, index, base, fallback, id string) (string, error) {
	if base == "" {
		base = fallback
	}
	for i := 1; i <= maxSlugAttempts; i++ {
		slug := base
		if i > 1 {
			slug = fmt.Sprintf("%s-%d", base, i)
		}
		_, err := s.store.Create(ctx, index, slug, docstore.Doc{"targetId": id})
		if err == nil {
			return slug, nil
		}
		if !errors.Is(err, docstore.ErrAlreadyExists) {
			return "", fmt.Errorf("reserve slug: %w", err)
		}
	}
	return "", fmt.Errorf("reserve slug %q: %w", base, docstore.ErrAlreadyExists)
}

func membersOf(projectID string) string {
	return docstore.Path(domain.ColProjects, projectID, domain.SubMembers)
}

// resolveProject accepts a slug or an id.
func (s *Service) resolveProject(ctx context.Context, key string) (domain.Project, error) {
	if d, err := s.store.Get(ctx, domain.ColProjectSlugs, key); err == nil {
		if id, _ := d["targetId"].(string); id != "" {
			key = id
		}
	}
	return load[domain.Project](ctx, s.store, domain.ColProjects, key, "project")
}

func (s *Service) GetProject(ctx context.Context, sub access.Subject, slugOrID string) (domain.Project, error) {
	p, err := s.resolveProject(ctx, slugOrID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := s.check(ctx, sub, access.ViewProject, access.Target{ProjectID: p.ID}); err != nil {
		return domain.Project{}, err
	}
	return p, nil
}

// ListProjects returns every project for admins, and the caller's
// projects for everyone else. Sorted by name.
func (s *Service) ListProjects(ctx context.Context, sub access.Subject) ([]domain.Project, error) {
	if !sub.Authenticated() {
		return nil, fmt.Errorf("%w: not signed in", ErrForbidden)
	}
	all, err := query[domain.Project](ctx, s.store, domain.ColProjects, docstore.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Project, 0, len(all))
	for _, p := range all {
		if !sub.Admin() {
			role, err := access.MemberRole(ctx, s.store, p.ID, sub.UserID)
			if err != nil {
				return nil, err
			}
			if role == "" {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name) })
	return out, nil
}

// UpdateProject edits name, description or status. The slug stays.
func (s *Service) UpdateProject(ctx context.Context, sub access.Subject, id string, changes ...domain.ProjectChange) (domain.Project, error) {
	if err := s.check(ctx, sub, access.EditProject, access.Target{ProjectID: id}); err != nil {
		return domain.Project{}, err
	}
	return s.exec.UpdateProject(as(ctx, sub), actorOf(sub), id, changes...)
}

// DeleteProject removes the project, its slug and its memberships.
// Tasks, bugs and sprints are left in place.
func (s *Service) DeleteProject(ctx context.Context, sub access.Subject, id string) error {
	p, err := load[domain.Project](ctx, s.store, domain.ColProjects, id, "project")
	if err != nil {
		return err
	}
	if err := s.check(ctx, sub, access.DeleteProject, access.Target{ProjectID: id}); err != nil {
		return err
	}
	wctx := as(ctx, sub)

	members, err := query[domain.ProjectMember](ctx, s.store, membersOf(id), docstore.Query{})
	if err != nil {
		return err
	}
	// The caller's own owner membership goes last; removing it first
	// would revoke the right to remove the others.
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].UserID != sub.UserID && members[j].UserID == sub.UserID
	})
	for _, m := range members {
		if err := s.store.Delete(wctx, membersOf(id), m.UserID); err != nil {
			return fmt.Errorf("remove member %s: %w", m.UserID, err)
		}
	}
	if err := s.store.Delete(wctx, domain.ColProjects, id); err != nil {
		return fmt.Errorf("delete project: %w", err)
	}
	if err := s.store.Delete(wctx, domain.ColProjectSlugs, p.Slug); err != nil {
		s.logger.Warn().Err(err).Str("slug", p.Slug).Msg("release project slug")
	}
	s.recordCreate(ctx, sub, "Deleted project", "project", id, p.Name)
	return nil
}
