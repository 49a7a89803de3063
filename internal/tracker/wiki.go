package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

// CreateWikiPage creates a page whose slug comes from its title. A
// title whose slug is taken is rejected.
func (s *Service) CreateWikiPage(ctx context.Context, sub access.Subject, title, content string) (domain.WikiPage, error) {
	if !sub.Authenticated() {
		return domain.WikiPage{}, fmt.Errorf("%w: not signed in", ErrForbidden)
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.WikiPage{}, invalid("title required")
	}
	slug := domain.MakeSlug(title)
	if slug == "" {
		return domain.WikiPage{}, invalid("title must contain letters or digits")
	}
	wctx := as(ctx, sub)

	now := s.clock.Now()
	page := domain.WikiPage{
		ID:           docstore.NewID(),
		Slug:         slug,
		Title:        title,
		Content:      content,
		LastEditedBy: sub.DisplayName,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err := s.store.Create(wctx, domain.ColWikiSlugs, slug, docstore.Doc{"targetId": page.ID})
	if errors.Is(err, docstore.ErrAlreadyExists) {
		return domain.WikiPage{}, fmt.Errorf("wiki page %q: %w", slug, err)
	}
	if err != nil {
		return domain.WikiPage{}, fmt.Errorf("reserve wiki slug: %w", err)
	}
	if _, err := create(wctx, s.store, domain.ColWikiPages, page.ID, page); err != nil {
		if derr := s.store.Delete(wctx, domain.ColWikiSlugs, slug); derr != nil {
			s.logger.Warn().Err(derr).Str("slug", slug).Msg("release wiki slug")
		}
		return domain.WikiPage{}, fmt.Errorf("create wiki page: %w", err)
	}
	s.recordCreate(ctx, sub, "Created wiki page", "wikiPage", page.ID, slug)
	return page, nil
}

func (s *Service) GetWikiPage(ctx context.Context, sub access.Subject, slug string) (domain.WikiPage, error) {
	if !sub.Authenticated() {
		return domain.WikiPage{}, fmt.Errorf("%w: not signed in", ErrForbidden)
	}
	d, err := s.store.Get(ctx, domain.ColWikiSlugs, slug)
	if err != nil {
		return domain.WikiPage{}, fmt.Errorf("wiki page %q: %w", slug, err)
	}
	id, _ := d["targetId"].(string)
	return load[domain.WikiPage](ctx, s.store, domain.ColWikiPages, id, "wiki page")
}

func (s *Service) ListWikiPages(ctx context.Context, sub access.Subject) ([]domain.WikiPage, error) {
	if !sub.Authenticated() {
		return nil, fmt.Errorf("%w: not signed in", ErrForbidden)
	}
	return query[domain.WikiPage](ctx, s.store, domain.ColWikiPages, docstore.Query{OrderBy: "title"})
}

// EditWikiPage snapshots the current version, then saves the edit.
func (s *Service) EditWikiPage(ctx context.Context, sub access.Subject, slug, title, content string) (domain.WikiPage, error) {
	page, err := s.GetWikiPage(ctx, sub, slug)
	if err != nil {
		return domain.WikiPage{}, err
	}
	return s.exec.EditWikiPage(as(ctx, sub), actorOf(sub), page.ID, title, content)
}

// WikiHistory lists prior versions of the page, newest first.
func (s *Service) WikiHistory(ctx context.Context, sub access.Subject, slug string) ([]domain.WikiPageVersion, error) {
	page, err := s.GetWikiPage(ctx, sub, slug)
	if err != nil {
		return nil, err
	}
	return s.exec.WikiHistory(ctx, page.ID)
}
