package mutation

import (
	"context"
	"fmt"
	"strings"

	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

// SnapshotError means the prior version could not be saved, so the
// page was left untouched.
type SnapshotError struct {
	PageID string
	Err    error
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("wiki page %s: snapshot failed, edit not applied: %v", e.PageID, e.Err)
}

func (e *SnapshotError) Unwrap() error { return e.Err }

// EditWikiPage saves the page's current title and content as a version,
// then writes the new ones and audits the edit.
func (e *Executor) EditWikiPage(ctx context.Context, actor Actor, pageID, title, content string) (domain.WikiPage, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.WikiPage{}, fmt.Errorf("%w: title required", domain.ErrInvalidChange)
	}

	d, err := e.store.Get(ctx, domain.ColWikiPages, pageID)
	if err != nil {
		return domain.WikiPage{}, fmt.Errorf("wiki page %s: %w", pageID, err)
	}
	var prior domain.WikiPage
	if err := docstore.Decode(d, &prior); err != nil {
		return domain.WikiPage{}, err
	}
	if prior.Title == title && prior.Content == content {
		return prior, ErrNoChanges
	}

	now := e.clock.Now()
	version := domain.WikiPageVersion{
		ID:        docstore.NewID(),
		PageID:    pageID,
		Title:     prior.Title,
		Content:   prior.Content,
		EditedBy:  prior.LastEditedBy,
		CreatedAt: now,
	}
	vd, err := docstore.Encode(version)
	if err != nil {
		return domain.WikiPage{}, err
	}
	if _, err := e.store.Create(ctx, docstore.Path(domain.ColWikiPages, pageID, domain.SubVersions), version.ID, vd); err != nil {
		return domain.WikiPage{}, &SnapshotError{PageID: pageID, Err: err}
	}

	updated, err := e.Apply(ctx, Mutation{
		Actor:      actor,
		Collection: domain.ColWikiPages,
		Entity:     "wikiPage",
		ID:         pageID,
		Fields: map[string]any{
			"title":        title,
			"content":      content,
			"lastEditedBy": actor.DisplayName,
			"updatedAt":    now,
		},
		Action:  "Edited wiki page",
		Details: prior.Slug,
	})
	if updated == nil {
		return domain.WikiPage{}, err
	}
	var page domain.WikiPage
	if derr := docstore.Decode(updated, &page); derr != nil {
		return domain.WikiPage{}, derr
	}
	return page, err
}

// WikiHistory lists a page's prior versions, newest first.
func (e *Executor) WikiHistory(ctx context.Context, pageID string) ([]domain.WikiPageVersion, error) {
	docs, err := e.store.Query(ctx, docstore.Path(domain.ColWikiPages, pageID, domain.SubVersions), docstore.Query{Desc: true})
	if err != nil {
		return nil, fmt.Errorf("wiki history %s: %w", pageID, err)
	}
	return docstore.DecodeAll[domain.WikiPageVersion](docs)
}
