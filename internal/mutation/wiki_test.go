package mutation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

func (f *fixture) seedPage(t *testing.T, title, content string) string {
	t.Helper()
	d, err := docstore.Encode(domain.WikiPage{Slug: domain.MakeSlug(title), Title: title, Content: content, LastEditedBy: "Ben"})
	require.NoError(t, err)
	id, err := f.store.Create(context.Background(), domain.ColWikiPages, "", d)
	require.NoError(t, err)
	return id
}

func TestWikiEditRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	id := f.seedPage(t, "Onboarding", "v0")

	pageA, err := f.exec.EditWikiPage(ctx, ana, id, "Onboarding", "v1")
	require.NoError(t, err)
	assert.Equal(t, "v1", pageA.Content)
	assert.Equal(t, "Ana", pageA.LastEditedBy)

	history, err := f.exec.WikiHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Onboarding", history[0].Title)
	assert.Equal(t, "v0", history[0].Content)
	assert.Equal(t, "Ben", history[0].EditedBy)

	f.clock.Advance(time.Minute)
	_, err = f.exec.EditWikiPage(ctx, ana, id, "Onboarding guide", "v2")
	require.NoError(t, err)

	history, err = f.exec.WikiHistory(ctx, id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, pageA.Title, history[0].Title)
	assert.Equal(t, pageA.Content, history[0].Content)
	assert.Equal(t, "v0", history[1].Content)
}

func TestWikiEditAbortsWhenSnapshotFails(t *testing.T) {
	ctx := context.Background()
	rules := docstore.RulesFunc(func(_ context.Context, _ docstore.Reader, _ docstore.Actor, w docstore.Write) error {
		if w.Collection != domain.ColWikiPages && w.Op == docstore.OpCreate && w.Fields["pageId"] != nil {
			return errors.New("quota exceeded")
		}
		return nil
	})
	f := newFixture(t, rules)
	id := f.seedPage(t, "Runbook", "original")

	_, err := f.exec.EditWikiPage(ctx, ana, id, "Runbook", "changed")
	var snapErr *SnapshotError
	require.ErrorAs(t, err, &snapErr)

	d, err := f.store.Get(ctx, domain.ColWikiPages, id)
	require.NoError(t, err)
	assert.Equal(t, "original", d["content"])
}

func TestWikiEditWithoutChanges(t *testing.T) {
	f := newFixture(t, nil)
	id := f.seedPage(t, "Runbook", "same")
	_, err := f.exec.EditWikiPage(context.Background(), ana, id, "Runbook", "same")
	assert.ErrorIs(t, err, ErrNoChanges)
}
