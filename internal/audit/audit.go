// Package audit appends and lists audit log entries. Entries are never
// updated or deleted; the store rules reject both.
package audit

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/domain"
)

// Entry is what callers record; the writer stamps id and timestamp.
type Entry struct {
	UserID   string
	UserName string
	Action   string
	Entity   string
	EntityID string
	Details  string
}

type Writer struct {
	store  *docstore.Store
	clock  clock.Clock
	logger zerolog.Logger
}

func NewWriter(store *docstore.Store, clk clock.Clock, logger zerolog.Logger) *Writer {
	return &Writer{store: store, clock: clk, logger: logger}
}

// Append writes one entry. The caller decides whether a failure matters.
func (w *Writer) Append(ctx context.Context, e Entry) (domain.AuditLog, error) {
	entry := domain.AuditLog{
		ID:        docstore.NewID(),
		UserID:    e.UserID,
		UserName:  e.UserName,
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		Details:   e.Details,
		Timestamp: w.clock.Now(),
	}
	d, err := docstore.Encode(entry)
	if err != nil {
		return domain.AuditLog{}, err
	}
	if _, err := w.store.Create(ctx, domain.ColAuditLogs, entry.ID, d); err != nil {
		w.logger.Warn().Err(err).
			Str("diagnostic", "audit append failed").
			Str("action", e.Action).
			Str("entity", e.Entity).
			Str("entityId", e.EntityID).
			Msg("audit")
		return domain.AuditLog{}, fmt.Errorf("append audit %s %s/%s: %w", e.Action, e.Entity, e.EntityID, err)
	}
	return entry, nil
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	Entity   string
	EntityID string
	UserID   string
	Limit    uint64
}

// List returns entries newest first.
func (w *Writer) List(ctx context.Context, f Filter) ([]domain.AuditLog, error) {
	q := docstore.Query{Desc: true, Limit: f.Limit}
	if f.Entity != "" {
		q.Where = append(q.Where, docstore.Where("entity", f.Entity))
	}
	if f.EntityID != "" {
		q.Where = append(q.Where, docstore.Where("entityId", f.EntityID))
	}
	if f.UserID != "" {
		q.Where = append(q.Where, docstore.Where("userId", f.UserID))
	}
	docs, err := w.store.Query(ctx, domain.ColAuditLogs, q)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	return docstore.DecodeAll[domain.AuditLog](docs)
}
