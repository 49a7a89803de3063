// Package mutation applies field-level changes to stored records and
// records one audit entry per change set.
//
// The record update and the audit append are two separate writes. The
// update decides success; an audit failure is reported as *AuditError
// after the record has already changed.
package mutation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kidandcat/sprintboard/internal/audit"
	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/docstore"
)

var ErrNoChanges = errors.New("mutation: no changes")

// Actor is the user a mutation is recorded against.
type Actor struct {
	UserID      string
	DisplayName string
}

// Mutation is one change set against one record.
type Mutation struct {
	Actor      Actor
	Collection string
	// Entity is the audit entity name, e.g. "task".
	Entity string
	ID     string
	Fields map[string]any
	// Action is the free-text audit action, e.g. "Updated task".
	Action  string
	Details string
}

// AuditError reports that the record was written but its audit entry
// was not.
type AuditError struct {
	Entity   string
	EntityID string
	Err      error
}

func (e *AuditError) Error() string {
	return fmt.Sprintf("%s %s updated, audit entry not written: %v", e.Entity, e.EntityID, e.Err)
}

func (e *AuditError) Unwrap() error { return e.Err }

// RecordCommitted is always true: the record change stands.
func (e *AuditError) RecordCommitted() bool { return true }

type Executor struct {
	store  *docstore.Store
	audit  *audit.Writer
	clock  clock.Clock
	logger zerolog.Logger
}

func NewExecutor(store *docstore.Store, auditor *audit.Writer, clk clock.Clock, logger zerolog.Logger) *Executor {
	return &Executor{store: store, audit: auditor, clock: clk, logger: logger}
}

func (e *Executor) Store() *docstore.Store { return e.store }

func (e *Executor) Clock() clock.Clock { return e.clock }

// Apply writes m.Fields onto the record (stamping updatedAt), then
// appends the audit entry. It returns the record as stored.
func (e *Executor) Apply(ctx context.Context, m Mutation) (docstore.Doc, error) {
	if len(m.Fields) == 0 {
		return nil, ErrNoChanges
	}
	if _, err := e.store.Get(ctx, m.Collection, m.ID); err != nil {
		return nil, fmt.Errorf("%s %s: %w", m.Entity, m.ID, err)
	}

	fields := make(docstore.Doc, len(m.Fields)+1)
	for k, v := range m.Fields {
		fields[k] = v
	}
	if _, ok := fields["updatedAt"]; !ok {
		fields["updatedAt"] = e.clock.Now()
	}

	d, err := e.store.Update(ctx, m.Collection, m.ID, fields)
	if err != nil {
		return nil, fmt.Errorf("update %s %s: %w", m.Entity, m.ID, err)
	}
	e.logger.Debug().Str("entity", m.Entity).Str("id", m.ID).Str("user", m.Actor.UserID).Msg("record updated")

	if err := e.record(ctx, m); err != nil {
		return d, err
	}
	return d, nil
}

func (e *Executor) record(ctx context.Context, m Mutation) error {
	_, err := e.audit.Append(ctx, audit.Entry{
		UserID:   m.Actor.UserID,
		UserName: m.Actor.DisplayName,
		Action:   m.Action,
		Entity:   m.Entity,
		EntityID: m.ID,
		Details:  m.Details,
	})
	if err != nil {
		return &AuditError{Entity: m.Entity, EntityID: m.ID, Err: err}
	}
	return nil
}

// Record appends an audit entry for a write the caller made itself
// (creates and deletes). Failures come back as *AuditError.
func (e *Executor) Record(ctx context.Context, actor Actor, action, entity, entityID, details string) error {
	return e.record(ctx, Mutation{Actor: actor, Action: action, Entity: entity, ID: entityID, Details: details})
}
