// Package tracker implements the CRUD operations behind the API. Every
// operation checks the caller against the access gate before touching
// the store, and validates input before writing anything.
package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kidandcat/sprintboard/internal/access"
	"github.com/kidandcat/sprintboard/internal/audit"
	"github.com/kidandcat/sprintboard/internal/clock"
	"github.com/kidandcat/sprintboard/internal/docstore"
	"github.com/kidandcat/sprintboard/internal/identity"
	"github.com/kidandcat/sprintboard/internal/mutation"
	"github.com/kidandcat/sprintboard/internal/notify"
)

var (
	ErrForbidden = errors.New("forbidden")
	ErrInvalid   = errors.New("invalid input")
)

type Deps struct {
	Store     *docstore.Store
	Exec      *mutation.Executor
	Audit     *audit.Writer
	Identity  *identity.Service
	Clock     clock.Clock
	UploadDir string
	Logger    zerolog.Logger
	// Notifier is optional.
	Notifier *notify.Notifier
}

type Service struct {
	store     *docstore.Store
	gate      *access.Gate
	exec      *mutation.Executor
	audit     *audit.Writer
	identity  *identity.Service
	clock     clock.Clock
	uploadDir string
	logger    zerolog.Logger
	notifier  *notify.Notifier
}

func New(d Deps) *Service {
	return &Service{
		store:     d.Store,
		gate:      access.NewGate(d.Store),
		exec:      d.Exec,
		audit:     d.Audit,
		identity:  d.Identity,
		clock:     d.Clock,
		uploadDir: d.UploadDir,
		logger:    d.Logger,
		notifier:  d.Notifier,
	}
}

func (s *Service) Gate() *access.Gate { return s.gate }

func (s *Service) check(ctx context.Context, sub access.Subject, a access.Action, t access.Target) error {
	d := s.gate.Check(ctx, sub, a, t)
	if !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// as attaches the subject to ctx for the store's write rules.
func as(ctx context.Context, sub access.Subject) context.Context {
	return docstore.WithActor(ctx, sub.Actor())
}

func actorOf(sub access.Subject) mutation.Actor {
	return mutation.Actor{UserID: sub.UserID, DisplayName: sub.DisplayName}
}

// recordCreate audits a create or delete. Audit failures never undo
// the write; they are logged by the audit writer and dropped here.
func (s *Service) recordCreate(ctx context.Context, sub access.Subject, action, entity, id, details string) {
	if err := s.exec.Record(as(ctx, sub), actorOf(sub), action, entity, id, details); err != nil {
		s.logger.Debug().Err(err).Str("entity", entity).Str("id", id).Msg("audit skipped")
	}
}

func load[T any](ctx context.Context, store *docstore.Store, coll, id, what string) (T, error) {
	var v T
	d, err := store.Get(ctx, coll, id)
	if err != nil {
		return v, fmt.Errorf("%s %s: %w", what, id, err)
	}
	if err := docstore.Decode(d, &v); err != nil {
		return v, err
	}
	return v, nil
}

func query[T any](ctx context.Context, store *docstore.Store, coll string, q docstore.Query) ([]T, error) {
	docs, err := store.Query(ctx, coll, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", coll, err)
	}
	return docstore.DecodeAll[T](docs)
}

func create(ctx context.Context, store *docstore.Store, coll, id string, v any) (string, error) {
	d, err := docstore.Encode(v)
	if err != nil {
		return "", err
	}
	return store.Create(ctx, coll, id, d)
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
