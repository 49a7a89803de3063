package docstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Store is the handle the rest of the application talks to.
type Store struct {
	backend Backend
	rules   Rules
	broker  *broker
	logger  zerolog.Logger
}

type Option func(*Store)

func WithRules(r Rules) Option {
	return func(s *Store) { s.rules = r }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

func New(b Backend, opts ...Option) *Store {
	s := &Store{backend: b, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}
	s.broker = newBroker(s.logger)
	return s
}

// Path joins a parent document and a subcollection name:
// Path("projects", "p1", "members") == "projects/p1/members".
func Path(collection, id, sub string) string {
	return strings.Join([]string{collection, id, sub}, "/")
}

func (s *Store) authorize(ctx context.Context, w Write) error {
	if s.rules == nil {
		return nil
	}
	actor, _ := ActorFrom(ctx)
	if actor.System {
		return nil
	}
	if err := s.rules.Authorize(ctx, s.backend, actor, w); err != nil {
		s.logger.Debug().Err(err).Str("op", string(w.Op)).Str("collection", w.Collection).Str("id", w.ID).Msg("write rejected")
		return err
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (Doc, error) {
	return s.backend.Get(ctx, collection, id)
}

func (s *Store) Query(ctx context.Context, collection string, q Query) ([]Doc, error) {
	return s.backend.Query(ctx, collection, q)
}

// Create inserts d. An empty id gets a fresh one; the id is also written
// into the document's "id" field. Returns the id used.
func (s *Store) Create(ctx context.Context, collection, id string, d Doc) (string, error) {
	if id == "" {
		id = d.ID()
	}
	if id == "" {
		id = NewID()
	}
	d = merge(d, Doc{"id": id})
	if err := s.authorize(ctx, Write{Op: OpCreate, Collection: collection, ID: id, Fields: d}); err != nil {
		return "", err
	}
	if err := s.backend.Create(ctx, collection, id, d); err != nil {
		return "", err
	}
	s.broker.publish(Event{Op: OpCreate, Collection: collection, ID: id, Doc: d})
	return id, nil
}

// Set overwrites the document at id.
func (s *Store) Set(ctx context.Context, collection, id string, d Doc) error {
	if id == "" {
		return fmt.Errorf("set %s: empty id", collection)
	}
	d = merge(d, Doc{"id": id})
	if err := s.authorize(ctx, Write{Op: OpSet, Collection: collection, ID: id, Fields: d}); err != nil {
		return err
	}
	if err := s.backend.Set(ctx, collection, id, d); err != nil {
		return err
	}
	s.broker.publish(Event{Op: OpSet, Collection: collection, ID: id, Doc: d})
	return nil
}

// Update merges fields into the document at id. A nil field value
// removes that field.
func (s *Store) Update(ctx context.Context, collection, id string, fields Doc) (Doc, error) {
	if _, ok := fields["id"]; ok {
		return nil, fmt.Errorf("update %s/%s: %w: id is immutable", collection, id, ErrInvalidField)
	}
	if err := s.authorize(ctx, Write{Op: OpUpdate, Collection: collection, ID: id, Fields: fields}); err != nil {
		return nil, err
	}
	d, err := s.backend.Update(ctx, collection, id, fields)
	if err != nil {
		return nil, err
	}
	s.broker.publish(Event{Op: OpUpdate, Collection: collection, ID: id, Doc: d})
	return d, nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := s.authorize(ctx, Write{Op: OpDelete, Collection: collection, ID: id}); err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, collection, id); err != nil {
		return err
	}
	s.broker.publish(Event{Op: OpDelete, Collection: collection, ID: id})
	return nil
}

// Subscribe delivers every committed write to collection made through
// this Store. The caller must Close the subscription when done.
func (s *Store) Subscribe(collection string) *Subscription {
	return s.broker.subscribe(collection)
}

func (s *Store) Close() error {
	s.broker.closeAll()
	return s.backend.Close()
}
