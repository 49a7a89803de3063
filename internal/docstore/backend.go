package docstore

import "context"

// Reader is the read half of a Backend. Rules receive one so they can
// look at other documents while deciding.
type Reader interface {
	Get(ctx context.Context, collection, id string) (Doc, error)
	Query(ctx context.Context, collection string, q Query) ([]Doc, error)
}

// Backend stores documents. Implementations must be safe for
// concurrent use.
type Backend interface {
	Reader
	// Create inserts a new document and fails with ErrAlreadyExists if
	// the id is taken.
	Create(ctx context.Context, collection, id string, d Doc) error
	// Set writes the whole document, creating it if needed.
	Set(ctx context.Context, collection, id string, d Doc) error
	// Update merges fields into an existing document and returns the
	// result. ErrNotFound if it does not exist.
	Update(ctx context.Context, collection, id string, fields Doc) (Doc, error)
	// Delete removes a document. Deleting a missing document is not an
	// error.
	Delete(ctx context.Context, collection, id string) error
	Close() error
}
