package docstore

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Doc is one stored document.
type Doc map[string]any

// ID returns the document's "id" field, or "".
func (d Doc) ID() string {
	s, _ := d["id"].(string)
	return s
}

// NewID returns a fresh random document id.
func NewID() string { return uuid.NewString() }

// Encode turns a tagged struct into a Doc.
func Encode(v any) (Doc, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	var d Doc
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return d, nil
}

// Decode fills v from d.
func Decode(d Doc, v any) error {
	b, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	return nil
}

// DecodeAll decodes every document in docs into a new slice of T.
func DecodeAll[T any](docs []Doc) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := Decode(d, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// merge applies fields onto d. A nil value removes the field, which
// leaves it undefined rather than null.
func merge(d Doc, fields Doc) Doc {
	out := make(Doc, len(d)+len(fields))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range fields {
		if v == nil {
			delete(out, k)
			continue
		}
		out[k] = v
	}
	return out
}

func marshalDoc(d Doc) ([]byte, error) {
	b, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return b, nil
}

func unmarshalDoc(b []byte) (Doc, error) {
	var d Doc
	if err := json.Unmarshal(b, &d); err != nil {
		return nil, fmt.Errorf("unmarshal document: %w", err)
	}
	return d, nil
}
