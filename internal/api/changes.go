package api

import (
	"encoding/json"
	"fmt"

	"github.com/kidandcat/sprintboard/internal/domain"
)

// FieldChange is one typed field update on the wire.
type FieldChange struct {
	Field string          `json:"field"`
	Value json.RawMessage `json:"value"`
}

// ChangeSet is the body of every PATCH endpoint.
type ChangeSet struct {
	Changes []FieldChange `json:"changes"`
}

// EncodeChanges renders domain changes as a ChangeSet.
func EncodeChanges[C domain.Change](changes ...C) (ChangeSet, error) {
	var cs ChangeSet
	for _, c := range changes {
		raw, err := json.Marshal(c.Value())
		if err != nil {
			return ChangeSet{}, fmt.Errorf("encoding %s: %w", c.Field(), err)
		}
		cs.Changes = append(cs.Changes, FieldChange{Field: c.Field(), Value: raw})
	}
	return cs, nil
}

func parseChanges[C any](cs ChangeSet, parse func(string, json.RawMessage) (C, error)) ([]C, error) {
	if len(cs.Changes) == 0 {
		return nil, fmt.Errorf("%w: no changes", domain.ErrInvalidChange)
	}
	out := make([]C, 0, len(cs.Changes))
	for _, fc := range cs.Changes {
		c, err := parse(fc.Field, fc.Value)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
