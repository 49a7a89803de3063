package docstore

import (
	"fmt"
	"regexp"

	sq "github.com/Masterminds/squirrel"
)

// Filter matches documents whose Field equals Value as a string.
type Filter struct {
	Field string
	Value string
}

// Where is shorthand for a Filter.
func Where(field, value string) Filter { return Filter{Field: field, Value: value} }

// Query selects documents from one collection. With no OrderBy,
// documents come back in insertion order.
type Query struct {
	Where   []Filter
	OrderBy string
	Desc    bool
	Limit   uint64
}

var fieldRe = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// dialect hides the few places the backends disagree.
type dialect struct {
	placeholder sq.PlaceholderFormat
	// field renders a JSON field extraction for an already validated name.
	field func(name string) string
}

var sqliteDialect = dialect{
	placeholder: sq.Question,
	field: func(name string) string {
		return fmt.Sprintf("json_extract(data, '$.%s')", name)
	},
}

var postgresDialect = dialect{
	placeholder: sq.Dollar,
	field: func(name string) string {
		return fmt.Sprintf("data->>'%s'", name)
	},
}

func (d dialect) selectDocs(collection string, q Query) (string, []any, error) {
	b := sq.Select("data").
		From("documents").
		Where(sq.Eq{"collection": collection}).
		PlaceholderFormat(d.placeholder)

	for _, f := range q.Where {
		if !fieldRe.MatchString(f.Field) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidField, f.Field)
		}
		b = b.Where(d.field(f.Field)+" = ?", f.Value)
	}

	dir := "ASC"
	if q.Desc {
		dir = "DESC"
	}
	if q.OrderBy != "" {
		if !fieldRe.MatchString(q.OrderBy) {
			return "", nil, fmt.Errorf("%w: %q", ErrInvalidField, q.OrderBy)
		}
		b = b.OrderBy(d.field(q.OrderBy)+" "+dir, "seq "+dir)
	} else {
		b = b.OrderBy("seq " + dir)
	}
	if q.Limit > 0 {
		b = b.Limit(q.Limit)
	}
	return b.ToSql()
}

func (d dialect) getDoc(collection, id string) (string, []any, error) {
	return sq.Select("data").
		From("documents").
		Where(sq.Eq{"collection": collection, "id": id}).
		PlaceholderFormat(d.placeholder).
		ToSql()
}

func (d dialect) insertDoc(collection, id string, data []byte, now any) (string, []any, error) {
	return sq.Insert("documents").
		Columns("collection", "id", "data", "created_at", "updated_at").
		Values(collection, id, string(data), now, now).
		PlaceholderFormat(d.placeholder).
		ToSql()
}

func (d dialect) updateDoc(collection, id string, data []byte, now any) (string, []any, error) {
	return sq.Update("documents").
		Set("data", string(data)).
		Set("updated_at", now).
		Where(sq.Eq{"collection": collection, "id": id}).
		PlaceholderFormat(d.placeholder).
		ToSql()
}

func (d dialect) deleteDoc(collection, id string) (string, []any, error) {
	return sq.Delete("documents").
		Where(sq.Eq{"collection": collection, "id": id}).
		PlaceholderFormat(d.placeholder).
		ToSql()
}
