// Package docstore defines the narrow contract this app expects from its
// remote document database: schemaless JSON records with server-assigned
// timestamps and list-with-filter-sort-paginate queries.
package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("document not found")

type Document struct {
	ID        string          `json:"id"`
	Data      json.RawMessage `json:"data"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Decode unmarshals the document payload into v.
func (d Document) Decode(v any) error {
	if err := json.Unmarshal(d.Data, v); err != nil {
		return fmt.Errorf("docstore: decode document %s: %w", d.ID, err)
	}
	return nil
}

type Op string

const (
	OpEqual    Op = "eq"
	OpNotEqual Op = "ne"
	// OpContains matches documents whose array field contains the value.
	OpContains Op = "contains"
)

// Filter compares a top-level field of the document payload against a value.
type Filter struct {
	Field string
	Op    Op
	Value any
}

// Order sorts by a payload field, or by the server-assigned creation
// timestamp when Field is FieldCreatedAt.
type Order struct {
	Field string
	Desc  bool
}

const FieldCreatedAt = "$createdAt"

type Query struct {
	Filters []Filter
	OrderBy []Order
	Limit   int
	Offset  int
}

// Store is implemented by the postgres and in-memory backends. List returns
// the matching page plus the total match count ignoring limit/offset, so
// callers can derive hasMore.
type Store interface {
	Create(ctx context.Context, collection string, data any) (Document, error)
	Get(ctx context.Context, collection, id string) (Document, error)
	Update(ctx context.Context, collection, id string, data any) (Document, error)
	Delete(ctx context.Context, collection, id string) error
	DeleteMany(ctx context.Context, collection string, ids []string) ([]string, error)
	List(ctx context.Context, collection string, q Query) ([]Document, int, error)
}

func Eq(field string, value any) Filter {
	return Filter{Field: field, Op: OpEqual, Value: value}
}

func Ne(field string, value any) Filter {
	return Filter{Field: field, Op: OpNotEqual, Value: value}
}

func Contains(field string, value any) Filter {
	return Filter{Field: field, Op: OpContains, Value: value}
}
