// Package memory keeps documents in process memory. It backs local runs
// and the test suites, so disconnected adapters can still exercise the full
// store contract including the event feed.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kgellert/lagoon-messenger/internal/docstore"
	"github.com/kgellert/lagoon-messenger/internal/realtime"
)

type entry struct {
	data      json.RawMessage
	createdAt time.Time
	updatedAt time.Time
}

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]*entry
	pub         realtime.Publisher
	lastStamp   time.Time
}

// New returns an empty store. pub may be nil when no live feed is needed.
func New(pub realtime.Publisher) *Store {
	return &Store{
		collections: make(map[string]map[string]*entry),
		pub:         pub,
	}
}

// stamp returns a strictly increasing timestamp so that two documents
// created back to back never share a creation time. Callers hold mu.
func (s *Store) stamp() time.Time {
	now := time.Now().UTC()
	if !now.After(s.lastStamp) {
		now = s.lastStamp.Add(time.Microsecond)
	}
	s.lastStamp = now
	return now
}

func (s *Store) Create(_ context.Context, collection string, data any) (docstore.Document, error) {
	const op = "docstore.memory.Create"

	raw, err := json.Marshal(data)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("%s: marshal: %w", op, err)
	}

	s.mu.Lock()
	coll := s.collections[collection]
	if coll == nil {
		coll = make(map[string]*entry)
		s.collections[collection] = coll
	}

	id := uuid.NewString()
	now := s.stamp()
	coll[id] = &entry{data: raw, createdAt: now, updatedAt: now}
	doc := document(id, coll[id])
	s.mu.Unlock()

	s.publish(realtime.KindCreate, collection, doc)

	return doc, nil
}

func (s *Store) Get(_ context.Context, collection, id string) (docstore.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.collections[collection][id]
	if e == nil {
		return docstore.Document{}, docstore.ErrNotFound
	}
	return document(id, e), nil
}

func (s *Store) Update(_ context.Context, collection, id string, data any) (docstore.Document, error) {
	const op = "docstore.memory.Update"

	raw, err := json.Marshal(data)
	if err != nil {
		return docstore.Document{}, fmt.Errorf("%s: marshal: %w", op, err)
	}

	s.mu.Lock()
	e := s.collections[collection][id]
	if e == nil {
		s.mu.Unlock()
		return docstore.Document{}, docstore.ErrNotFound
	}
	e.data = raw
	e.updatedAt = s.stamp()
	doc := document(id, e)
	s.mu.Unlock()

	s.publish(realtime.KindUpdate, collection, doc)

	return doc, nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	e := s.collections[collection][id]
	if e == nil {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	doc := document(id, e)
	delete(s.collections[collection], id)
	s.mu.Unlock()

	s.publish(realtime.KindDelete, collection, doc)

	return nil
}

func (s *Store) DeleteMany(_ context.Context, collection string, ids []string) ([]string, error) {
	s.mu.Lock()
	coll := s.collections[collection]
	deleted := make([]string, 0, len(ids))
	docs := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		e := coll[id]
		if e == nil {
			continue
		}
		docs = append(docs, document(id, e))
		delete(coll, id)
		deleted = append(deleted, id)
	}
	s.mu.Unlock()

	for _, doc := range docs {
		s.publish(realtime.KindDelete, collection, doc)
	}

	return deleted, nil
}

func (s *Store) List(_ context.Context, collection string, q docstore.Query) ([]docstore.Document, int, error) {
	const op = "docstore.memory.List"

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []candidate
	for id, e := range s.collections[collection] {
		var fields map[string]any
		if err := json.Unmarshal(e.data, &fields); err != nil {
			return nil, 0, fmt.Errorf("%s: decode %s: %w", op, id, err)
		}
		if !matches(fields, q.Filters) {
			continue
		}
		matched = append(matched, candidate{doc: document(id, e), fields: fields})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		for _, ord := range q.OrderBy {
			c := compareField(matched[i], matched[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Desc {
				return c > 0
			}
			return c < 0
		}
		// stable fallback so pagination never straddles ties differently
		return matched[i].doc.ID < matched[j].doc.ID
	})

	total := len(matched)

	if q.Offset > 0 {
		if q.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[q.Offset:]
		}
	}
	if q.Limit > 0 && q.Limit < len(matched) {
		matched = matched[:q.Limit]
	}

	docs := make([]docstore.Document, 0, len(matched))
	for _, c := range matched {
		docs = append(docs, c.doc)
	}
	return docs, total, nil
}

func (s *Store) publish(kind realtime.Kind, collection string, doc docstore.Document) {
	if s.pub == nil {
		return
	}
	s.pub.Publish(realtime.Event{Kind: kind, Collection: collection, Document: doc})
}

func document(id string, e *entry) docstore.Document {
	data := make(json.RawMessage, len(e.data))
	copy(data, e.data)
	return docstore.Document{
		ID:        id,
		Data:      data,
		CreatedAt: e.createdAt,
		UpdatedAt: e.updatedAt,
	}
}

func matches(fields map[string]any, filters []docstore.Filter) bool {
	for _, f := range filters {
		got, ok := fields[f.Field]
		want := normalize(f.Value)

		switch f.Op {
		case docstore.OpEqual:
			if !ok || !reflect.DeepEqual(got, want) {
				return false
			}
		case docstore.OpNotEqual:
			if ok && reflect.DeepEqual(got, want) {
				return false
			}
		case docstore.OpContains:
			arr, isArr := got.([]any)
			if !isArr {
				return false
			}
			found := false
			for _, el := range arr {
				if reflect.DeepEqual(el, want) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// normalize round-trips a value through JSON so it compares equal to
// decoded document fields (numbers become float64 and so on).
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

type candidate struct {
	doc    docstore.Document
	fields map[string]any
}

func compareField(a, b candidate, field string) int {
	if field == docstore.FieldCreatedAt {
		switch {
		case a.doc.CreatedAt.Before(b.doc.CreatedAt):
			return -1
		case a.doc.CreatedAt.After(b.doc.CreatedAt):
			return 1
		default:
			return 0
		}
	}

	av, bv := a.fields[field], b.fields[field]

	if an, aok := av.(float64); aok {
		if bn, bok := bv.(float64); bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
	}

	as := fmt.Sprint(av)
	bs := fmt.Sprint(bv)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}
