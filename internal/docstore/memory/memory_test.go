package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgellert/lagoon-messenger/internal/docstore"
	"github.com/kgellert/lagoon-messenger/internal/realtime"
)

type item struct {
	Name  string   `json:"name"`
	Owner string   `json:"owner"`
	Done  bool     `json:"done"`
	Tags  []string `json:"tags,omitempty"`
}

func TestCreateGetUpdateDelete(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	doc, err := s.Create(ctx, "items", item{Name: "one", Owner: "alice"})
	require.NoError(t, err)
	require.NotEmpty(t, doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := s.Get(ctx, "items", doc.ID)
	require.NoError(t, err)

	var decoded item
	require.NoError(t, got.Decode(&decoded))
	assert.Equal(t, "one", decoded.Name)

	updated, err := s.Update(ctx, "items", doc.ID, item{Name: "two", Owner: "alice"})
	require.NoError(t, err)
	assert.Equal(t, doc.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(doc.UpdatedAt) || updated.UpdatedAt.Equal(doc.UpdatedAt))

	require.NoError(t, s.Delete(ctx, "items", doc.ID))

	_, err = s.Get(ctx, "items", doc.ID)
	assert.ErrorIs(t, err, docstore.ErrNotFound)

	assert.ErrorIs(t, s.Delete(ctx, "items", doc.ID), docstore.ErrNotFound)

	_, err = s.Update(ctx, "items", doc.ID, item{Name: "three"})
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}

func TestListFilters(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	_, err := s.Create(ctx, "items", item{Name: "a", Owner: "alice", Done: false, Tags: []string{"x", "y"}})
	require.NoError(t, err)
	_, err = s.Create(ctx, "items", item{Name: "b", Owner: "bob", Done: true, Tags: []string{"y"}})
	require.NoError(t, err)
	_, err = s.Create(ctx, "items", item{Name: "c", Owner: "alice", Done: true})
	require.NoError(t, err)

	docs, total, err := s.List(ctx, "items", docstore.Query{
		Filters: []docstore.Filter{docstore.Eq("owner", "alice")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, docs, 2)

	docs, total, err = s.List(ctx, "items", docstore.Query{
		Filters: []docstore.Filter{docstore.Ne("owner", "alice")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, docs, 1)

	docs, total, err = s.List(ctx, "items", docstore.Query{
		Filters: []docstore.Filter{docstore.Contains("tags", "y")},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, total)

	docs, total, err = s.List(ctx, "items", docstore.Query{
		Filters: []docstore.Filter{
			docstore.Eq("owner", "alice"),
			docstore.Eq("done", true),
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, docs, 1)

	var decoded item
	require.NoError(t, docs[0].Decode(&decoded))
	assert.Equal(t, "c", decoded.Name)
}

func TestListOrderAndPagination(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	names := []string{"a", "b", "c", "d", "e"}
	for _, n := range names {
		_, err := s.Create(ctx, "items", item{Name: n})
		require.NoError(t, err)
	}

	// creation timestamps are strictly increasing, so created-at order
	// matches insertion order
	docs, total, err := s.List(ctx, "items", docstore.Query{
		OrderBy: []docstore.Order{{Field: docstore.FieldCreatedAt}},
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, docs, 5)
	for i := 1; i < len(docs); i++ {
		assert.True(t, docs[i].CreatedAt.After(docs[i-1].CreatedAt))
	}

	docs, total, err = s.List(ctx, "items", docstore.Query{
		OrderBy: []docstore.Order{{Field: docstore.FieldCreatedAt, Desc: true}},
		Limit:   2,
		Offset:  1,
	})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, docs, 2)

	var first, second item
	require.NoError(t, docs[0].Decode(&first))
	require.NoError(t, docs[1].Decode(&second))
	assert.Equal(t, "d", first.Name)
	assert.Equal(t, "c", second.Name)

	docs, _, err = s.List(ctx, "items", docstore.Query{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestEventsPublished(t *testing.T) {
	ctx := context.Background()

	hub := realtime.NewHub()
	go hub.Run()
	defer hub.Close()

	s := New(hub)
	sub := hub.Subscribe("items")
	defer sub.Cancel()

	doc, err := s.Create(ctx, "items", item{Name: "a"})
	require.NoError(t, err)
	_, err = s.Update(ctx, "items", doc.ID, item{Name: "b"})
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, "items", doc.ID))

	kinds := []realtime.Kind{realtime.KindCreate, realtime.KindUpdate, realtime.KindDelete}
	for _, want := range kinds {
		select {
		case ev := <-sub.C:
			assert.Equal(t, want, ev.Kind)
			assert.Equal(t, doc.ID, ev.Document.ID)
		case <-time.After(time.Second):
			t.Fatalf("missing %s event", want)
		}
	}
}

func TestDeleteMany(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	a, err := s.Create(ctx, "items", item{Name: "a"})
	require.NoError(t, err)
	b, err := s.Create(ctx, "items", item{Name: "b"})
	require.NoError(t, err)

	deleted, err := s.DeleteMany(ctx, "items", []string{a.ID, b.ID, "missing"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, deleted)

	_, total, err := s.List(ctx, "items", docstore.Query{})
	require.NoError(t, err)
	assert.Zero(t, total)
}
