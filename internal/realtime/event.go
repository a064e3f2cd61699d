package realtime

import (
	"github.com/kgellert/lagoon-messenger/internal/docstore"
)

type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
)

// Event carries the full document payload for a mutation in a collection.
// The feed is collection-scoped at the transport level; consumers filter by
// foreign key themselves.
type Event struct {
	Kind       Kind              `json:"kind"`
	Collection string            `json:"collection"`
	Document   docstore.Document `json:"document"`
	Origin     string            `json:"origin,omitempty"`
}

// Publisher is the write side of the push channel. The document stores
// publish through it after every successful mutation.
type Publisher interface {
	Publish(ev Event)
}
