package state

import (
	"fmt"
	"sync/atomic"
)

// node is the versioned holder embedded in every state entity. fields is
// plain data; child nodes are referenced by pointer and shared between
// snapshots until one of them is cloned.
type node[F any] struct {
	fields    F
	published atomic.Bool
}

// Publish freezes the node. Readers may share it from then on.
func (n *node[F]) Publish() {
	n.published.Store(true)
}

// IsPublished reports whether the node has been frozen.
func (n *node[F]) IsPublished() bool {
	return n.published.Load()
}

func (n *node[F]) getFields() *F {
	return &n.fields
}

// writableFields returns the fields for mutation. Mutating a published node
// is a programming error, not a runtime condition, so it panics.
func (n *node[F]) writableFields() *F {
	if n.published.Load() {
		panic(fmt.Sprintf("state: attempt to modify published %T", n.fields))
	}
	return &n.fields
}

// Node is implemented by every entity that can live in a NodeMap.
type Node[K comparable, V any] interface {
	comparable
	Key() K
	Clone() V
	Equal(other V) bool
	Publish()
	IsPublished() bool
}
