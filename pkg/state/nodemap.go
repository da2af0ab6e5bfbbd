package state

import (
	"fmt"
	"sort"

	"github.com/newtron-network/switchd/pkg/util"
)

// NodeMap is a keyed collection of child nodes. It is a versioned node
// itself: cloning a map copies the key table, not the children.
type NodeMap[K comparable, V Node[K, V]] struct {
	node[map[K]V]
	kind    string
	compare func(a, b K) int
}

// NewNodeMap creates an empty, unpublished map. kind names the entity in
// errors; compare orders keys for deterministic iteration.
func NewNodeMap[K comparable, V Node[K, V]](kind string, compare func(a, b K) int) *NodeMap[K, V] {
	m := &NodeMap[K, V]{kind: kind, compare: compare}
	m.fields = make(map[K]V)
	return m
}

// Kind returns the entity name used in errors.
func (m *NodeMap[K, V]) Kind() string {
	return m.kind
}

// Get returns the node stored under k.
func (m *NodeMap[K, V]) Get(k K) (V, bool) {
	v, ok := m.fields[k]
	return v, ok
}

// Has reports whether k is present.
func (m *NodeMap[K, V]) Has(k K) bool {
	_, ok := m.fields[k]
	return ok
}

// Len returns the number of nodes.
func (m *NodeMap[K, V]) Len() int {
	return len(m.fields)
}

// Keys returns all keys in order.
func (m *NodeMap[K, V]) Keys() []K {
	keys := make([]K, 0, len(m.fields))
	for k := range m.fields {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return m.compare(keys[i], keys[j]) < 0 })
	return keys
}

// ForEach calls fn for every node in key order, stopping at the first error.
func (m *NodeMap[K, V]) ForEach(fn func(V) error) error {
	for _, k := range m.Keys() {
		if err := fn(m.fields[k]); err != nil {
			return err
		}
	}
	return nil
}

// Add inserts v. The map must be unpublished.
func (m *NodeMap[K, V]) Add(v V) error {
	fields := m.writableFields()
	k := v.Key()
	if _, ok := (*fields)[k]; ok {
		return util.NewDuplicateEntryError(m.kind, keyString(k))
	}
	(*fields)[k] = v
	return nil
}

// Update replaces the node stored under v's key, inserting it if absent.
func (m *NodeMap[K, V]) Update(v V) {
	(*m.writableFields())[v.Key()] = v
}

// Remove deletes the node stored under k.
func (m *NodeMap[K, V]) Remove(k K) error {
	fields := m.writableFields()
	if _, ok := (*fields)[k]; !ok {
		return util.NewNotFoundError(m.kind, keyString(k))
	}
	delete(*fields, k)
	return nil
}

// Modify returns a writable version of the node under k, cloning it into
// the map if the stored node is published. The map must be unpublished.
func (m *NodeMap[K, V]) Modify(k K) (V, error) {
	fields := m.writableFields()
	v, ok := (*fields)[k]
	if !ok {
		var zero V
		return zero, util.NewNotFoundError(m.kind, keyString(k))
	}
	if v.IsPublished() {
		v = v.Clone()
		(*fields)[k] = v
	}
	return v, nil
}

// Clone returns an unpublished copy sharing every child.
func (m *NodeMap[K, V]) Clone() *NodeMap[K, V] {
	c := &NodeMap[K, V]{kind: m.kind, compare: m.compare}
	c.fields = make(map[K]V, len(m.fields))
	for k, v := range m.fields {
		c.fields[k] = v
	}
	return c
}

// Publish freezes the map and every child not yet published.
func (m *NodeMap[K, V]) Publish() {
	for _, v := range m.fields {
		if !v.IsPublished() {
			v.Publish()
		}
	}
	m.node.Publish()
}

// Equal reports whether both maps hold equal nodes under the same keys.
// Shared children compare equal without descending.
func (m *NodeMap[K, V]) Equal(other *NodeMap[K, V]) bool {
	if m == other {
		return true
	}
	if m.Len() != other.Len() {
		return false
	}
	for k, v := range m.fields {
		ov, ok := other.fields[k]
		if !ok {
			return false
		}
		if v != ov && !v.Equal(ov) {
			return false
		}
	}
	return true
}

// modifiable returns m itself when unpublished, otherwise a clone.
func (m *NodeMap[K, V]) modifiable() *NodeMap[K, V] {
	if m.IsPublished() {
		return m.Clone()
	}
	return m
}

func keyString[K any](k K) string {
	return fmt.Sprint(k)
}
