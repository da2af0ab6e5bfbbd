// Package manager programs switch state into hardware. One entity manager per
// object family tracks which software entities are live, which of them are
// programmed, and the hardware handle of each programmed one.
package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/util"
)

const numStripes = 64

// hwKey is the identity-map key of an entity manager.
type hwKey interface {
	comparable
	sai.Key
}

// record is the bookkeeping for one live entity. An unresolved entity has a
// zero handle and no attributes: it is known to software only.
type record[E any] struct {
	entity E
	handle sai.Handle
	attrs  sai.Attributes
}

func (r *record[E]) resolved() bool { return !r.handle.IsZero() }

// binding supplies the per-family behavior of an entityManager.
type binding[E any] struct {
	// resolved reports whether e has everything needed to be programmed.
	resolved func(e E) bool
	// attrs derives the hardware attributes of a resolved entity.
	attrs func(e E) (sai.Attributes, error)
	// createOnly lists attributes that cannot be changed in place.
	createOnly map[string]bool
}

// entityManager is the resolution state machine shared by every manager:
//
//	absent -> unresolved          no hardware call
//	absent -> resolved            create
//	unresolved -> resolved        create
//	resolved -> unresolved        remove
//	resolved -> resolved          set changed attributes, or remove+create
//	unresolved/resolved -> absent remove if resolved
//
// byKey and byHandle only change after the hardware call succeeded, so they
// never disagree with hardware or with each other.
type entityManager[K hwKey, E any] struct {
	name string
	api  sai.API
	b    binding[E]
	log  *logrus.Entry

	mu       sync.RWMutex
	byKey    map[K]*record[E]
	byHandle map[sai.Handle]K

	stripes [numStripes]sync.Mutex
}

func newEntityManager[K hwKey, E any](name string, api sai.API, b binding[E]) *entityManager[K, E] {
	return &entityManager[K, E]{
		name:     name,
		api:      api,
		b:        b,
		log:      util.WithManager(name),
		byKey:    map[K]*record[E]{},
		byHandle: map[sai.Handle]K{},
	}
}

// lockKey serializes all work on one key. Different keys rarely share a
// stripe, so reads of other keys proceed during a hardware call.
func (m *entityManager[K, E]) lockKey(k K) func() {
	s := &m.stripes[k.Hash()%numStripes]
	s.Lock()
	return s.Unlock
}

func (m *entityManager[K, E]) lookup(k K) (*record[E], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.byKey[k]
	return r, ok
}

func (m *entityManager[K, E]) store(k K, r *record[E]) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if old, ok := m.byKey[k]; ok && old.resolved() {
		delete(m.byHandle, old.handle)
	}
	m.byKey[k] = r
	if r.resolved() {
		m.byHandle[r.handle] = k
	}
}

func (m *entityManager[K, E]) erase(k K) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.byKey[k]; ok && r.resolved() {
		delete(m.byHandle, r.handle)
	}
	delete(m.byKey, k)
}

// add makes k live. It fails if k is already live, resolved or not.
func (m *entityManager[K, E]) add(ctx context.Context, k K, e E) error {
	defer m.lockKey(k)()
	if _, ok := m.lookup(k); ok {
		return util.NewDuplicateEntryError(m.name, k.String())
	}
	return m.program(ctx, k, e, false)
}

// program creates the hardware object for a resolved entity and records it.
// The caller holds the key lock and has checked that k is not programmed.
// A row already present in hardware is an error unless adopt is set.
func (m *entityManager[K, E]) program(ctx context.Context, k K, e E, adopt bool) error {
	if !m.b.resolved(e) {
		m.store(k, &record[E]{entity: e})
		m.log.WithField("key", k.String()).Debug("added unresolved")
		return nil
	}
	attrs, err := m.b.attrs(e)
	if err != nil {
		return err
	}
	h, err := m.api.Create(ctx, k, attrs)
	if adopt && errors.Is(err, sai.ErrObjectExists) && k.Serialize() != "" {
		// Programmed by a previous run whose bookkeeping was lost. Take the
		// row over and bring its attributes in line.
		h = sai.Handle{Type: k.ObjectType(), ID: k.Serialize()}
		err = m.setAll(ctx, h, attrs)
	}
	if err != nil {
		m.log.WithField("key", k.String()).WithError(err).Warn("create failed")
		return util.NewHardwareError("create", k.String(), err)
	}
	m.store(k, &record[E]{entity: e, handle: h, attrs: attrs})
	m.log.WithFields(logrus.Fields{"key": k.String(), "handle": h.ID}).Debug("created")
	return nil
}

func (m *entityManager[K, E]) setAll(ctx context.Context, h sai.Handle, attrs sai.Attributes) error {
	for _, name := range sortedNames(attrs) {
		if err := m.api.SetAttribute(ctx, h, name, attrs[name]); err != nil {
			return err
		}
	}
	return nil
}

// remove drops k, removing its hardware object first if it has one.
func (m *entityManager[K, E]) remove(ctx context.Context, k K) error {
	defer m.lockKey(k)()
	r, ok := m.lookup(k)
	if !ok {
		return util.NewNotFoundError(m.name, k.String())
	}
	return m.unprogram(ctx, k, r)
}

func (m *entityManager[K, E]) unprogram(ctx context.Context, k K, r *record[E]) error {
	if r.resolved() {
		if err := m.api.Remove(ctx, r.handle); err != nil {
			m.log.WithField("key", k.String()).WithError(err).Warn("remove failed")
			return util.NewHardwareError("remove", k.String(), err)
		}
		m.log.WithFields(logrus.Fields{"key": k.String(), "handle": r.handle.ID}).Debug("removed")
	}
	m.erase(k)
	return nil
}

// change moves a live k to entity e.
func (m *entityManager[K, E]) change(ctx context.Context, k K, e E) error {
	defer m.lockKey(k)()
	r, ok := m.lookup(k)
	if !ok {
		return util.NewNotFoundError(m.name, k.String())
	}
	return m.transition(ctx, k, r, e, false)
}

func (m *entityManager[K, E]) transition(ctx context.Context, k K, r *record[E], e E, adopt bool) error {
	wasResolved, isResolved := r.resolved(), m.b.resolved(e)
	switch {
	case !wasResolved && !isResolved:
		m.store(k, &record[E]{entity: e})
		return nil
	case !wasResolved:
		return m.program(ctx, k, e, adopt)
	case !isResolved:
		if err := m.api.Remove(ctx, r.handle); err != nil {
			m.log.WithField("key", k.String()).WithError(err).Warn("unresolve failed")
			return util.NewHardwareError("remove", k.String(), err)
		}
		m.store(k, &record[E]{entity: e})
		m.log.WithField("key", k.String()).Debug("unresolved")
		return nil
	}

	attrs, err := m.b.attrs(e)
	if err != nil {
		return err
	}
	changed := diffAttrs(r.attrs, attrs)
	for _, name := range changed {
		if m.b.createOnly[name] {
			return m.recreate(ctx, k, r, e, attrs)
		}
	}
	for i, name := range changed {
		if err := m.api.SetAttribute(ctx, r.handle, name, attrs[name]); err != nil {
			m.log.WithField("key", k.String()).WithError(err).Warn("set failed")
			// Record what did reach hardware so a retry only resends the rest.
			applied := r.attrs.Clone()
			for _, done := range changed[:i] {
				applied[done] = attrs[done]
			}
			m.store(k, &record[E]{entity: r.entity, handle: r.handle, attrs: applied})
			return util.NewHardwareError("set "+name, k.String(), err)
		}
	}
	m.store(k, &record[E]{entity: e, handle: r.handle, attrs: attrs})
	if len(changed) > 0 {
		m.log.WithFields(logrus.Fields{"key": k.String(), "attrs": changed}).Debug("updated")
	}
	return nil
}

func (m *entityManager[K, E]) recreate(ctx context.Context, k K, r *record[E], e E, attrs sai.Attributes) error {
	if err := m.api.Remove(ctx, r.handle); err != nil {
		return util.NewHardwareError("remove", k.String(), err)
	}
	m.erase(k)
	h, err := m.api.Create(ctx, k, attrs)
	if err != nil {
		// The old object is gone; leave e unresolved so a retry creates it.
		m.store(k, &record[E]{entity: e})
		return util.NewHardwareError("create", k.String(), err)
	}
	m.store(k, &record[E]{entity: e, handle: h, attrs: attrs})
	m.log.WithFields(logrus.Fields{"key": k.String(), "handle": h.ID}).Debug("recreated")
	return nil
}

// ensure is the idempotent form of add/change used by reconciliation. It
// adopts a row that hardware already holds under k.
func (m *entityManager[K, E]) ensure(ctx context.Context, k K, e E) error {
	defer m.lockKey(k)()
	if r, ok := m.lookup(k); ok {
		return m.transition(ctx, k, r, e, true)
	}
	return m.program(ctx, k, e, true)
}

// ensureAbsent is the idempotent form of remove used by reconciliation.
func (m *entityManager[K, E]) ensureAbsent(ctx context.Context, k K) error {
	defer m.lockKey(k)()
	r, ok := m.lookup(k)
	if !ok {
		return nil
	}
	return m.unprogram(ctx, k, r)
}

// get returns the handle of a programmed k. It waits for an in-flight
// write on the same key.
func (m *entityManager[K, E]) get(k K) (sai.Handle, bool) {
	defer m.lockKey(k)()
	r, ok := m.lookup(k)
	if !ok || !r.resolved() {
		return sai.Handle{}, false
	}
	return r.handle, true
}

// live reports whether k is live, resolved or not.
func (m *entityManager[K, E]) live(k K) bool {
	defer m.lockKey(k)()
	_, ok := m.lookup(k)
	return ok
}

// keyOf maps a handle back to its key.
func (m *entityManager[K, E]) keyOf(h sai.Handle) (K, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	k, ok := m.byHandle[h]
	return k, ok
}

// oid returns the OID of a programmed OID object.
func (m *entityManager[K, E]) oid(k K) (sai.OID, bool) {
	h, ok := m.get(k)
	if !ok {
		return sai.NullOID, false
	}
	o, err := h.OID()
	return o, err == nil
}

// keysWhere returns the live keys whose entity satisfies fn.
func (m *entityManager[K, E]) keysWhere(fn func(E) bool) []K {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []K
	for k, r := range m.byKey {
		if fn(r.entity) {
			out = append(out, k)
		}
	}
	return out
}

// Entry describes one live entity for display and export.
type Entry struct {
	Key      string     `json:"key"`
	Resolved bool       `json:"resolved"`
	Handle   sai.Handle `json:"handle"`
}

func (m *entityManager[K, E]) entries() []Entry {
	m.mu.RLock()
	out := make([]Entry, 0, len(m.byKey))
	for k, r := range m.byKey {
		out = append(out, Entry{Key: k.String(), Resolved: r.resolved(), Handle: r.handle})
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func (m *entityManager[K, E]) size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byKey)
}

// consistent reports whether the two identity maps agree.
func (m *entityManager[K, E]) consistent() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k, r := range m.byKey {
		if !r.resolved() {
			continue
		}
		n++
		if back, ok := m.byHandle[r.handle]; !ok || back != k {
			return false
		}
	}
	return n == len(m.byHandle)
}

// restore records k as programmed under h without calling the hardware.
// Used on warm boot, where the rows survived the restart.
func (m *entityManager[K, E]) restore(k K, e E, h sai.Handle) error {
	defer m.lockKey(k)()
	if !m.b.resolved(e) {
		m.store(k, &record[E]{entity: e})
		return nil
	}
	attrs, err := m.b.attrs(e)
	if err != nil {
		return err
	}
	m.store(k, &record[E]{entity: e, handle: h, attrs: attrs})
	return nil
}

func (m *entityManager[K, E]) exportHandles(out map[string]sai.Handle) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for k, r := range m.byKey {
		if r.resolved() {
			out[k.String()] = r.handle
		}
	}
}

// errRekeyed rejects a change whose old and new versions live under
// different keys.
func errRekeyed(resource, from, to string) error {
	return fmt.Errorf("%w: %s %s cannot change to %s", util.ErrValidationFailed, resource, from, to)
}

// diffAttrs lists, in name order, attributes of next that differ from prev.
func diffAttrs(prev, next sai.Attributes) []string {
	var out []string
	for _, name := range sortedNames(next) {
		if v, ok := prev[name]; !ok || v != next[name] {
			out = append(out, name)
		}
	}
	return out
}

func sortedNames(attrs sai.Attributes) []string {
	names := make([]string, 0, len(attrs))
	for k := range attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
