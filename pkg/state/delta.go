package state

import (
	"net/netip"
	"sort"

	"github.com/newtron-network/switchd/pkg/util"
)

// DeltaKind classifies one key of a collection between two snapshots.
type DeltaKind int

const (
	Unchanged DeltaKind = iota
	Added
	Removed
	Changed
)

func (k DeltaKind) String() string {
	switch k {
	case Added:
		return "added"
	case Removed:
		return "removed"
	case Changed:
		return "changed"
	}
	return "unchanged"
}

// NodeMapDelta compares one keyed collection across two snapshots. A nil
// side is treated as an empty collection.
type NodeMapDelta[K comparable, V Node[K, V]] struct {
	old, new *NodeMap[K, V]
}

// NewNodeMapDelta builds the delta from old to new.
func NewNodeMapDelta[K comparable, V Node[K, V]](old, new *NodeMap[K, V]) NodeMapDelta[K, V] {
	return NodeMapDelta[K, V]{old: old, new: new}
}

func (d NodeMapDelta[K, V]) Old() *NodeMap[K, V] { return d.old }
func (d NodeMapDelta[K, V]) New() *NodeMap[K, V] { return d.new }

// Empty reports, in O(1), that both sides are the same shared map. A false
// result does not imply a difference.
func (d NodeMapDelta[K, V]) Empty() bool {
	return d.old == d.new
}

func (d NodeMapDelta[K, V]) get(m *NodeMap[K, V], k K) (V, bool) {
	if m == nil {
		var zero V
		return zero, false
	}
	return m.Get(k)
}

// Classify places k into exactly one DeltaKind.
func (d NodeMapDelta[K, V]) Classify(k K) DeltaKind {
	if d.Empty() {
		return Unchanged
	}
	o, inOld := d.get(d.old, k)
	n, inNew := d.get(d.new, k)
	switch {
	case inOld && inNew:
		if o == n || o.Equal(n) {
			return Unchanged
		}
		return Changed
	case inNew:
		return Added
	case inOld:
		return Removed
	}
	return Unchanged
}

// ForEachAdded calls fn in key order for nodes present only in new.
func (d NodeMapDelta[K, V]) ForEachAdded(fn func(V) error) error {
	if d.Empty() || d.new == nil {
		return nil
	}
	for _, k := range d.new.Keys() {
		if d.old != nil && d.old.Has(k) {
			continue
		}
		v, _ := d.new.Get(k)
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// ForEachRemoved calls fn in key order for nodes present only in old.
func (d NodeMapDelta[K, V]) ForEachRemoved(fn func(V) error) error {
	if d.Empty() || d.old == nil {
		return nil
	}
	for _, k := range d.old.Keys() {
		if d.new != nil && d.new.Has(k) {
			continue
		}
		v, _ := d.old.Get(k)
		if err := fn(v); err != nil {
			return err
		}
	}
	return nil
}

// ForEachChanged calls fn in key order for nodes present on both sides with
// different fields. Shared nodes are skipped without comparing fields.
func (d NodeMapDelta[K, V]) ForEachChanged(fn func(old, new V) error) error {
	if d.Empty() || d.old == nil || d.new == nil {
		return nil
	}
	for _, k := range d.old.Keys() {
		o, _ := d.old.Get(k)
		n, ok := d.new.Get(k)
		if !ok || o == n || o.Equal(n) {
			continue
		}
		if err := fn(o, n); err != nil {
			return err
		}
	}
	return nil
}

// Summary classifies every key of old ∪ new. Each key appears in exactly one
// of the returned lists.
func (d NodeMapDelta[K, V]) Summary() map[DeltaKind][]K {
	out := map[DeltaKind][]K{}
	for _, k := range unionKeys(d.old, d.new) {
		kind := d.Classify(k)
		out[kind] = append(out[kind], k)
	}
	return out
}

// StateDelta is the structural difference between two snapshots.
type StateDelta struct {
	old, new *SwitchState
}

// NewStateDelta builds the delta from old to new. Either side may be nil.
func NewStateDelta(old, new *SwitchState) *StateDelta {
	if old == nil {
		old = NewSwitchState()
	}
	if new == nil {
		new = NewSwitchState()
	}
	return &StateDelta{old: old, new: new}
}

func (d *StateDelta) OldState() *SwitchState { return d.old }
func (d *StateDelta) NewState() *SwitchState { return d.new }

// Empty reports whether both snapshots are the same root.
func (d *StateDelta) Empty() bool { return d.old == d.new }

func (d *StateDelta) PortsDelta() NodeMapDelta[PortID, *Port] {
	return NewNodeMapDelta(d.old.GetPorts(), d.new.GetPorts())
}

func (d *StateDelta) VlansDelta() NodeMapDelta[VlanID, *Vlan] {
	return NewNodeMapDelta(d.old.GetVlans(), d.new.GetVlans())
}

func (d *StateDelta) InterfacesDelta() NodeMapDelta[InterfaceID, *Interface] {
	return NewNodeMapDelta(d.old.GetInterfaces(), d.new.GetInterfaces())
}

func (d *StateDelta) MirrorsDelta() NodeMapDelta[string, *Mirror] {
	return NewNodeMapDelta(d.old.GetMirrors(), d.new.GetMirrors())
}

func (d *StateDelta) QosPoliciesDelta() NodeMapDelta[string, *QosPolicy] {
	return NewNodeMapDelta(d.old.GetQosPolicies(), d.new.GetQosPolicies())
}

// NeighborTableDelta is the change to one neighbor table of one interface.
type NeighborTableDelta struct {
	Interface InterfaceID
	NodeMapDelta[netip.Addr, *NeighborEntry]
}

// MacTableDelta is the change to the FDB of one VLAN.
type MacTableDelta struct {
	Vlan VlanID
	NodeMapDelta[util.MacAddress, *MacEntry]
}

// NeighborDeltas returns the non-empty ARP and NDP table deltas of every
// interface. Tables of added interfaces diff against nothing; tables of
// removed interfaces diff towards nothing.
func (d *StateDelta) NeighborDeltas() []NeighborTableDelta {
	var out []NeighborTableDelta
	add := func(id InterfaceID, o, n *NeighborTable) {
		if o == n || (o == nil && n.Len() == 0) || (n == nil && o.Len() == 0) {
			return
		}
		out = append(out, NeighborTableDelta{Interface: id, NodeMapDelta: NewNodeMapDelta(o, n)})
	}
	intfs := d.InterfacesDelta()
	if intfs.Empty() {
		return nil
	}
	for _, id := range unionKeys(intfs.old, intfs.new) {
		o, _ := intfs.get(intfs.old, id)
		n, _ := intfs.get(intfs.new, id)
		if o != nil && o == n {
			continue
		}
		var oArp, oNdp, nArp, nNdp *NeighborTable
		if o != nil {
			oArp, oNdp = o.GetArpTable(), o.GetNdpTable()
		}
		if n != nil {
			nArp, nNdp = n.GetArpTable(), n.GetNdpTable()
		}
		add(id, oArp, nArp)
		add(id, oNdp, nNdp)
	}
	return out
}

// MacDeltas returns the non-empty FDB deltas of every VLAN.
func (d *StateDelta) MacDeltas() []MacTableDelta {
	var out []MacTableDelta
	vlans := d.VlansDelta()
	if vlans.Empty() {
		return nil
	}
	for _, id := range unionKeys(vlans.old, vlans.new) {
		o, _ := vlans.get(vlans.old, id)
		n, _ := vlans.get(vlans.new, id)
		if o != nil && o == n {
			continue
		}
		var oTable, nTable *MacTable
		if o != nil {
			oTable = o.GetMacTable()
		}
		if n != nil {
			nTable = n.GetMacTable()
		}
		if oTable == nTable || (oTable == nil && nTable.Len() == 0) || (nTable == nil && oTable.Len() == 0) {
			continue
		}
		out = append(out, MacTableDelta{Vlan: id, NodeMapDelta: NewNodeMapDelta(oTable, nTable)})
	}
	return out
}

func unionKeys[K comparable, V Node[K, V]](a, b *NodeMap[K, V]) []K {
	seen := map[K]bool{}
	var keys []K
	var compare func(x, y K) int
	for _, m := range []*NodeMap[K, V]{a, b} {
		if m == nil {
			continue
		}
		compare = m.compare
		for _, k := range m.Keys() {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}
	if compare != nil {
		sort.Slice(keys, func(i, j int) bool { return compare(keys[i], keys[j]) < 0 })
	}
	return keys
}
