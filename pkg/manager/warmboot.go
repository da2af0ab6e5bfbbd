package manager

import (
	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

// ExportHandles returns the handle of every programmed object, keyed by
// the object's key string. Saved next to the state snapshot, it lets a
// restarted agent take over the rows without reprogramming them.
func (t *ManagerTable) ExportHandles() map[string]sai.Handle {
	out := map[string]sai.Handle{}
	t.ports.ports.exportHandles(out)
	t.ports.bridgePorts.exportHandles(out)
	t.vlans.vlans.exportHandles(out)
	t.vlans.members.exportHandles(out)
	t.rifs.rifs.exportHandles(out)
	t.fdb.entries.exportHandles(out)
	t.neighbors.entries.exportHandles(out)
	return out
}

// RestoreStats counts the outcome of RestoreHandles.
type RestoreStats struct {
	Restored int
	Missing  int
}

// RestoreHandles rebuilds the identity maps for s from saved handles
// without any hardware call. Entities whose handle is missing are left
// absent; reconciling from an empty snapshot to s afterwards programs them.
func (t *ManagerTable) RestoreHandles(s *state.SwitchState, handles map[string]sai.Handle) RestoreStats {
	var st RestoreStats
	count := func(restored, missing int) {
		st.Restored += restored
		st.Missing += missing
	}

	s.GetPorts().ForEach(func(p *state.Port) error {
		count(t.ports.restore(p, handles))
		return nil
	})
	s.GetVlans().ForEach(func(v *state.Vlan) error {
		count(t.vlans.restore(v, handles))
		return nil
	})
	s.GetInterfaces().ForEach(func(i *state.Interface) error {
		count(t.rifs.restore(i, handles))
		return nil
	})
	s.GetVlans().ForEach(func(v *state.Vlan) error {
		return v.GetMacTable().ForEach(func(e *state.MacEntry) error {
			count(t.fdb.restore(v.GetID(), e, handles))
			return nil
		})
	})
	s.GetInterfaces().ForEach(func(i *state.Interface) error {
		for _, table := range []*state.NeighborTable{i.GetArpTable(), i.GetNdpTable()} {
			table.ForEach(func(e *state.NeighborEntry) error {
				count(t.neighbors.restore(e, handles))
				return nil
			})
		}
		return nil
	})

	util.WithFields(map[string]interface{}{
		"restored": st.Restored,
		"missing":  st.Missing,
	}).Info("restored hardware handles")
	return st
}

// Entries lists every live entity per entity type.
func (t *ManagerTable) Entries() map[string][]Entry {
	return map[string][]Entry{
		EntityPort:            t.ports.ports.entries(),
		EntityBridgePort:      t.ports.bridgePorts.entries(),
		EntityVlan:            t.vlans.vlans.entries(),
		EntityVlanMember:      t.vlans.members.entries(),
		EntityRouterInterface: t.rifs.rifs.entries(),
		EntityFdb:             t.fdb.entries.entries(),
		EntityNeighbor:        t.neighbors.entries.entries(),
	}
}

// Consistent reports whether every manager's key and handle maps agree.
func (t *ManagerTable) Consistent() bool {
	return t.ports.ports.consistent() && t.ports.bridgePorts.consistent() &&
		t.vlans.vlans.consistent() && t.vlans.members.consistent() &&
		t.rifs.rifs.consistent() && t.fdb.entries.consistent() &&
		t.neighbors.entries.consistent()
}

// KeyOf maps a hardware handle back to the key of the entity that owns it.
func (t *ManagerTable) KeyOf(h sai.Handle) (string, bool) {
	switch h.Type {
	case sai.ObjectTypePort:
		return keyString[sai.ObjectKey](t.ports.ports.keyOf(h))
	case sai.ObjectTypeBridgePort:
		return keyString[sai.ObjectKey](t.ports.bridgePorts.keyOf(h))
	case sai.ObjectTypeVlan:
		return keyString[sai.ObjectKey](t.vlans.vlans.keyOf(h))
	case sai.ObjectTypeVlanMember:
		return keyString[sai.ObjectKey](t.vlans.members.keyOf(h))
	case sai.ObjectTypeRouterInterface:
		return keyString[sai.ObjectKey](t.rifs.rifs.keyOf(h))
	case sai.ObjectTypeFdbEntry:
		return keyString[sai.FdbEntryKey](t.fdb.entries.keyOf(h))
	case sai.ObjectTypeNeighborEntry:
		return keyString[sai.NeighborEntryKey](t.neighbors.entries.keyOf(h))
	}
	return "", false
}

func keyString[K sai.Key](k K, ok bool) (string, bool) {
	if !ok {
		return "", false
	}
	return k.String(), true
}
