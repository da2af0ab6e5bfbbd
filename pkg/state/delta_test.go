package state

import (
	"net/netip"
	"testing"

	"github.com/newtron-network/switchd/pkg/util"
)

func TestDeltaOfSameSnapshotIsEmpty(t *testing.T) {
	s := buildTestState(t)
	s.Publish()

	d := NewStateDelta(s, s)
	if !d.Empty() || !d.PortsDelta().Empty() || !d.VlansDelta().Empty() {
		t.Fatal("delta of a snapshot with itself should be empty")
	}
	if len(d.NeighborDeltas()) != 0 || len(d.MacDeltas()) != 0 {
		t.Error("no table deltas expected")
	}
}

func TestDeltaSharedCollectionShortCircuits(t *testing.T) {
	old := buildTestState(t)
	old.Publish()
	next := old.Modify()
	p, _ := next.ModifyPort(2)
	p.SetDescription("changed")
	next.Publish()

	d := NewStateDelta(old, next)
	if d.PortsDelta().Empty() {
		t.Error("ports delta should not be empty")
	}
	if !d.VlansDelta().Empty() || !d.InterfacesDelta().Empty() || !d.MirrorsDelta().Empty() {
		t.Error("untouched collections should report empty in O(1)")
	}

	var changed []PortID
	d.PortsDelta().ForEachChanged(func(o, n *Port) error {
		changed = append(changed, n.GetID())
		return nil
	})
	if len(changed) != 1 || changed[0] != 2 {
		t.Errorf("changed ports = %v, want [2]", changed)
	}
}

func TestDeltaPartitionsEveryKey(t *testing.T) {
	old := NewSwitchState()
	for _, id := range []PortID{1, 2, 3, 4} {
		old.ModifyPorts().Add(NewPort(id, "p"))
	}
	old.Publish()

	next := old.Modify()
	ports := next.ModifyPorts()
	ports.Remove(1)
	p, _ := ports.Modify(2)
	p.SetSpeed(Speed100G)
	// Port 3 is cloned but left equal; it must not count as changed.
	ports.Modify(3)
	ports.Add(NewPort(5, "p"))
	next.Publish()

	d := NewStateDelta(old, next).PortsDelta()
	summary := d.Summary()

	want := map[DeltaKind][]PortID{
		Removed:   {1},
		Changed:   {2},
		Unchanged: {3, 4},
		Added:     {5},
	}
	total := 0
	for kind, keys := range want {
		got := summary[kind]
		if len(got) != len(keys) {
			t.Errorf("%s = %v, want %v", kind, got, keys)
			continue
		}
		for i := range keys {
			if got[i] != keys[i] {
				t.Errorf("%s = %v, want %v", kind, got, keys)
				break
			}
		}
		total += len(got)
	}
	if total != 5 {
		t.Errorf("classified %d keys, want 5", total)
	}

	var added, removed []PortID
	d.ForEachAdded(func(p *Port) error { added = append(added, p.GetID()); return nil })
	d.ForEachRemoved(func(p *Port) error { removed = append(removed, p.GetID()); return nil })
	if len(added) != 1 || added[0] != 5 || len(removed) != 1 || removed[0] != 1 {
		t.Errorf("added=%v removed=%v", added, removed)
	}
}

func TestDeltaAgainstNil(t *testing.T) {
	s := buildTestState(t)
	s.Publish()

	d := NewStateDelta(nil, s)
	n := 0
	d.PortsDelta().ForEachAdded(func(*Port) error { n++; return nil })
	if n != 2 {
		t.Errorf("added ports = %d, want 2", n)
	}
	if len(d.NeighborDeltas()) != 2 {
		t.Errorf("neighbor table deltas = %d, want 2 (arp and ndp)", len(d.NeighborDeltas()))
	}
	if len(d.MacDeltas()) != 1 {
		t.Errorf("mac table deltas = %d, want 1", len(d.MacDeltas()))
	}

	d = NewStateDelta(s, nil)
	n = 0
	d.PortsDelta().ForEachRemoved(func(*Port) error { n++; return nil })
	if n != 2 {
		t.Errorf("removed ports = %d, want 2", n)
	}
}

func TestNeighborDeltas(t *testing.T) {
	old := buildTestState(t)
	old.Publish()

	next := old.Modify()
	pending := netip.MustParseAddr("2001:db8::20")
	intf, _ := next.ModifyInterface(100)
	entry, err := intf.ModifyNdpTable().Modify(pending)
	if err != nil {
		t.Fatal(err)
	}
	entry.SetMac(util.MustParseMAC("00:aa:00:00:00:20"))
	entry.SetPort(2)
	entry.SetState(NeighborReachable)
	next.Publish()

	deltas := NewStateDelta(old, next).NeighborDeltas()
	if len(deltas) != 1 {
		t.Fatalf("got %d neighbor deltas, want 1 (arp table is shared)", len(deltas))
	}
	nd := deltas[0]
	if nd.Interface != 100 {
		t.Errorf("interface = %d", nd.Interface)
	}
	if kind := nd.Classify(pending); kind != Changed {
		t.Errorf("Classify(%s) = %s, want changed", pending, kind)
	}
	nd.ForEachChanged(func(o, n *NeighborEntry) error {
		if !o.IsPending() || n.IsPending() {
			t.Error("expected pending -> resolved transition")
		}
		return nil
	})
}

func TestMacDeltas(t *testing.T) {
	old := buildTestState(t)
	old.Publish()

	next := old.Modify()
	if err := next.AddMacEntry(200, NewMacEntry(util.MustParseMAC("00:cc:00:00:00:01"), 1, MacEntryDynamic)); err != nil {
		t.Fatal(err)
	}
	next.Publish()

	deltas := NewStateDelta(old, next).MacDeltas()
	if len(deltas) != 1 || deltas[0].Vlan != 200 {
		t.Fatalf("mac deltas = %+v, want one for vlan 200", deltas)
	}
	added := 0
	deltas[0].ForEachAdded(func(*MacEntry) error { added++; return nil })
	if added != 1 {
		t.Errorf("added mac entries = %d, want 1", added)
	}
}
