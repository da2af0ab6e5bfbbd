package state

import (
	"strings"
	"testing"
)

func expectPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		if r == nil {
			t.Errorf("%s: expected panic on published node", name)
			return
		}
		if !strings.Contains(r.(string), "published") {
			t.Errorf("%s: unexpected panic %v", name, r)
		}
	}()
	fn()
}

func TestPublishedNodeRejectsMutation(t *testing.T) {
	s := buildTestState(t)
	s.Publish()

	port, _ := s.GetPorts().Get(1)
	vlan, _ := s.GetVlans().Get(100)
	intf, _ := s.GetInterfaces().Get(100)

	expectPanic(t, "port", func() { port.SetDescription("x") })
	expectPanic(t, "vlan", func() { vlan.SetName("x") })
	expectPanic(t, "interface", func() { intf.SetMtu(1500) })
	expectPanic(t, "port map", func() { s.GetPorts().Update(NewPort(9, "eth9")) })
	expectPanic(t, "neighbor table", func() { intf.GetArpTable().Remove(intf.GetArpTable().Keys()[0]) })
	expectPanic(t, "root", func() { s.SetDefaultVlan(200) })
}

func TestPublishIsRecursive(t *testing.T) {
	s := buildTestState(t)
	s.Publish()

	if !s.GetPorts().IsPublished() || !s.GetVlans().IsPublished() || !s.GetInterfaces().IsPublished() {
		t.Fatal("collections should be published with the root")
	}
	s.GetPorts().ForEach(func(p *Port) error {
		if !p.IsPublished() {
			t.Errorf("port %d not published", p.GetID())
		}
		return nil
	})
	intf, _ := s.GetInterfaces().Get(100)
	if !intf.GetArpTable().IsPublished() || !intf.GetNdpTable().IsPublished() {
		t.Error("neighbor tables should be published")
	}
	vlan, _ := s.GetVlans().Get(100)
	if !vlan.GetMacTable().IsPublished() {
		t.Error("mac table should be published")
	}
}

func TestModifySharesUntouchedSubtrees(t *testing.T) {
	old := buildTestState(t)
	old.Publish()

	next := old.Modify()
	if next == old {
		t.Fatal("Modify on a published state must clone")
	}
	p, err := next.ModifyPort(1)
	if err != nil {
		t.Fatal(err)
	}
	p.SetDescription("uplink")

	oldPort, _ := old.GetPorts().Get(1)
	if oldPort.GetDescription() != "" {
		t.Error("old snapshot observed a mutation")
	}
	if oldPort == p {
		t.Error("modified port should be a new node")
	}
	untouched, _ := next.GetPorts().Get(2)
	oldUntouched, _ := old.GetPorts().Get(2)
	if untouched != oldUntouched {
		t.Error("unmodified port should be shared between snapshots")
	}
	if next.GetVlans() != old.GetVlans() || next.GetInterfaces() != old.GetInterfaces() {
		t.Error("unmodified collections should be shared between snapshots")
	}

	// Modifying the same port twice within one transaction reuses the clone.
	again, _ := next.ModifyPort(1)
	if again != p {
		t.Error("unpublished clone should be reused")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	p := NewPort(1, "eth1")
	p.SetVlans(VlanMembership{100: {}})
	p.ResetPortQueues([]PortQueue{{ID: 0, Weight: 10}})
	p.Publish()

	c := p.Clone()
	if c.IsPublished() {
		t.Fatal("clone must be unpublished")
	}
	if !c.Equal(p) {
		t.Fatal("clone should equal the original")
	}
	c.SetVlans(VlanMembership{200: {Tagged: true}})
	c.ResetPortQueues(nil)
	if _, ok := p.GetVlans()[100]; !ok || len(p.GetPortQueues()) != 1 {
		t.Error("original changed through its clone")
	}
	if c.Equal(p) {
		t.Error("clone should differ after mutation")
	}
}

func TestNodeMapAddRemove(t *testing.T) {
	m := NewPortMap()
	if err := m.Add(NewPort(1, "eth1")); err != nil {
		t.Fatal(err)
	}
	if err := m.Add(NewPort(1, "eth1")); err == nil {
		t.Error("duplicate Add should fail")
	}
	if err := m.Remove(2); err == nil {
		t.Error("Remove of a missing key should fail")
	}
	if err := m.Add(NewPort(3, "eth3")); err != nil {
		t.Fatal(err)
	}
	keys := m.Keys()
	if len(keys) != 2 || keys[0] != 1 || keys[1] != 3 {
		t.Errorf("Keys() = %v, want [1 3]", keys)
	}
	if err := m.Remove(1); err != nil {
		t.Fatal(err)
	}
	if m.Has(1) || m.Len() != 1 {
		t.Error("port 1 should be gone")
	}
}
