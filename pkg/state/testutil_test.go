package state

import (
	"net/netip"
	"testing"

	"github.com/newtron-network/switchd/pkg/util"
)

// buildTestState returns an unpublished snapshot with two ports, two VLANs,
// one interface with an ARP and an NDP neighbor, and a static MAC.
func buildTestState(t *testing.T) *SwitchState {
	t.Helper()
	s := NewSwitchState()

	for _, id := range []PortID{1, 2} {
		p := NewPort(id, "eth1/"+string(rune('0'+id))+"/1")
		p.SetAdminState(AdminEnabled)
		p.SetIngressVlan(100)
		p.SetVlans(VlanMembership{100: {Tagged: false}, 200: {Tagged: true}})
		if err := s.ModifyPorts().Add(p); err != nil {
			t.Fatal(err)
		}
	}

	v100 := NewVlan(100, "servers")
	v100.SetPorts(map[PortID]VlanInfo{1: {}, 2: {}})
	v200 := NewVlan(200, "storage")
	v200.SetPorts(map[PortID]VlanInfo{1: {Tagged: true}, 2: {Tagged: true}})
	for _, v := range []*Vlan{v100, v200} {
		if err := s.ModifyVlans().Add(v); err != nil {
			t.Fatal(err)
		}
	}

	intf := NewInterface(100, 100, "Vlan100", util.MustParseMAC("02:00:00:00:01:00"))
	intf.SetAddresses([]netip.Prefix{
		netip.MustParsePrefix("10.0.0.1/24"),
		netip.MustParsePrefix("2001:db8::1/64"),
	})
	if err := s.ModifyInterfaces().Add(intf); err != nil {
		t.Fatal(err)
	}
	if err := s.AddNeighbor(NewResolvedNeighbor(netip.MustParseAddr("10.0.0.10"),
		util.MustParseMAC("00:aa:00:00:00:10"), 1, 100)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddNeighbor(NewPendingNeighbor(netip.MustParseAddr("2001:db8::20"), 100)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMacEntry(100, NewMacEntry(util.MustParseMAC("00:bb:00:00:00:01"), 2, MacEntryStatic)); err != nil {
		t.Fatal(err)
	}
	return s
}
