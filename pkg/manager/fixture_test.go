package manager

import (
	"context"
	"fmt"
	"net/netip"
	"testing"

	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/sai/fakesai"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

var (
	hostIP   = netip.MustParseAddr("10.0.0.10")
	hostMAC  = util.MustParseMAC("00:aa:00:00:00:10")
	otherMAC = util.MustParseMAC("00:aa:00:00:00:99")
)

func newTable(t *testing.T) (*ManagerTable, *fakesai.Switch) {
	t.Helper()
	hw := fakesai.New()
	return NewManagerTable(hw, hw.SwitchID(), hw.DefaultVirtualRouter()), hw
}

// baseState has ports 1 and 2 in vlans 100 (untagged) and 200 (tagged),
// interface 100 on vlan 100 with one resolved ARP entry and one pending
// NDP entry, and one static MAC in vlan 100.
func baseState(t *testing.T) *state.SwitchState {
	t.Helper()
	s := state.NewSwitchState()
	for _, id := range []state.PortID{1, 2} {
		p := state.NewPort(id, fmt.Sprintf("eth1/%d/1", id))
		p.SetAdminState(state.AdminEnabled)
		if err := s.ModifyPorts().Add(p); err != nil {
			t.Fatal(err)
		}
	}
	v100 := state.NewVlan(100, "servers")
	v100.SetPorts(map[state.PortID]state.VlanInfo{1: {}, 2: {}})
	v200 := state.NewVlan(200, "storage")
	v200.SetPorts(map[state.PortID]state.VlanInfo{1: {Tagged: true}, 2: {Tagged: true}})
	for _, v := range []*state.Vlan{v100, v200} {
		if err := s.ModifyVlans().Add(v); err != nil {
			t.Fatal(err)
		}
	}

	intf := state.NewInterface(100, 100, "Vlan100", util.MustParseMAC("02:00:00:00:01:00"))
	intf.SetAddresses([]netip.Prefix{netip.MustParsePrefix("10.0.0.1/24"), netip.MustParsePrefix("2001:db8::1/64")})
	if err := s.ModifyInterfaces().Add(intf); err != nil {
		t.Fatal(err)
	}

	if err := s.AddNeighbor(state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddNeighbor(state.NewPendingNeighbor(netip.MustParseAddr("2001:db8::20"), 100)); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMacEntry(100, state.NewMacEntry(util.MustParseMAC("00:bb:00:00:00:01"), 2, state.MacEntryStatic)); err != nil {
		t.Fatal(err)
	}
	if err := s.Validate(); err != nil {
		t.Fatal(err)
	}
	s.Publish()
	return s
}

// programmed returns a table whose hardware already holds baseState.
func programmed(t *testing.T) (*ManagerTable, *fakesai.Switch, *state.SwitchState) {
	t.Helper()
	mt, hw := newTable(t)
	s := baseState(t)
	if res := mt.Reconcile(context.Background(), state.NewStateDelta(nil, s), AbortOnError); !res.OK() {
		t.Fatalf("programming base state: %v", res.Err())
	}
	return mt, hw, s
}

func neighborKey(t *testing.T, mt *ManagerTable, e *state.NeighborEntry) sai.NeighborEntryKey {
	t.Helper()
	k, err := mt.Neighbors().SaiEntryFromSwEntry(e)
	if err != nil {
		t.Fatal(err)
	}
	return k
}
