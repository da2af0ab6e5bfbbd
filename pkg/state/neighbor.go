package state

import (
	"net/netip"

	"github.com/newtron-network/switchd/pkg/util"
)

type neighborEntryFields struct {
	ip    netip.Addr
	mac   util.MacAddress
	port  PortID
	intf  InterfaceID
	state NeighborState
}

// NeighborEntry is one ARP (IPv4) or NDP (IPv6) entry of a router interface.
type NeighborEntry struct {
	node[neighborEntryFields]
}

// NeighborTable holds the neighbors of one interface and address family.
type NeighborTable = NodeMap[netip.Addr, *NeighborEntry]

// NewNeighborTable creates an empty neighbor table.
func NewNeighborTable() *NeighborTable {
	return NewNodeMap[netip.Addr, *NeighborEntry]("neighbor", netip.Addr.Compare)
}

// NewResolvedNeighbor creates a reachable neighbor entry.
func NewResolvedNeighbor(ip netip.Addr, mac util.MacAddress, port PortID, intf InterfaceID) *NeighborEntry {
	n := &NeighborEntry{}
	n.fields = neighborEntryFields{ip: ip, mac: mac, port: port, intf: intf, state: NeighborReachable}
	return n
}

// NewPendingNeighbor creates an entry for a neighbor whose link-layer
// address is not known yet.
func NewPendingNeighbor(ip netip.Addr, intf InterfaceID) *NeighborEntry {
	n := &NeighborEntry{}
	n.fields = neighborEntryFields{ip: ip, intf: intf, state: NeighborPending}
	return n
}

func (n *NeighborEntry) Key() netip.Addr { return n.getFields().ip }

// Clone returns an unpublished copy of the entry.
func (n *NeighborEntry) Clone() *NeighborEntry {
	c := &NeighborEntry{}
	c.fields = *n.getFields()
	return c
}

// Equal reports whether both entries carry the same fields.
func (n *NeighborEntry) Equal(o *NeighborEntry) bool {
	return n == o || *n.getFields() == *o.getFields()
}

func (n *NeighborEntry) GetIP() netip.Addr { return n.getFields().ip }
func (n *NeighborEntry) GetMac() util.MacAddress { return n.getFields().mac }
func (n *NeighborEntry) GetPort() PortID { return n.getFields().port }
func (n *NeighborEntry) GetInterfaceID() InterfaceID { return n.getFields().intf }
func (n *NeighborEntry) GetState() NeighborState { return n.getFields().state }
func (n *NeighborEntry) SetMac(mac util.MacAddress) { n.writableFields().mac = mac }
func (n *NeighborEntry) SetPort(port PortID) { n.writableFields().port = port }
func (n *NeighborEntry) SetState(state NeighborState) { n.writableFields().state = state }

// IsPending reports whether the entry lacks a programmable destination.
func (n *NeighborEntry) IsPending() bool {
	f := n.getFields()
	return f.state != NeighborReachable || f.mac.IsZero()
}

// IsV6 reports whether this is an NDP entry.
func (n *NeighborEntry) IsV6() bool { return n.getFields().ip.Is6() }
