package state

import (
	"cmp"
	"net/netip"
	"slices"

	"github.com/newtron-network/switchd/pkg/util"
)

type interfaceFields struct {
	id        InterfaceID
	vlanID    VlanID
	name      string
	mac       util.MacAddress
	mtu       int
	addresses []netip.Prefix
	arpTable  *NeighborTable
	ndpTable  *NeighborTable
}

// Interface is an L3 router interface bound to a VLAN. It owns the neighbor
// tables learned on it.
type Interface struct {
	node[interfaceFields]
}

// InterfaceMap holds every router interface by id.
type InterfaceMap = NodeMap[InterfaceID, *Interface]

// DefaultMTU is used for interfaces created without an explicit MTU.
const DefaultMTU = 9100

// NewInterface creates an interface with empty neighbor tables.
func NewInterface(id InterfaceID, vlan VlanID, name string, mac util.MacAddress) *Interface {
	i := &Interface{}
	i.fields = interfaceFields{
		id:       id,
		vlanID:   vlan,
		name:     name,
		mac:      mac,
		mtu:      DefaultMTU,
		arpTable: NewNeighborTable(),
		ndpTable: NewNeighborTable(),
	}
	return i
}

// NewInterfaceMap creates an empty interface map.
func NewInterfaceMap() *InterfaceMap {
	return NewNodeMap[InterfaceID, *Interface]("interface", cmp.Compare[InterfaceID])
}

func (i *Interface) Key() InterfaceID { return i.getFields().id }

// Clone returns an unpublished copy. Neighbor tables are shared.
func (i *Interface) Clone() *Interface {
	f := *i.getFields()
	f.addresses = slices.Clone(f.addresses)
	c := &Interface{}
	c.fields = f
	return c
}

// Equal reports whether both interfaces carry the same fields and tables.
func (i *Interface) Equal(o *Interface) bool {
	if i == o {
		return true
	}
	a, b := i.getFields(), o.getFields()
	return a.id == b.id &&
		a.vlanID == b.vlanID &&
		a.name == b.name &&
		a.mac == b.mac &&
		a.mtu == b.mtu &&
		slices.Equal(a.addresses, b.addresses) &&
		a.arpTable.Equal(b.arpTable) &&
		a.ndpTable.Equal(b.ndpTable)
}

// Publish freezes the interface and both neighbor tables.
func (i *Interface) Publish() {
	f := i.getFields()
	for _, t := range []*NeighborTable{f.arpTable, f.ndpTable} {
		if !t.IsPublished() {
			t.Publish()
		}
	}
	i.node.Publish()
}

func (i *Interface) GetID() InterfaceID { return i.getFields().id }
func (i *Interface) GetVlanID() VlanID { return i.getFields().vlanID }
func (i *Interface) SetVlanID(id VlanID) { i.writableFields().vlanID = id }
func (i *Interface) GetName() string { return i.getFields().name }
func (i *Interface) SetName(name string) { i.writableFields().name = name }
func (i *Interface) GetMac() util.MacAddress { return i.getFields().mac }
func (i *Interface) SetMac(mac util.MacAddress) { i.writableFields().mac = mac }
func (i *Interface) GetMtu() int { return i.getFields().mtu }
func (i *Interface) SetMtu(mtu int) { i.writableFields().mtu = mtu }

// GetAddresses returns the interface prefixes. The slice must not be modified.
func (i *Interface) GetAddresses() []netip.Prefix { return i.getFields().addresses }
func (i *Interface) SetAddresses(addrs []netip.Prefix) {
	i.writableFields().addresses = slices.Clone(addrs)
}

// HasAddress reports whether ip falls in one of the interface subnets.
func (i *Interface) HasAddress(ip netip.Addr) bool {
	for _, p := range i.getFields().addresses {
		if p.Contains(ip) {
			return true
		}
	}
	return false
}

func (i *Interface) GetArpTable() *NeighborTable { return i.getFields().arpTable }
func (i *Interface) GetNdpTable() *NeighborTable { return i.getFields().ndpTable }

// GetNeighborTable returns the ARP or NDP table matching ip's family.
func (i *Interface) GetNeighborTable(ip netip.Addr) *NeighborTable {
	if ip.Is4() {
		return i.GetArpTable()
	}
	return i.GetNdpTable()
}

// ModifyArpTable returns a writable ARP table. The interface must be unpublished.
func (i *Interface) ModifyArpTable() *NeighborTable {
	f := i.writableFields()
	f.arpTable = f.arpTable.modifiable()
	return f.arpTable
}

// ModifyNdpTable returns a writable NDP table. The interface must be unpublished.
func (i *Interface) ModifyNdpTable() *NeighborTable {
	f := i.writableFields()
	f.ndpTable = f.ndpTable.modifiable()
	return f.ndpTable
}

// ModifyNeighborTable returns the writable table for ip's family.
func (i *Interface) ModifyNeighborTable(ip netip.Addr) *NeighborTable {
	if ip.Is4() {
		return i.ModifyArpTable()
	}
	return i.ModifyNdpTable()
}
