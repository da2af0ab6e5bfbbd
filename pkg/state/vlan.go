package state

import (
	"cmp"
	"maps"
)

type vlanFields struct {
	id          VlanID
	name        string
	memberPorts map[PortID]VlanInfo
	macTable    *MacTable
}

// Vlan is a bridging domain: its member ports and its FDB.
type Vlan struct {
	node[vlanFields]
}

// VlanMap holds every VLAN by id.
type VlanMap = NodeMap[VlanID, *Vlan]

// NewVlan creates a VLAN with no members and an empty MAC table.
func NewVlan(id VlanID, name string) *Vlan {
	v := &Vlan{}
	v.fields = vlanFields{
		id:          id,
		name:        name,
		memberPorts: map[PortID]VlanInfo{},
		macTable:    NewMacTable(),
	}
	return v
}

// NewVlanMap creates an empty VLAN map.
func NewVlanMap() *VlanMap {
	return NewNodeMap[VlanID, *Vlan]("vlan", cmp.Compare[VlanID])
}

func (v *Vlan) Key() VlanID { return v.getFields().id }

// Clone returns an unpublished copy. The MAC table is shared.
func (v *Vlan) Clone() *Vlan {
	f := *v.getFields()
	f.memberPorts = maps.Clone(f.memberPorts)
	c := &Vlan{}
	c.fields = f
	return c
}

// Equal reports whether both VLANs carry the same fields and MAC tables.
func (v *Vlan) Equal(o *Vlan) bool {
	if v == o {
		return true
	}
	a, b := v.getFields(), o.getFields()
	return a.id == b.id &&
		a.name == b.name &&
		maps.Equal(a.memberPorts, b.memberPorts) &&
		a.macTable.Equal(b.macTable)
}

// Publish freezes the VLAN and its MAC table.
func (v *Vlan) Publish() {
	if t := v.getFields().macTable; !t.IsPublished() {
		t.Publish()
	}
	v.node.Publish()
}

func (v *Vlan) GetID() VlanID { return v.getFields().id }
func (v *Vlan) GetName() string { return v.getFields().name }
func (v *Vlan) SetName(name string) { v.writableFields().name = name }

// GetPorts returns the member ports. The map must not be modified.
func (v *Vlan) GetPorts() map[PortID]VlanInfo { return v.getFields().memberPorts }

// SetPorts replaces the member ports.
func (v *Vlan) SetPorts(ports map[PortID]VlanInfo) {
	v.writableFields().memberPorts = maps.Clone(ports)
}

// GetMacTable returns the FDB of the VLAN.
func (v *Vlan) GetMacTable() *MacTable { return v.getFields().macTable }

// ModifyMacTable returns a writable MAC table, cloning the shared one if
// needed. The VLAN must be unpublished.
func (v *Vlan) ModifyMacTable() *MacTable {
	f := v.writableFields()
	f.macTable = f.macTable.modifiable()
	return f.macTable
}
