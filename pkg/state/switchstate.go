package state

type switchStateFields struct {
	ports       *PortMap
	vlans       *VlanMap
	interfaces  *InterfaceMap
	mirrors     *MirrorMap
	qosPolicies *QosPolicyMap
	defaultVlan VlanID
}

// SwitchState is the root of the state tree: one immutable snapshot of the
// whole switch once published.
type SwitchState struct {
	node[switchStateFields]
}

// NewSwitchState creates an empty, unpublished state.
func NewSwitchState() *SwitchState {
	s := &SwitchState{}
	s.fields = switchStateFields{
		ports:       NewPortMap(),
		vlans:       NewVlanMap(),
		interfaces:  NewInterfaceMap(),
		mirrors:     NewMirrorMap(),
		qosPolicies: NewQosPolicyMap(),
	}
	return s
}

// Clone returns an unpublished copy sharing every collection.
func (s *SwitchState) Clone() *SwitchState {
	c := &SwitchState{}
	c.fields = *s.getFields()
	return c
}

// Modify returns s if it is still writable, otherwise a clone of it.
func (s *SwitchState) Modify() *SwitchState {
	if s.IsPublished() {
		return s.Clone()
	}
	return s
}

// Publish freezes the whole tree below s.
func (s *SwitchState) Publish() {
	f := s.getFields()
	if !f.ports.IsPublished() {
		f.ports.Publish()
	}
	if !f.vlans.IsPublished() {
		f.vlans.Publish()
	}
	if !f.interfaces.IsPublished() {
		f.interfaces.Publish()
	}
	if !f.mirrors.IsPublished() {
		f.mirrors.Publish()
	}
	if !f.qosPolicies.IsPublished() {
		f.qosPolicies.Publish()
	}
	s.node.Publish()
}

// Equal reports whether both snapshots describe the same switch.
func (s *SwitchState) Equal(o *SwitchState) bool {
	if s == o {
		return true
	}
	a, b := s.getFields(), o.getFields()
	return a.defaultVlan == b.defaultVlan &&
		a.ports.Equal(b.ports) &&
		a.vlans.Equal(b.vlans) &&
		a.interfaces.Equal(b.interfaces) &&
		a.mirrors.Equal(b.mirrors) &&
		a.qosPolicies.Equal(b.qosPolicies)
}

func (s *SwitchState) GetPorts() *PortMap { return s.getFields().ports }
func (s *SwitchState) GetVlans() *VlanMap { return s.getFields().vlans }
func (s *SwitchState) GetInterfaces() *InterfaceMap { return s.getFields().interfaces }
func (s *SwitchState) GetMirrors() *MirrorMap { return s.getFields().mirrors }
func (s *SwitchState) GetQosPolicies() *QosPolicyMap { return s.getFields().qosPolicies }
func (s *SwitchState) GetDefaultVlan() VlanID { return s.getFields().defaultVlan }
func (s *SwitchState) SetDefaultVlan(id VlanID) { s.writableFields().defaultVlan = id }

// ModifyPorts returns a writable port map. s must be unpublished.
func (s *SwitchState) ModifyPorts() *PortMap {
	f := s.writableFields()
	f.ports = f.ports.modifiable()
	return f.ports
}

// ModifyVlans returns a writable VLAN map. s must be unpublished.
func (s *SwitchState) ModifyVlans() *VlanMap {
	f := s.writableFields()
	f.vlans = f.vlans.modifiable()
	return f.vlans
}

// ModifyInterfaces returns a writable interface map. s must be unpublished.
func (s *SwitchState) ModifyInterfaces() *InterfaceMap {
	f := s.writableFields()
	f.interfaces = f.interfaces.modifiable()
	return f.interfaces
}

// ModifyMirrors returns a writable mirror map. s must be unpublished.
func (s *SwitchState) ModifyMirrors() *MirrorMap {
	f := s.writableFields()
	f.mirrors = f.mirrors.modifiable()
	return f.mirrors
}

// ModifyQosPolicies returns a writable QoS policy map. s must be unpublished.
func (s *SwitchState) ModifyQosPolicies() *QosPolicyMap {
	f := s.writableFields()
	f.qosPolicies = f.qosPolicies.modifiable()
	return f.qosPolicies
}

// ModifyPort returns a writable copy of port id, installed into s.
func (s *SwitchState) ModifyPort(id PortID) (*Port, error) {
	return s.ModifyPorts().Modify(id)
}

// ModifyVlan returns a writable copy of VLAN id, installed into s.
func (s *SwitchState) ModifyVlan(id VlanID) (*Vlan, error) {
	return s.ModifyVlans().Modify(id)
}

// ModifyInterface returns a writable copy of interface id, installed into s.
func (s *SwitchState) ModifyInterface(id InterfaceID) (*Interface, error) {
	return s.ModifyInterfaces().Modify(id)
}

// AddNeighbor inserts a neighbor into the table of its interface.
func (s *SwitchState) AddNeighbor(entry *NeighborEntry) error {
	intf, err := s.ModifyInterface(entry.GetInterfaceID())
	if err != nil {
		return err
	}
	return intf.ModifyNeighborTable(entry.GetIP()).Add(entry)
}

// AddMacEntry inserts an FDB entry into the MAC table of vlan.
func (s *SwitchState) AddMacEntry(vlan VlanID, entry *MacEntry) error {
	v, err := s.ModifyVlan(vlan)
	if err != nil {
		return err
	}
	return v.ModifyMacTable().Add(entry)
}
