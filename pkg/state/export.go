package state

import (
	"fmt"
	"maps"
	"net/netip"

	"github.com/newtron-network/switchd/pkg/state/schema"
	"github.com/newtron-network/switchd/pkg/util"
)

// ToSchema exports the snapshot into its serialized form.
func (s *SwitchState) ToSchema() schema.SwitchState {
	out := schema.SwitchState{
		Ports:       map[uint32]schema.PortFields{},
		Vlans:       map[uint16]schema.VlanFields{},
		Interfaces:  map[uint32]schema.InterfaceFields{},
		Mirrors:     map[string]schema.MirrorFields{},
		QosPolicies: map[string]schema.QosPolicyFields{},
		DefaultVlan: uint16(s.GetDefaultVlan()),
	}
	s.GetPorts().ForEach(func(p *Port) error {
		out.Ports[uint32(p.GetID())] = p.ToSchema()
		return nil
	})
	s.GetVlans().ForEach(func(v *Vlan) error {
		out.Vlans[uint16(v.GetID())] = v.ToSchema()
		return nil
	})
	s.GetInterfaces().ForEach(func(i *Interface) error {
		out.Interfaces[uint32(i.GetID())] = i.ToSchema()
		return nil
	})
	s.GetMirrors().ForEach(func(m *Mirror) error {
		out.Mirrors[m.GetName()] = m.ToSchema()
		return nil
	})
	s.GetQosPolicies().ForEach(func(q *QosPolicy) error {
		out.QosPolicies[q.GetName()] = schema.QosPolicyFields{Name: q.GetName(), DscpToQueue: maps.Clone(q.GetDscpMap())}
		return nil
	})
	return out
}

// SwitchStateFromSchema rebuilds an unpublished snapshot from its serialized
// form.
func SwitchStateFromSchema(in schema.SwitchState) (*SwitchState, error) {
	s := NewSwitchState()
	s.SetDefaultVlan(VlanID(in.DefaultVlan))
	for _, pf := range in.Ports {
		p, err := PortFromSchema(pf)
		if err != nil {
			return nil, err
		}
		if err := s.ModifyPorts().Add(p); err != nil {
			return nil, err
		}
	}
	for _, vf := range in.Vlans {
		v, err := VlanFromSchema(vf)
		if err != nil {
			return nil, err
		}
		if err := s.ModifyVlans().Add(v); err != nil {
			return nil, err
		}
	}
	for _, inf := range in.Interfaces {
		i, err := InterfaceFromSchema(inf)
		if err != nil {
			return nil, err
		}
		if err := s.ModifyInterfaces().Add(i); err != nil {
			return nil, err
		}
	}
	for _, mf := range in.Mirrors {
		m, err := MirrorFromSchema(mf)
		if err != nil {
			return nil, err
		}
		if err := s.ModifyMirrors().Add(m); err != nil {
			return nil, err
		}
	}
	for _, qf := range in.QosPolicies {
		if err := s.ModifyQosPolicies().Add(NewQosPolicy(qf.Name, qf.DscpToQueue)); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// ToSchema exports the port.
func (p *Port) ToSchema() schema.PortFields {
	f := p.getFields()
	out := schema.PortFields{
		PortID:           uint32(f.id),
		PortName:         f.name,
		PortDescription:  f.description,
		AdminState:       f.adminState.String(),
		OperState:        f.operState.String(),
		IngressVlan:      uint16(f.ingressVlan),
		Speed:            f.speed.String(),
		Pause:            schema.PortPause{Tx: f.pause.Tx, Rx: f.pause.Rx},
		FEC:              f.fec.String(),
		LoopbackMode:     f.loopbackMode.String(),
		SFlowIngressRate: f.sFlowIngressRate,
		SFlowEgressRate:  f.sFlowEgressRate,
		IngressMirror:    f.ingressMirror,
		EgressMirror:     f.egressMirror,
		QosPolicy:        f.qosPolicy,
	}
	if len(f.vlans) > 0 {
		out.Vlans = make(map[uint16]schema.VlanInfo, len(f.vlans))
		for id, info := range f.vlans {
			out.Vlans[uint16(id)] = schema.VlanInfo{Tagged: info.Tagged}
		}
	}
	for _, q := range f.queues {
		out.Queues = append(out.Queues, schema.PortQueue{
			ID:            q.ID,
			Name:          q.Name,
			Scheduling:    q.Scheduling.String(),
			Weight:        q.Weight,
			ReservedBytes: q.ReservedBytes,
		})
	}
	return out
}

// PortFromSchema imports a port.
func PortFromSchema(in schema.PortFields) (*Port, error) {
	p := NewPort(PortID(in.PortID), in.PortName)
	f := p.writableFields()
	var err error
	f.description = in.PortDescription
	if f.adminState, err = ParseAdminState(in.AdminState); err != nil {
		return nil, portErr(in.PortID, err)
	}
	if f.operState, err = ParseOperState(in.OperState); err != nil {
		return nil, portErr(in.PortID, err)
	}
	if f.speed, err = ParsePortSpeed(in.Speed); err != nil {
		return nil, portErr(in.PortID, err)
	}
	if f.fec, err = ParsePortFEC(in.FEC); err != nil {
		return nil, portErr(in.PortID, err)
	}
	if f.loopbackMode, err = ParseLoopbackMode(in.LoopbackMode); err != nil {
		return nil, portErr(in.PortID, err)
	}
	f.ingressVlan = VlanID(in.IngressVlan)
	f.pause = PortPause{Tx: in.Pause.Tx, Rx: in.Pause.Rx}
	for id, info := range in.Vlans {
		f.vlans[VlanID(id)] = VlanInfo{Tagged: info.Tagged}
	}
	for _, q := range in.Queues {
		sched, err := ParseQueueScheduling(q.Scheduling)
		if err != nil {
			return nil, portErr(in.PortID, err)
		}
		f.queues = append(f.queues, PortQueue{
			ID:            q.ID,
			Name:          q.Name,
			Scheduling:    sched,
			Weight:        q.Weight,
			ReservedBytes: q.ReservedBytes,
		})
	}
	f.sFlowIngressRate = in.SFlowIngressRate
	f.sFlowEgressRate = in.SFlowEgressRate
	f.ingressMirror = in.IngressMirror
	f.egressMirror = in.EgressMirror
	f.qosPolicy = in.QosPolicy
	return p, nil
}

func portErr(id uint32, err error) error {
	return fmt.Errorf("port %d: %w", id, err)
}

// ToSchema exports the VLAN and its MAC table.
func (v *Vlan) ToSchema() schema.VlanFields {
	out := schema.VlanFields{VlanID: uint16(v.GetID()), VlanName: v.GetName()}
	if ports := v.GetPorts(); len(ports) > 0 {
		out.MemberPorts = make(map[uint32]schema.VlanInfo, len(ports))
		for id, info := range ports {
			out.MemberPorts[uint32(id)] = schema.VlanInfo{Tagged: info.Tagged}
		}
	}
	v.GetMacTable().ForEach(func(e *MacEntry) error {
		out.MacTable = append(out.MacTable, schema.MacEntryFields{
			Mac:  e.GetMac().String(),
			Port: uint32(e.GetPort()),
			Type: e.GetType().String(),
		})
		return nil
	})
	return out
}

// VlanFromSchema imports a VLAN.
func VlanFromSchema(in schema.VlanFields) (*Vlan, error) {
	v := NewVlan(VlanID(in.VlanID), in.VlanName)
	f := v.writableFields()
	for id, info := range in.MemberPorts {
		f.memberPorts[PortID(id)] = VlanInfo{Tagged: info.Tagged}
	}
	for _, mf := range in.MacTable {
		mac, err := util.ParseMAC(mf.Mac)
		if err != nil {
			return nil, fmt.Errorf("vlan %d: %w", in.VlanID, err)
		}
		t, err := ParseMacEntryType(mf.Type)
		if err != nil {
			return nil, fmt.Errorf("vlan %d: %w", in.VlanID, err)
		}
		if err := f.macTable.Add(NewMacEntry(mac, PortID(mf.Port), t)); err != nil {
			return nil, fmt.Errorf("vlan %d: %w", in.VlanID, err)
		}
	}
	return v, nil
}

// ToSchema exports the interface and both neighbor tables.
func (i *Interface) ToSchema() schema.InterfaceFields {
	f := i.getFields()
	out := schema.InterfaceFields{
		InterfaceID: uint32(f.id),
		VlanID:      uint16(f.vlanID),
		Name:        f.name,
		Mac:         macString(f.mac),
		Mtu:         f.mtu,
	}
	for _, a := range f.addresses {
		out.Addresses = append(out.Addresses, a.String())
	}
	out.ArpTable = neighborsToSchema(f.arpTable)
	out.NdpTable = neighborsToSchema(f.ndpTable)
	return out
}

// InterfaceFromSchema imports an interface.
func InterfaceFromSchema(in schema.InterfaceFields) (*Interface, error) {
	var mac util.MacAddress
	if err := mac.UnmarshalText([]byte(in.Mac)); err != nil {
		return nil, fmt.Errorf("interface %d: %w", in.InterfaceID, err)
	}
	i := NewInterface(InterfaceID(in.InterfaceID), VlanID(in.VlanID), in.Name, mac)
	f := i.writableFields()
	f.mtu = in.Mtu
	for _, a := range in.Addresses {
		p, err := netip.ParsePrefix(a)
		if err != nil {
			return nil, fmt.Errorf("interface %d: %w", in.InterfaceID, err)
		}
		f.addresses = append(f.addresses, p)
	}
	for _, t := range []struct {
		entries []schema.NeighborEntryFields
		table   *NeighborTable
	}{{in.ArpTable, f.arpTable}, {in.NdpTable, f.ndpTable}} {
		for _, nf := range t.entries {
			n, err := NeighborFromSchema(nf)
			if err != nil {
				return nil, fmt.Errorf("interface %d: %w", in.InterfaceID, err)
			}
			if err := t.table.Add(n); err != nil {
				return nil, fmt.Errorf("interface %d: %w", in.InterfaceID, err)
			}
		}
	}
	return i, nil
}

func neighborsToSchema(t *NeighborTable) []schema.NeighborEntryFields {
	var out []schema.NeighborEntryFields
	t.ForEach(func(n *NeighborEntry) error {
		out = append(out, n.ToSchema())
		return nil
	})
	return out
}

// ToSchema exports the neighbor entry.
func (n *NeighborEntry) ToSchema() schema.NeighborEntryFields {
	f := n.getFields()
	return schema.NeighborEntryFields{
		IPAddress:   f.ip.String(),
		Mac:         macString(f.mac),
		Port:        uint32(f.port),
		InterfaceID: uint32(f.intf),
		State:       f.state.String(),
	}
}

// NeighborFromSchema imports a neighbor entry.
func NeighborFromSchema(in schema.NeighborEntryFields) (*NeighborEntry, error) {
	ip, err := netip.ParseAddr(in.IPAddress)
	if err != nil {
		return nil, err
	}
	var mac util.MacAddress
	if err := mac.UnmarshalText([]byte(in.Mac)); err != nil {
		return nil, err
	}
	st, err := ParseNeighborState(in.State)
	if err != nil {
		return nil, err
	}
	n := &NeighborEntry{}
	n.fields = neighborEntryFields{
		ip:    ip,
		mac:   mac,
		port:  PortID(in.Port),
		intf:  InterfaceID(in.InterfaceID),
		state: st,
	}
	return n, nil
}

// ToSchema exports the mirror.
func (m *Mirror) ToSchema() schema.MirrorFields {
	out := schema.MirrorFields{Name: m.GetName(), EgressPort: uint32(m.GetEgressPort())}
	if ip := m.GetDestinationIP(); ip.IsValid() {
		out.DestinationIP = ip.String()
	}
	return out
}

// MirrorFromSchema imports a mirror.
func MirrorFromSchema(in schema.MirrorFields) (*Mirror, error) {
	m := NewMirror(in.Name, PortID(in.EgressPort))
	if in.DestinationIP != "" {
		ip, err := netip.ParseAddr(in.DestinationIP)
		if err != nil {
			return nil, fmt.Errorf("mirror %s: %w", in.Name, err)
		}
		m.SetDestinationIP(ip)
	}
	return m, nil
}

func macString(m util.MacAddress) string {
	if m.IsZero() {
		return ""
	}
	return m.String()
}
