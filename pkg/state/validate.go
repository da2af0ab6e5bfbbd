package state

import (
	"fmt"

	"github.com/newtron-network/switchd/pkg/util"
)

// Validate checks that every cross-reference in the snapshot resolves to an
// entity of the same snapshot. It runs before a snapshot is committed, so a
// dangling reference never reaches the hardware.
func (s *SwitchState) Validate() error {
	var v util.ValidationBuilder
	ports, vlans, intfs := s.GetPorts(), s.GetVlans(), s.GetInterfaces()
	mirrors, policies := s.GetMirrors(), s.GetQosPolicies()

	ref := func(resource, refType, name string, ok bool) {
		v.Add(ok, util.NewInvalidReferenceError(resource, refType, name))
	}

	if d := s.GetDefaultVlan(); d != 0 {
		ref("switch", "default vlan", fmt.Sprint(d), vlans.Has(d))
	}

	ports.ForEach(func(p *Port) error {
		res := fmt.Sprintf("port %d", p.GetID())
		if id := p.GetIngressVlan(); id != 0 {
			ref(res, "ingress vlan", fmt.Sprint(id), vlans.Has(id))
		}
		for id := range p.GetVlans() {
			ref(res, "vlan", fmt.Sprint(id), vlans.Has(id))
		}
		if m := p.GetIngressMirror(); m != "" {
			ref(res, "ingress mirror", m, mirrors.Has(m))
		}
		if m := p.GetEgressMirror(); m != "" {
			ref(res, "egress mirror", m, mirrors.Has(m))
		}
		if q := p.GetQosPolicy(); q != "" {
			ref(res, "qos policy", q, policies.Has(q))
		}
		return nil
	})

	vlans.ForEach(func(vl *Vlan) error {
		res := fmt.Sprintf("vlan %d", vl.GetID())
		for id := range vl.GetPorts() {
			ref(res, "member port", fmt.Sprint(id), ports.Has(id))
		}
		vl.GetMacTable().ForEach(func(e *MacEntry) error {
			if p := e.GetPort(); p != 0 {
				ref(fmt.Sprintf("%s mac %s", res, e.GetMac()), "port", fmt.Sprint(p), ports.Has(p))
			}
			return nil
		})
		return nil
	})

	intfs.ForEach(func(i *Interface) error {
		res := fmt.Sprintf("interface %d", i.GetID())
		ref(res, "vlan", fmt.Sprint(i.GetVlanID()), vlans.Has(i.GetVlanID()))
		for _, t := range []*NeighborTable{i.GetArpTable(), i.GetNdpTable()} {
			t.ForEach(func(n *NeighborEntry) error {
				nres := fmt.Sprintf("%s neighbor %s", res, n.GetIP())
				if n.GetInterfaceID() != i.GetID() {
					v.AddErrorf("%s: stored under interface %d but names interface %d",
						nres, i.GetID(), n.GetInterfaceID())
				}
				if p := n.GetPort(); p != 0 {
					ref(nres, "port", fmt.Sprint(p), ports.Has(p))
				}
				return nil
			})
		}
		return nil
	})

	mirrors.ForEach(func(m *Mirror) error {
		if p := m.GetEgressPort(); p != 0 {
			ref("mirror "+m.GetName(), "egress port", fmt.Sprint(p), ports.Has(p))
		}
		return nil
	})

	return v.Build()
}
