package state

import (
	"cmp"
	"maps"
	"slices"
)

type portFields struct {
	id               PortID
	name             string
	description      string
	adminState       AdminState
	operState        OperState
	ingressVlan      VlanID
	speed            PortSpeed
	pause            PortPause
	vlans            VlanMembership
	queues           []PortQueue
	fec              PortFEC
	loopbackMode     LoopbackMode
	sFlowIngressRate int64
	sFlowEgressRate  int64
	// Optional references by name; "" means none.
	ingressMirror string
	egressMirror  string
	qosPolicy     string
}

func (f portFields) clone() portFields {
	f.vlans = maps.Clone(f.vlans)
	f.queues = slices.Clone(f.queues)
	return f
}

func (f *portFields) equal(o *portFields) bool {
	return f.id == o.id &&
		f.name == o.name &&
		f.description == o.description &&
		f.adminState == o.adminState &&
		f.operState == o.operState &&
		f.ingressVlan == o.ingressVlan &&
		f.speed == o.speed &&
		f.pause == o.pause &&
		maps.Equal(f.vlans, o.vlans) &&
		slices.Equal(f.queues, o.queues) &&
		f.fec == o.fec &&
		f.loopbackMode == o.loopbackMode &&
		f.sFlowIngressRate == o.sFlowIngressRate &&
		f.sFlowEgressRate == o.sFlowEgressRate &&
		f.ingressMirror == o.ingressMirror &&
		f.egressMirror == o.egressMirror &&
		f.qosPolicy == o.qosPolicy
}

// Port stores state about one of the physical ports on the switch.
type Port struct {
	node[portFields]
}

// PortMap holds every port of the switch by id.
type PortMap = NodeMap[PortID, *Port]

// NewPort creates an admin-disabled, oper-down port. The id is fixed for the
// life of the port.
func NewPort(id PortID, name string) *Port {
	p := &Port{}
	p.fields = portFields{id: id, name: name, vlans: VlanMembership{}}
	return p
}

// NewPortMap creates an empty port map.
func NewPortMap() *PortMap {
	return NewNodeMap[PortID, *Port]("port", cmp.Compare[PortID])
}

func (p *Port) Key() PortID { return p.getFields().id }

// Clone returns an unpublished copy of the port.
func (p *Port) Clone() *Port {
	c := &Port{}
	c.fields = p.getFields().clone()
	return c
}

// Equal reports whether both ports carry the same fields.
func (p *Port) Equal(o *Port) bool {
	return p == o || p.getFields().equal(o.getFields())
}

func (p *Port) GetID() PortID { return p.getFields().id }
func (p *Port) GetName() string { return p.getFields().name }
func (p *Port) SetName(name string) { p.writableFields().name = name }
func (p *Port) GetDescription() string { return p.getFields().description }
func (p *Port) SetDescription(d string) { p.writableFields().description = d }
func (p *Port) GetAdminState() AdminState { return p.getFields().adminState }
func (p *Port) SetAdminState(s AdminState) {
	p.writableFields().adminState = s
}
func (p *Port) GetOperState() OperState { return p.getFields().operState }

// SetOperState records the observed link state.
func (p *Port) SetOperState(up bool) {
	if up {
		p.writableFields().operState = OperUp
	} else {
		p.writableFields().operState = OperDown
	}
}

// IsEnabled reports whether the port is administratively enabled.
func (p *Port) IsEnabled() bool { return p.getFields().adminState == AdminEnabled }

// IsUp reports whether the link is up.
func (p *Port) IsUp() bool { return p.getFields().operState == OperUp }

// IsPortUp reports whether the port is usable: admin enabled and link up.
func (p *Port) IsPortUp() bool { return p.IsEnabled() && p.IsUp() }

// GetVlans returns the VLAN membership. The map must not be modified.
func (p *Port) GetVlans() VlanMembership { return p.getFields().vlans }
func (p *Port) SetVlans(vlans VlanMembership) {
	p.writableFields().vlans = maps.Clone(vlans)
}

// GetPortQueues returns the queue configuration. The slice must not be modified.
func (p *Port) GetPortQueues() []PortQueue { return p.getFields().queues }
func (p *Port) ResetPortQueues(queues []PortQueue) {
	p.writableFields().queues = slices.Clone(queues)
}

func (p *Port) GetIngressVlan() VlanID { return p.getFields().ingressVlan }
func (p *Port) SetIngressVlan(id VlanID) { p.writableFields().ingressVlan = id }
func (p *Port) GetSpeed() PortSpeed { return p.getFields().speed }
func (p *Port) SetSpeed(speed PortSpeed) { p.writableFields().speed = speed }
func (p *Port) GetPause() PortPause { return p.getFields().pause }
func (p *Port) SetPause(pause PortPause) { p.writableFields().pause = pause }
func (p *Port) GetFEC() PortFEC { return p.getFields().fec }
func (p *Port) SetFEC(fec PortFEC) { p.writableFields().fec = fec }
func (p *Port) GetLoopbackMode() LoopbackMode { return p.getFields().loopbackMode }
func (p *Port) SetLoopbackMode(m LoopbackMode) {
	p.writableFields().loopbackMode = m
}

// GetSflowIngressRate returns the 1:N ingress sampling rate; 0 disables sampling.
func (p *Port) GetSflowIngressRate() int64 { return p.getFields().sFlowIngressRate }
func (p *Port) SetSflowIngressRate(rate int64) { p.writableFields().sFlowIngressRate = rate }
func (p *Port) GetSflowEgressRate() int64 { return p.getFields().sFlowEgressRate }
func (p *Port) SetSflowEgressRate(rate int64) { p.writableFields().sFlowEgressRate = rate }

func (p *Port) GetIngressMirror() string { return p.getFields().ingressMirror }
func (p *Port) SetIngressMirror(name string) { p.writableFields().ingressMirror = name }
func (p *Port) GetEgressMirror() string { return p.getFields().egressMirror }
func (p *Port) SetEgressMirror(name string) { p.writableFields().egressMirror = name }
func (p *Port) GetQosPolicy() string { return p.getFields().qosPolicy }
func (p *Port) SetQosPolicy(name string) { p.writableFields().qosPolicy = name }
