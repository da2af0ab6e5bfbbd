package state

import (
	"cmp"
	"net/netip"
)

type mirrorFields struct {
	name          string
	egressPort    PortID
	destinationIP netip.Addr
}

// Mirror is a named traffic mirror session referenced by ports.
type Mirror struct {
	node[mirrorFields]
}

// MirrorMap holds mirrors by name.
type MirrorMap = NodeMap[string, *Mirror]

// NewMirror creates a local mirror towards egressPort.
func NewMirror(name string, egressPort PortID) *Mirror {
	m := &Mirror{}
	m.fields = mirrorFields{name: name, egressPort: egressPort}
	return m
}

// NewMirrorMap creates an empty mirror map.
func NewMirrorMap() *MirrorMap {
	return NewNodeMap[string, *Mirror]("mirror", cmp.Compare[string])
}

func (m *Mirror) Key() string { return m.getFields().name }

func (m *Mirror) Clone() *Mirror {
	c := &Mirror{}
	c.fields = *m.getFields()
	return c
}

func (m *Mirror) Equal(o *Mirror) bool {
	return m == o || *m.getFields() == *o.getFields()
}

func (m *Mirror) GetName() string { return m.getFields().name }
func (m *Mirror) GetEgressPort() PortID { return m.getFields().egressPort }
func (m *Mirror) SetEgressPort(p PortID) { m.writableFields().egressPort = p }

// GetDestinationIP returns the remote collector for ERSPAN sessions; the
// zero Addr means a local span.
func (m *Mirror) GetDestinationIP() netip.Addr { return m.getFields().destinationIP }
func (m *Mirror) SetDestinationIP(ip netip.Addr) { m.writableFields().destinationIP = ip }
