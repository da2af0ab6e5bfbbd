package state

import (
	"bytes"

	"github.com/newtron-network/switchd/pkg/util"
)

type macEntryFields struct {
	mac       util.MacAddress
	port      PortID
	entryType MacEntryType
}

// MacEntry is one forwarding-database row of a VLAN.
type MacEntry struct {
	node[macEntryFields]
}

// MacTable holds the FDB of one VLAN.
type MacTable = NodeMap[util.MacAddress, *MacEntry]

// NewMacTable creates an empty MAC table.
func NewMacTable() *MacTable {
	return NewNodeMap[util.MacAddress, *MacEntry]("mac entry", compareMac)
}

// NewMacEntry creates an FDB entry. A zero port leaves the entry without a
// destination.
func NewMacEntry(mac util.MacAddress, port PortID, entryType MacEntryType) *MacEntry {
	m := &MacEntry{}
	m.fields = macEntryFields{mac: mac, port: port, entryType: entryType}
	return m
}

func (m *MacEntry) Key() util.MacAddress { return m.getFields().mac }

// Clone returns an unpublished copy of the entry.
func (m *MacEntry) Clone() *MacEntry {
	c := &MacEntry{}
	c.fields = *m.getFields()
	return c
}

// Equal reports whether both entries carry the same fields.
func (m *MacEntry) Equal(o *MacEntry) bool {
	return m == o || *m.getFields() == *o.getFields()
}

func (m *MacEntry) GetMac() util.MacAddress { return m.getFields().mac }
func (m *MacEntry) GetPort() PortID { return m.getFields().port }
func (m *MacEntry) SetPort(port PortID) { m.writableFields().port = port }
func (m *MacEntry) GetType() MacEntryType { return m.getFields().entryType }
func (m *MacEntry) SetType(t MacEntryType) { m.writableFields().entryType = t }

// IsPending reports whether the entry has no egress port yet.
func (m *MacEntry) IsPending() bool { return m.getFields().port == 0 }

func compareMac(a, b util.MacAddress) int {
	return bytes.Compare(a[:], b[:])
}
