// Package schema holds the serialized form of the switch state tree. It is
// the format used for warm-boot files and must stay backwards compatible:
// add fields, never repurpose them.
package schema

// SwitchState is the root of a serialized snapshot.
type SwitchState struct {
	Ports       map[uint32]PortFields      `json:"ports"`
	Vlans       map[uint16]VlanFields      `json:"vlans"`
	Interfaces  map[uint32]InterfaceFields `json:"interfaces"`
	Mirrors     map[string]MirrorFields    `json:"mirrors,omitempty"`
	QosPolicies map[string]QosPolicyFields `json:"qosPolicies,omitempty"`
	DefaultVlan uint16                     `json:"defaultVlan,omitempty"`
}

type PortFields struct {
	PortID           uint32              `json:"portId"`
	PortName         string              `json:"portName"`
	PortDescription  string              `json:"portDescription,omitempty"`
	AdminState       string              `json:"adminState"`
	OperState        string              `json:"operState"`
	IngressVlan      uint16              `json:"ingressVlan,omitempty"`
	Speed            string              `json:"speed"`
	Pause            PortPause           `json:"pause"`
	Vlans            map[uint16]VlanInfo `json:"vlanMemberShips,omitempty"`
	Queues           []PortQueue         `json:"queues,omitempty"`
	FEC              string              `json:"fec"`
	LoopbackMode     string              `json:"loopbackMode"`
	SFlowIngressRate int64               `json:"sFlowIngressRate,omitempty"`
	SFlowEgressRate  int64               `json:"sFlowEgressRate,omitempty"`
	IngressMirror    string              `json:"ingressMirror,omitempty"`
	EgressMirror     string              `json:"egressMirror,omitempty"`
	QosPolicy        string              `json:"qosPolicy,omitempty"`
}

type PortPause struct {
	Tx bool `json:"tx"`
	Rx bool `json:"rx"`
}

type VlanInfo struct {
	Tagged bool `json:"tagged"`
}

type PortQueue struct {
	ID            uint8  `json:"id"`
	Name          string `json:"name,omitempty"`
	Scheduling    string `json:"scheduling"`
	Weight        int    `json:"weight,omitempty"`
	ReservedBytes int64  `json:"reservedBytes,omitempty"`
}

type VlanFields struct {
	VlanID      uint16              `json:"vlanId"`
	VlanName    string              `json:"vlanName"`
	MemberPorts map[uint32]VlanInfo `json:"memberPorts,omitempty"`
	MacTable    []MacEntryFields    `json:"macTable,omitempty"`
}

type MacEntryFields struct {
	Mac  string `json:"mac"`
	Port uint32 `json:"portId,omitempty"`
	Type string `json:"type"`
}

type InterfaceFields struct {
	InterfaceID uint32                `json:"interfaceId"`
	VlanID      uint16                `json:"vlanId"`
	Name        string                `json:"name"`
	Mac         string                `json:"mac"`
	Mtu         int                   `json:"mtu"`
	Addresses   []string              `json:"addresses,omitempty"`
	ArpTable    []NeighborEntryFields `json:"arpTable,omitempty"`
	NdpTable    []NeighborEntryFields `json:"ndpTable,omitempty"`
}

type NeighborEntryFields struct {
	IPAddress   string `json:"ipaddress"`
	Mac         string `json:"mac,omitempty"`
	Port        uint32 `json:"portId,omitempty"`
	InterfaceID uint32 `json:"interfaceId"`
	State       string `json:"state"`
}

type MirrorFields struct {
	Name          string `json:"name"`
	EgressPort    uint32 `json:"egressPort,omitempty"`
	DestinationIP string `json:"destinationIp,omitempty"`
}

type QosPolicyFields struct {
	Name        string          `json:"name"`
	DscpToQueue map[uint8]uint8 `json:"dscpToQueue,omitempty"`
}
