// Package state models the desired and observed configuration of a switch
// as a tree of versioned, copy-on-write nodes.
//
// A published node is immutable. Writers clone the path from the root to the
// node they want to change, mutate the unpublished clones, then publish the
// new root. Unmodified subtrees are shared between the old and new snapshot,
// which is what makes Delta cheap: identical pointers are never descended.
package state

import (
	"fmt"
	"sort"
	"strings"
)

// PortID identifies a front-panel port. It never changes for the lifetime of
// the port.
type PortID uint32

// VlanID is an 802.1Q VLAN id.
type VlanID uint16

// InterfaceID identifies an L3 router interface.
type InterfaceID uint32

// AdminState is the configured state of a port.
type AdminState int

const (
	AdminDisabled AdminState = iota
	AdminEnabled
)

var adminStateNames = map[AdminState]string{
	AdminDisabled: "DISABLED",
	AdminEnabled:  "ENABLED",
}

func (s AdminState) String() string { return enumString(adminStateNames, s) }

// ParseAdminState parses the schema name of an AdminState.
func ParseAdminState(s string) (AdminState, error) {
	return parseEnum("admin state", adminStateNames, s)
}

// OperState is the observed link state of a port.
type OperState int

const (
	OperDown OperState = iota
	OperUp
)

var operStateNames = map[OperState]string{
	OperDown: "DOWN",
	OperUp:   "UP",
}

func (s OperState) String() string { return enumString(operStateNames, s) }

// ParseOperState parses the schema name of an OperState.
func ParseOperState(s string) (OperState, error) {
	return parseEnum("oper state", operStateNames, s)
}

// PortSpeed is the configured port speed in Mbps. SpeedDefault leaves the
// platform default in place.
type PortSpeed int64

const (
	SpeedDefault PortSpeed = 0
	Speed1G      PortSpeed = 1000
	Speed10G     PortSpeed = 10000
	Speed25G     PortSpeed = 25000
	Speed40G     PortSpeed = 40000
	Speed50G     PortSpeed = 50000
	Speed100G    PortSpeed = 100000
	Speed400G    PortSpeed = 400000
)

var portSpeedNames = map[PortSpeed]string{
	SpeedDefault: "DEFAULT",
	Speed1G:      "1G",
	Speed10G:     "10G",
	Speed25G:     "25G",
	Speed40G:     "40G",
	Speed50G:     "50G",
	Speed100G:    "100G",
	Speed400G:    "400G",
}

func (s PortSpeed) String() string { return enumString(portSpeedNames, s) }

// ParsePortSpeed parses a speed name such as "100G".
func ParsePortSpeed(s string) (PortSpeed, error) {
	return parseEnum("port speed", portSpeedNames, s)
}

// PortFEC is the forward-error-correction mode of a port.
type PortFEC int

const (
	FECOff PortFEC = iota
	FECRS
	FECFC
)

var portFECNames = map[PortFEC]string{
	FECOff: "OFF",
	FECRS:  "RS",
	FECFC:  "FC",
}

func (f PortFEC) String() string { return enumString(portFECNames, f) }

// ParsePortFEC parses the schema name of a PortFEC.
func ParsePortFEC(s string) (PortFEC, error) {
	return parseEnum("fec mode", portFECNames, s)
}

// LoopbackMode is the port loopback setting.
type LoopbackMode int

const (
	LoopbackNone LoopbackMode = iota
	LoopbackPHY
	LoopbackMAC
)

var loopbackModeNames = map[LoopbackMode]string{
	LoopbackNone: "NONE",
	LoopbackPHY:  "PHY",
	LoopbackMAC:  "MAC",
}

func (m LoopbackMode) String() string { return enumString(loopbackModeNames, m) }

// ParseLoopbackMode parses the schema name of a LoopbackMode.
func ParseLoopbackMode(s string) (LoopbackMode, error) {
	return parseEnum("loopback mode", loopbackModeNames, s)
}

// PortPause is the 802.3x flow control setting.
type PortPause struct {
	Tx bool
	Rx bool
}

// VlanInfo describes how a port participates in one VLAN.
type VlanInfo struct {
	Tagged bool
}

// VlanMembership maps each VLAN a port belongs to onto its tagging mode.
type VlanMembership map[VlanID]VlanInfo

// QueueScheduling is the scheduler discipline of a port queue.
type QueueScheduling int

const (
	SchedulingWRR QueueScheduling = iota
	SchedulingStrictPriority
)

var queueSchedulingNames = map[QueueScheduling]string{
	SchedulingWRR:            "WRR",
	SchedulingStrictPriority: "SP",
}

func (q QueueScheduling) String() string { return enumString(queueSchedulingNames, q) }

// ParseQueueScheduling parses the schema name of a QueueScheduling.
func ParseQueueScheduling(s string) (QueueScheduling, error) {
	return parseEnum("queue scheduling", queueSchedulingNames, s)
}

// PortQueue is the configuration of one egress queue. Queues are plain values
// inside the port; they are not nodes of their own.
type PortQueue struct {
	ID            uint8
	Name          string
	Scheduling    QueueScheduling
	Weight        int
	ReservedBytes int64
}

// NeighborState is the resolution state of a neighbor entry.
type NeighborState int

const (
	// NeighborPending entries are known but have no usable link-layer address.
	NeighborPending NeighborState = iota
	// NeighborReachable entries are fully resolved and programmable.
	NeighborReachable
)

var neighborStateNames = map[NeighborState]string{
	NeighborPending:   "PENDING",
	NeighborReachable: "REACHABLE",
}

func (s NeighborState) String() string { return enumString(neighborStateNames, s) }

// ParseNeighborState parses the schema name of a NeighborState.
func ParseNeighborState(s string) (NeighborState, error) {
	return parseEnum("neighbor state", neighborStateNames, s)
}

// MacEntryType distinguishes configured from learned FDB entries.
type MacEntryType int

const (
	MacEntryStatic MacEntryType = iota
	MacEntryDynamic
)

var macEntryTypeNames = map[MacEntryType]string{
	MacEntryStatic:  "STATIC",
	MacEntryDynamic: "DYNAMIC",
}

func (t MacEntryType) String() string { return enumString(macEntryTypeNames, t) }

// ParseMacEntryType parses the schema name of a MacEntryType.
func ParseMacEntryType(s string) (MacEntryType, error) {
	return parseEnum("mac entry type", macEntryTypeNames, s)
}

func enumString[T ~int | ~int64](names map[T]string, v T) string {
	if s, ok := names[v]; ok {
		return s
	}
	return fmt.Sprintf("UNKNOWN(%d)", v)
}

func parseEnum[T ~int | ~int64](kind string, names map[T]string, s string) (T, error) {
	for v, name := range names {
		if strings.EqualFold(name, s) {
			return v, nil
		}
	}
	valid := make([]string, 0, len(names))
	for _, name := range names {
		valid = append(valid, name)
	}
	sort.Strings(valid)
	var zero T
	return zero, fmt.Errorf("invalid %s %q (valid: %s)", kind, s, strings.Join(valid, ", "))
}
