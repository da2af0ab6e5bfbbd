// Package sai defines the contract between the switch agent and the
// forwarding hardware: object types, object identifiers, handles,
// attributes and the keys that address hardware rows.
//
// Object and attribute names follow the SAI naming used by ASIC_DB, so a
// handle or attribute read from a backend can be compared directly with
// what syncd on a SONiC box would show.
package sai

import (
	"fmt"
	"strconv"
	"strings"
)

// OID is an opaque hardware object identifier. The object type is carried
// in bits 48-55, the way SAI packs virtual OIDs.
type OID uint64

// NullOID is the SAI null object id.
const NullOID OID = 0

const oidTypeShift = 48

// NewOID packs an object type and a per-switch counter into an OID.
func NewOID(t ObjectType, index uint64) OID {
	return OID(uint64(t)<<oidTypeShift | index&(1<<oidTypeShift-1))
}

// ObjectType returns the type encoded in the OID.
func (o OID) ObjectType() ObjectType {
	return ObjectType(uint64(o) >> oidTypeShift & 0xff)
}

// String formats the OID as ASIC_DB does ("oid:0x21000000000000").
func (o OID) String() string {
	return fmt.Sprintf("oid:0x%x", uint64(o))
}

// ParseOID parses the ASIC_DB string form of an OID.
func ParseOID(s string) (OID, error) {
	hex, ok := strings.CutPrefix(s, "oid:0x")
	if !ok {
		return NullOID, fmt.Errorf("invalid oid %q", s)
	}
	v, err := strconv.ParseUint(hex, 16, 64)
	if err != nil {
		return NullOID, fmt.Errorf("invalid oid %q: %w", s, err)
	}
	return OID(v), nil
}

// ObjectType identifies a kind of hardware object. Values match
// sai_object_type_t.
type ObjectType int

const (
	ObjectTypeNull            ObjectType = 0
	ObjectTypePort            ObjectType = 1
	ObjectTypeVirtualRouter   ObjectType = 3
	ObjectTypeRouterInterface ObjectType = 6
	ObjectTypeNeighborEntry   ObjectType = 32
	ObjectTypeSwitch          ObjectType = 33
	ObjectTypeFdbEntry        ObjectType = 36
	ObjectTypeVlan            ObjectType = 38
	ObjectTypeVlanMember      ObjectType = 39
	ObjectTypeBridge          ObjectType = 57
	ObjectTypeBridgePort      ObjectType = 58
)

var objectTypeNames = map[ObjectType]string{
	ObjectTypeNull:            "SAI_OBJECT_TYPE_NULL",
	ObjectTypePort:            "SAI_OBJECT_TYPE_PORT",
	ObjectTypeVirtualRouter:   "SAI_OBJECT_TYPE_VIRTUAL_ROUTER",
	ObjectTypeRouterInterface: "SAI_OBJECT_TYPE_ROUTER_INTERFACE",
	ObjectTypeNeighborEntry:   "SAI_OBJECT_TYPE_NEIGHBOR_ENTRY",
	ObjectTypeSwitch:          "SAI_OBJECT_TYPE_SWITCH",
	ObjectTypeFdbEntry:        "SAI_OBJECT_TYPE_FDB_ENTRY",
	ObjectTypeVlan:            "SAI_OBJECT_TYPE_VLAN",
	ObjectTypeVlanMember:      "SAI_OBJECT_TYPE_VLAN_MEMBER",
	ObjectTypeBridge:          "SAI_OBJECT_TYPE_BRIDGE",
	ObjectTypeBridgePort:      "SAI_OBJECT_TYPE_BRIDGE_PORT",
}

func (t ObjectType) String() string {
	if s, ok := objectTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("SAI_OBJECT_TYPE_UNKNOWN(%d)", int(t))
}

// ParseObjectType parses a SAI_OBJECT_TYPE_* name.
func ParseObjectType(s string) (ObjectType, error) {
	for t, name := range objectTypeNames {
		if name == s {
			return t, nil
		}
	}
	return ObjectTypeNull, fmt.Errorf("unknown object type %q", s)
}

// MarshalText encodes the type by its SAI name.
func (t ObjectType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a SAI_OBJECT_TYPE_* name.
func (t *ObjectType) UnmarshalText(b []byte) error {
	v, err := ParseObjectType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

// IsEntry reports whether objects of this type are addressed by a
// serialized key instead of an allocated OID.
func (t ObjectType) IsEntry() bool {
	return t == ObjectTypeFdbEntry || t == ObjectTypeNeighborEntry
}

// Handle identifies a programmed hardware object. ID is the OID string for
// OID objects and the serialized entry key for entry objects.
type Handle struct {
	Type ObjectType `json:"type"`
	ID   string     `json:"id"`
}

// IsZero reports whether h is the empty handle.
func (h Handle) IsZero() bool { return h == Handle{} }

// OID returns the object id of an OID-addressed handle.
func (h Handle) OID() (OID, error) {
	if h.Type.IsEntry() {
		return NullOID, fmt.Errorf("%s handles have no oid", h.Type)
	}
	return ParseOID(h.ID)
}

func (h Handle) String() string {
	return h.Type.String() + ":" + h.ID
}

// Attributes maps SAI attribute names to their ASIC_DB string values.
type Attributes map[string]string

// Clone returns a copy of a.
func (a Attributes) Clone() Attributes {
	out := make(Attributes, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
