package sai

import (
	"encoding/binary"
	"encoding/json"
	"net/netip"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/newtron-network/switchd/pkg/util"
)

// Key addresses one hardware object. Keys are comparable values so they can
// be used directly as identity-map keys.
type Key interface {
	ObjectType() ObjectType
	// Serialize returns the canonical ASIC_DB key of an entry object, or ""
	// for objects whose identity is an OID allocated on create.
	Serialize() string
	// Hash mixes every field of the key in order.
	Hash() uint64
	String() string
}

// hashCombine is boost::hash_combine widened to 64 bits. It is order
// sensitive, so (a, b) and (b, a) hash differently.
func hashCombine(seed, h uint64) uint64 {
	return seed ^ (h + 0x9e3779b97f4a7c15 + (seed << 6) + (seed >> 2))
}

func hashOID(o OID) uint64 {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(o))
	return xxhash.Sum64(b[:])
}

func hashAddr(a netip.Addr) uint64 {
	// AsSlice keeps IPv4 at 4 bytes, so 10.0.0.1 and ::a00:1 differ.
	return xxhash.Sum64(a.AsSlice())
}

// canonicalJSON renders fields as ASIC_DB does: keys sorted, no spaces.
func canonicalJSON(fields map[string]string) string {
	b, _ := json.Marshal(fields)
	return string(b)
}

// FdbEntryKey addresses a MAC entry within a bridging domain.
type FdbEntryKey struct {
	SwitchID     OID
	BridgeVlanID OID
	MAC          util.MacAddress
}

func (k FdbEntryKey) ObjectType() ObjectType { return ObjectTypeFdbEntry }

func (k FdbEntryKey) Serialize() string {
	return canonicalJSON(map[string]string{
		"bvid":      k.BridgeVlanID.String(),
		"mac":       strings.ToUpper(k.MAC.String()),
		"switch_id": k.SwitchID.String(),
	})
}

func (k FdbEntryKey) Hash() uint64 {
	seed := hashCombine(0, hashOID(k.SwitchID))
	seed = hashCombine(seed, hashOID(k.BridgeVlanID))
	return hashCombine(seed, xxhash.Sum64(k.MAC[:]))
}

func (k FdbEntryKey) String() string {
	return k.ObjectType().String() + ":" + k.Serialize()
}

// NeighborEntryKey addresses a neighbor behind a router interface.
type NeighborEntryKey struct {
	SwitchID          OID
	RouterInterfaceID OID
	IP                netip.Addr
}

func (k NeighborEntryKey) ObjectType() ObjectType { return ObjectTypeNeighborEntry }

func (k NeighborEntryKey) Serialize() string {
	return canonicalJSON(map[string]string{
		"ip":        k.IP.String(),
		"rif":       k.RouterInterfaceID.String(),
		"switch_id": k.SwitchID.String(),
	})
}

func (k NeighborEntryKey) Hash() uint64 {
	seed := hashCombine(0, hashOID(k.SwitchID))
	seed = hashCombine(seed, hashOID(k.RouterInterfaceID))
	return hashCombine(seed, hashAddr(k.IP))
}

func (k NeighborEntryKey) String() string {
	return k.ObjectType().String() + ":" + k.Serialize()
}

// ObjectKey is the software identity of an OID-addressed object, such as
// "port 12" or "vlan member 100/12". The hardware knows the object only by
// the OID returned from Create.
type ObjectKey struct {
	Type ObjectType
	Name string
}

func (k ObjectKey) ObjectType() ObjectType { return k.Type }

func (k ObjectKey) Serialize() string { return "" }

func (k ObjectKey) Hash() uint64 {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(k.Type))
	return hashCombine(xxhash.Sum64(b[:]), xxhash.Sum64String(k.Name))
}

func (k ObjectKey) String() string {
	return k.Type.String() + ":" + k.Name
}
