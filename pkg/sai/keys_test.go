package sai

import (
	"net/netip"
	"testing"

	"github.com/newtron-network/switchd/pkg/util"
)

func TestOIDRoundTrip(t *testing.T) {
	o := NewOID(ObjectTypeVlan, 0x616)
	if got := o.String(); got != "oid:0x26000000000616" {
		t.Errorf("String() = %q", got)
	}
	if o.ObjectType() != ObjectTypeVlan {
		t.Errorf("ObjectType() = %s", o.ObjectType())
	}
	parsed, err := ParseOID(o.String())
	if err != nil || parsed != o {
		t.Errorf("ParseOID(%q) = %v, %v", o, parsed, err)
	}
	for _, bad := range []string{"", "0x26", "oid:0xzz"} {
		if _, err := ParseOID(bad); err == nil {
			t.Errorf("ParseOID(%q) should fail", bad)
		}
	}
}

func TestFdbEntryKeySerialize(t *testing.T) {
	k := FdbEntryKey{
		SwitchID:     NewOID(ObjectTypeSwitch, 0),
		BridgeVlanID: NewOID(ObjectTypeVlan, 0x616),
		MAC:          util.MustParseMAC("52:54:00:ab:cd:ef"),
	}
	want := `{"bvid":"oid:0x26000000000616","mac":"52:54:00:AB:CD:EF","switch_id":"oid:0x21000000000000"}`
	if got := k.Serialize(); got != want {
		t.Errorf("Serialize() =\n  %s\nwant\n  %s", got, want)
	}
}

func TestNeighborEntryKeySerialize(t *testing.T) {
	k := NeighborEntryKey{
		SwitchID:          NewOID(ObjectTypeSwitch, 0),
		RouterInterfaceID: NewOID(ObjectTypeRouterInterface, 5),
		IP:                netip.MustParseAddr("10.1.1.2"),
	}
	want := `{"ip":"10.1.1.2","rif":"oid:0x6000000000005","switch_id":"oid:0x21000000000000"}`
	if got := k.Serialize(); got != want {
		t.Errorf("Serialize() = %s, want %s", got, want)
	}
}

func TestKeyHashDeterministic(t *testing.T) {
	sw := NewOID(ObjectTypeSwitch, 0)
	a := NeighborEntryKey{sw, NewOID(ObjectTypeRouterInterface, 1), netip.MustParseAddr("10.0.0.1")}
	b := NeighborEntryKey{sw, NewOID(ObjectTypeRouterInterface, 1), netip.MustParseAddr("10.0.0.1")}
	if a != b || a.Hash() != b.Hash() {
		t.Error("equal keys must compare and hash equal")
	}

	m := map[NeighborEntryKey]int{a: 1}
	if m[b] != 1 {
		t.Error("key should be usable as a map key")
	}
}

func TestKeyHashDistinguishesFields(t *testing.T) {
	sw := NewOID(ObjectTypeSwitch, 0)
	v1, v2 := NewOID(ObjectTypeVlan, 1), NewOID(ObjectTypeVlan, 2)
	mac := util.MustParseMAC("00:00:00:00:00:01")

	tests := []struct {
		name string
		a, b FdbEntryKey
	}{
		{"bvid", FdbEntryKey{sw, v1, mac}, FdbEntryKey{sw, v2, mac}},
		{"mac", FdbEntryKey{sw, v1, mac}, FdbEntryKey{sw, v1, util.MustParseMAC("00:00:00:00:00:02")}},
		// Swapping field values must not alias.
		{"order", FdbEntryKey{v1, v2, mac}, FdbEntryKey{v2, v1, mac}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.a.Hash() == tt.b.Hash() {
				t.Errorf("%v and %v hash equal", tt.a, tt.b)
			}
			if tt.a.Serialize() == tt.b.Serialize() {
				t.Errorf("%v and %v serialize equal", tt.a, tt.b)
			}
		})
	}

	rif := NewOID(ObjectTypeRouterInterface, 1)
	v4 := NeighborEntryKey{sw, rif, netip.MustParseAddr("10.0.0.1")}
	v6 := NeighborEntryKey{sw, rif, netip.MustParseAddr("::a00:1")}
	if v4.Hash() == v6.Hash() {
		t.Error("IPv4 and IPv6 addresses with the same low bytes hash equal")
	}
}

func TestObjectKey(t *testing.T) {
	a := ObjectKey{ObjectTypePort, "1"}
	b := ObjectKey{ObjectTypeBridgePort, "1"}
	if a.Serialize() != "" {
		t.Error("OID objects have no serialized key")
	}
	if a.Hash() == b.Hash() {
		t.Error("object type must be part of the hash")
	}
	if a.String() != "SAI_OBJECT_TYPE_PORT:1" {
		t.Errorf("String() = %q", a.String())
	}
}

func TestParseObjectType(t *testing.T) {
	for ot, name := range objectTypeNames {
		got, err := ParseObjectType(name)
		if err != nil || got != ot {
			t.Errorf("ParseObjectType(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseObjectType("SAI_OBJECT_TYPE_BOGUS"); err == nil {
		t.Error("expected error for unknown type")
	}
}
