//go:build integration

package asicdb_test

import (
	"errors"
	"testing"

	"github.com/newtron-network/switchd/internal/testutil"
	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/sai/asicdb"
	"github.com/newtron-network/switchd/pkg/util"
)

func connectedClient(t *testing.T) *asicdb.Client {
	t.Helper()
	testutil.SkipIfNoRedis(t)
	testutil.SetupASICDB(t)

	c := asicdb.New(testutil.RedisAddr(), testutil.ASICDB)
	t.Cleanup(func() { c.Close() })
	if err := c.Connect(testutil.Context(t)); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	return c
}

func TestConnectDiscoversSwitch(t *testing.T) {
	c := connectedClient(t)

	if got := c.SwitchID().String(); got != "oid:0x21000000000000" {
		t.Errorf("SwitchID() = %s", got)
	}
	if got := c.DefaultVirtualRouter().String(); got != "oid:0x3000000000022" {
		t.Errorf("DefaultVirtualRouter() = %s", got)
	}
}

func TestCreateOIDObject(t *testing.T) {
	c := connectedClient(t)
	ctx := testutil.Context(t)

	h, err := c.Create(ctx, sai.ObjectKey{Type: sai.ObjectTypeVlan, Name: "100"},
		sai.Attributes{sai.VlanAttrVlanID: "100"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	oid, err := h.OID()
	if err != nil {
		t.Fatal(err)
	}
	if oid.ObjectType() != sai.ObjectTypeVlan {
		t.Errorf("allocated OID %s has type %s", oid, oid.ObjectType())
	}

	vals := testutil.ReadObject(t, h.Type.String(), h.ID)
	if vals[sai.VlanAttrVlanID] != "100" {
		t.Errorf("ASIC_DB hash = %v", vals)
	}
}

func TestCreateEntryDuplicate(t *testing.T) {
	c := connectedClient(t)
	ctx := testutil.Context(t)

	key := sai.FdbEntryKey{
		SwitchID:     c.SwitchID(),
		BridgeVlanID: sai.NewOID(sai.ObjectTypeVlan, 1),
		MAC:          util.MustParseMAC("00:11:22:33:44:55"),
	}
	attrs := sai.Attributes{sai.FdbEntryAttrType: sai.FdbEntryTypeStatic}
	if _, err := c.Create(ctx, key, attrs); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := c.Create(ctx, key, attrs); !errors.Is(err, sai.ErrObjectExists) {
		t.Errorf("duplicate Create = %v, want ErrObjectExists", err)
	}
}

func TestEmptyObjectUsesNullSentinel(t *testing.T) {
	c := connectedClient(t)
	ctx := testutil.Context(t)

	h, err := c.Create(ctx, sai.ObjectKey{Type: sai.ObjectTypeBridge, Name: "dot1q"}, nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	vals := testutil.ReadObject(t, h.Type.String(), h.ID)
	if vals["NULL"] != "NULL" {
		t.Errorf("empty object hash = %v, want NULL sentinel", vals)
	}

	attrs, err := c.Attributes(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	if len(attrs) != 0 {
		t.Errorf("Attributes() = %v, want none", attrs)
	}
}

func TestSetGetRemove(t *testing.T) {
	c := connectedClient(t)
	ctx := testutil.Context(t)

	h, err := c.Create(ctx, sai.ObjectKey{Type: sai.ObjectTypePort, Name: "1"},
		sai.Attributes{sai.PortAttrAdminState: "false"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := c.SetAttribute(ctx, h, sai.PortAttrAdminState, "true"); err != nil {
		t.Fatalf("SetAttribute: %v", err)
	}
	if v, err := c.GetAttribute(ctx, h, sai.PortAttrAdminState); err != nil || v != "true" {
		t.Errorf("admin state = %q, %v", v, err)
	}
	if _, err := c.GetAttribute(ctx, h, sai.PortAttrMtu); !errors.Is(err, sai.ErrUnknownAttribute) {
		t.Errorf("GetAttribute(unset) = %v", err)
	}

	handles, err := c.Objects(ctx, sai.ObjectTypePort)
	if err != nil {
		t.Fatal(err)
	}
	if len(handles) != 1 || handles[0] != h {
		t.Errorf("Objects(PORT) = %v", handles)
	}

	if err := c.Remove(ctx, h); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := c.Remove(ctx, h); !errors.Is(err, sai.ErrUnknownHandle) {
		t.Errorf("second Remove = %v, want ErrUnknownHandle", err)
	}
	if err := c.SetAttribute(ctx, h, sai.PortAttrMtu, "9100"); !errors.Is(err, sai.ErrUnknownHandle) {
		t.Errorf("SetAttribute after Remove = %v", err)
	}
}
