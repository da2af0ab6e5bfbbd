package manager

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"testing"

	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/sai/fakesai"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

// neighborTable returns a table with interface 100 programmed and no
// neighbors.
func neighborTable(t *testing.T) (*ManagerTable, *fakesai.Switch) {
	t.Helper()
	mt, hw := newTable(t)
	ctx := context.Background()
	v := state.NewVlan(100, "v100")
	if err := mt.Vlans().AddVlan(ctx, v); err != nil {
		t.Fatal(err)
	}
	intf := state.NewInterface(100, 100, "Vlan100", util.MustParseMAC("02:00:00:00:01:00"))
	if err := mt.RouterInterfaces().AddInterface(ctx, intf); err != nil {
		t.Fatal(err)
	}
	return mt, hw
}

func dstMac(t *testing.T, hw *fakesai.Switch, h sai.Handle) util.MacAddress {
	t.Helper()
	v, err := hw.GetAttribute(context.Background(), h, sai.NeighborEntryAttrDstMacAddress)
	if err != nil {
		t.Fatal(err)
	}
	mac, err := util.ParseMAC(v)
	if err != nil {
		t.Fatal(err)
	}
	return mac
}

func TestGetNeighborNeverAdded(t *testing.T) {
	mt, _ := neighborTable(t)
	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "fe80::1"} {
		k := neighborKey(t, mt, state.NewPendingNeighbor(netip.MustParseAddr(ip), 100))
		if h, ok := mt.Neighbors().GetNeighbor(k); ok {
			t.Errorf("GetNeighbor(%s) = %v, want absent", ip, h)
		}
		if mt.Neighbors().HasNeighbor(k) {
			t.Errorf("HasNeighbor(%s) = true", ip)
		}
	}
}

func TestAddRemoveResolvedNeighbor(t *testing.T) {
	mt, hw := neighborTable(t)
	ctx := context.Background()
	e := state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100)
	k := neighborKey(t, mt, e)

	if err := mt.Neighbors().AddNeighbor(ctx, e); err != nil {
		t.Fatalf("AddNeighbor: %v", err)
	}
	h, ok := mt.Neighbors().GetNeighbor(k)
	if !ok {
		t.Fatal("GetNeighbor: entry not programmed")
	}
	if got := dstMac(t, hw, h); got != hostMAC {
		t.Errorf("hardware dst mac = %s, want %s", got, hostMAC)
	}

	if err := mt.Neighbors().RemoveNeighbor(ctx, e); err != nil {
		t.Fatalf("RemoveNeighbor: %v", err)
	}
	if _, ok := mt.Neighbors().GetNeighbor(k); ok {
		t.Error("GetNeighbor after remove should be absent")
	}
	if hw.Count(sai.ObjectTypeNeighborEntry) != 0 {
		t.Error("hardware row should be gone")
	}
	if !mt.Consistent() {
		t.Error("identity maps diverged")
	}
}

func TestAddDuplicateNeighbor(t *testing.T) {
	tests := []struct {
		name   string
		first  *state.NeighborEntry
		second *state.NeighborEntry
	}{
		{"same resolved entry", state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100), state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100)},
		{"different mac", state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100), state.NewResolvedNeighbor(hostIP, otherMAC, 2, 100)},
		{"unresolved twice", state.NewPendingNeighbor(hostIP, 100), state.NewPendingNeighbor(hostIP, 100)},
		{"resolved over unresolved", state.NewPendingNeighbor(hostIP, 100), state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mt, hw := neighborTable(t)
			ctx := context.Background()
			if err := mt.Neighbors().AddNeighbor(ctx, tt.first); err != nil {
				t.Fatal(err)
			}
			creates := hw.Calls(fakesai.OpCreate)

			err := mt.Neighbors().AddNeighbor(ctx, tt.second)
			if !errors.Is(err, util.ErrDuplicateEntry) {
				t.Fatalf("second AddNeighbor = %v, want ErrDuplicateEntry", err)
			}
			if hw.Calls(fakesai.OpCreate) != creates {
				t.Error("duplicate add must not reach hardware")
			}

			k := neighborKey(t, mt, tt.first)
			h, ok := mt.Neighbors().GetNeighbor(k)
			if tt.first.IsPending() {
				if ok {
					t.Error("unresolved entry must not be programmed")
				}
				return
			}
			if !ok || dstMac(t, hw, h) != tt.first.GetMac() {
				t.Error("first entry should remain programmed unchanged")
			}
		})
	}
}

func TestRemoveNeighborNeverAdded(t *testing.T) {
	mt, _ := neighborTable(t)
	err := mt.Neighbors().RemoveNeighbor(context.Background(), state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100))
	if !errors.Is(err, util.ErrNotFound) {
		t.Errorf("RemoveNeighbor = %v, want ErrNotFound", err)
	}
	var nf *util.NotFoundError
	if !errors.As(err, &nf) || nf.Resource != EntityNeighbor {
		t.Errorf("error %v should be a neighbor NotFoundError", err)
	}
}

func TestUnresolvedNeighborLifecycle(t *testing.T) {
	mt, hw := neighborTable(t)
	ctx := context.Background()
	nm := mt.Neighbors()

	pending := state.NewPendingNeighbor(hostIP, 100)
	k := neighborKey(t, mt, pending)
	creates := hw.Calls(fakesai.OpCreate)

	if err := nm.AddNeighbor(ctx, pending); err != nil {
		t.Fatal(err)
	}
	if hw.Calls(fakesai.OpCreate) != creates {
		t.Fatal("unresolved add must not call create")
	}
	if !nm.HasNeighbor(k) {
		t.Fatal("unresolved entry should be live")
	}
	if _, ok := nm.GetNeighbor(k); ok {
		t.Fatal("unresolved entry has no handle")
	}

	// unresolved -> resolved
	resolved := state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100)
	if err := nm.ChangeNeighbor(ctx, pending, resolved); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	h, ok := nm.GetNeighbor(k)
	if !ok || dstMac(t, hw, h) != hostMAC {
		t.Fatal("resolved entry should be programmed with its mac")
	}

	// resolved -> resolved with a new MAC is an attribute update
	moved := state.NewResolvedNeighbor(hostIP, otherMAC, 2, 100)
	creates = hw.Calls(fakesai.OpCreate)
	if err := nm.ChangeNeighbor(ctx, resolved, moved); err != nil {
		t.Fatalf("mac change: %v", err)
	}
	if hw.Calls(fakesai.OpCreate) != creates {
		t.Error("mac change should not recreate the row")
	}
	if h2, _ := nm.GetNeighbor(k); h2 != h || dstMac(t, hw, h2) != otherMAC {
		t.Error("mac change should update the existing row")
	}

	// resolved -> unresolved
	if err := nm.ChangeNeighbor(ctx, moved, state.NewPendingNeighbor(hostIP, 100)); err != nil {
		t.Fatalf("unresolve: %v", err)
	}
	if _, ok := nm.GetNeighbor(k); ok {
		t.Error("unresolved entry should have no handle")
	}
	if !nm.HasNeighbor(k) || hw.Count(sai.ObjectTypeNeighborEntry) != 0 {
		t.Error("entry should stay live in software only")
	}

	// unresolved -> absent: no hardware call
	removes := hw.Calls(fakesai.OpRemove)
	if err := nm.RemoveNeighbor(ctx, pending); err != nil {
		t.Fatal(err)
	}
	if hw.Calls(fakesai.OpRemove) != removes {
		t.Error("removing an unresolved entry must not call remove")
	}
	if nm.HasNeighbor(k) {
		t.Error("entry should be absent")
	}
}

func TestChangeNeighborNotFound(t *testing.T) {
	mt, _ := neighborTable(t)
	e := state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100)
	if err := mt.Neighbors().ChangeNeighbor(context.Background(), e, e); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("ChangeNeighbor = %v, want ErrNotFound", err)
	}
}

func TestNeighborHardwareRejection(t *testing.T) {
	mt, hw := neighborTable(t)
	ctx := context.Background()
	full := errors.New("neighbor table full")
	hw.FailNext(fakesai.OpCreate, sai.ObjectTypeNeighborEntry, full)

	e := state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100)
	err := mt.Neighbors().AddNeighbor(ctx, e)
	if !errors.Is(err, util.ErrHardwareRejected) || !errors.Is(err, full) {
		t.Fatalf("AddNeighbor = %v, want HardwareRejected wrapping the backend error", err)
	}
	var hwErr *util.HardwareError
	if !errors.As(err, &hwErr) || hwErr.Op != "create" {
		t.Errorf("error should carry the attempted operation: %v", err)
	}
	k := neighborKey(t, mt, e)
	if mt.Neighbors().HasNeighbor(k) {
		t.Error("failed create must not be recorded")
	}

	// The same add succeeds once the hardware recovers.
	if err := mt.Neighbors().AddNeighbor(ctx, e); err != nil {
		t.Fatalf("retry: %v", err)
	}

	hw.FailNext(fakesai.OpRemove, sai.ObjectTypeNeighborEntry, errors.New("busy"))
	if err := mt.Neighbors().RemoveNeighbor(ctx, e); !errors.Is(err, util.ErrHardwareRejected) {
		t.Fatalf("RemoveNeighbor = %v, want HardwareRejected", err)
	}
	if _, ok := mt.Neighbors().GetNeighbor(k); !ok {
		t.Error("failed remove must leave the entry programmed and recorded")
	}
	if !mt.Consistent() {
		t.Error("identity maps diverged")
	}
}

// preexisting writes a neighbor row straight into hardware, as a previous
// run or another writer would have left it.
func preexisting(t *testing.T, mt *ManagerTable, hw *fakesai.Switch, mac util.MacAddress) (sai.NeighborEntryKey, sai.Handle) {
	t.Helper()
	k := neighborKey(t, mt, state.NewPendingNeighbor(hostIP, 100))
	h, err := hw.Create(context.Background(), k, sai.Attributes{
		sai.NeighborEntryAttrDstMacAddress: strings.ToUpper(mac.String()),
	})
	if err != nil {
		t.Fatal(err)
	}
	return k, h
}

func TestAddNeighborOverExistingRow(t *testing.T) {
	mt, hw := neighborTable(t)
	ctx := context.Background()
	k, h := preexisting(t, mt, hw, otherMAC)

	err := mt.Neighbors().AddNeighbor(ctx, state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100))
	if !errors.Is(err, sai.ErrObjectExists) || !errors.Is(err, util.ErrHardwareRejected) {
		t.Fatalf("AddNeighbor = %v, want HardwareRejected wrapping ErrObjectExists", err)
	}
	var hwErr *util.HardwareError
	if !errors.As(err, &hwErr) || hwErr.Op != "create" {
		t.Errorf("error should carry the create operation: %v", err)
	}
	if got := dstMac(t, hw, h); got != otherMAC {
		t.Errorf("existing row dst mac = %s, want it untouched at %s", got, otherMAC)
	}
	if _, ok := mt.Neighbors().GetNeighbor(k); ok {
		t.Error("rejected add must not be recorded")
	}
	if mt.Neighbors().HasNeighbor(k) || !mt.Consistent() {
		t.Error("identity maps must be unchanged")
	}
}

func TestEnsureNeighborAdoptsExistingRow(t *testing.T) {
	mt, hw := neighborTable(t)
	ctx := context.Background()
	k, h := preexisting(t, mt, hw, otherMAC)

	if err := mt.Neighbors().ensureNeighbor(ctx, state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100)); err != nil {
		t.Fatalf("ensureNeighbor: %v", err)
	}
	got, ok := mt.Neighbors().GetNeighbor(k)
	if !ok || got != h {
		t.Fatalf("GetNeighbor = %v, %v, want the existing row %v", got, ok, h)
	}
	if mac := dstMac(t, hw, h); mac != hostMAC {
		t.Errorf("adopted row dst mac = %s, want %s", mac, hostMAC)
	}
	if hw.Count(sai.ObjectTypeNeighborEntry) != 1 || !mt.Consistent() {
		t.Error("adoption must not add a second row")
	}
}

func TestSaiEntryFromSwEntry(t *testing.T) {
	mt, hw := neighborTable(t)
	e := state.NewResolvedNeighbor(hostIP, hostMAC, 1, 100)

	k1, err := mt.Neighbors().SaiEntryFromSwEntry(e)
	if err != nil {
		t.Fatal(err)
	}
	k2, _ := mt.Neighbors().SaiEntryFromSwEntry(state.NewPendingNeighbor(hostIP, 100))
	if k1 != k2 {
		t.Error("key must depend only on identity fields")
	}
	if k1.SwitchID != hw.SwitchID() || k1.IP != hostIP {
		t.Errorf("unexpected key %v", k1)
	}
	if mt.Neighbors().Len() != 0 {
		t.Error("deriving a key must not create an entry")
	}

	_, err = mt.Neighbors().SaiEntryFromSwEntry(state.NewPendingNeighbor(hostIP, 999))
	if !errors.Is(err, util.ErrDependencyMissing) {
		t.Errorf("unknown interface = %v, want ErrDependencyMissing", err)
	}
}

func TestConcurrentNeighborAccess(t *testing.T) {
	mt, _ := neighborTable(t)
	ctx := context.Background()
	nm := mt.Neighbors()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ip := netip.MustParseAddr(fmt.Sprintf("10.0.1.%d", i+1))
			e := state.NewResolvedNeighbor(ip, hostMAC, 1, 100)
			if err := nm.AddNeighbor(ctx, e); err != nil {
				t.Errorf("AddNeighbor(%s): %v", ip, err)
				return
			}
			k, _ := nm.SaiEntryFromSwEntry(e)
			if _, ok := nm.GetNeighbor(k); !ok {
				t.Errorf("GetNeighbor(%s) absent after add", ip)
			}
		}(i)
	}
	wg.Wait()

	if nm.Len() != 32 || !mt.Consistent() {
		t.Errorf("Len() = %d, consistent = %v", nm.Len(), mt.Consistent())
	}
}
