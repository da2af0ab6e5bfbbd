package manager

import (
	"context"
	"errors"
	"strings"

	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

// NeighborManager programs ARP and NDP entries. An entry whose MAC is not
// yet known is tracked as unresolved and has no hardware row.
type NeighborManager struct {
	entries  *entityManager[sai.NeighborEntryKey, *state.NeighborEntry]
	rifs     *RouterInterfaceManager
	switchID sai.OID
}

func newNeighborManager(api sai.API, rifs *RouterInterfaceManager, switchID sai.OID) *NeighborManager {
	return &NeighborManager{
		entries: newEntityManager[sai.NeighborEntryKey](EntityNeighbor, api, binding[*state.NeighborEntry]{
			resolved: func(e *state.NeighborEntry) bool { return !e.IsPending() },
			attrs:    neighborAttrs,
		}),
		rifs:     rifs,
		switchID: switchID,
	}
}

func neighborAttrs(e *state.NeighborEntry) (sai.Attributes, error) {
	return sai.Attributes{
		sai.NeighborEntryAttrDstMacAddress: strings.ToUpper(e.GetMac().String()),
	}, nil
}

// SaiEntryFromSwEntry derives the hardware key of a neighbor entry. It
// only needs the router interface of the entry's interface to be
// programmed; the entry itself need not be known.
func (nm *NeighborManager) SaiEntryFromSwEntry(e *state.NeighborEntry) (sai.NeighborEntryKey, error) {
	rif, ok := nm.rifs.RouterInterfaceOID(e.GetInterfaceID())
	if !ok {
		return sai.NeighborEntryKey{}, util.NewDependencyError(EntityNeighbor+" "+e.GetIP().String(),
			EntityRouterInterface, intfName(e.GetInterfaceID()))
	}
	return sai.NeighborEntryKey{SwitchID: nm.switchID, RouterInterfaceID: rif, IP: e.GetIP()}, nil
}

// AddNeighbor makes a neighbor live, programming it if it is resolved. It
// fails with a DuplicateEntryError if the key is already live.
func (nm *NeighborManager) AddNeighbor(ctx context.Context, e *state.NeighborEntry) error {
	k, err := nm.SaiEntryFromSwEntry(e)
	if err != nil {
		return err
	}
	return nm.entries.add(ctx, k, e)
}

// RemoveNeighbor drops a live neighbor, removing its hardware row first.
// It fails with a NotFoundError if the key is not live.
func (nm *NeighborManager) RemoveNeighbor(ctx context.Context, e *state.NeighborEntry) error {
	k, err := nm.SaiEntryFromSwEntry(e)
	if err != nil {
		return err
	}
	return nm.entries.remove(ctx, k)
}

// ChangeNeighbor moves a live neighbor from old to new. A MAC change is an
// attribute update; resolution and expiry create and remove the row.
func (nm *NeighborManager) ChangeNeighbor(ctx context.Context, old, new *state.NeighborEntry) error {
	oldKey, err := nm.SaiEntryFromSwEntry(old)
	if err != nil {
		return err
	}
	newKey, err := nm.SaiEntryFromSwEntry(new)
	if err != nil {
		return err
	}
	if oldKey == newKey {
		return nm.entries.change(ctx, newKey, new)
	}
	if err := nm.entries.remove(ctx, oldKey); err != nil {
		return err
	}
	return nm.entries.add(ctx, newKey, new)
}

// GetNeighbor returns the hardware handle of a programmed neighbor. Keys
// that are unknown or unresolved report false.
func (nm *NeighborManager) GetNeighbor(k sai.NeighborEntryKey) (sai.Handle, bool) {
	return nm.entries.get(k)
}

// HasNeighbor reports whether k is live, resolved or not.
func (nm *NeighborManager) HasNeighbor(k sai.NeighborEntryKey) bool {
	return nm.entries.live(k)
}

// Len returns the number of live neighbors.
func (nm *NeighborManager) Len() int { return nm.entries.size() }

func (nm *NeighborManager) ensureNeighbor(ctx context.Context, e *state.NeighborEntry) error {
	k, err := nm.SaiEntryFromSwEntry(e)
	if err != nil {
		return err
	}
	return nm.entries.ensure(ctx, k, e)
}

func (nm *NeighborManager) ensureNeighborAbsent(ctx context.Context, e *state.NeighborEntry) error {
	k, err := nm.SaiEntryFromSwEntry(e)
	if errors.Is(err, util.ErrDependencyMissing) {
		// Without its router interface the entry cannot be live.
		return nil
	}
	if err != nil {
		return err
	}
	return nm.entries.ensureAbsent(ctx, k)
}

func (nm *NeighborManager) restore(e *state.NeighborEntry, handles map[string]sai.Handle) (restored, missing int) {
	k, err := nm.SaiEntryFromSwEntry(e)
	if err != nil {
		return 0, 1
	}
	h, ok := handles[k.String()]
	if !ok && !e.IsPending() {
		return 0, 1
	}
	if nm.entries.restore(k, e, h) != nil {
		return 0, 1
	}
	return 1, 0
}
