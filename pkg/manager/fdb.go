package manager

import (
	"context"
	"errors"
	"strconv"

	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

// FdbManager programs MAC entries. An entry without an egress port is
// tracked as unresolved.
type FdbManager struct {
	entries  *entityManager[sai.FdbEntryKey, *state.MacEntry]
	vlans    *VlanManager
	ports    *PortManager
	switchID sai.OID
}

func newFdbManager(api sai.API, vlans *VlanManager, ports *PortManager, switchID sai.OID) *FdbManager {
	fm := &FdbManager{vlans: vlans, ports: ports, switchID: switchID}
	fm.entries = newEntityManager[sai.FdbEntryKey](EntityFdb, api, binding[*state.MacEntry]{
		resolved: func(e *state.MacEntry) bool { return !e.IsPending() },
		attrs:    fm.fdbAttrs,
	})
	return fm
}

func (fm *FdbManager) fdbAttrs(e *state.MacEntry) (sai.Attributes, error) {
	bridgePort, ok := fm.ports.BridgePortOID(e.GetPort())
	if !ok {
		return nil, util.NewDependencyError(EntityFdb+" "+e.GetMac().String(), EntityBridgePort, portName(e.GetPort()))
	}
	typ := sai.FdbEntryTypeDynamic
	if e.GetType() == state.MacEntryStatic {
		typ = sai.FdbEntryTypeStatic
	}
	return sai.Attributes{
		sai.FdbEntryAttrType:         typ,
		sai.FdbEntryAttrBridgePortID: bridgePort.String(),
		sai.FdbEntryAttrPacketAction: sai.PacketActionForward,
	}, nil
}

// SaiEntryFromSwEntry derives the hardware key of a MAC entry in vlan. The
// VLAN must be programmed, since its OID is the bridging domain.
func (fm *FdbManager) SaiEntryFromSwEntry(vlan state.VlanID, e *state.MacEntry) (sai.FdbEntryKey, error) {
	bvid, ok := fm.vlans.VlanOID(vlan)
	if !ok {
		return sai.FdbEntryKey{}, util.NewDependencyError(EntityFdb+" "+e.GetMac().String(),
			EntityVlan, strconv.Itoa(int(vlan)))
	}
	return sai.FdbEntryKey{SwitchID: fm.switchID, BridgeVlanID: bvid, MAC: e.GetMac()}, nil
}

// AddMacEntry makes a MAC entry live. It fails with a DuplicateEntryError
// if the key is already live.
func (fm *FdbManager) AddMacEntry(ctx context.Context, vlan state.VlanID, e *state.MacEntry) error {
	k, err := fm.SaiEntryFromSwEntry(vlan, e)
	if err != nil {
		return err
	}
	return fm.entries.add(ctx, k, e)
}

// RemoveMacEntry drops a live MAC entry. It fails with a NotFoundError if
// the key is not live.
func (fm *FdbManager) RemoveMacEntry(ctx context.Context, vlan state.VlanID, e *state.MacEntry) error {
	k, err := fm.SaiEntryFromSwEntry(vlan, e)
	if err != nil {
		return err
	}
	return fm.entries.remove(ctx, k)
}

// ChangeMacEntry applies a port or type change to a live MAC entry. When
// old and new carry different MACs the old entry is removed and the new one
// added.
func (fm *FdbManager) ChangeMacEntry(ctx context.Context, vlan state.VlanID, old, new *state.MacEntry) error {
	oldKey, err := fm.SaiEntryFromSwEntry(vlan, old)
	if err != nil {
		return err
	}
	newKey, err := fm.SaiEntryFromSwEntry(vlan, new)
	if err != nil {
		return err
	}
	if oldKey == newKey {
		return fm.entries.change(ctx, newKey, new)
	}
	if err := fm.entries.remove(ctx, oldKey); err != nil {
		return err
	}
	return fm.entries.add(ctx, newKey, new)
}

// GetFdbEntry returns the hardware handle of a programmed MAC entry.
func (fm *FdbManager) GetFdbEntry(k sai.FdbEntryKey) (sai.Handle, bool) {
	return fm.entries.get(k)
}

// HasFdbEntry reports whether k is live, resolved or not.
func (fm *FdbManager) HasFdbEntry(k sai.FdbEntryKey) bool {
	return fm.entries.live(k)
}

// Len returns the number of live MAC entries.
func (fm *FdbManager) Len() int { return fm.entries.size() }

func (fm *FdbManager) ensureMacEntry(ctx context.Context, vlan state.VlanID, e *state.MacEntry) error {
	k, err := fm.SaiEntryFromSwEntry(vlan, e)
	if err != nil {
		return err
	}
	return fm.entries.ensure(ctx, k, e)
}

func (fm *FdbManager) ensureMacEntryAbsent(ctx context.Context, vlan state.VlanID, e *state.MacEntry) error {
	k, err := fm.SaiEntryFromSwEntry(vlan, e)
	if errors.Is(err, util.ErrDependencyMissing) {
		return nil
	}
	if err != nil {
		return err
	}
	return fm.entries.ensureAbsent(ctx, k)
}

func (fm *FdbManager) restore(vlan state.VlanID, e *state.MacEntry, handles map[string]sai.Handle) (restored, missing int) {
	k, err := fm.SaiEntryFromSwEntry(vlan, e)
	if err != nil {
		return 0, 1
	}
	h, ok := handles[k.String()]
	if !ok && !e.IsPending() {
		return 0, 1
	}
	if fm.entries.restore(k, e, h) != nil {
		return 0, 1
	}
	return 1, 0
}
