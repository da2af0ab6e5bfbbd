package manager

import (
	"context"
	"strconv"
	"strings"

	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

// RouterInterfaceManager programs one VLAN router interface per
// state.Interface in the default virtual router.
type RouterInterfaceManager struct {
	rifs  *entityManager[sai.ObjectKey, *state.Interface]
	vlans *VlanManager
	vr    sai.OID
}

func newRouterInterfaceManager(api sai.API, vlans *VlanManager, vr sai.OID) *RouterInterfaceManager {
	rm := &RouterInterfaceManager{vlans: vlans, vr: vr}
	rm.rifs = newEntityManager[sai.ObjectKey](EntityRouterInterface, api, binding[*state.Interface]{
		resolved: func(*state.Interface) bool { return true },
		attrs:    rm.rifAttrs,
		createOnly: map[string]bool{
			sai.RouterInterfaceAttrVirtualRouterID: true,
			sai.RouterInterfaceAttrType:            true,
			sai.RouterInterfaceAttrVlanID:          true,
		},
	})
	return rm
}

func rifKey(id state.InterfaceID) sai.ObjectKey {
	return sai.ObjectKey{Type: sai.ObjectTypeRouterInterface, Name: intfName(id)}
}

func intfName(id state.InterfaceID) string { return strconv.FormatUint(uint64(id), 10) }

func (rm *RouterInterfaceManager) rifAttrs(i *state.Interface) (sai.Attributes, error) {
	vlanOID, ok := rm.vlans.VlanOID(i.GetVlanID())
	if !ok {
		return nil, util.NewDependencyError(EntityRouterInterface+" "+intfName(i.GetID()),
			EntityVlan, strconv.Itoa(int(i.GetVlanID())))
	}
	attrs := sai.Attributes{
		sai.RouterInterfaceAttrVirtualRouterID: rm.vr.String(),
		sai.RouterInterfaceAttrType:            sai.RouterInterfaceTypeVlan,
		sai.RouterInterfaceAttrVlanID:          vlanOID.String(),
		sai.RouterInterfaceAttrMtu:             strconv.Itoa(i.GetMtu()),
	}
	if mac := i.GetMac(); !mac.IsZero() {
		attrs[sai.RouterInterfaceAttrSrcMacAddress] = strings.ToUpper(mac.String())
	}
	return attrs, nil
}

// AddInterface programs the router interface of a new interface.
func (rm *RouterInterfaceManager) AddInterface(ctx context.Context, i *state.Interface) error {
	return rm.rifs.add(ctx, rifKey(i.GetID()), i)
}

// RemoveInterface removes the router interface of i. Neighbors behind it
// must be removed first.
func (rm *RouterInterfaceManager) RemoveInterface(ctx context.Context, i *state.Interface) error {
	return rm.rifs.remove(ctx, rifKey(i.GetID()))
}

// ChangeInterface updates MAC and MTU in place. Moving the interface to
// another VLAN recreates the router interface.
func (rm *RouterInterfaceManager) ChangeInterface(ctx context.Context, old, new *state.Interface) error {
	if old.GetID() != new.GetID() {
		return errRekeyed(EntityRouterInterface, intfName(old.GetID()), intfName(new.GetID()))
	}
	return rm.rifs.change(ctx, rifKey(new.GetID()), new)
}

// GetRouterInterface returns the handle of a programmed router interface.
func (rm *RouterInterfaceManager) GetRouterInterface(id state.InterfaceID) (sai.Handle, bool) {
	return rm.rifs.get(rifKey(id))
}

// RouterInterfaceOID returns the OID of a programmed router interface.
func (rm *RouterInterfaceManager) RouterInterfaceOID(id state.InterfaceID) (sai.OID, bool) {
	return rm.rifs.oid(rifKey(id))
}

func (rm *RouterInterfaceManager) restore(i *state.Interface, handles map[string]sai.Handle) (restored, missing int) {
	k := rifKey(i.GetID())
	h, ok := handles[k.String()]
	if !ok || rm.rifs.restore(k, i, h) != nil {
		return 0, 1
	}
	return 1, 0
}
