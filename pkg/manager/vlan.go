package manager

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

// vlanMember is one port's membership in one VLAN.
type vlanMember struct {
	vlan   state.VlanID
	port   state.PortID
	tagged bool
}

// VlanManager programs VLANs and their member ports.
type VlanManager struct {
	vlans   *entityManager[sai.ObjectKey, *state.Vlan]
	members *entityManager[sai.ObjectKey, vlanMember]
	ports   *PortManager
}

func newVlanManager(api sai.API, ports *PortManager) *VlanManager {
	vm := &VlanManager{ports: ports}
	vm.vlans = newEntityManager[sai.ObjectKey](EntityVlan, api, binding[*state.Vlan]{
		resolved:   func(*state.Vlan) bool { return true },
		attrs:      vlanAttrs,
		createOnly: map[string]bool{sai.VlanAttrVlanID: true},
	})
	vm.members = newEntityManager[sai.ObjectKey](EntityVlanMember, api, binding[vlanMember]{
		resolved: func(vlanMember) bool { return true },
		attrs:    vm.memberAttrs,
		createOnly: map[string]bool{
			sai.VlanMemberAttrVlanID:       true,
			sai.VlanMemberAttrBridgePortID: true,
		},
	})
	return vm
}

func vlanKey(id state.VlanID) sai.ObjectKey {
	return sai.ObjectKey{Type: sai.ObjectTypeVlan, Name: strconv.Itoa(int(id))}
}

func memberKey(vlan state.VlanID, port state.PortID) sai.ObjectKey {
	return sai.ObjectKey{Type: sai.ObjectTypeVlanMember, Name: fmt.Sprintf("%d|%d", vlan, port)}
}

func vlanAttrs(v *state.Vlan) (sai.Attributes, error) {
	return sai.Attributes{sai.VlanAttrVlanID: strconv.Itoa(int(v.GetID()))}, nil
}

func (vm *VlanManager) memberAttrs(m vlanMember) (sai.Attributes, error) {
	res := fmt.Sprintf("%s %d|%d", EntityVlanMember, m.vlan, m.port)
	vlanOID, ok := vm.vlans.oid(vlanKey(m.vlan))
	if !ok {
		return nil, util.NewDependencyError(res, EntityVlan, strconv.Itoa(int(m.vlan)))
	}
	bridgePort, ok := vm.ports.BridgePortOID(m.port)
	if !ok {
		return nil, util.NewDependencyError(res, EntityBridgePort, portName(m.port))
	}
	mode := sai.VlanTaggingModeUntagged
	if m.tagged {
		mode = sai.VlanTaggingModeTagged
	}
	return sai.Attributes{
		sai.VlanMemberAttrVlanID:       vlanOID.String(),
		sai.VlanMemberAttrBridgePortID: bridgePort.String(),
		sai.VlanMemberAttrTaggingMode:  mode,
	}, nil
}

func membersOf(v *state.Vlan) []vlanMember {
	ports := v.GetPorts()
	out := make([]vlanMember, 0, len(ports))
	for id, info := range ports {
		out = append(out, vlanMember{vlan: v.GetID(), port: id, tagged: info.Tagged})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].port < out[j].port })
	return out
}

// AddVlan programs a new VLAN and its members.
func (vm *VlanManager) AddVlan(ctx context.Context, v *state.Vlan) error {
	if err := vm.vlans.add(ctx, vlanKey(v.GetID()), v); err != nil {
		return err
	}
	for _, m := range membersOf(v) {
		if err := vm.members.add(ctx, memberKey(m.vlan, m.port), m); err != nil {
			return err
		}
	}
	return nil
}

// RemoveVlan removes a VLAN after all of its members.
func (vm *VlanManager) RemoveVlan(ctx context.Context, v *state.Vlan) error {
	if !vm.vlans.live(vlanKey(v.GetID())) {
		return util.NewNotFoundError(EntityVlan, strconv.Itoa(int(v.GetID())))
	}
	return vm.removeVlan(ctx, v.GetID())
}

// ChangeVlan brings the member set of a live VLAN in line with new.
func (vm *VlanManager) ChangeVlan(ctx context.Context, old, new *state.Vlan) error {
	if old.GetID() != new.GetID() {
		return errRekeyed(EntityVlan, strconv.Itoa(int(old.GetID())), strconv.Itoa(int(new.GetID())))
	}
	if err := vm.vlans.change(ctx, vlanKey(new.GetID()), new); err != nil {
		return err
	}
	return vm.syncMembers(ctx, new)
}

// GetVlan returns the handle of a programmed VLAN.
func (vm *VlanManager) GetVlan(id state.VlanID) (sai.Handle, bool) {
	return vm.vlans.get(vlanKey(id))
}

// GetVlanMember returns the handle of a programmed VLAN member.
func (vm *VlanManager) GetVlanMember(vlan state.VlanID, port state.PortID) (sai.Handle, bool) {
	return vm.members.get(memberKey(vlan, port))
}

// VlanOID returns the OID of a programmed VLAN. FDB entries use it as their
// bridging domain.
func (vm *VlanManager) VlanOID(id state.VlanID) (sai.OID, bool) {
	return vm.vlans.oid(vlanKey(id))
}

func (vm *VlanManager) ensureVlan(ctx context.Context, v *state.Vlan) error {
	if err := vm.vlans.ensure(ctx, vlanKey(v.GetID()), v); err != nil {
		return err
	}
	return vm.syncMembers(ctx, v)
}

func (vm *VlanManager) syncMembers(ctx context.Context, v *state.Vlan) error {
	if err := vm.pruneMembers(ctx, v); err != nil {
		return err
	}
	for _, m := range membersOf(v) {
		if err := vm.members.ensure(ctx, memberKey(m.vlan, m.port), m); err != nil {
			return err
		}
	}
	return nil
}

// pruneMembers removes programmed members of v that v no longer lists.
func (vm *VlanManager) pruneMembers(ctx context.Context, v *state.Vlan) error {
	want := v.GetPorts()
	stale := vm.members.keysWhere(func(m vlanMember) bool {
		if m.vlan != v.GetID() {
			return false
		}
		_, keep := want[m.port]
		return !keep
	})
	return vm.removeMembers(ctx, stale)
}

func (vm *VlanManager) removeVlan(ctx context.Context, id state.VlanID) error {
	all := vm.members.keysWhere(func(m vlanMember) bool { return m.vlan == id })
	if err := vm.removeMembers(ctx, all); err != nil {
		return err
	}
	return vm.vlans.ensureAbsent(ctx, vlanKey(id))
}

func (vm *VlanManager) removeMembers(ctx context.Context, keys []sai.ObjectKey) error {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Name < keys[j].Name })
	for _, k := range keys {
		if err := vm.members.ensureAbsent(ctx, k); err != nil {
			return err
		}
	}
	return nil
}

func (vm *VlanManager) restore(v *state.Vlan, handles map[string]sai.Handle) (restored, missing int) {
	k := vlanKey(v.GetID())
	h, ok := handles[k.String()]
	if !ok || vm.vlans.restore(k, v, h) != nil {
		return 0, 1 + len(v.GetPorts())
	}
	restored++
	for _, m := range membersOf(v) {
		mk := memberKey(m.vlan, m.port)
		h, ok := handles[mk.String()]
		if !ok || vm.members.restore(mk, m, h) != nil {
			missing++
			continue
		}
		restored++
	}
	return restored, missing
}
