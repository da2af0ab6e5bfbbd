package manager

import (
	"context"
	"strconv"

	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

// PortManager programs front-panel ports and the bridge port that attaches
// each of them to the 802.1Q bridge.
type PortManager struct {
	ports       *entityManager[sai.ObjectKey, *state.Port]
	bridgePorts *entityManager[sai.ObjectKey, *state.Port]
}

func newPortManager(api sai.API) *PortManager {
	pm := &PortManager{}
	pm.ports = newEntityManager[sai.ObjectKey](EntityPort, api, binding[*state.Port]{
		resolved: func(*state.Port) bool { return true },
		attrs:    portAttrs,
	})
	pm.bridgePorts = newEntityManager[sai.ObjectKey](EntityBridgePort, api, binding[*state.Port]{
		resolved:   func(*state.Port) bool { return true },
		attrs:      pm.bridgePortAttrs,
		createOnly: map[string]bool{sai.BridgePortAttrType: true, sai.BridgePortAttrPortID: true},
	})
	return pm
}

func portKey(id state.PortID) sai.ObjectKey {
	return sai.ObjectKey{Type: sai.ObjectTypePort, Name: strconv.FormatUint(uint64(id), 10)}
}

func bridgePortKey(id state.PortID) sai.ObjectKey {
	return sai.ObjectKey{Type: sai.ObjectTypeBridgePort, Name: strconv.FormatUint(uint64(id), 10)}
}

var fecModes = map[state.PortFEC]string{
	state.FECOff: sai.PortFecModeNone,
	state.FECRS:  sai.PortFecModeRS,
	state.FECFC:  sai.PortFecModeFC,
}

var loopbackModes = map[state.LoopbackMode]string{
	state.LoopbackNone: sai.PortLoopbackNone,
	state.LoopbackPHY:  sai.PortLoopbackPhy,
	state.LoopbackMAC:  sai.PortLoopbackMac,
}

func flowControlMode(p state.PortPause) string {
	switch {
	case p.Tx && p.Rx:
		return sai.PortFlowControlBoth
	case p.Tx:
		return sai.PortFlowControlTxOnly
	case p.Rx:
		return sai.PortFlowControlRxOnly
	}
	return sai.PortFlowControlDisable
}

// portAttrs maps the configured fields of a port. Oper state is reported
// by hardware, not programmed, so it is not an attribute.
func portAttrs(p *state.Port) (sai.Attributes, error) {
	attrs := sai.Attributes{
		sai.PortAttrAdminState:        sai.BoolValue(p.IsEnabled()),
		sai.PortAttrFecMode:           fecModes[p.GetFEC()],
		sai.PortAttrInternalLoopback:  loopbackModes[p.GetLoopbackMode()],
		sai.PortAttrGlobalFlowControl: flowControlMode(p.GetPause()),
	}
	if s := p.GetSpeed(); s != state.SpeedDefault {
		attrs[sai.PortAttrSpeed] = strconv.FormatInt(int64(s), 10)
	}
	if v := p.GetIngressVlan(); v != 0 {
		attrs[sai.PortAttrPortVlanID] = strconv.Itoa(int(v))
	}
	return attrs, nil
}

func (pm *PortManager) bridgePortAttrs(p *state.Port) (sai.Attributes, error) {
	oid, ok := pm.ports.oid(portKey(p.GetID()))
	if !ok {
		return nil, util.NewDependencyError(EntityBridgePort+" "+portName(p.GetID()), EntityPort, portName(p.GetID()))
	}
	return sai.Attributes{
		sai.BridgePortAttrType:       sai.BridgePortTypePort,
		sai.BridgePortAttrPortID:     oid.String(),
		sai.BridgePortAttrAdminState: "true",
	}, nil
}

func portName(id state.PortID) string { return strconv.FormatUint(uint64(id), 10) }

// AddPort programs a new port and its bridge port.
func (pm *PortManager) AddPort(ctx context.Context, p *state.Port) error {
	if err := pm.ports.add(ctx, portKey(p.GetID()), p); err != nil {
		return err
	}
	return pm.bridgePorts.add(ctx, bridgePortKey(p.GetID()), p)
}

// RemovePort removes a port, bridge port first.
func (pm *PortManager) RemovePort(ctx context.Context, p *state.Port) error {
	if !pm.ports.live(portKey(p.GetID())) {
		return util.NewNotFoundError(EntityPort, portName(p.GetID()))
	}
	return pm.removePort(ctx, p.GetID())
}

// ChangePort applies the attribute changes between two versions of a port.
func (pm *PortManager) ChangePort(ctx context.Context, old, new *state.Port) error {
	if old.GetID() != new.GetID() {
		return errRekeyed(EntityPort, portName(old.GetID()), portName(new.GetID()))
	}
	if err := pm.ports.change(ctx, portKey(new.GetID()), new); err != nil {
		return err
	}
	return pm.bridgePorts.ensure(ctx, bridgePortKey(new.GetID()), new)
}

// GetPort returns the handle of a programmed port.
func (pm *PortManager) GetPort(id state.PortID) (sai.Handle, bool) {
	return pm.ports.get(portKey(id))
}

// GetBridgePort returns the handle of a programmed bridge port.
func (pm *PortManager) GetBridgePort(id state.PortID) (sai.Handle, bool) {
	return pm.bridgePorts.get(bridgePortKey(id))
}

// PortOID returns the OID of a programmed port.
func (pm *PortManager) PortOID(id state.PortID) (sai.OID, bool) {
	return pm.ports.oid(portKey(id))
}

// BridgePortOID returns the OID of a programmed bridge port.
func (pm *PortManager) BridgePortOID(id state.PortID) (sai.OID, bool) {
	return pm.bridgePorts.oid(bridgePortKey(id))
}

func (pm *PortManager) ensurePort(ctx context.Context, p *state.Port) error {
	if err := pm.ports.ensure(ctx, portKey(p.GetID()), p); err != nil {
		return err
	}
	return pm.bridgePorts.ensure(ctx, bridgePortKey(p.GetID()), p)
}

func (pm *PortManager) removePort(ctx context.Context, id state.PortID) error {
	if err := pm.bridgePorts.ensureAbsent(ctx, bridgePortKey(id)); err != nil {
		return err
	}
	return pm.ports.ensureAbsent(ctx, portKey(id))
}

func (pm *PortManager) restore(p *state.Port, handles map[string]sai.Handle) (restored, missing int) {
	for _, step := range []struct {
		m *entityManager[sai.ObjectKey, *state.Port]
		k sai.ObjectKey
	}{
		{pm.ports, portKey(p.GetID())},
		{pm.bridgePorts, bridgePortKey(p.GetID())},
	} {
		h, ok := handles[step.k.String()]
		if !ok {
			missing++
			continue
		}
		if err := step.m.restore(step.k, p, h); err != nil {
			missing++
			continue
		}
		restored++
	}
	return restored, missing
}
