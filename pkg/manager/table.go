package manager

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

// Entity type names, used in errors, logs and reconcile results.
const (
	EntityPort            = "port"
	EntityBridgePort      = "bridge_port"
	EntityVlan            = "vlan"
	EntityVlanMember      = "vlan_member"
	EntityRouterInterface = "router_interface"
	EntityFdb             = "fdb"
	EntityNeighbor        = "neighbor"
)

// ManagerTable owns one manager per entity family for one switch.
type ManagerTable struct {
	switchID  sai.OID
	ports     *PortManager
	vlans     *VlanManager
	rifs      *RouterInterfaceManager
	fdb       *FdbManager
	neighbors *NeighborManager
}

// NewManagerTable builds the managers for the switch switchID, programming
// router interfaces into virtual router vr.
func NewManagerTable(api sai.API, switchID, vr sai.OID) *ManagerTable {
	t := &ManagerTable{switchID: switchID}
	t.ports = newPortManager(api)
	t.vlans = newVlanManager(api, t.ports)
	t.rifs = newRouterInterfaceManager(api, t.vlans, vr)
	t.fdb = newFdbManager(api, t.vlans, t.ports, switchID)
	t.neighbors = newNeighborManager(api, t.rifs, switchID)
	return t
}

func (t *ManagerTable) SwitchID() sai.OID                         { return t.switchID }
func (t *ManagerTable) Ports() *PortManager                       { return t.ports }
func (t *ManagerTable) Vlans() *VlanManager                       { return t.vlans }
func (t *ManagerTable) RouterInterfaces() *RouterInterfaceManager { return t.rifs }
func (t *ManagerTable) Fdb() *FdbManager                          { return t.fdb }
func (t *ManagerTable) Neighbors() *NeighborManager               { return t.neighbors }

// Policy decides what reconciliation does after an entity type fails.
type Policy int

const (
	// ContinueOnError applies every entity type and reports all failures.
	ContinueOnError Policy = iota
	// AbortOnError stops at the first failure.
	AbortOnError
)

func (p Policy) String() string {
	if p == AbortOnError {
		return "abort"
	}
	return "continue"
}

// ParsePolicy parses "continue" or "abort".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "continue":
		return ContinueOnError, nil
	case "abort":
		return AbortOnError, nil
	}
	return ContinueOnError, fmt.Errorf("unknown reconcile policy %q", s)
}

// TypeFailure lists the errors one entity type hit during reconciliation.
type TypeFailure struct {
	Type   string
	Errors []error
}

// ReconcileResult is the outcome of one Reconcile call.
type ReconcileResult struct {
	Failures []TypeFailure
	Aborted  bool
}

// OK reports whether every entity was applied.
func (r *ReconcileResult) OK() bool { return len(r.Failures) == 0 }

// Err joins all failures into one error, or returns nil.
func (r *ReconcileResult) Err() error {
	var errs []error
	for _, f := range r.Failures {
		for _, err := range f.Errors {
			errs = append(errs, fmt.Errorf("%s: %w", f.Type, err))
		}
	}
	return errors.Join(errs...)
}

func (r *ReconcileResult) add(typ string, errs []error) {
	for i := range r.Failures {
		if r.Failures[i].Type == typ {
			r.Failures[i].Errors = append(r.Failures[i].Errors, errs...)
			return
		}
	}
	r.Failures = append(r.Failures, TypeFailure{Type: typ, Errors: errs})
}

var errStop = errors.New("stop")

// run holds the state of one Reconcile call.
type run struct {
	t      *ManagerTable
	ctx    context.Context
	d      *state.StateDelta
	policy Policy
	errs   []error

	// Interfaces whose router interface must be recreated: their VLAN
	// changed, which also changes the key of every neighbor behind them.
	recreated map[state.InterfaceID]bool
}

// fail records err and reports whether the current step should stop.
func (r *run) fail(err error) error {
	if err == nil {
		return nil
	}
	r.errs = append(r.errs, err)
	if r.policy == AbortOnError {
		return errStop
	}
	return nil
}

// Reconcile programs the difference between two snapshots. Removals run
// first, dependents before what they depend on; adds and changes run after,
// dependencies first:
//
//	remove: neighbors, fdb, router interfaces, vlans, ports
//	apply:  ports, vlans, router interfaces, fdb, neighbors
//
// Every step is idempotent, so applying the same delta again after a
// partial failure only does the work that is still missing.
func (t *ManagerTable) Reconcile(ctx context.Context, d *state.StateDelta, policy Policy) *ReconcileResult {
	result := &ReconcileResult{}
	if d.Empty() {
		return result
	}
	r := &run{t: t, ctx: ctx, d: d, policy: policy, recreated: map[state.InterfaceID]bool{}}
	d.InterfacesDelta().ForEachChanged(func(o, n *state.Interface) error {
		if o.GetVlanID() != n.GetVlanID() {
			r.recreated[n.GetID()] = true
		}
		return nil
	})

	steps := []struct {
		typ string
		fn  func()
	}{
		{EntityNeighbor, r.removeNeighbors},
		{EntityFdb, r.removeFdb},
		{EntityRouterInterface, r.removeRouterInterfaces},
		{EntityVlan, r.removeVlans},
		{EntityPort, r.removePorts},
		{EntityPort, r.applyPorts},
		{EntityVlan, r.applyVlans},
		{EntityRouterInterface, r.applyRouterInterfaces},
		{EntityFdb, r.applyFdb},
		{EntityNeighbor, r.applyNeighbors},
	}
	log := util.WithField("component", "reconcile")
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			result.add(s.typ, []error{err})
			result.Aborted = true
			return result
		}
		r.errs = nil
		s.fn()
		if len(r.errs) == 0 {
			continue
		}
		log.WithField("type", s.typ).Warnf("%d failures", len(r.errs))
		result.add(s.typ, r.errs)
		if policy == AbortOnError {
			result.Aborted = true
			return result
		}
	}
	return result
}

func (r *run) removeNeighbors() {
	nm := r.t.neighbors
	for _, nd := range r.d.NeighborDeltas() {
		err := nd.ForEachRemoved(func(e *state.NeighborEntry) error {
			return r.fail(nm.ensureNeighborAbsent(r.ctx, e))
		})
		if err != nil {
			return
		}
	}
	for id := range r.recreated {
		old, _ := r.d.OldState().GetInterfaces().Get(id)
		for _, table := range []*state.NeighborTable{old.GetArpTable(), old.GetNdpTable()} {
			err := table.ForEach(func(e *state.NeighborEntry) error {
				return r.fail(nm.ensureNeighborAbsent(r.ctx, e))
			})
			if err != nil {
				return
			}
		}
	}
}

func (r *run) removeFdb() {
	fm := r.t.fdb
	newPorts := r.d.NewState().GetPorts()
	for _, md := range r.d.MacDeltas() {
		err := md.ForEachRemoved(func(e *state.MacEntry) error {
			return r.fail(fm.ensureMacEntryAbsent(r.ctx, md.Vlan, e))
		})
		if err != nil {
			return
		}
		// An entry moving off a port that is about to be removed must let go
		// of the bridge port first; it is re-added in the apply phase.
		err = md.ForEachChanged(func(o, n *state.MacEntry) error {
			if p := o.GetPort(); p != 0 && p != n.GetPort() && !newPorts.Has(p) {
				return r.fail(fm.ensureMacEntryAbsent(r.ctx, md.Vlan, o))
			}
			return nil
		})
		if err != nil {
			return
		}
	}
}

func (r *run) removeRouterInterfaces() {
	rm := r.t.rifs.rifs
	err := r.d.InterfacesDelta().ForEachRemoved(func(i *state.Interface) error {
		return r.fail(rm.ensureAbsent(r.ctx, rifKey(i.GetID())))
	})
	if err != nil {
		return
	}
	for id := range r.recreated {
		if r.fail(rm.ensureAbsent(r.ctx, rifKey(id))) != nil {
			return
		}
	}
}

func (r *run) removeVlans() {
	vm := r.t.vlans
	vd := r.d.VlansDelta()
	err := vd.ForEachRemoved(func(v *state.Vlan) error {
		return r.fail(vm.removeVlan(r.ctx, v.GetID()))
	})
	if err != nil {
		return
	}
	vd.ForEachChanged(func(_, n *state.Vlan) error {
		return r.fail(vm.pruneMembers(r.ctx, n))
	})
}

func (r *run) removePorts() {
	r.d.PortsDelta().ForEachRemoved(func(p *state.Port) error {
		return r.fail(r.t.ports.removePort(r.ctx, p.GetID()))
	})
}

func (r *run) applyPorts() {
	pd := r.d.PortsDelta()
	err := pd.ForEachAdded(func(p *state.Port) error {
		return r.fail(r.t.ports.ensurePort(r.ctx, p))
	})
	if err != nil {
		return
	}
	pd.ForEachChanged(func(_, p *state.Port) error {
		return r.fail(r.t.ports.ensurePort(r.ctx, p))
	})
}

func (r *run) applyVlans() {
	vd := r.d.VlansDelta()
	err := vd.ForEachAdded(func(v *state.Vlan) error {
		return r.fail(r.t.vlans.ensureVlan(r.ctx, v))
	})
	if err != nil {
		return
	}
	vd.ForEachChanged(func(_, v *state.Vlan) error {
		return r.fail(r.t.vlans.ensureVlan(r.ctx, v))
	})
}

func (r *run) applyRouterInterfaces() {
	rm := r.t.rifs.rifs
	id := r.d.InterfacesDelta()
	err := id.ForEachAdded(func(i *state.Interface) error {
		return r.fail(rm.ensure(r.ctx, rifKey(i.GetID()), i))
	})
	if err != nil {
		return
	}
	id.ForEachChanged(func(_, i *state.Interface) error {
		return r.fail(rm.ensure(r.ctx, rifKey(i.GetID()), i))
	})
}

func (r *run) applyFdb() {
	fm := r.t.fdb
	for _, md := range r.d.MacDeltas() {
		err := md.ForEachAdded(func(e *state.MacEntry) error {
			return r.fail(fm.ensureMacEntry(r.ctx, md.Vlan, e))
		})
		if err != nil {
			return
		}
		err = md.ForEachChanged(func(_, e *state.MacEntry) error {
			return r.fail(fm.ensureMacEntry(r.ctx, md.Vlan, e))
		})
		if err != nil {
			return
		}
	}
}

func (r *run) applyNeighbors() {
	nm := r.t.neighbors
	for _, nd := range r.d.NeighborDeltas() {
		if r.recreated[nd.Interface] {
			continue
		}
		err := nd.ForEachAdded(func(e *state.NeighborEntry) error {
			return r.fail(nm.ensureNeighbor(r.ctx, e))
		})
		if err != nil {
			return
		}
		err = nd.ForEachChanged(func(_, e *state.NeighborEntry) error {
			return r.fail(nm.ensureNeighbor(r.ctx, e))
		})
		if err != nil {
			return
		}
	}
	for id := range r.recreated {
		intf, _ := r.d.NewState().GetInterfaces().Get(id)
		for _, table := range []*state.NeighborTable{intf.GetArpTable(), intf.GetNdpTable()} {
			err := table.ForEach(func(e *state.NeighborEntry) error {
				return r.fail(nm.ensureNeighbor(r.ctx, e))
			})
			if err != nil {
				return
			}
		}
	}
}
