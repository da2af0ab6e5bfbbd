package agent

import (
	"github.com/newtron-network/switchd/pkg/audit"
	"github.com/newtron-network/switchd/pkg/manager"
	"github.com/newtron-network/switchd/pkg/state"
)

// Summarize counts what a delta adds, removes and changes per entity type.
// Types the delta does not touch are left out.
func Summarize(d *state.StateDelta) []audit.Change {
	ports := audit.Change{Entity: manager.EntityPort}
	vlans := audit.Change{Entity: manager.EntityVlan}
	intfs := audit.Change{Entity: manager.EntityRouterInterface}
	fdb := audit.Change{Entity: manager.EntityFdb}
	neighbors := audit.Change{Entity: manager.EntityNeighbor}
	mirrors := audit.Change{Entity: "mirror"}
	qos := audit.Change{Entity: "qos_policy"}

	count(d.PortsDelta(), &ports)
	count(d.VlansDelta(), &vlans)
	count(d.InterfacesDelta(), &intfs)
	count(d.MirrorsDelta(), &mirrors)
	count(d.QosPoliciesDelta(), &qos)
	for _, md := range d.MacDeltas() {
		count(md.NodeMapDelta, &fdb)
	}
	for _, nd := range d.NeighborDeltas() {
		count(nd.NodeMapDelta, &neighbors)
	}

	var out []audit.Change
	for _, c := range []audit.Change{ports, vlans, intfs, fdb, neighbors, mirrors, qos} {
		if c.Added+c.Removed+c.Changed > 0 {
			out = append(out, c)
		}
	}
	return out
}

func count[K comparable, V state.Node[K, V]](d state.NodeMapDelta[K, V], c *audit.Change) {
	d.ForEachAdded(func(V) error { c.Added++; return nil })
	d.ForEachRemoved(func(V) error { c.Removed++; return nil })
	d.ForEachChanged(func(_, _ V) error { c.Changed++; return nil })
}
