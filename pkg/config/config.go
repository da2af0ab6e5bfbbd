// Package config loads the YAML switch configuration and turns it into the
// desired state tree.
//
// The file is authoritative for everything it describes: entities missing
// from it are removed from the snapshot it is applied to. Observed state
// (port link state, dynamically learned MAC entries) is carried over from
// the previous snapshot.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

// Config is the top-level switch configuration file.
type Config struct {
	Name        string      `yaml:"name"`
	Mac         string      `yaml:"mac,omitempty"`
	DefaultVlan int         `yaml:"default_vlan,omitempty"`
	Ports       []Port      `yaml:"ports"`
	Vlans       []Vlan      `yaml:"vlans,omitempty"`
	Interfaces  []Interface `yaml:"interfaces,omitempty"`
	Mirrors     []Mirror    `yaml:"mirrors,omitempty"`
	QosPolicies []QosPolicy `yaml:"qos_policies,omitempty"`
}

// Port configures one front-panel port.
type Port struct {
	ID            int     `yaml:"id"`
	Name          string  `yaml:"name"`
	Description   string  `yaml:"description,omitempty"`
	Admin         string  `yaml:"admin,omitempty"`
	Speed         string  `yaml:"speed,omitempty"`
	FEC           string  `yaml:"fec,omitempty"`
	Loopback      string  `yaml:"loopback,omitempty"`
	Pause         Pause   `yaml:"pause,omitempty"`
	IngressVlan   int     `yaml:"ingress_vlan,omitempty"`
	Sflow         Sflow   `yaml:"sflow,omitempty"`
	IngressMirror string  `yaml:"ingress_mirror,omitempty"`
	EgressMirror  string  `yaml:"egress_mirror,omitempty"`
	QosPolicy     string  `yaml:"qos_policy,omitempty"`
	Queues        []Queue `yaml:"queues,omitempty"`
}

// Pause is the 802.3x flow control setting of a port.
type Pause struct {
	Tx bool `yaml:"tx"`
	Rx bool `yaml:"rx"`
}

// Sflow holds 1:N sampling rates; 0 disables sampling.
type Sflow struct {
	Ingress int64 `yaml:"ingress"`
	Egress  int64 `yaml:"egress"`
}

// Queue configures one egress queue of a port.
type Queue struct {
	ID            uint8  `yaml:"id"`
	Name          string `yaml:"name,omitempty"`
	Scheduling    string `yaml:"scheduling,omitempty"`
	Weight        int    `yaml:"weight,omitempty"`
	ReservedBytes int64  `yaml:"reserved_bytes,omitempty"`
}

// Vlan configures a bridging domain. Port lists use range notation such as
// "1-4,8".
type Vlan struct {
	ID         int         `yaml:"id"`
	Name       string      `yaml:"name,omitempty"`
	Untagged   string      `yaml:"untagged,omitempty"`
	Tagged     string      `yaml:"tagged,omitempty"`
	StaticMacs []StaticMac `yaml:"static_macs,omitempty"`
}

// StaticMac is a configured FDB entry.
type StaticMac struct {
	Mac  string `yaml:"mac"`
	Port int    `yaml:"port"`
}

// Interface configures an L3 router interface on a VLAN.
type Interface struct {
	ID        int        `yaml:"id"`
	Vlan      int        `yaml:"vlan"`
	Name      string     `yaml:"name,omitempty"`
	Mac       string     `yaml:"mac,omitempty"`
	MTU       int        `yaml:"mtu,omitempty"`
	Addresses []string   `yaml:"addresses,omitempty"`
	Neighbors []Neighbor `yaml:"neighbors,omitempty"`
}

// Neighbor is a static ARP or NDP entry. Without a MAC the entry stays
// pending until it is resolved.
type Neighbor struct {
	IP   string `yaml:"ip"`
	Mac  string `yaml:"mac,omitempty"`
	Port int    `yaml:"port,omitempty"`
}

// Mirror configures a mirror session. A destination turns it into a remote
// (ERSPAN) session.
type Mirror struct {
	Name        string `yaml:"name"`
	Port        int    `yaml:"port"`
	Destination string `yaml:"destination,omitempty"`
}

// QosPolicy maps DSCP code points onto egress queues.
type QosPolicy struct {
	Name string          `yaml:"name"`
	Dscp map[uint8]uint8 `yaml:"dscp"`
}

// Load reads and validates a configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates configuration data.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.build(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// desired holds the converted nodes of a configuration, before they are
// merged into a snapshot.
type desired struct {
	defaultVlan state.VlanID
	ports       []*state.Port
	vlans       []*state.Vlan
	interfaces  []*state.Interface
	mirrors     []*state.Mirror
	policies    []*state.QosPolicy
}

// build converts the file into state nodes, checking every field. Cross
// references between entities are left to state.Validate.
func (c *Config) build() (*desired, error) {
	var v util.ValidationBuilder
	d := &desired{}

	var switchMac util.MacAddress
	if c.Mac != "" {
		m, err := util.ParseMAC(c.Mac)
		v.Add(err == nil, err)
		switchMac = m
	}
	if c.DefaultVlan != 0 {
		err := util.ValidateVLANID(c.DefaultVlan)
		v.Add(err == nil, err)
		d.defaultVlan = state.VlanID(c.DefaultVlan)
	}

	// Port membership is derived from the VLAN section.
	membership := map[state.PortID]state.VlanMembership{}
	untaggedIn := map[state.PortID]state.VlanID{}
	seenVlans := map[int]bool{}
	for _, vc := range c.Vlans {
		if err := util.ValidateVLANID(vc.ID); err != nil {
			v.AddError(err)
			continue
		}
		if seenVlans[vc.ID] {
			v.AddError(util.NewDuplicateEntryError("vlan", fmt.Sprint(vc.ID)))
			continue
		}
		seenVlans[vc.ID] = true
		vid := state.VlanID(vc.ID)
		vl := state.NewVlan(vid, vc.Name)
		members := map[state.PortID]state.VlanInfo{}
		for _, group := range []struct {
			spec   string
			tagged bool
		}{{vc.Untagged, false}, {vc.Tagged, true}} {
			ids, err := util.ParseIDList[state.PortID](group.spec, util.MaxPortID)
			if err != nil {
				v.AddErrorf("vlan %d: %v", vc.ID, err)
				continue
			}
			for _, pid := range ids {
				if _, dup := members[pid]; dup {
					v.AddErrorf("vlan %d: port %d listed twice", vc.ID, pid)
					continue
				}
				members[pid] = state.VlanInfo{Tagged: group.tagged}
				if membership[pid] == nil {
					membership[pid] = state.VlanMembership{}
				}
				membership[pid][vid] = state.VlanInfo{Tagged: group.tagged}
				if !group.tagged {
					if _, ok := untaggedIn[pid]; ok {
						v.AddErrorf("port %d is untagged in more than one vlan", pid)
					}
					untaggedIn[pid] = vid
				}
			}
		}
		vl.SetPorts(members)
		macs := vl.ModifyMacTable()
		for _, sm := range vc.StaticMacs {
			mac, err := util.ParseMAC(sm.Mac)
			if err != nil {
				v.AddErrorf("vlan %d: %v", vc.ID, err)
				continue
			}
			if err := macs.Add(state.NewMacEntry(mac, state.PortID(sm.Port), state.MacEntryStatic)); err != nil {
				v.AddErrorf("vlan %d: %v", vc.ID, err)
			}
		}
		d.vlans = append(d.vlans, vl)
	}

	seenPorts := map[int]bool{}
	for _, pc := range c.Ports {
		if pc.ID <= 0 {
			v.AddErrorf("port %q: id must be positive", pc.Name)
			continue
		}
		if seenPorts[pc.ID] {
			v.AddError(util.NewDuplicateEntryError("port", fmt.Sprint(pc.ID)))
			continue
		}
		seenPorts[pc.ID] = true
		p, err := pc.build()
		if err != nil {
			v.AddErrorf("port %d: %v", pc.ID, err)
			continue
		}
		pid := state.PortID(pc.ID)
		p.SetVlans(membership[pid])
		if pc.IngressVlan == 0 {
			p.SetIngressVlan(untaggedIn[pid])
		}
		d.ports = append(d.ports, p)
	}

	seenIntfs := map[int]bool{}
	for _, ic := range c.Interfaces {
		if seenIntfs[ic.ID] {
			v.AddError(util.NewDuplicateEntryError("interface", fmt.Sprint(ic.ID)))
			continue
		}
		seenIntfs[ic.ID] = true
		i, err := ic.build(switchMac)
		if err != nil {
			v.AddErrorf("interface %d: %v", ic.ID, err)
			continue
		}
		d.interfaces = append(d.interfaces, i)
	}

	for _, mc := range c.Mirrors {
		if mc.Name == "" {
			v.AddErrorf("mirror without a name")
			continue
		}
		m := state.NewMirror(mc.Name, state.PortID(mc.Port))
		if mc.Destination != "" {
			ip, err := netip.ParseAddr(mc.Destination)
			if err != nil {
				v.AddErrorf("mirror %s: %v", mc.Name, err)
				continue
			}
			m.SetDestinationIP(ip)
		}
		d.mirrors = append(d.mirrors, m)
	}

	for _, qc := range c.QosPolicies {
		if qc.Name == "" {
			v.AddErrorf("qos policy without a name")
			continue
		}
		for dscp := range qc.Dscp {
			v.Add(dscp < 64, fmt.Errorf("qos policy %s: dscp %d out of range", qc.Name, dscp))
		}
		d.policies = append(d.policies, state.NewQosPolicy(qc.Name, qc.Dscp))
	}

	if err := v.Build(); err != nil {
		return nil, err
	}
	return d, nil
}

func (pc *Port) build() (*state.Port, error) {
	p := state.NewPort(state.PortID(pc.ID), pc.Name)
	p.SetDescription(pc.Description)
	if pc.Admin != "" {
		s, err := state.ParseAdminState(pc.Admin)
		if err != nil {
			return nil, err
		}
		p.SetAdminState(s)
	}
	if pc.Speed != "" {
		s, err := state.ParsePortSpeed(pc.Speed)
		if err != nil {
			return nil, err
		}
		p.SetSpeed(s)
	}
	if pc.FEC != "" {
		f, err := state.ParsePortFEC(pc.FEC)
		if err != nil {
			return nil, err
		}
		p.SetFEC(f)
	}
	if pc.Loopback != "" {
		m, err := state.ParseLoopbackMode(pc.Loopback)
		if err != nil {
			return nil, err
		}
		p.SetLoopbackMode(m)
	}
	if pc.IngressVlan != 0 {
		if err := util.ValidateVLANID(pc.IngressVlan); err != nil {
			return nil, err
		}
		p.SetIngressVlan(state.VlanID(pc.IngressVlan))
	}
	if pc.Sflow.Ingress < 0 || pc.Sflow.Egress < 0 {
		return nil, fmt.Errorf("negative sflow rate")
	}
	p.SetPause(state.PortPause{Tx: pc.Pause.Tx, Rx: pc.Pause.Rx})
	p.SetSflowIngressRate(pc.Sflow.Ingress)
	p.SetSflowEgressRate(pc.Sflow.Egress)
	p.SetIngressMirror(pc.IngressMirror)
	p.SetEgressMirror(pc.EgressMirror)
	p.SetQosPolicy(pc.QosPolicy)

	if len(pc.Queues) > 0 {
		queues := make([]state.PortQueue, 0, len(pc.Queues))
		for _, qc := range pc.Queues {
			q := state.PortQueue{ID: qc.ID, Name: qc.Name, Weight: qc.Weight, ReservedBytes: qc.ReservedBytes}
			if qc.Scheduling != "" {
				s, err := state.ParseQueueScheduling(qc.Scheduling)
				if err != nil {
					return nil, fmt.Errorf("queue %d: %w", qc.ID, err)
				}
				q.Scheduling = s
			}
			queues = append(queues, q)
		}
		sort.Slice(queues, func(i, j int) bool { return queues[i].ID < queues[j].ID })
		for i := 1; i < len(queues); i++ {
			if queues[i].ID == queues[i-1].ID {
				return nil, fmt.Errorf("queue %d listed twice", queues[i].ID)
			}
		}
		p.ResetPortQueues(queues)
	}
	return p, nil
}

func (ic *Interface) build(switchMac util.MacAddress) (*state.Interface, error) {
	if ic.ID <= 0 {
		return nil, fmt.Errorf("id must be positive")
	}
	if err := util.ValidateVLANID(ic.Vlan); err != nil {
		return nil, err
	}
	mac := switchMac
	if ic.Mac != "" {
		m, err := util.ParseMAC(ic.Mac)
		if err != nil {
			return nil, err
		}
		mac = m
	}
	if mac.IsZero() {
		return nil, fmt.Errorf("no mac address (set it on the interface or the switch)")
	}
	name := ic.Name
	if name == "" {
		name = fmt.Sprintf("Vlan%d", ic.Vlan)
	}
	id := state.InterfaceID(ic.ID)
	i := state.NewInterface(id, state.VlanID(ic.Vlan), name, mac)
	if ic.MTU != 0 {
		if err := util.ValidateMTU(ic.MTU); err != nil {
			return nil, err
		}
		i.SetMtu(ic.MTU)
	}
	addrs, err := util.ParseInterfaceAddresses(ic.Addresses)
	if err != nil {
		return nil, err
	}
	if len(addrs) > 0 {
		i.SetAddresses(addrs)
	}
	for _, nc := range ic.Neighbors {
		ip, err := netip.ParseAddr(nc.IP)
		if err != nil {
			return nil, fmt.Errorf("neighbor: %w", err)
		}
		if len(addrs) > 0 && !i.HasAddress(ip) {
			return nil, fmt.Errorf("neighbor %s is outside the interface subnets", ip)
		}
		var n *state.NeighborEntry
		if nc.Mac == "" {
			n = state.NewPendingNeighbor(ip, id)
		} else {
			mac, err := util.ParseMAC(nc.Mac)
			if err != nil {
				return nil, fmt.Errorf("neighbor %s: %w", ip, err)
			}
			n = state.NewResolvedNeighbor(ip, mac, state.PortID(nc.Port), id)
		}
		if err := i.ModifyNeighborTable(ip).Add(n); err != nil {
			return nil, err
		}
	}
	return i, nil
}

// ApplyTo rewrites s, an unpublished snapshot derived from the current one,
// so that it matches the configuration. Nodes whose content does not change
// keep their identity, which keeps the resulting delta minimal. The caller
// validates and publishes s.
func (c *Config) ApplyTo(s *state.SwitchState) error {
	d, err := c.build()
	if err != nil {
		return err
	}

	for _, p := range d.ports {
		if old, ok := s.GetPorts().Get(p.GetID()); ok && old.IsUp() {
			p.SetOperState(true)
		}
	}
	for _, vl := range d.vlans {
		old, ok := s.GetVlans().Get(vl.GetID())
		if !ok {
			continue
		}
		var learned []*state.MacEntry
		old.GetMacTable().ForEach(func(e *state.MacEntry) error {
			if e.GetType() == state.MacEntryDynamic && !vl.GetMacTable().Has(e.GetMac()) {
				learned = append(learned, e)
			}
			return nil
		})
		if len(learned) > 0 {
			macs := vl.ModifyMacTable()
			for _, e := range learned {
				if _, member := vl.GetPorts()[e.GetPort()]; member {
					macs.Update(e)
				}
			}
		}
	}

	if s.GetDefaultVlan() != d.defaultVlan {
		s.SetDefaultVlan(d.defaultVlan)
	}
	if err := merge(s.GetPorts(), s.ModifyPorts, d.ports); err != nil {
		return err
	}
	if err := merge(s.GetVlans(), s.ModifyVlans, d.vlans); err != nil {
		return err
	}
	if err := merge(s.GetInterfaces(), s.ModifyInterfaces, d.interfaces); err != nil {
		return err
	}
	if err := merge(s.GetMirrors(), s.ModifyMirrors, d.mirrors); err != nil {
		return err
	}
	return merge(s.GetQosPolicies(), s.ModifyQosPolicies, d.policies)
}

// State builds a fresh snapshot from the configuration alone.
func (c *Config) State() (*state.SwitchState, error) {
	s := state.NewSwitchState()
	if err := c.ApplyTo(s); err != nil {
		return nil, err
	}
	return s, nil
}

// merge makes the map behind cur hold exactly the wanted nodes. The map is
// only made writable when something differs.
func merge[K comparable, V state.Node[K, V]](cur *state.NodeMap[K, V], modify func() *state.NodeMap[K, V], want []V) error {
	var m *state.NodeMap[K, V]
	writable := func() *state.NodeMap[K, V] {
		if m == nil {
			m = modify()
		}
		return m
	}

	keep := make(map[K]bool, len(want))
	for _, v := range want {
		keep[v.Key()] = true
	}
	for _, k := range cur.Keys() {
		if !keep[k] {
			if err := writable().Remove(k); err != nil {
				return err
			}
		}
	}
	for _, v := range want {
		if old, ok := cur.Get(v.Key()); ok && old.Equal(v) {
			continue
		}
		writable().Update(v)
	}
	return nil
}
