package main

import (
	"encoding/json"
	"fmt"
	"net/netip"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/switchd/pkg/agent"
	"github.com/newtron-network/switchd/pkg/cli"
	"github.com/newtron-network/switchd/pkg/manager"
	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the saved switch state",
	Long: `Show reads the snapshot saved by the last apply or run from the warm
boot directory. It does not connect to the switch.

Examples:
  switchd show ports
  switchd show neighbors --json
  switchd show hardware`,
}

func savedState() (*state.SwitchState, error) {
	s, err := agent.ReadSavedState(stateDir)
	if err != nil {
		return nil, fmt.Errorf("reading saved state: %w", err)
	}
	return s, nil
}

// showRunE adapts a printer of the saved snapshot to a cobra RunE. With
// --json the snapshot's serialized form of the collection is printed instead.
func showRunE(render func(s *state.SwitchState), export func(s *state.SwitchState) interface{}) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := savedState()
		if err != nil {
			return err
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(export(s))
		}
		render(s)
		return nil
	}
}

var showPortsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Show ports",
	RunE: showRunE(func(s *state.SwitchState) {
		t := cli.NewTable("PORT", "NAME", "ADMIN", "OPER", "SPEED", "VLANS", "QOS")
		s.GetPorts().ForEach(func(p *state.Port) error {
			t.Row(fmt.Sprint(p.GetID()), p.GetName(), p.GetAdminState().String(),
				operStatus(p), p.GetSpeed().String(), vlanList(p.GetVlans()), p.GetQosPolicy())
			return nil
		})
		t.Flush()
	}, func(s *state.SwitchState) interface{} { return s.ToSchema().Ports }),
}

var showVlansCmd = &cobra.Command{
	Use:   "vlans",
	Short: "Show VLANs",
	RunE: showRunE(func(s *state.SwitchState) {
		t := cli.NewTable("VLAN", "NAME", "UNTAGGED", "TAGGED", "MACS")
		s.GetVlans().ForEach(func(v *state.Vlan) error {
			var untagged, tagged []state.PortID
			for id, info := range v.GetPorts() {
				if info.Tagged {
					tagged = append(tagged, id)
				} else {
					untagged = append(untagged, id)
				}
			}
			t.Row(fmt.Sprint(v.GetID()), v.GetName(), util.FormatIDList(untagged),
				util.FormatIDList(tagged), fmt.Sprint(v.GetMacTable().Len()))
			return nil
		})
		t.Flush()
	}, func(s *state.SwitchState) interface{} { return s.ToSchema().Vlans }),
}

var showInterfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "Show router interfaces",
	RunE: showRunE(func(s *state.SwitchState) {
		t := cli.NewTable("INTERFACE", "NAME", "VLAN", "MAC", "MTU", "ADDRESSES")
		s.GetInterfaces().ForEach(func(i *state.Interface) error {
			addrs := make([]string, 0, len(i.GetAddresses()))
			for _, p := range i.GetAddresses() {
				addrs = append(addrs, p.String())
			}
			t.Row(fmt.Sprint(i.GetID()), i.GetName(), fmt.Sprint(i.GetVlanID()), i.GetMac().String(),
				fmt.Sprint(i.GetMtu()), strings.Join(addrs, ","))
			return nil
		})
		t.Flush()
	}, func(s *state.SwitchState) interface{} { return s.ToSchema().Interfaces }),
}

var showNeighborsCmd = &cobra.Command{
	Use:   "neighbors",
	Short: "Show ARP and NDP entries",
	RunE: showRunE(func(s *state.SwitchState) {
		t := cli.NewTable("IP", "MAC", "PORT", "INTERFACE", "STATE")
		for _, n := range neighbors(s) {
			mac, port := "-", "-"
			if !n.IsPending() {
				mac, port = n.GetMac().String(), fmt.Sprint(n.GetPort())
			}
			t.Row(n.GetIP().String(), mac, port, fmt.Sprint(n.GetInterfaceID()), neighborStatus(n))
		}
		t.Flush()
	}, func(s *state.SwitchState) interface{} {
		out := make([]interface{}, 0)
		for _, n := range neighbors(s) {
			out = append(out, n.ToSchema())
		}
		return out
	}),
}

var showMacsCmd = &cobra.Command{
	Use:   "macs",
	Short: "Show MAC tables",
	RunE: showRunE(func(s *state.SwitchState) {
		t := cli.NewTable("VLAN", "MAC", "PORT", "TYPE")
		s.GetVlans().ForEach(func(v *state.Vlan) error {
			v.GetMacTable().ForEach(func(e *state.MacEntry) error {
				port := "-"
				if !e.IsPending() {
					port = fmt.Sprint(e.GetPort())
				}
				t.Row(fmt.Sprint(v.GetID()), e.GetMac().String(), port, e.GetType().String())
				return nil
			})
			return nil
		})
		t.Flush()
	}, func(s *state.SwitchState) interface{} {
		out := map[uint16]interface{}{}
		for id, v := range s.ToSchema().Vlans {
			out[id] = v.MacTable
		}
		return out
	}),
}

var showMirrorsCmd = &cobra.Command{
	Use:   "mirrors",
	Short: "Show mirror sessions and QoS policies",
	RunE: showRunE(func(s *state.SwitchState) {
		t := cli.NewTable("MIRROR", "EGRESS PORT", "DESTINATION")
		s.GetMirrors().ForEach(func(m *state.Mirror) error {
			dst := "local"
			if ip := m.GetDestinationIP(); ip.IsValid() {
				dst = ip.String()
			}
			t.Row(m.GetName(), fmt.Sprint(m.GetEgressPort()), dst)
			return nil
		})
		t.Flush()

		fmt.Println()
		q := cli.NewTable("QOS POLICY", "DSCP -> QUEUE")
		s.GetQosPolicies().ForEach(func(p *state.QosPolicy) error {
			m := p.GetDscpMap()
			dscps := make([]int, 0, len(m))
			for d := range m {
				dscps = append(dscps, int(d))
			}
			sort.Ints(dscps)
			pairs := make([]string, 0, len(dscps))
			for _, d := range dscps {
				pairs = append(pairs, fmt.Sprintf("%d:%d", d, m[uint8(d)]))
			}
			q.Row(p.GetName(), strings.Join(pairs, " "))
			return nil
		})
		q.Flush()
	}, func(s *state.SwitchState) interface{} {
		sch := s.ToSchema()
		return map[string]interface{}{"mirrors": sch.Mirrors, "qos_policies": sch.QosPolicies}
	}),
}

var showHardwareCmd = &cobra.Command{
	Use:   "hardware",
	Short: "Show the hardware handles of every programmed entity",
	RunE: func(cmd *cobra.Command, args []string) error {
		handles, err := agent.ReadSavedHandles(stateDir)
		if err != nil {
			return fmt.Errorf("reading saved handles: %w", err)
		}
		if jsonOutput {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(handles)
		}
		keys := make([]string, 0, len(handles))
		for k := range handles {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		t := cli.NewTable("TYPE", "KEY", "HANDLE")
		for _, k := range keys {
			h := handles[k]
			t.Row(h.Type.String(), k, h.ID)
		}
		t.Flush()
		return nil
	},
}

func init() {
	addOutputFlags(showCmd)
	showCmd.AddCommand(showPortsCmd, showVlansCmd, showInterfacesCmd, showNeighborsCmd,
		showMacsCmd, showMirrorsCmd, showHardwareCmd)
}

// printHardware lists what a manager table has programmed, per entity type.
func printHardware(mt *manager.ManagerTable) {
	entries := mt.Entries()
	types := make([]string, 0, len(entries))
	for typ := range entries {
		types = append(types, typ)
	}
	sort.Strings(types)

	t := cli.NewTable("ENTITY", "KEY", "STATUS", "HANDLE")
	for _, typ := range types {
		for _, e := range entries[typ] {
			status, handle := "unresolved", "-"
			if e.Resolved {
				status, handle = "resolved", handleString(e.Handle)
			}
			t.Row(typ, e.Key, cli.Status(status), handle)
		}
	}
	t.Flush()
}

func handleString(h sai.Handle) string {
	if h.Type.IsEntry() {
		return h.Type.String()
	}
	return h.ID
}

func neighbors(s *state.SwitchState) []*state.NeighborEntry {
	var out []*state.NeighborEntry
	s.GetInterfaces().ForEach(func(i *state.Interface) error {
		for _, t := range []*state.NeighborTable{i.GetArpTable(), i.GetNdpTable()} {
			t.ForEach(func(n *state.NeighborEntry) error {
				out = append(out, n)
				return nil
			})
		}
		return nil
	})
	sort.SliceStable(out, func(a, b int) bool {
		return netip.Addr.Less(out[a].GetIP(), out[b].GetIP())
	})
	return out
}

func operStatus(p *state.Port) string {
	return cli.Status(strings.ToLower(p.GetOperState().String()))
}

func neighborStatus(n *state.NeighborEntry) string {
	if n.IsPending() {
		return cli.Status("pending")
	}
	return cli.Status("resolved")
}

func vlanList(m state.VlanMembership) string {
	ids := make([]state.VlanID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	return util.FormatIDList(ids)
}
