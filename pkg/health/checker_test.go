package health

import (
	"context"
	"testing"

	"github.com/newtron-network/switchd/pkg/agent"
	"github.com/newtron-network/switchd/pkg/config"
	"github.com/newtron-network/switchd/pkg/manager"
	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/sai/fakesai"
)

const leaf = `
name: leaf1
mac: 02:00:00:00:00:01
ports:
  - {id: 1, name: eth1/1/1, admin: enabled}
  - {id: 2, name: eth1/2/1, admin: enabled}
vlans:
  - {id: 100, untagged: "1-2"}
interfaces:
  - id: 100
    vlan: 100
    addresses: ["10.0.0.1/24"]
    neighbors:
      - {ip: "10.0.0.10", mac: "00:aa:00:00:00:10", port: 1}
      - {ip: "10.0.0.20"}
`

func programmed(t *testing.T) (*agent.Agent, *fakesai.Switch) {
	t.Helper()
	cfg, err := config.Parse([]byte(leaf))
	if err != nil {
		t.Fatal(err)
	}
	hw := fakesai.New()
	a := agent.New("leaf1", manager.NewManagerTable(hw, hw.SwitchID(), hw.DefaultVirtualRouter()))
	if _, err := a.Update(context.Background(), cfg.ApplyTo); err != nil {
		t.Fatal(err)
	}
	return a, hw
}

func statuses(r *Report) map[string]Status {
	out := map[string]Status{}
	for _, res := range r.Results {
		out[res.Check] = res.Status
	}
	return out
}

func TestCheckerHealthy(t *testing.T) {
	a, hw := programmed(t)
	report := NewChecker().Run(context.Background(), "leaf1", &Target{Agent: a, Lister: hw})

	if report.Overall != StatusOK {
		t.Errorf("Overall = %q, want ok: %+v", report.Overall, report.Results)
	}
	if report.Switch != "leaf1" || len(report.Results) != 4 {
		t.Errorf("report = %+v", report)
	}
	for _, res := range report.Results {
		if res.Timestamp.IsZero() {
			t.Errorf("check %s has no timestamp", res.Check)
		}
	}
}

func TestPendingCheck(t *testing.T) {
	a, hw := programmed(t)
	res, err := NewChecker().RunCheck(context.Background(), &Target{Agent: a, Lister: hw}, "pending")
	if err != nil {
		t.Fatal(err)
	}
	pending, ok := res.Details.(map[string]int)
	if !ok || pending[manager.EntityNeighbor] != 1 {
		t.Errorf("Details = %#v, want one pending neighbor", res.Details)
	}
}

func TestHardwareCheckMissing(t *testing.T) {
	a, hw := programmed(t)
	ctx := context.Background()
	for _, e := range a.Table().Entries()[manager.EntityNeighbor] {
		if e.Resolved {
			if err := hw.Remove(ctx, e.Handle); err != nil {
				t.Fatal(err)
			}
		}
	}

	res, err := NewChecker().RunCheck(ctx, &Target{Agent: a, Lister: hw}, "hardware")
	if err != nil {
		t.Fatal(err)
	}
	if res.Status != StatusCritical {
		t.Fatalf("Status = %q, want critical", res.Status)
	}
	details := res.Details.(HardwareDetails)
	if got := details.Missing[manager.EntityNeighbor]; len(got) != 1 {
		t.Errorf("missing neighbors = %v", got)
	}
}

func TestHardwareCheckOrphan(t *testing.T) {
	a, hw := programmed(t)
	ctx := context.Background()
	if _, err := hw.Create(ctx, sai.ObjectKey{Type: sai.ObjectTypeVlan, Name: "stray"}, sai.Attributes{}); err != nil {
		t.Fatal(err)
	}

	report := NewChecker().Run(ctx, "leaf1", &Target{Agent: a, Lister: hw})
	if report.Overall != StatusWarning {
		t.Errorf("Overall = %q, want warning", report.Overall)
	}
	if got := statuses(report)["hardware"]; got != StatusWarning {
		t.Errorf("hardware = %q, want warning", got)
	}
}

func TestHardwareCheckWithoutLister(t *testing.T) {
	a, _ := programmed(t)
	report := NewChecker().Run(context.Background(), "leaf1", &Target{Agent: a})
	if got := statuses(report)["hardware"]; got != StatusUnknown {
		t.Errorf("hardware = %q, want unknown", got)
	}
	if report.Overall != StatusUnknown {
		t.Errorf("Overall = %q, want unknown", report.Overall)
	}
}

func TestRunCheckUnknown(t *testing.T) {
	a, _ := programmed(t)
	if _, err := NewChecker().RunCheck(context.Background(), &Target{Agent: a}, "bgp"); err == nil {
		t.Error("RunCheck() should reject an unknown check")
	}
}

func TestWorse(t *testing.T) {
	tests := []struct {
		a, b, want Status
	}{
		{StatusOK, StatusOK, StatusOK},
		{StatusOK, StatusWarning, StatusWarning},
		{StatusCritical, StatusWarning, StatusCritical},
		{StatusUnknown, StatusOK, StatusUnknown},
		{StatusWarning, StatusUnknown, StatusWarning},
	}
	for _, tt := range tests {
		if got := worse(tt.a, tt.b); got != tt.want {
			t.Errorf("worse(%q, %q) = %q, want %q", tt.a, tt.b, got, tt.want)
		}
	}
}
