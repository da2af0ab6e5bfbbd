// Package health checks that the hardware still matches what the agent
// believes it programmed.
package health

import (
	"context"
	"fmt"
	"time"

	"github.com/newtron-network/switchd/pkg/agent"
	"github.com/newtron-network/switchd/pkg/sai"
)

// Status represents the health status of a component
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// Result represents the result of a health check
type Result struct {
	Check     string        `json:"check"`
	Status    Status        `json:"status"`
	Message   string        `json:"message"`
	Details   interface{}   `json:"details,omitempty"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// Report contains all health check results for a switch
type Report struct {
	Switch    string        `json:"switch"`
	Timestamp time.Time     `json:"timestamp"`
	Overall   Status        `json:"overall"`
	Results   []Result      `json:"results"`
	Duration  time.Duration `json:"duration"`
}

// Target is what the checks inspect: the agent, and optionally a backend
// that can list what is actually programmed.
type Target struct {
	Agent  *agent.Agent
	Lister sai.Lister
}

// Check defines the interface for health checks
type Check interface {
	Name() string
	Run(ctx context.Context, t *Target) Result
}

// Checker runs health checks against an agent
type Checker struct {
	checks []Check
}

// NewChecker creates a new health checker with default checks
func NewChecker() *Checker {
	return &Checker{
		checks: []Check{
			&SyncCheck{},
			&IdentityCheck{},
			&HardwareCheck{},
			&PendingCheck{},
		},
	}
}

// Run executes all health checks and returns a report
func (c *Checker) Run(ctx context.Context, name string, t *Target) *Report {
	start := time.Now()
	report := &Report{
		Switch:    name,
		Timestamp: start,
		Results:   make([]Result, 0, len(c.checks)),
		Overall:   StatusOK,
	}

	for _, check := range c.checks {
		checkStart := time.Now()
		result := check.Run(ctx, t)
		result.Check = check.Name()
		result.Duration = time.Since(checkStart)
		result.Timestamp = checkStart
		report.Results = append(report.Results, result)
		report.Overall = worse(report.Overall, result.Status)
	}

	report.Duration = time.Since(start)
	return report
}

// RunCheck runs one check by name.
func (c *Checker) RunCheck(ctx context.Context, t *Target, name string) (*Result, error) {
	for _, check := range c.checks {
		if check.Name() == name {
			start := time.Now()
			result := check.Run(ctx, t)
			result.Check = name
			result.Duration = time.Since(start)
			result.Timestamp = start
			return &result, nil
		}
	}
	return nil, fmt.Errorf("unknown check: %s", name)
}

var severity = map[Status]int{
	StatusOK:       0,
	StatusUnknown:  1,
	StatusWarning:  2,
	StatusCritical: 3,
}

func worse(a, b Status) Status {
	if severity[b] > severity[a] {
		return b
	}
	return a
}

// SyncCheck reports an agent that knows its hardware is out of line.
type SyncCheck struct{}

func (c *SyncCheck) Name() string { return "sync" }

func (c *SyncCheck) Run(ctx context.Context, t *Target) Result {
	if t.Agent.Dirty() {
		return Result{Status: StatusCritical, Message: "hardware out of sync, resync pending"}
	}
	return Result{Status: StatusOK, Message: "hardware in sync"}
}

// IdentityCheck verifies that every manager's key and handle maps agree.
type IdentityCheck struct{}

func (c *IdentityCheck) Name() string { return "identity" }

func (c *IdentityCheck) Run(ctx context.Context, t *Target) Result {
	if !t.Agent.Table().Consistent() {
		return Result{Status: StatusCritical, Message: "key and handle maps diverged"}
	}
	return Result{Status: StatusOK, Message: "key and handle maps agree"}
}

// managedTypes maps entity names onto the object types the agent owns.
var managedTypes = map[string]sai.ObjectType{
	"port":             sai.ObjectTypePort,
	"bridge_port":      sai.ObjectTypeBridgePort,
	"vlan":             sai.ObjectTypeVlan,
	"vlan_member":      sai.ObjectTypeVlanMember,
	"router_interface": sai.ObjectTypeRouterInterface,
	"fdb":              sai.ObjectTypeFdbEntry,
	"neighbor":         sai.ObjectTypeNeighborEntry,
}

// HardwareDetails lists what HardwareCheck found, by entity type.
type HardwareDetails struct {
	Missing map[string][]string `json:"missing,omitempty"`
	Orphans map[string][]string `json:"orphans,omitempty"`
}

// HardwareCheck compares the handles the agent owns with the objects the
// backend lists. An owned handle that is gone is critical; an object nobody
// owns is a warning.
type HardwareCheck struct{}

func (c *HardwareCheck) Name() string { return "hardware" }

func (c *HardwareCheck) Run(ctx context.Context, t *Target) Result {
	if t.Lister == nil {
		return Result{Status: StatusUnknown, Message: "backend cannot list objects"}
	}

	details := HardwareDetails{Missing: map[string][]string{}, Orphans: map[string][]string{}}
	entries := t.Agent.Table().Entries()
	var missing, orphans int
	for entity, typ := range managedTypes {
		listed, err := t.Lister.Objects(ctx, typ)
		if err != nil {
			return Result{Status: StatusUnknown, Message: fmt.Sprintf("listing %s: %v", entity, err)}
		}
		present := make(map[sai.Handle]bool, len(listed))
		for _, h := range listed {
			present[h] = true
			if _, owned := t.Agent.Table().KeyOf(h); !owned {
				details.Orphans[entity] = append(details.Orphans[entity], h.ID)
				orphans++
			}
		}
		for _, e := range entries[entity] {
			if e.Resolved && !present[e.Handle] {
				details.Missing[entity] = append(details.Missing[entity], e.Key)
				missing++
			}
		}
	}

	switch {
	case missing > 0:
		return Result{Status: StatusCritical, Message: fmt.Sprintf("%d programmed objects missing", missing), Details: details}
	case orphans > 0:
		return Result{Status: StatusWarning, Message: fmt.Sprintf("%d objects not owned by the agent", orphans), Details: details}
	}
	return Result{Status: StatusOK, Message: "all programmed objects present"}
}

// PendingCheck counts entities waiting for a dependency, such as neighbors
// that are not resolved yet.
type PendingCheck struct{}

func (c *PendingCheck) Name() string { return "pending" }

func (c *PendingCheck) Run(ctx context.Context, t *Target) Result {
	pending := map[string]int{}
	total := 0
	for entity, entries := range t.Agent.Table().Entries() {
		for _, e := range entries {
			if !e.Resolved {
				pending[entity]++
				total++
			}
		}
	}
	if total == 0 {
		return Result{Status: StatusOK, Message: "no pending entities"}
	}
	return Result{Status: StatusOK, Message: fmt.Sprintf("%d entities pending", total), Details: pending}
}
