// This file implements STATE_DB access (Redis DB 6) for observed link state.
package device

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-redis/redis/v8"

	"github.com/newtron-network/switchd/pkg/state"
)

// StateDBNumber is the Redis database SONiC keeps operational state in.
const StateDBNumber = 6

// PortStateEntry represents interface operational state from PORT_TABLE
type PortStateEntry struct {
	AdminStatus string `json:"admin_status,omitempty"`
	OperStatus  string `json:"oper_status,omitempty"`
	Speed       string `json:"speed,omitempty"`
	MTU         string `json:"mtu,omitempty"`
}

// Up reports whether the port's link is up.
func (e PortStateEntry) Up() bool { return e.OperStatus == "up" }

// StateDBClient wraps a Redis client for state_db access.
type StateDBClient struct {
	client *redis.Client
}

// NewStateDBClient creates a new state_db client
func NewStateDBClient(addr string) *StateDBClient {
	return &StateDBClient{
		client: redis.NewClient(&redis.Options{
			Addr: addr,
			DB:   StateDBNumber,
		}),
	}
}

// Connect tests the connection
func (c *StateDBClient) Connect(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the connection
func (c *StateDBClient) Close() error {
	return c.client.Close()
}

// GetPortState returns operational state for a specific interface from PORT_TABLE.
func (c *StateDBClient) GetPortState(ctx context.Context, name string) (*PortStateEntry, error) {
	vals, err := c.client.HGetAll(ctx, "PORT_TABLE|"+name).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, fmt.Errorf("interface %s not found in state_db PORT_TABLE", name)
	}
	e := parsePortState(vals)
	return &e, nil
}

// PortStates reads the whole PORT_TABLE, keyed by interface name.
func (c *StateDBClient) PortStates(ctx context.Context) (map[string]PortStateEntry, error) {
	out := make(map[string]PortStateEntry)
	// SCAN rather than KEYS so a busy STATE_DB is not blocked.
	iter := c.client.Scan(ctx, 0, "PORT_TABLE|*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		name := strings.TrimPrefix(key, "PORT_TABLE|")
		vals, err := c.client.HGetAll(ctx, key).Result()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", key, err)
		}
		out[name] = parsePortState(vals)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning PORT_TABLE: %w", err)
	}
	return out, nil
}

func parsePortState(vals map[string]string) PortStateEntry {
	return PortStateEntry{
		AdminStatus: vals["admin_status"],
		OperStatus:  vals["oper_status"],
		Speed:       vals["speed"],
		MTU:         vals["mtu"],
	}
}

// ApplyLinkStates records the observed link state of every port whose name
// appears in links. Ports missing from links keep their last state. Ports
// whose state already matches are left untouched, so an unchanged table
// yields an empty delta.
func ApplyLinkStates(s *state.SwitchState, links map[string]PortStateEntry) error {
	var changed []*state.Port
	s.GetPorts().ForEach(func(p *state.Port) error {
		if e, ok := links[p.GetName()]; ok && e.Up() != p.IsUp() {
			changed = append(changed, p)
		}
		return nil
	})
	for _, p := range changed {
		np, err := s.ModifyPort(p.GetID())
		if err != nil {
			return err
		}
		np.SetOperState(links[p.GetName()].Up())
	}
	return nil
}
