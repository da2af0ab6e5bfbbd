package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/newtron-network/switchd/pkg/audit"
	"github.com/newtron-network/switchd/pkg/manager"
	"github.com/newtron-network/switchd/pkg/sai"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/state/schema"
)

const (
	stateFile   = "switch_state.json"
	handlesFile = "hw_handles.json"
)

// ErrNoWarmBootState is returned by LoadWarmBoot when dir holds no saved
// state; the caller should cold boot.
var ErrNoWarmBootState = errors.New("no warm boot state")

type savedHandles struct {
	SwitchID string                `json:"switch_id"`
	Handles  map[string]sai.Handle `json:"handles"`
}

// SaveWarmBoot writes the current snapshot and the hardware handles of
// everything programmed to dir.
func (a *Agent) SaveWarmBoot(dir string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating warm boot directory: %w", err)
	}
	if err := writeJSON(filepath.Join(dir, stateFile), a.current.Load().ToSchema()); err != nil {
		return err
	}
	h := savedHandles{SwitchID: a.table.SwitchID().String(), Handles: a.table.ExportHandles()}
	if err := writeJSON(filepath.Join(dir, handlesFile), h); err != nil {
		return err
	}
	a.log.WithField("handles", len(h.Handles)).Info("warm boot state saved")
	return nil
}

// LoadWarmBoot restores the snapshot saved in dir and takes over the
// hardware objects it names without reprogramming them. Anything the saved
// handles do not cover is then programmed normally. The agent must not have
// applied any update yet.
func (a *Agent) LoadWarmBoot(ctx context.Context, dir string) (manager.RestoreStats, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	s, err := ReadSavedState(dir)
	if err != nil {
		return manager.RestoreStats{}, err
	}
	h, err := readHandles(dir)
	if err != nil {
		return manager.RestoreStats{}, err
	}
	if h.SwitchID != a.table.SwitchID().String() {
		return manager.RestoreStats{}, fmt.Errorf("warm boot state is for switch %s, not %s", h.SwitchID, a.table.SwitchID())
	}

	stats := a.table.RestoreHandles(s, h.Handles)
	a.current.Store(s)

	event := audit.NewEvent(a.user, a.name, audit.OpWarmBoot).WithPolicy(a.policy.String())
	res := a.table.Reconcile(ctx, state.NewStateDelta(nil, s), a.policy)
	if !res.OK() {
		a.dirty = true
		a.record(event.WithFailures(failures(res)).WithError(res.Err()).WithDuration(time.Since(start)))
		return stats, fmt.Errorf("warm boot: %w", res.Err())
	}
	a.record(event.WithSuccess().WithDuration(time.Since(start)))
	return stats, nil
}

// ReadSavedState loads the validated, published snapshot saved in dir.
func ReadSavedState(dir string) (*state.SwitchState, error) {
	var sch schema.SwitchState
	if err := readJSON(filepath.Join(dir, stateFile), &sch); err != nil {
		return nil, err
	}
	s, err := state.SwitchStateFromSchema(sch)
	if err != nil {
		return nil, fmt.Errorf("warm boot state: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("warm boot state: %w", err)
	}
	s.Publish()
	return s, nil
}

// ReadSavedHandles returns the hardware handles saved in dir, by entity key.
func ReadSavedHandles(dir string) (map[string]sai.Handle, error) {
	h, err := readHandles(dir)
	if err != nil {
		return nil, err
	}
	return h.Handles, nil
}

func readHandles(dir string) (*savedHandles, error) {
	var h savedHandles
	if err := readJSON(filepath.Join(dir, handlesFile), &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNoWarmBootState, path)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}
