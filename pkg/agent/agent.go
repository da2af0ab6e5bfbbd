// Package agent is the single writer of a switch's desired state. It turns
// mutations into new published snapshots and drives the managers to make
// the hardware follow.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/newtron-network/switchd/pkg/audit"
	"github.com/newtron-network/switchd/pkg/manager"
	"github.com/newtron-network/switchd/pkg/state"
	"github.com/newtron-network/switchd/pkg/util"
)

// ErrReconcileFailed is matched by every ApplyError.
var ErrReconcileFailed = errors.New("reconcile failed")

// ApplyError reports an update whose snapshot could not be fully
// programmed. The agent kept the previous snapshot and tried to put the
// hardware back to it.
type ApplyError struct {
	Result   *manager.ReconcileResult
	Rollback *manager.ReconcileResult
}

func (e *ApplyError) Error() string {
	msg := fmt.Sprintf("%v: %v", ErrReconcileFailed, e.Result.Err())
	if e.Rollback != nil && !e.Rollback.OK() {
		msg += fmt.Sprintf(" (rollback incomplete: %v)", e.Rollback.Err())
	}
	return msg
}

func (e *ApplyError) Unwrap() []error {
	return []error{ErrReconcileFailed, e.Result.Err()}
}

// RolledBack reports whether the hardware is back at the previous snapshot.
func (e *ApplyError) RolledBack() bool {
	return e.Rollback != nil && e.Rollback.OK()
}

// Agent owns the published snapshot of one switch.
type Agent struct {
	name   string
	user   string
	table  *manager.ManagerTable
	policy manager.Policy
	audit  audit.Logger
	log    *logrus.Entry

	// mu serializes writers. Readers go through current only.
	mu      sync.Mutex
	current atomic.Pointer[state.SwitchState]
	// dirty is set when hardware may be out of line with current. stale is
	// the snapshot a failed rollback was leaving, if any.
	dirty bool
	stale *state.SwitchState
}

// Option configures an Agent.
type Option func(*Agent)

// WithPolicy sets the reconcile policy. The default is ContinueOnError.
func WithPolicy(p manager.Policy) Option {
	return func(a *Agent) { a.policy = p }
}

// WithAuditLogger records every transition to l.
func WithAuditLogger(l audit.Logger) Option {
	return func(a *Agent) { a.audit = l }
}

// WithUser sets the user recorded in audit events.
func WithUser(user string) Option {
	return func(a *Agent) { a.user = user }
}

// New creates an agent for the switch name whose hardware is driven by
// table. It starts from an empty snapshot.
func New(name string, table *manager.ManagerTable, opts ...Option) *Agent {
	a := &Agent{
		name:  name,
		table: table,
		log:   util.WithSwitch(name),
	}
	for _, opt := range opts {
		opt(a)
	}
	empty := state.NewSwitchState()
	empty.Publish()
	a.current.Store(empty)
	return a
}

// State returns the current published snapshot. It never blocks, and the
// snapshot never changes under the caller.
func (a *Agent) State() *state.SwitchState {
	return a.current.Load()
}

// Table returns the manager table the agent drives.
func (a *Agent) Table() *manager.ManagerTable { return a.table }

// Dirty reports whether hardware may be out of line with State, after an
// incomplete rollback or warm boot, until the next successful Resync.
func (a *Agent) Dirty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.dirty
}

// Update applies fn to a writable copy of the current snapshot, validates
// and publishes it, and reconciles the hardware. The new snapshot becomes
// current only if reconciliation succeeded; otherwise the hardware is
// rolled back and an *ApplyError is returned. Calling Update again with
// the same fn is safe.
//
// Validation errors are returned before any hardware call.
func (a *Agent) Update(ctx context.Context, fn func(*state.SwitchState) error) (*manager.ReconcileResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	old := a.current.Load()
	next := old.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	next.Publish()

	d := state.NewStateDelta(old, next)
	if d.Empty() || old.Equal(next) {
		return &manager.ReconcileResult{}, nil
	}

	event := audit.NewEvent(a.user, a.name, audit.OpUpdate).
		WithChanges(Summarize(d)).
		WithPolicy(a.policy.String())
	res := a.table.Reconcile(ctx, d, a.policy)
	if res.OK() {
		a.current.Store(next)
		a.log.WithField("changes", len(event.Changes)).Info("state applied")
		a.record(event.WithSuccess().WithDuration(time.Since(start)))
		return res, nil
	}

	applyErr := &ApplyError{Result: res}
	a.log.WithError(res.Err()).Warn("reconcile failed, rolling back")
	applyErr.Rollback = a.table.Reconcile(context.WithoutCancel(ctx), state.NewStateDelta(next, old), manager.ContinueOnError)
	if !applyErr.Rollback.OK() {
		a.dirty, a.stale = true, next
		a.log.WithError(applyErr.Rollback.Err()).Error("rollback incomplete")
	}
	a.record(event.WithFailures(failures(res)).WithError(applyErr).WithDuration(time.Since(start)))
	return res, applyErr
}

// Resync drives the hardware to the current snapshot. It first undoes what
// an incomplete rollback left behind, then reprograms from scratch; objects
// already programmed are left alone, so only what is missing or differs is
// touched. It clears Dirty on success.
func (a *Agent) Resync(ctx context.Context) (*manager.ReconcileResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	start := time.Now()
	cur := a.current.Load()
	event := audit.NewEvent(a.user, a.name, audit.OpResync).WithPolicy(a.policy.String())
	fail := func(res *manager.ReconcileResult) (*manager.ReconcileResult, error) {
		a.record(event.WithFailures(failures(res)).WithError(res.Err()).WithDuration(time.Since(start)))
		return res, fmt.Errorf("resync: %w", res.Err())
	}

	if a.stale != nil {
		res := a.table.Reconcile(ctx, state.NewStateDelta(a.stale, cur), a.policy)
		if !res.OK() {
			return fail(res)
		}
		a.stale = nil
	}
	res := a.table.Reconcile(ctx, state.NewStateDelta(nil, cur), a.policy)
	if !res.OK() {
		return fail(res)
	}
	a.dirty = false
	a.record(event.WithSuccess().WithDuration(time.Since(start)))
	return res, nil
}

func (a *Agent) record(e *audit.Event) {
	if a.audit == nil {
		return
	}
	if err := a.audit.Log(e); err != nil {
		a.log.WithError(err).Warn("audit log write failed")
	}
}

func failures(r *manager.ReconcileResult) []audit.Failure {
	out := make([]audit.Failure, 0, len(r.Failures))
	for _, f := range r.Failures {
		af := audit.Failure{Entity: f.Type}
		for _, err := range f.Errors {
			af.Errors = append(af.Errors, err.Error())
		}
		out = append(out, af)
	}
	return out
}
