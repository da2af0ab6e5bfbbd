// Package audit records every state transition the agent applies.
package audit

import (
	"fmt"
	"time"
)

// Event records one applied (or refused) state transition
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Switch    string        `json:"switch"`
	Operation string        `json:"operation"`
	Changes   []Change      `json:"changes"`
	Failures  []Failure     `json:"failures,omitempty"`
	Policy    string        `json:"policy,omitempty"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Change counts the entities of one type a transition touched
type Change struct {
	Entity  string `json:"entity"`
	Added   int    `json:"added,omitempty"`
	Removed int    `json:"removed,omitempty"`
	Changed int    `json:"changed,omitempty"`
}

// Failure lists the errors of one entity type
type Failure struct {
	Entity string   `json:"entity"`
	Errors []string `json:"errors"`
}

// Operations recorded by the agent
const (
	OpUpdate   = "update"
	OpWarmBoot = "warm_boot"
	OpResync   = "resync"
)

// Filter defines criteria for querying audit events
type Filter struct {
	Switch      string
	User        string
	Operation   string
	Entity      string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event
func NewEvent(user, sw, operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		User:      user,
		Switch:    sw,
		Operation: operation,
	}
}

// WithChanges sets the changes
func (e *Event) WithChanges(changes []Change) *Event {
	e.Changes = changes
	return e
}

// WithFailures sets the per-entity failures
func (e *Event) WithFailures(failures []Failure) *Event {
	e.Failures = failures
	return e
}

// WithPolicy sets the reconcile policy in effect
func (e *Event) WithPolicy(policy string) *Event {
	e.Policy = policy
	return e
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// Touches reports whether the event changed or failed on entity.
func (e *Event) Touches(entity string) bool {
	for _, c := range e.Changes {
		if c.Entity == entity {
			return true
		}
	}
	for _, f := range e.Failures {
		if f.Entity == entity {
			return true
		}
	}
	return false
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
