package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T, rotation RotationConfig) (*FileLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "audit.log")
	logger, err := NewFileLogger(logPath, rotation)
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger, logPath
}

func TestEvent_New(t *testing.T) {
	event := NewEvent("alice", "leaf1", OpUpdate)

	if event.User != "alice" {
		t.Errorf("User = %q, want %q", event.User, "alice")
	}
	if event.Switch != "leaf1" {
		t.Errorf("Switch = %q, want %q", event.Switch, "leaf1")
	}
	if event.Operation != OpUpdate {
		t.Errorf("Operation = %q, want %q", event.Operation, OpUpdate)
	}
	if event.ID == "" {
		t.Error("ID should not be empty")
	}
	if event.Timestamp.IsZero() {
		t.Error("Timestamp should be set")
	}
}

func TestEvent_Chaining(t *testing.T) {
	event := NewEvent("alice", "leaf1", OpUpdate).
		WithChanges([]Change{{Entity: "vlan", Added: 2}}).
		WithPolicy("abort").
		WithSuccess().
		WithDuration(time.Second)

	if len(event.Changes) != 1 || event.Changes[0].Added != 2 {
		t.Errorf("Changes = %+v", event.Changes)
	}
	if event.Policy != "abort" {
		t.Errorf("Policy = %q", event.Policy)
	}
	if !event.Success {
		t.Error("Success should be true")
	}
	if event.Duration != time.Second {
		t.Errorf("Duration = %v", event.Duration)
	}
}

func TestEvent_WithError(t *testing.T) {
	event := NewEvent("alice", "leaf1", OpUpdate).
		WithError(errors.New("vlan table full"))

	if event.Success {
		t.Error("Success should be false")
	}
	if event.Error != "vlan table full" {
		t.Errorf("Error = %q", event.Error)
	}

	event2 := NewEvent("alice", "leaf1", OpUpdate).WithError(nil)
	if event2.Success || event2.Error != "" {
		t.Errorf("WithError(nil) = %+v", event2)
	}
}

func TestEvent_Touches(t *testing.T) {
	event := NewEvent("alice", "leaf1", OpUpdate).
		WithChanges([]Change{{Entity: "port", Changed: 1}}).
		WithFailures([]Failure{{Entity: "neighbor", Errors: []string{"boom"}}})

	for entity, want := range map[string]bool{"port": true, "neighbor": true, "fdb": false} {
		if got := event.Touches(entity); got != want {
			t.Errorf("Touches(%q) = %v, want %v", entity, got, want)
		}
	}
}

func TestFilter_Matches(t *testing.T) {
	ok := NewEvent("alice", "leaf1", OpUpdate).
		WithChanges([]Change{{Entity: "vlan", Added: 1}}).
		WithSuccess()
	failed := NewEvent("bob", "leaf1", OpResync).
		WithFailures([]Failure{{Entity: "neighbor", Errors: []string{"table full"}}}).
		WithError(errors.New("table full"))

	tests := []struct {
		name   string
		filter Filter
		want   []*Event
	}{
		{"empty filter", Filter{}, []*Event{ok, failed}},
		{"failure only", Filter{FailureOnly: true}, []*Event{failed}},
		{"success only", Filter{SuccessOnly: true}, []*Event{ok}},
		{"by user", Filter{User: "alice"}, []*Event{ok}},
		{"by operation", Filter{Operation: OpResync}, []*Event{failed}},
		{"by entity", Filter{Entity: "neighbor"}, []*Event{failed}},
		{"other switch", Filter{Switch: "spine1"}, nil},
		{"window ended", Filter{EndTime: ok.Timestamp.Add(-time.Hour)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []*Event
			for _, e := range []*Event{ok, failed} {
				if tt.filter.Matches(e) {
					got = append(got, e)
				}
			}
			if len(got) != len(tt.want) {
				t.Fatalf("matched %d events, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("match %d = %s, want %s", i, got[i].ID, tt.want[i].ID)
				}
			}
		})
	}
}

func TestFileLogger_Basic(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	event := NewEvent("alice", "leaf1", OpUpdate).
		WithChanges([]Change{{Entity: "neighbor", Added: 1}}).
		WithSuccess()
	if err := logger.Log(event); err != nil {
		t.Fatalf("Log failed: %v", err)
	}

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(results))
	}
	got := results[0]
	if got.ID != event.ID || got.Switch != "leaf1" || !got.Success {
		t.Errorf("Query returned %+v", got)
	}
	if len(got.Changes) != 1 || got.Changes[0].Entity != "neighbor" {
		t.Errorf("Changes = %+v", got.Changes)
	}
}

func TestFileLogger_QueryFilters(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})

	events := []*Event{
		NewEvent("alice", "leaf1", OpUpdate).WithChanges([]Change{{Entity: "vlan", Added: 1}}).WithSuccess(),
		NewEvent("bob", "leaf1", OpWarmBoot).WithSuccess(),
		NewEvent("alice", "spine1", OpUpdate).
			WithFailures([]Failure{{Entity: "fdb", Errors: []string{"dependency missing"}}}).
			WithError(errors.New("failed")),
		NewEvent("charlie", "leaf2", OpResync).WithChanges([]Change{{Entity: "vlan", Changed: 1}}).WithSuccess(),
	}
	for _, e := range events {
		if err := logger.Log(e); err != nil {
			t.Fatalf("Log failed: %v", err)
		}
	}

	tests := []struct {
		name   string
		filter Filter
		want   int
	}{
		{"by user", Filter{User: "alice"}, 2},
		{"by switch", Filter{Switch: "leaf1"}, 2},
		{"by operation", Filter{Operation: OpUpdate}, 2},
		{"by entity", Filter{Entity: "vlan"}, 2},
		{"by failed entity", Filter{Entity: "fdb"}, 1},
		{"success only", Filter{SuccessOnly: true}, 3},
		{"failure only", Filter{FailureOnly: true}, 1},
		{"limit", Filter{Limit: 2}, 2},
		{"offset", Filter{Offset: 2}, 2},
		{"offset beyond end", Filter{Offset: 10}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := logger.Query(tt.filter)
			if err != nil {
				t.Fatalf("Query failed: %v", err)
			}
			if len(results) != tt.want {
				t.Errorf("got %d events, want %d", len(results), tt.want)
			}
		})
	}
}

func TestFileLogger_QueryTimeFilter(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})
	if err := logger.Log(NewEvent("alice", "leaf1", OpUpdate).WithSuccess()); err != nil {
		t.Fatal(err)
	}

	results, _ := logger.Query(Filter{
		StartTime: time.Now().Add(-time.Hour),
		EndTime:   time.Now().Add(time.Hour),
	})
	if len(results) != 1 {
		t.Errorf("Expected 1 event in time range, got %d", len(results))
	}

	results, _ = logger.Query(Filter{StartTime: time.Now().Add(time.Hour)})
	if len(results) != 0 {
		t.Errorf("Expected 0 events after range, got %d", len(results))
	}
	results, _ = logger.Query(Filter{EndTime: time.Now().Add(-time.Hour)})
	if len(results) != 0 {
		t.Errorf("Expected 0 events before range, got %d", len(results))
	}
}

func TestFileLogger_CreatesDirectory(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nonexistent", "audit.log")
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger should create directories: %v", err)
	}
	logger.Close()
}

func TestFileLogger_LogRotation(t *testing.T) {
	logger, logPath := newTestLogger(t, RotationConfig{MaxSize: 300, MaxBackups: 2})

	var ids []string
	for i := 0; i < 10; i++ {
		event := NewEvent("alice", "leaf1", OpUpdate).
			WithChanges([]Change{{Entity: "port", Changed: i}}).
			WithSuccess()
		if err := logger.Log(event); err != nil {
			t.Fatalf("Log failed on iteration %d: %v", i, err)
		}
		ids = append(ids, event.ID)
	}

	if _, err := os.Stat(logPath + ".1"); err != nil {
		t.Errorf("Expected rotation to create %s.1: %v", logPath, err)
	}
	if _, err := os.Stat(logPath + ".3"); !os.IsNotExist(err) {
		t.Errorf("Expected at most 2 backups, found %s.3", logPath)
	}

	// The newest event is always queryable, and results stay in order.
	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || len(results) == 10 {
		t.Fatalf("got %d events, want the retained subset", len(results))
	}
	if last := results[len(results)-1]; last.ID != ids[9] {
		t.Errorf("newest event = %s, want %s", last.ID, ids[9])
	}
	for i := 1; i < len(results); i++ {
		if results[i].Timestamp.Before(results[i-1].Timestamp) {
			t.Errorf("results out of order at %d", i)
		}
	}
}

func TestFileLogger_QuerySpansBackups(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{MaxSize: 1, MaxBackups: 5})

	for _, sw := range []string{"leaf1", "leaf2", "leaf3"} {
		if err := logger.Log(NewEvent("alice", sw, OpUpdate).WithSuccess()); err != nil {
			t.Fatal(err)
		}
	}
	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, e := range results {
		got = append(got, e.Switch)
	}
	if len(got) != 3 || got[0] != "leaf1" || got[2] != "leaf3" {
		t.Errorf("switches = %v, want [leaf1 leaf2 leaf3]", got)
	}
}

func TestFileLogger_LimitKeepsNewest(t *testing.T) {
	logger, _ := newTestLogger(t, RotationConfig{})
	for _, sw := range []string{"leaf1", "leaf2", "leaf3", "leaf4"} {
		if err := logger.Log(NewEvent("alice", sw, OpUpdate).WithSuccess()); err != nil {
			t.Fatal(err)
		}
	}

	results, _ := logger.Query(Filter{Limit: 2})
	if len(results) != 2 || results[0].Switch != "leaf3" || results[1].Switch != "leaf4" {
		t.Errorf("Limit 2 = %+v, want leaf3 and leaf4", results)
	}
	results, _ = logger.Query(Filter{Offset: 1, Limit: 2})
	if len(results) != 2 || results[0].Switch != "leaf2" || results[1].Switch != "leaf3" {
		t.Errorf("Offset 1 Limit 2 = %+v, want leaf2 and leaf3", results)
	}
}

func TestFileLogger_OpenErrors(t *testing.T) {
	if _, err := NewFileLogger("/dev/null/impossible/audit.log", RotationConfig{}); err == nil {
		t.Error("NewFileLogger should fail when directory creation fails")
	}

	logPath := filepath.Join(t.TempDir(), "audit.log")
	if err := os.Mkdir(logPath, 0755); err != nil {
		t.Fatal(err)
	}
	if _, err := NewFileLogger(logPath, RotationConfig{}); err == nil {
		t.Error("NewFileLogger should fail when log path is a directory")
	}
}

func TestFileLogger_QueryMalformedJSON(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.log")
	content := `{"user":"alice","switch":"leaf1","operation":"update","success":true}
invalid json line
{"user":"bob","switch":"leaf2","operation":"update","success":true}
`
	if err := os.WriteFile(logPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	logger, err := NewFileLogger(logPath, RotationConfig{})
	if err != nil {
		t.Fatalf("NewFileLogger failed: %v", err)
	}
	defer logger.Close()

	results, err := logger.Query(Filter{})
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("Expected 2 valid events (skipping malformed), got %d", len(results))
	}
}

func TestFileLogger_CloseNilFile(t *testing.T) {
	logger := &FileLogger{path: "/tmp/test.log"}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() with nil file should not error: %v", err)
	}
}
