package util

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

// saveLoggerState saves the current logger state for restoration
func saveLoggerState() (io.Writer, logrus.Level, logrus.Formatter) {
	return Logger.Out, Logger.Level, Logger.Formatter
}

// restoreLoggerState restores the logger to its previous state
func restoreLoggerState(out io.Writer, level logrus.Level, formatter logrus.Formatter) {
	Logger.SetOutput(out)
	Logger.SetLevel(level)
	Logger.SetFormatter(formatter)
}

func TestConfigureLoggingLevels(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	tests := []struct {
		level   string
		wantErr bool
	}{
		{"debug", false},
		{"info", false},
		{"warn", false},
		{"warning", false},
		{"error", false},
		{"invalid", true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			err := ConfigureLogging(tt.level, false)
			if (err != nil) != tt.wantErr {
				t.Errorf("ConfigureLogging(%q) error = %v, wantErr %v", tt.level, err, tt.wantErr)
			}
		})
	}
}

func TestConfigureLoggingJSON(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	if err := ConfigureLogging("info", true); err != nil {
		t.Fatal(err)
	}

	WithSwitch("tor1").WithField("manager", "neighbor").Info("programmed")

	var line map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if line["switch"] != "tor1" {
		t.Errorf("switch field = %v, want tor1", line["switch"])
	}
	if line["manager"] != "neighbor" {
		t.Errorf("manager field = %v, want neighbor", line["manager"])
	}
}

func TestLevelFiltering(t *testing.T) {
	out, level, formatter := saveLoggerState()
	defer restoreLoggerState(out, level, formatter)

	var buf bytes.Buffer
	SetLogOutput(&buf)
	if err := ConfigureLogging("warn", false); err != nil {
		t.Fatal(err)
	}

	WithManager("fdb").Debugf("debug %d", 1)
	Infof("info %d", 2)
	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}

	Warnf("warn %d", 3)
	Errorf("error %d", 4)
	got := buf.String()
	if !strings.Contains(got, "warn 3") || !strings.Contains(got, "error 4") {
		t.Errorf("missing warn/error output: %q", got)
	}
}

func TestWithManager(t *testing.T) {
	entry := WithManager("fdb")
	if entry.Data["manager"] != "fdb" {
		t.Errorf("manager field = %v, want fdb", entry.Data["manager"])
	}
	if entry := WithBackend("asic_db"); entry.Data["backend"] != "asic_db" {
		t.Errorf("backend field = %v, want asic_db", entry.Data["backend"])
	}
	entry = WithFields(map[string]interface{}{"key": "k", "op": "create"})
	if entry.Data["op"] != "create" {
		t.Errorf("op field = %v, want create", entry.Data["op"])
	}
}
