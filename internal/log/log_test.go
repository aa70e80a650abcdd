package log

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestInitWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "debug", "json")
	defer Init("info", "")

	Component("registry").Info("session created", "connection_id", "c1")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["component"] != "registry" || rec["connection_id"] != "c1" {
		t.Errorf("record = %v, want component and connection_id attrs", rec)
	}
}

func TestInitWriter_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(&buf, "warn", "text")
	defer Init("info", "")

	Info("hidden")
	Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn record should be written")
	}
}
