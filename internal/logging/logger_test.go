package logging

import (
	"bytes"
	"encoding/json"
	"testing"
)

func TestNewWithWriterTagsService(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "debug", "authfront")

	logger.Debug("hello", "user", "alice")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if record["service"] != "authfront" {
		t.Fatalf("expected service attribute, got %v", record["service"])
	}
	if record["user"] != "alice" {
		t.Fatalf("expected user attribute, got %v", record["user"])
	}
}

func TestNewWithWriterInvalidLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "chatty", "")

	logger.Debug("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be filtered at info level, got %s", buf.String())
	}

	logger.Info("kept")
	if buf.Len() == 0 {
		t.Fatalf("expected info record")
	}
}
