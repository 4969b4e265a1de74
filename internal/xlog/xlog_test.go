package xlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoggerWritesDailyNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 16})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Log(Event{Model: "m1", UserText: "hola", ReplyText: "¡hola!"})

	path := filepath.Join(dir, time.Now().UTC().Format("2006-01-02")+".ndjson")
	line := waitForLogLine(t, path)

	var got Event
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.UserText != "hola" || got.ReplyText != "¡hola!" {
		t.Fatalf("unexpected event: %+v", got)
	}
	if got.Timestamp == "" {
		t.Fatal("expected timestamp to be filled in")
	}

	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := New(Config{Enabled: true, Dir: dir, QueueSize: 64})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for i := 0; i < 10; i++ {
		logger.Log(Event{UserText: "u", ReplyText: "r"})
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	path := filepath.Join(dir, time.Now().UTC().Format("2006-01-02")+".ndjson")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 10 {
		t.Fatalf("expected 10 lines after drain, got %d", len(lines))
	}
}

func TestDisabledLoggerIsNil(t *testing.T) {
	t.Parallel()

	logger, err := New(Config{Enabled: false})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if logger != nil {
		t.Fatal("expected nil logger when disabled")
	}

	// Nil receivers must be no-ops.
	logger.Log(Event{UserText: "u"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close on nil failed: %v", err)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
