package logger

import (
	"strings"
	"testing"
)

func TestSanitizeKVsRedactsAndHashes(t *testing.T) {
	out := sanitizeKVs([]interface{}{"author_id", "alice", "db_password", "x", "uid", "Activity_000001"})
	if len(out) != 6 {
		t.Fatalf("len: %d", len(out))
	}
	hashed, _ := out[1].(string)
	if !strings.HasPrefix(hashed, "hash:") || strings.Contains(hashed, "alice") {
		t.Fatalf("author_id not hashed: %v", out[1])
	}
	if out[3] != "[REDACTED]" {
		t.Fatalf("password not redacted: %v", out[3])
	}
	if out[5] != "Activity_000001" {
		t.Fatalf("uid must pass through: %v", out[5])
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Info("nothing", "k", "v")
	l.With("component", "test").Debug("still nothing")
	Nop().Warn("discarded")
}
