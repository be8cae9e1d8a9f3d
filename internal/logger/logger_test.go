package logger

import (
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func observed(redact bool) (*Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))
	l.redact = redact
	return l, logs
}

func TestRedaction(t *testing.T) {
	l, logs := observed(true)
	l.Info("profile saved",
		"session_token", "abc.def",
		"SESSION_SECRET", "hunter2",
		"user_id", "8f14e45f",
		"agency", "Publicis",
	)

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	fields := entries[0].ContextMap()

	if fields["session_token"] != "[REDACTED]" {
		t.Errorf("session_token = %v, want redacted", fields["session_token"])
	}
	if fields["SESSION_SECRET"] != "[REDACTED]" {
		t.Errorf("SESSION_SECRET = %v, want redacted", fields["SESSION_SECRET"])
	}
	uid, _ := fields["user_id"].(string)
	if !strings.HasPrefix(uid, "hash:") || strings.Contains(uid, "8f14e45f") {
		t.Errorf("user_id = %q, want hashed", uid)
	}
	if fields["agency"] != "Publicis" {
		t.Errorf("agency = %v, want untouched", fields["agency"])
	}
}

func TestNoRedactionWhenDisabled(t *testing.T) {
	l, logs := observed(false)
	l.Warn("x", "api_key", "k-123")

	if got := logs.All()[0].ContextMap()["api_key"]; got != "k-123" {
		t.Errorf("api_key = %v, want raw value", got)
	}
}

func TestWithCarriesFields(t *testing.T) {
	l, logs := observed(true)
	l.With("component", "questions").Error("boom", "category", "seo")

	e := logs.All()[0]
	if e.Level != zapcore.ErrorLevel {
		t.Errorf("level = %v", e.Level)
	}
	m := e.ContextMap()
	if m["component"] != "questions" || m["category"] != "seo" {
		t.Errorf("fields = %v", m)
	}
}

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod"} {
		l, err := New(Options{Mode: mode})
		if err != nil {
			t.Fatalf("New(%q): %v", mode, err)
		}
		l.Info("hello")
	}
	NewNop().Info("discarded")
}
