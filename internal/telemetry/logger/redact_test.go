package logger

import (
	"strings"
	"testing"
)

func TestRedact_SensitiveKeys(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.Info("register", "user", "alice", "password", "pw1", "PasswordHash", "5e884898da28", "new_secret", "s")
	entry := decodeEntry(t, buf)

	if entry["user"] != "alice" {
		t.Errorf("user = %v, want alice", entry["user"])
	}
	for _, key := range []string{"password", "PasswordHash", "new_secret"} {
		if entry[key] != redactedValue {
			t.Errorf("%s = %v, want redacted", key, entry[key])
		}
	}
}

func TestRedact_EmptySensitiveValueKept(t *testing.T) {
	l, buf := newBufferLogger(t, "info")
	l.Info("login", "password", "")
	if entry := decodeEntry(t, buf); entry["password"] != "" {
		t.Errorf("empty password should stay empty, got %v", entry["password"])
	}
}

func TestRedact_Payload(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	l.Info("upload", "data", "aGVsbG8=")
	entry := decodeEntry(t, buf)
	if _, ok := entry["data"]; ok {
		t.Error("payload must not be logged")
	}
	if entry["data_len"] != float64(8) {
		t.Errorf("data_len = %v, want 8", entry["data_len"])
	}
}

func TestRedact_Argon2Digest(t *testing.T) {
	l, buf := newBufferLogger(t, "info")

	digest := "$argon2id$v=19$m=16384,t=2,p=2$c2FsdHNhbHQ$aGFzaGhhc2hoYXNo"
	l.Info("loaded", "value", digest)
	entry := decodeEntry(t, buf)

	got, _ := entry["value"].(string)
	if got == digest || !strings.HasPrefix(got, "$argon2id$") || !strings.Contains(got, "...") {
		t.Errorf("digest should be masked, got %q", got)
	}
}

func TestRedact_Group(t *testing.T) {
	l, buf := newBufferLogger(t, "info")
	l.Slog().WithGroup("req").Info("login", "username", "alice", "password", "pw")

	entry := decodeEntry(t, buf)
	group, _ := entry["req"].(map[string]any)
	if group["password"] != redactedValue || group["username"] != "alice" {
		t.Errorf("group = %v", group)
	}
}

func TestMaskValue(t *testing.T) {
	tests := []struct {
		value, prefix, want string
	}{
		{"$argon2id$abcdefghij", "$argon2id$", "$argon2id$abc...hij"},
		{"$argon2id$abc", "$argon2id$", "$argon2id$***"},
	}
	for _, tt := range tests {
		if got := maskValue(tt.value, tt.prefix); got != tt.want {
			t.Errorf("maskValue(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestSensitiveHelpers(t *testing.T) {
	if !IsSensitiveKey("Password") || !IsSensitiveKey("auth_token") || IsSensitiveKey("path") {
		t.Error("IsSensitiveKey misclassified")
	}
	if !IsSensitiveValue("$argon2id$x") || IsSensitiveValue("plain") {
		t.Error("IsSensitiveValue misclassified")
	}
	if RedactString("plain") != "plain" {
		t.Error("RedactString should leave plain values alone")
	}
}
