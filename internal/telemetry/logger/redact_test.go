package logger

import (
	"log/slog"
	"testing"
)

func TestRedactSensitive_KeyNames(t *testing.T) {
	l, buf := newJSON(t, "info")

	tests := []struct {
		key      string
		value    any
		expected any
	}{
		{"passphrase", "correct horse", redactedValue},
		{"store.passphrase", "correct horse", redactedValue},
		{"seal_key", []byte("0123456789abcdef"), redactedValue},
		{"client_secret", "s3cr3t", redactedValue},
		{"password", "", ""},
		{"keyhash", "ab12cd", "ab12cd"},
		{"key", "experiment-1", "experiment-1"},
		{"serial", "12", "12"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			buf.Reset()
			l.Info("test", tt.key, tt.value)

			if got := decode(t, buf)[tt.key]; got != tt.expected {
				t.Errorf("%s = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestRedactSensitive_Groups(t *testing.T) {
	l, buf := newJSON(t, "info")

	l.Info("cfg", slog.Group("seal", slog.String("passphrase", "hunter22")))
	seal, ok := decode(t, buf)["seal"].(map[string]any)
	if !ok {
		t.Fatal("expected seal group")
	}
	if seal["passphrase"] != redactedValue {
		t.Errorf("nested passphrase = %v", seal["passphrase"])
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for key, want := range map[string]bool{
		"PASSPHRASE":        true,
		"auth_token":        true,
		"credential":        true,
		"keyhash":           false,
		"base_dir":          false,
		"private_key":       true,
		"serializer":        false,
		"SNAPKEEP_SEAL_KEY": true,
	} {
		if got := IsSensitiveKey(key); got != want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestRedact(t *testing.T) {
	if got := Redact("passphrase", "abc"); got != redactedValue {
		t.Errorf("Redact(passphrase) = %q", got)
	}
	if got := Redact("passphrase", ""); got != "" {
		t.Errorf("Redact(empty) = %q", got)
	}
	if got := Redact("base_dir", "/tmp"); got != "/tmp" {
		t.Errorf("Redact(base_dir) = %q", got)
	}
}
