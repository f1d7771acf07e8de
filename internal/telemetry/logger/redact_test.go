package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestRedactSensitive(t *testing.T) {
	tests := []struct {
		name string
		attr slog.Attr
		want string
	}{
		{"claim credential masked", slog.String("value", "tvcs_ABCDEFGHIJKLMNOP"), "tvcs_ABC...NOP"},
		{"api key secret masked", slog.String("value", "tvak_1234567890"), "tvak_123...890"},
		{"short secret", slog.String("value", "tvcs_abc"), "tvcs_***"},
		{"secret key redacted", slog.String("client_secret", "plain"), redactedValue},
		{"signature key redacted", slog.String("X-Signature", "3xYz"), redactedValue},
		{"api key redacted", slog.String("api_key", "plain"), redactedValue},
		{"empty sensitive value kept", slog.String("password", ""), ""},
		{"token manager id kept", slog.String("token_manager", "Gi2cAMg6"), "Gi2cAMg6"},
		{"authority kept", slog.String("authority", "EYnGJjdW"), "EYnGJjdW"},
		{"normal value kept", slog.String("state", "claimed"), "claimed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := redactSensitive(tt.attr)
			if got.Value.String() != tt.want {
				t.Errorf("redactSensitive(%s=%s) = %q, want %q", tt.attr.Key, tt.attr.Value, got.Value.String(), tt.want)
			}
		})
	}
}

func TestRedactSensitive_Group(t *testing.T) {
	attr := slog.Group("request", slog.String("secret", "x"), slog.Int("n", 1))
	got := redactSensitive(attr).Value.Group()

	if got[0].Value.String() != redactedValue {
		t.Errorf("group secret = %q, want redacted", got[0].Value.String())
	}
	if got[1].Value.Int64() != 1 {
		t.Errorf("group n = %d, want 1", got[1].Value.Int64())
	}
}

type credentialValue string

func (c credentialValue) LogValue() slog.Value { return slog.StringValue(string(c)) }

func TestRedactSensitive_ResolvesLogValuer(t *testing.T) {
	got := redactSensitive(slog.Any("value", credentialValue("tvcs_0123456789")))
	if got.Value.String() != "tvcs_012...789" {
		t.Errorf("LogValuer secret = %q, want masked", got.Value.String())
	}
	got = redactSensitive(slog.Any("client_secret", credentialValue("plain")))
	if got.Value.String() != redactedValue {
		t.Errorf("LogValuer under secret key = %q, want redacted", got.Value.String())
	}
}

func TestSlogBackend_Redacts(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "json", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	l.Info("issued", "credential", "tvcs_0123456789abcdef")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["credential"] != "tvcs_012...def" {
		t.Errorf("credential = %v, want tvcs_012...def", entry["credential"])
	}
}

func TestRedactString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"tvcs_0123456789", "tvcs_012...789"},
		{"tvak_abc", "tvak_***"},
		{"not-sensitive", "not-sensitive"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := RedactString(tt.in); got != tt.want {
			t.Errorf("RedactString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsSensitiveKey(t *testing.T) {
	for key, want := range map[string]bool{
		"password":      true,
		"Authorization": true,
		"api_key_id":    true,
		"keypair":       true,
		"mint":          false,
		"token_manager": false,
		"issuer":        false,
	} {
		if got := IsSensitiveKey(key); got != want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", key, got, want)
		}
	}
}

func TestIsSensitiveValue(t *testing.T) {
	if !IsSensitiveValue("tvcs_x") {
		t.Error("IsSensitiveValue(tvcs_x) = false, want true")
	}
	if IsSensitiveValue("tvch_x") {
		t.Error("IsSensitiveValue(tvch_x) = true, want false (hashes are safe to log)")
	}
}

func TestMaskValue(t *testing.T) {
	if got := maskValue("tvcs_1234567", "tvcs_"); got != "tvcs_123...567" {
		t.Errorf("maskValue() = %q, want tvcs_123...567", got)
	}
	if got := maskValue("tvcs_123456", "tvcs_"); got != "tvcs_***" {
		t.Errorf("maskValue() = %q, want tvcs_***", got)
	}
}
