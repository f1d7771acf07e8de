package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

var backends = []string{BackendSlog, BackendZap}

// decode parses a single JSON log line.
func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"Warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"debug-2", slog.LevelDebug - 2, false},
		{"", slog.LevelInfo, false},
		{"loud", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := New(Config{Backend: "logrus"}); err == nil {
		t.Error("New() with unknown backend should fail")
	}
	if _, err := New(Config{Level: "chatty"}); err == nil {
		t.Error("New() with unknown level should fail")
	}
}

func TestBackends_FieldsAndRedaction(t *testing.T) {
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := New(Config{Level: "debug", Format: "json", Backend: backend, Output: &buf})
			if err != nil {
				t.Fatal(err)
			}

			l.With("component", "crank").Info("token manager invalidated",
				"token_manager", "Gi2cAMg6", "usages", 3, "secret", "hunter2", "claim", "tvcs_abcdefghijklmnop")

			entry := decode(t, &buf)
			want := map[string]any{
				"msg":           "token manager invalidated",
				"component":     "crank",
				"token_manager": "Gi2cAMg6",
				"usages":        float64(3),
				"secret":        redactedValue,
				"claim":         "tvcs_abc...nop",
			}
			for k, v := range want {
				if entry[k] != v {
					t.Errorf("%s = %v, want %v", k, entry[k], v)
				}
			}
			if lv, _ := entry["level"].(string); !strings.EqualFold(lv, "info") {
				t.Errorf("level = %v, want info", entry["level"])
			}
		})
	}
}

func TestBackends_SetLevel(t *testing.T) {
	defer SetLevel("info")
	for _, backend := range backends {
		t.Run(backend, func(t *testing.T) {
			var buf bytes.Buffer
			l, err := New(Config{Level: "error", Backend: backend, Output: &buf})
			if err != nil {
				t.Fatal(err)
			}

			l.Warn("dropped")
			if buf.Len() != 0 {
				t.Fatalf("warn at error level produced %q", buf.String())
			}

			if err := SetLevel("debug"); err != nil {
				t.Fatal(err)
			}
			if CurrentLevel() != slog.LevelDebug {
				t.Errorf("CurrentLevel() = %v, want debug", CurrentLevel())
			}
			l.Debug("kept")
			if !strings.Contains(buf.String(), "kept") {
				t.Errorf("debug after SetLevel(debug) missing, got %q", buf.String())
			}

			if err := SetLevel("shout"); err == nil {
				t.Error("SetLevel(shout) should fail")
			}
			if CurrentLevel() != slog.LevelDebug {
				t.Error("a rejected SetLevel changed the level")
			}
		})
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Format: "text", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	l.Info("crank pass", "evaluated", 7)

	out := buf.String()
	if !strings.Contains(out, `msg="crank pass"`) || !strings.Contains(out, "evaluated=7") {
		t.Errorf("text output = %q", out)
	}
}

func TestZapBackend_Groups(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Backend: BackendZap, Output: &buf})
	if err != nil {
		t.Fatal(err)
	}

	Slog(l).WithGroup("http").Info("request", "status", 200)

	if got := decode(t, &buf)["http.status"]; got != float64(200) {
		t.Errorf("http.status = %v, want 200", got)
	}
}

func TestDefault(t *testing.T) {
	prev := Default()
	defer SetDefault(prev)

	var buf bytes.Buffer
	l, err := New(Config{Level: "info", Output: &buf})
	if err != nil {
		t.Fatal(err)
	}
	SetDefault(l)
	SetDefault(nil)

	Default().Info("via default")
	if !strings.Contains(buf.String(), "via default") {
		t.Errorf("Default() did not write through the logger set last, got %q", buf.String())
	}
}

func TestSlog_ForeignLogger(t *testing.T) {
	if Slog(nil) != slog.Default() {
		t.Error("Slog(nil) should fall back to slog.Default()")
	}
}
