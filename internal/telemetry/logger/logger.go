package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Logger is the logging surface handed to services and transports.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	With(args ...any) Logger
	WithContext(ctx context.Context) Logger
}

const (
	BackendSlog = "slog"
	BackendZap  = "zap"
)

// Config selects level, encoding and backend.
type Config struct {
	Level   string `koanf:"level"`   // debug, info, warn, error
	Format  string `koanf:"format"`  // json, text, console
	Backend string `koanf:"backend"` // slog, zap
	// Output defaults to os.Stderr.
	Output    io.Writer `koanf:"-"`
	AddSource bool      `koanf:"add_source"`
}

// level is shared by every logger built by New, so a reload of
// log.level applies to loggers already handed out.
var level = new(slog.LevelVar)

// ParseLevel accepts the names slog understands plus "warning". Offsets
// such as "debug-2" or "error+4" are allowed.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if strings.EqualFold(s, "warning") {
		return slog.LevelWarn, nil
	}
	if s == "" {
		return slog.LevelInfo, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logger: invalid level %q", s)
	}
	return l, nil
}

// SetLevel changes the level of every logger. An unparsable value leaves
// the current level in place.
func SetLevel(s string) error {
	l, err := ParseLevel(s)
	if err != nil {
		return err
	}
	level.Set(l)
	return nil
}

// CurrentLevel returns the shared level.
func CurrentLevel() slog.Level {
	return level.Level()
}

// New builds a Logger. Both backends redact secrets and pick up request
// attributes stored on the context.
func New(cfg Config) (Logger, error) {
	l, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	h, err := newHandler(cfg)
	if err != nil {
		return nil, err
	}
	level.Set(l)
	return &slogLogger{logger: slog.New(contextHandler{h}), ctx: context.Background()}, nil
}

func newHandler(cfg Config) (slog.Handler, error) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	var text bool
	switch strings.ToLower(cfg.Format) {
	case "text", "console":
		text = true
	}

	switch strings.ToLower(cfg.Backend) {
	case "", BackendSlog:
		opts := &slog.HandlerOptions{
			Level:     level,
			AddSource: cfg.AddSource,
			ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
				return redactSensitive(a)
			},
		}
		if text {
			return slog.NewTextHandler(out, opts), nil
		}
		return slog.NewJSONHandler(out, opts), nil
	case BackendZap:
		return newZapHandler(out, text, cfg.AddSource), nil
	}
	return nil, fmt.Errorf("logger: unknown backend %q", cfg.Backend)
}

type slogLogger struct {
	logger *slog.Logger
	ctx    context.Context
}

func (l *slogLogger) Debug(msg string, args ...any) { l.logger.DebugContext(l.ctx, msg, args...) }
func (l *slogLogger) Info(msg string, args ...any)  { l.logger.InfoContext(l.ctx, msg, args...) }
func (l *slogLogger) Warn(msg string, args ...any)  { l.logger.WarnContext(l.ctx, msg, args...) }
func (l *slogLogger) Error(msg string, args ...any) { l.logger.ErrorContext(l.ctx, msg, args...) }

func (l *slogLogger) With(args ...any) Logger {
	return &slogLogger{logger: l.logger.With(args...), ctx: l.ctx}
}

// WithContext binds ctx so request_id and context attributes are emitted.
func (l *slogLogger) WithContext(ctx context.Context) Logger {
	return &slogLogger{logger: l.logger, ctx: ctx}
}

// Slog exposes the *slog.Logger behind l for libraries that take one.
// Foreign Logger implementations get slog.Default().
func Slog(l Logger) *slog.Logger {
	if sl, ok := l.(*slogLogger); ok {
		return sl.logger
	}
	return slog.Default()
}

type holder struct{ Logger }

var std atomic.Pointer[holder]

func init() {
	l, _ := New(Config{Level: "info", Format: "json"})
	std.Store(&holder{l})
}

// SetDefault replaces the process-wide logger. nil is ignored.
func SetDefault(l Logger) {
	if l != nil {
		std.Store(&holder{l})
	}
}

// Default returns the process-wide logger.
func Default() Logger {
	return std.Load().Logger
}
