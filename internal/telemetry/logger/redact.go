package logger

import (
	"log/slog"
	"strings"
)

// secretPrefix marks plaintext secrets minted by this system. Matching values
// keep their prefix and a few characters so operators can correlate lines.
type secretPrefix struct {
	prefix string
	keep   int
}

var secretPrefixes = []secretPrefix{
	{prefix: "tvcs_", keep: 3}, // claim credential
	{prefix: "tvak_", keep: 3}, // API key secret
}

// Attribute keys containing one of these are dropped to redactedValue.
// "token_manager", "authority" and "key_id" stay readable.
var secretKeyFragments = [...]string{
	"password",
	"secret",
	"credential",
	"signature",
	"api_key",
	"private_key",
	"keypair",
	"bearer",
	"authorization",
}

const redactedValue = "***REDACTED***"

// redactSensitive is the ReplaceAttr hook shared by both backends. Values are
// resolved first so a LogValuer cannot smuggle a secret past the check.
func redactSensitive(a slog.Attr) slog.Attr {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if p, ok := matchSecretPrefix(s); ok {
			return slog.String(a.Key, p.mask(s))
		}
		if s != "" && IsSensitiveKey(a.Key) {
			return slog.String(a.Key, redactedValue)
		}
		return slog.Attr{Key: a.Key, Value: v}
	case slog.KindGroup:
		group := v.Group()
		out := make([]slog.Attr, 0, len(group))
		for _, ga := range group {
			out = append(out, redactSensitive(ga))
		}
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(out...)}
	default:
		return slog.Attr{Key: a.Key, Value: v}
	}
}

func matchSecretPrefix(s string) (secretPrefix, bool) {
	for _, p := range secretPrefixes {
		if strings.HasPrefix(s, p.prefix) {
			return p, true
		}
	}
	return secretPrefix{}, false
}

func (p secretPrefix) mask(s string) string {
	body := s[len(p.prefix):]
	if len(body) <= 2*p.keep {
		return p.prefix + "***"
	}
	return p.prefix + body[:p.keep] + "..." + body[len(body)-p.keep:]
}

// maskValue masks value under prefix using the default window.
func maskValue(value, prefix string) string {
	return secretPrefix{prefix: prefix, keep: 3}.mask(value)
}

// RedactString masks s when it is a known plaintext secret and returns it
// unchanged otherwise.
func RedactString(s string) string {
	if p, ok := matchSecretPrefix(s); ok {
		return p.mask(s)
	}
	return s
}

// IsSensitiveKey reports whether an attribute key names secret material.
func IsSensitiveKey(key string) bool {
	k := strings.ToLower(key)
	for _, frag := range secretKeyFragments {
		if strings.Contains(k, frag) {
			return true
		}
	}
	return false
}

// IsSensitiveValue reports whether s carries a plaintext secret prefix.
func IsSensitiveValue(s string) bool {
	_, ok := matchSecretPrefix(s)
	return ok
}
