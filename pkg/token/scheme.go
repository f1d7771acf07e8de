package token

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// DefaultEntropy is the number of random bytes in a secret body.
const DefaultEntropy = 32

// Redacted replaces secrets too short to mask.
const Redacted = "***REDACTED***"

// ErrEntropy is returned for a non-positive Entropy.
var ErrEntropy = errors.New("token: entropy must be positive")

// Scheme describes one family of secrets.
type Scheme struct {
	SecretPrefix string
	DigestPrefix string
	// Entropy defaults to DefaultEntropy.
	Entropy int
}

// New returns a fresh plaintext secret and its digest.
func (s Scheme) New() (secret, digest string, err error) {
	n := s.Entropy
	if n == 0 {
		n = DefaultEntropy
	}
	if n < 0 {
		return "", "", ErrEntropy
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	secret = s.SecretPrefix + base64.RawURLEncoding.EncodeToString(buf)
	return secret, s.Digest(secret), nil
}

// Digest hashes secret. The result is safe to store and log.
func (s Scheme) Digest(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return s.DigestPrefix + hex.EncodeToString(sum[:])
}

// Verify reports whether secret hashes to digest. A digest from another
// scheme never matches.
func (s Scheme) Verify(secret, digest string) bool {
	if !strings.HasPrefix(digest, s.DigestPrefix) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(s.Digest(secret)), []byte(digest)) == 1
}

// Owns reports whether v looks like a plaintext secret of this scheme.
func (s Scheme) Owns(v string) bool {
	return s.SecretPrefix != "" && strings.HasPrefix(v, s.SecretPrefix)
}

// Mask keeps the prefix and three characters at each end of the body.
// Anything else, including short bodies, becomes Redacted.
func (s Scheme) Mask(v string) string {
	if !s.Owns(v) {
		return Redacted
	}
	body := v[len(s.SecretPrefix):]
	if len(body) < 7 {
		return Redacted
	}
	return s.SecretPrefix + body[:3] + "..." + body[len(body)-3:]
}
