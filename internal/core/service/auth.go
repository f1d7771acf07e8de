package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"net/netip"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/crypto/argon2"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// AuthService authenticates API keys and enforces their role, address
// allowlist and request rate.
type AuthService struct {
	repo     APIKeyRepository
	verified *expirable.LRU[string, verifiedKey]
	limiters *RateLimiterRegistry
	global   []netip.Prefix
}

// verifiedKey is a key whose secret already passed Argon2. Only the
// secret's SHA-256 is kept, so a different secret for the same key id
// still goes through full verification.
type verifiedKey struct {
	key    *domain.APIKey
	allow  []netip.Prefix
	digest [sha256.Size]byte
}

// AuthServiceConfig tunes the verified-key cache.
type AuthServiceConfig struct {
	CacheTTL  time.Duration // default 60s
	CacheSize int           // default 10000
	// GlobalAllowlist applies to every key, in addition to the key's own
	// list. Entries are IPs or CIDRs; empty means unrestricted.
	GlobalAllowlist []string
}

func NewAuthService(repo APIKeyRepository, cfg *AuthServiceConfig) *AuthService {
	if cfg == nil {
		cfg = &AuthServiceConfig{}
	}
	ttl, size := cfg.CacheTTL, cfg.CacheSize
	if ttl <= 0 {
		ttl = time.Minute
	}
	if size <= 0 {
		size = 10000
	}
	return &AuthService{
		repo:     repo,
		verified: expirable.NewLRU[string, verifiedKey](size, nil, ttl),
		limiters: NewRateLimiterRegistry(),
		global:   parseAllowlist(cfg.GlobalAllowlist),
	}
}

// ValidateAPIKeyRequest is one set of presented credentials.
type ValidateAPIKeyRequest struct {
	KeyID     string
	KeySecret string
	ClientIP  string
}

// ValidateAPIKey returns the key named by req if its secret verifies and
// the client address is allowed.
func (s *AuthService) ValidateAPIKey(ctx context.Context, req *ValidateAPIKeyRequest) (*domain.APIKey, error) {
	if req.KeyID == "" || req.KeySecret == "" {
		return nil, domain.ErrAPIKeyMissing
	}
	digest := sha256.Sum256([]byte(req.KeySecret))

	v, ok := s.verified.Get(req.KeyID)
	if !ok || subtle.ConstantTimeCompare(v.digest[:], digest[:]) != 1 {
		key, err := s.repo.Get(ctx, req.KeyID)
		if err != nil {
			return nil, err
		}
		if !key.IsActive() {
			return nil, domain.ErrAPIKeyDisabled
		}
		if !verifyArgon2Hash(req.KeySecret, key.SecretHash) {
			return nil, domain.ErrAPIKeyInvalid.WithDetails("invalid secret")
		}
		v = verifiedKey{key: key, allow: parseAllowlist(key.Allowlist), digest: digest}
		s.verified.Add(req.KeyID, v)
	}

	if err := s.allowed(req.ClientIP, v.allow); err != nil {
		return nil, err
	}
	return v.key, nil
}

// CheckPermission fails with ErrPermissionDenied unless key's role grants perm.
func (s *AuthService) CheckPermission(key *domain.APIKey, perm domain.Permission) error {
	if domain.HasPermission(key.Role, perm) {
		return nil
	}
	return domain.ErrPermissionDenied.WithDetailsf("role %s lacks %s", key.Role, perm)
}

// CheckRateLimit takes one token from keyID's bucket.
func (s *AuthService) CheckRateLimit(_ context.Context, keyID string, perSecond int) error {
	l := s.limiters.GetOrCreate(keyID, perSecond)
	if l.Allow() {
		return nil
	}
	r := l.Reserve()
	wait := r.Delay()
	r.Cancel()
	return domain.ErrRateLimited.WithDetailsf("retry after %s", wait.Round(time.Millisecond))
}

// InvalidateCache forgets verified keys and rate buckets. Call it after
// the key ring changes.
func (s *AuthService) InvalidateCache() {
	s.verified.Purge()
	s.limiters.Clear()
}

// checkIPAllowlist is allowed for a key list not yet parsed.
func (s *AuthService) checkIPAllowlist(clientIP string, keyList []string) error {
	return s.allowed(clientIP, parseAllowlist(keyList))
}

// allowed passes when neither list has entries or clientIP falls in
// either one.
func (s *AuthService) allowed(clientIP string, keyList []netip.Prefix) error {
	if len(s.global) == 0 && len(keyList) == 0 {
		return nil
	}
	addr, err := netip.ParseAddr(clientIP)
	if err != nil {
		return domain.ErrIPNotAllowed.WithDetails("invalid client IP format")
	}
	addr = addr.Unmap()
	for _, list := range [][]netip.Prefix{s.global, keyList} {
		for _, p := range list {
			if p.Contains(addr) {
				return nil
			}
		}
	}
	return domain.ErrIPNotAllowed.WithDetails("client IP not in allowlist")
}

// parseAllowlist turns IP and CIDR strings into prefixes, skipping
// malformed entries. Configuration verification rejects those earlier.
func parseAllowlist(entries []string) []netip.Prefix {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		if p, err := parseAllowEntry(e); err == nil {
			out = append(out, p)
		}
	}
	return out
}

func parseAllowEntry(e string) (netip.Prefix, error) {
	e = strings.TrimSpace(e)
	if strings.Contains(e, "/") {
		p, err := netip.ParsePrefix(e)
		return p.Masked(), err
	}
	a, err := netip.ParseAddr(e)
	if err != nil {
		return netip.Prefix{}, err
	}
	a = a.Unmap()
	return netip.PrefixFrom(a, a.BitLen()), nil
}

// verifyArgon2Hash checks secret against
// $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>.
func verifyArgon2Hash(secret, encoded string) bool {
	var salt, want []byte
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false
	}
	var err error
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return false
	}
	if want, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return false
	}
	got := argon2.IDKey([]byte(secret), salt, domain.Argon2Time, domain.Argon2Memory,
		domain.Argon2Parallelism, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1
}
