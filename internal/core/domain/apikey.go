package domain

import (
	"crypto/rand"
	"encoding/base64"
	"strings"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/argon2"

	"github.com/yndnr/tokvault-go/pkg/token"
)

// API key format.
const (
	// APIKeyIDPrefix is the prefix of public key IDs.
	APIKeyIDPrefix = "tvki-"

	// APIKeySecretPrefix is the prefix of key secrets.
	APIKeySecretPrefix = "tvak_"
)

// Argon2id parameters for API key secret hashes.
const (
	Argon2Memory      uint32 = 16384
	Argon2Time        uint32 = 2
	Argon2Parallelism uint8  = 2
	Argon2KeyLen      uint32 = 32
	Argon2SaltLen            = 16
)

// Role is an API key's access level. Roles are ordered: each one holds
// every permission of the roles below it.
type Role string

const (
	RoleViewer   Role = "viewer"   // records, quotes, balances
	RoleOperator Role = "operator" // + custody transitions, listings
	RoleAdmin    Role = "admin"    // + payment managers, mints, ledger
)

func (r Role) rank() int {
	switch r {
	case RoleViewer:
		return 1
	case RoleOperator:
		return 2
	case RoleAdmin:
		return 3
	}
	return 0
}

func IsValidRole(r string) bool {
	return Role(r).rank() > 0
}

type KeyStatus string

const (
	KeyStatusActive   KeyStatus = "active"
	KeyStatusDisabled KeyStatus = "disabled"
)

// Permission names a group of routes.
type Permission string

const (
	PermRead        Permission = "read"
	PermCustody     Permission = "custody"
	PermMarketplace Permission = "marketplace"
	PermPayments    Permission = "payments"
	PermLedger      Permission = "ledger"
	PermMetricsRead Permission = "metrics.read"
)

// minimumRole is the lowest role granted each permission.
var minimumRole = map[Permission]Role{
	PermRead:        RoleViewer,
	PermMetricsRead: RoleViewer,
	PermCustody:     RoleOperator,
	PermMarketplace: RoleOperator,
	PermPayments:    RoleAdmin,
	PermLedger:      RoleAdmin,
}

// HasPermission reports whether role may use perm. Unknown roles and
// permissions are denied.
func HasPermission(role Role, perm Permission) bool {
	floor, ok := minimumRole[perm]
	return ok && role.rank() >= floor.rank()
}

// APIKey is an access key loaded from configuration.
type APIKey struct {
	KeyID      string    `json:"key_id"`
	Name       string    `json:"name,omitempty"`
	SecretHash string    `json:"-"`
	Role       Role      `json:"role"`
	Allowlist  []string  `json:"allowlist,omitempty"`
	RateLimit  int       `json:"rate_limit"`
	Status     KeyStatus `json:"status"`
}

// API key constraints.
const (
	MinRateLimit     = 1
	MaxRateLimit     = 1000000
	DefaultRateLimit = 100
	SecretLength     = 32
)

// IsActive reports whether the key can be used.
func (k *APIKey) IsActive() bool {
	return k.Status == "" || k.Status == KeyStatusActive
}

// NewAPIKey generates a key ID and secret. The plaintext secret is
// returned once; only its Argon2id hash is kept.
func NewAPIKey(name string, role Role) (*APIKey, string, error) {
	id, err := ulid.New(ulid.Now(), ulid.Monotonic(rand.Reader, 0))
	if err != nil {
		return nil, "", ErrInternalServer.WithCause(err)
	}

	// The SHA-256 digest is discarded; API keys are stored as Argon2id.
	secret, _, err := apiKeySecrets.New()
	if err != nil {
		return nil, "", ErrInternalServer.WithCause(err)
	}

	hash, err := HashAPIKeySecret(secret)
	if err != nil {
		return nil, "", ErrInternalServer.WithCause(err)
	}
	return &APIKey{
		KeyID:      APIKeyIDPrefix + strings.ToLower(id.String()),
		Name:       name,
		SecretHash: hash,
		Role:       role,
		RateLimit:  DefaultRateLimit,
		Status:     KeyStatusActive,
	}, secret, nil
}

// HashAPIKeySecret returns $argon2id$v=19$m=16384,t=2,p=2$<salt>$<hash>.
func HashAPIKeySecret(secret string) (string, error) {
	salt := make([]byte, Argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	hash := argon2.IDKey([]byte(secret), salt, Argon2Time, Argon2Memory, Argon2Parallelism, Argon2KeyLen)
	return "$argon2id$v=19$m=16384,t=2,p=2$" +
		base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(hash), nil
}

var apiKeySecrets = token.Scheme{SecretPrefix: APIKeySecretPrefix, Entropy: SecretLength}

// MaskAPIKeySecret masks a secret for logs.
func MaskAPIKeySecret(secret string) string {
	return apiKeySecrets.Mask(secret)
}
