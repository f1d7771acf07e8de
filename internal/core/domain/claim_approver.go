package domain

import (
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/yndnr/tokvault-go/pkg/token"
)

// Claim credential format.
const (
	// CredentialPrefix marks a plaintext claim secret. It is shown once at issue.
	CredentialPrefix = "tvcs_"

	// CredentialHashPrefix marks the stored hash of a claim secret.
	CredentialHashPrefix = "tvch_"
)

// ApproverKind is the gate variant guarding Issued -> Claimed.
type ApproverKind string

const (
	ApproverCredential ApproverKind = "credential"
	ApproverIdentity   ApproverKind = "identity"
	ApproverPayment    ApproverKind = "payment"
)

// PaymentTerms is the price of a paid claim.
type PaymentTerms struct {
	PaymentAmount  uint64           `json:"payment_amount"`
	PaymentMint    solana.PublicKey `json:"payment_mint"`
	PaymentManager solana.PublicKey `json:"payment_manager"`
}

// ClaimApprover gates the claim transition.
type ClaimApprover struct {
	Kind ApproverKind `json:"kind"`

	// Identity is the only recipient allowed to claim (identity kind).
	Identity *solana.PublicKey `json:"identity,omitempty"`

	// CredentialHash is the hash of the one-time claim secret (credential kind).
	CredentialHash string `json:"credential_hash,omitempty"`

	// Payment holds the claim price (payment kind).
	Payment *PaymentTerms `json:"payment,omitempty"`
}

func (ca *ClaimApprover) PolicyKind() PolicyKind { return PolicyClaimApprover }

// Evaluate implements Policy. A claim approver never ends custody.
func (ca *ClaimApprover) Evaluate(*TokenManager, int64) (Trigger, bool) {
	return Trigger{}, false
}

func (*ClaimApprover) sealed() {}

// Validate checks the approver's shape.
func (ca *ClaimApprover) Validate() error {
	switch ca.Kind {
	case ApproverIdentity:
		if ca.Identity == nil || ca.Identity.IsZero() {
			return ErrInvalidPolicy.WithDetails("identity approver needs an identity")
		}
	case ApproverCredential:
		if !strings.HasPrefix(ca.CredentialHash, CredentialHashPrefix) {
			return ErrInvalidPolicy.WithDetails("credential approver needs a credential hash")
		}
	case ApproverPayment:
		if ca.Payment == nil || ca.Payment.PaymentMint.IsZero() || ca.Payment.PaymentManager.IsZero() {
			return ErrInvalidPolicy.WithDetails("payment approver needs payment terms")
		}
	default:
		return ErrInvalidPolicy.WithDetailsf("unknown claim approver kind %q", ca.Kind)
	}
	return nil
}

// Authorize checks a claim candidate against the gate. Payment terms are
// settled by the caller in the same transition, so they pass here.
func (ca *ClaimApprover) Authorize(candidate solana.PublicKey, secret string) error {
	switch ca.Kind {
	case ApproverCredential:
		if secret == "" || !VerifyCredential(secret, ca.CredentialHash) {
			return ErrInvalidClaimCredential
		}
	case ApproverIdentity:
		if ca.Identity == nil || !candidate.Equals(*ca.Identity) {
			return ErrUnauthorized.WithDetails("recipient is not the approved identity")
		}
	}
	return nil
}

// Clone returns a deep copy.
func (ca *ClaimApprover) Clone() *ClaimApprover {
	if ca == nil {
		return nil
	}
	c := &ClaimApprover{Kind: ca.Kind, CredentialHash: ca.CredentialHash}
	if ca.Identity != nil {
		id := *ca.Identity
		c.Identity = &id
	}
	if ca.Payment != nil {
		p := *ca.Payment
		c.Payment = &p
	}
	return c
}

var credentials = token.Scheme{SecretPrefix: CredentialPrefix, DigestPrefix: CredentialHashPrefix}

// GenerateCredential creates a one-time claim secret and its hash.
// Only the hash is stored; the plaintext is returned to the issuer once.
func GenerateCredential() (plaintext, hash string, err error) {
	plaintext, hash, err = credentials.New()
	if err != nil {
		return "", "", ErrInternalServer.WithCause(err)
	}
	return plaintext, hash, nil
}

// HashCredential returns tvch_{hex sha256}.
func HashCredential(plaintext string) string {
	return credentials.Digest(plaintext)
}

// VerifyCredential compares a presented secret with a stored hash in constant time.
func VerifyCredential(plaintext, hash string) bool {
	return credentials.Verify(plaintext, hash)
}

// MaskCredential masks a claim secret for logging: tvcs_ABC...xyz
func MaskCredential(s string) string {
	return credentials.Mask(s)
}
