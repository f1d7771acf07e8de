package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/yndnr/tokvault-go/internal/core/domain"
)

// SignatureService verifies that a request was signed by the identity it
// acts for, and rejects replays.
//
// The signed message is SigningMessage(method, path, timestamp, nonce,
// body); timestamps are unix milliseconds.
type SignatureService struct {
	mu              sync.Mutex
	nonces          *expirable.LRU[string, struct{}]
	timestampWindow time.Duration
	now             func() time.Time
}

// SignatureServiceConfig holds configuration for SignatureService.
type SignatureServiceConfig struct {
	// NonceCacheSize is the maximum number of nonces to remember (default: 100,000).
	NonceCacheSize int

	// NonceTTL is how long a nonce is remembered (default: 60s). It should
	// cover twice the timestamp window.
	NonceTTL time.Duration

	// TimestampWindow is the acceptable timestamp deviation (default: ±30s).
	TimestampWindow time.Duration
}

// DefaultSignatureServiceConfig returns default configuration.
func DefaultSignatureServiceConfig() *SignatureServiceConfig {
	return &SignatureServiceConfig{
		NonceCacheSize:  100000,
		NonceTTL:        60 * time.Second,
		TimestampWindow: 30 * time.Second,
	}
}

// NewSignatureService creates a SignatureService.
func NewSignatureService(config *SignatureServiceConfig) *SignatureService {
	if config == nil {
		config = DefaultSignatureServiceConfig()
	}
	size := config.NonceCacheSize
	if size <= 0 {
		size = 100000
	}
	return &SignatureService{
		nonces:          expirable.NewLRU[string, struct{}](size, nil, config.NonceTTL),
		timestampWindow: config.TimestampWindow,
		now:             time.Now,
	}
}

// SigningMessage builds the bytes a caller signs for a request.
func SigningMessage(method, path string, timestamp int64, nonce string, body []byte) []byte {
	sum := sha256.Sum256(body)
	var b strings.Builder
	b.WriteString(strings.ToUpper(method))
	b.WriteByte('\n')
	b.WriteString(path)
	b.WriteByte('\n')
	b.WriteString(strconv.FormatInt(timestamp, 10))
	b.WriteByte('\n')
	b.WriteString(nonce)
	b.WriteByte('\n')
	b.WriteString(hex.EncodeToString(sum[:]))
	return []byte(b.String())
}

// SignRequest signs a request for key; it returns the base58 signature.
func SignRequest(key solana.PrivateKey, method, path string, timestamp int64, nonce string, body []byte) (string, error) {
	sig, err := key.Sign(SigningMessage(method, path, timestamp, nonce, body))
	if err != nil {
		return "", err
	}
	return sig.String(), nil
}

// VerifyRequest contains a signed request.
type VerifyRequest struct {
	Caller    string // base58 identity
	Signature string // base58 ed25519 signature
	Timestamp int64  // unix milliseconds
	Nonce     string
	Method    string
	Path      string
	Body      []byte
}

// Verify checks the signature, the timestamp window and the nonce, and
// returns the caller identity.
func (s *SignatureService) Verify(ctx context.Context, req *VerifyRequest) (solana.PublicKey, error) {
	if req.Caller == "" {
		return solana.PublicKey{}, domain.ErrCallerMissing
	}
	caller, err := domain.ParseIdentity("caller", req.Caller)
	if err != nil {
		return solana.PublicKey{}, err
	}
	sig, err := solana.SignatureFromBase58(req.Signature)
	if err != nil {
		return solana.PublicKey{}, domain.ErrSignatureInvalid.WithDetails("malformed signature")
	}
	if req.Nonce == "" {
		return solana.PublicKey{}, domain.ErrSignatureInvalid.WithDetails("nonce is required")
	}

	msg := SigningMessage(req.Method, req.Path, req.Timestamp, req.Nonce, req.Body)
	if !sig.Verify(caller, msg) {
		return solana.PublicKey{}, domain.ErrSignatureInvalid
	}

	// The nonce is only consumed by a valid signature.
	if err := s.CheckNonce(ctx, caller.String()+":"+req.Nonce, req.Timestamp); err != nil {
		return solana.PublicKey{}, err
	}
	return caller, nil
}

// CheckNonce rejects timestamps outside the window and nonces seen before.
func (s *SignatureService) CheckNonce(_ context.Context, nonce string, timestamp int64) error {
	diff := s.now().UnixMilli() - timestamp
	if diff < 0 {
		diff = -diff
	}
	if diff > s.timestampWindow.Milliseconds() {
		return domain.ErrTimestampSkew.WithDetails("timestamp outside acceptable window")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nonces.Contains(nonce) {
		return domain.ErrNonceReplay.WithDetails("nonce has been used before")
	}
	s.nonces.Add(nonce, struct{}{})
	return nil
}
