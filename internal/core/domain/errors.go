package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
// Codes have the form TV-<AREA>-<NNNN>; the trailing number doubles as the
// transport status hint (4040 not found, 4090 conflict, 4030 forbidden, ...).
type DomainError struct {
	Code    string // Error code (e.g., "TV-MGR-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Token Manager Errors (MGR)
// ============================================================================

var (
	// ErrTokenManagerNotFound indicates the token manager does not exist (or was closed).
	ErrTokenManagerNotFound = NewDomainError("TV-MGR-4040", "token manager not found")

	// ErrTokenManagerConflict indicates a token manager already exists for the mint.
	ErrTokenManagerConflict = NewDomainError("TV-MGR-4090", "token manager already exists")

	// ErrVersionConflict indicates an optimistic lock conflict.
	ErrVersionConflict = NewDomainError("TV-MGR-4091", "version conflict, please retry")

	// ErrInvalidState indicates the operation is not permitted from the current state.
	ErrInvalidState = NewDomainError("TV-MGR-4092", "invalid token manager state")

	// ErrAlreadyClaimed indicates the token manager has already been claimed.
	ErrAlreadyClaimed = NewDomainError("TV-MGR-4093", "token manager already claimed")

	// ErrAlreadyInvalidated indicates the token manager has already been invalidated.
	ErrAlreadyInvalidated = NewDomainError("TV-MGR-4094", "token manager already invalidated")

	// ErrManagerNotClaimed indicates a usage was recorded before claim.
	ErrManagerNotClaimed = NewDomainError("TV-MGR-4095", "token manager not claimed")

	// ErrTokenManagerValidation indicates the token manager data is invalid.
	ErrTokenManagerValidation = NewDomainError("TV-MGR-4001", "token manager validation failed")

	// ErrInvalidationTypeUpdate indicates a disallowed invalidation type change.
	ErrInvalidationTypeUpdate = NewDomainError("TV-MGR-4002", "invalidation type update not allowed")

	// ErrUnauthorized indicates the caller is not the required approver, holder or invalidator.
	ErrUnauthorized = NewDomainError("TV-MGR-4030", "unauthorized")

	// ErrInvalidClaimCredential indicates the presented claim secret does not match.
	ErrInvalidClaimCredential = NewDomainError("TV-MGR-4031", "invalid claim credential")
)

// ============================================================================
// Invalidator Errors (INV)
// ============================================================================

var (
	// ErrExceedsMaxExpiration indicates an extension would pass the max expiration.
	ErrExceedsMaxExpiration = NewDomainError("TV-INV-4001", "extension exceeds max expiration")

	// ErrInvalidPartialExtension indicates a partial extension on a policy that forbids it.
	ErrInvalidPartialExtension = NewDomainError("TV-INV-4002", "partial extension not allowed")

	// ErrInvalidExtensionAmount indicates the extension is too small to be priced.
	ErrInvalidExtensionAmount = NewDomainError("TV-INV-4003", "invalid extension amount")

	// ErrExtensionNotConfigured indicates the policy has no extension terms.
	ErrExtensionNotConfigured = NewDomainError("TV-INV-4004", "extension not configured")

	// ErrInsufficientUsages indicates the usage would pass the total usages.
	ErrInsufficientUsages = NewDomainError("TV-INV-4005", "insufficient usages")

	// ErrExceedsMaxUsages indicates a usage extension would pass the max usages.
	ErrExceedsMaxUsages = NewDomainError("TV-INV-4006", "extension exceeds max usages")

	// ErrInvalidPolicy indicates an invalidator policy is malformed.
	ErrInvalidPolicy = NewDomainError("TV-INV-4007", "invalid invalidator policy")

	// ErrInvalidMaxExpiration indicates a max expiration update was rejected.
	ErrInvalidMaxExpiration = NewDomainError("TV-INV-4008", "invalid new max expiration")
)

// ============================================================================
// Fee Errors (FEE)
// ============================================================================

var (
	// ErrInvalidFeeConfiguration indicates fee rates or creator shares are out of range.
	ErrInvalidFeeConfiguration = NewDomainError("TV-FEE-4001", "invalid fee configuration")

	// ErrArithmeticOverflow indicates a computation left the integer domain.
	ErrArithmeticOverflow = NewDomainError("TV-FEE-4220", "arithmetic overflow")
)

// ============================================================================
// Custody Errors (CUST)
// ============================================================================

var (
	// ErrMissingMintAuthority indicates the kind needs a delegated mint authority that does not exist.
	ErrMissingMintAuthority = NewDomainError("TV-CUST-4220", "missing mint authority")

	// ErrCustody indicates the custody primitive refused an operation.
	ErrCustody = NewDomainError("TV-CUST-4221", "custody operation failed")

	// ErrInsufficientBalance indicates the source account holds too little.
	ErrInsufficientBalance = NewDomainError("TV-CUST-4222", "insufficient balance")

	// ErrAccountFrozen indicates the account is frozen.
	ErrAccountFrozen = NewDomainError("TV-CUST-4223", "account frozen")
)

// ============================================================================
// Payment and Marketplace Errors (PAY, MKT)
// ============================================================================

var (
	// ErrPaymentManagerNotFound indicates the payment manager does not exist.
	ErrPaymentManagerNotFound = NewDomainError("TV-PAY-4040", "payment manager not found")

	// ErrMintNotRegistered indicates no metadata is registered for the mint.
	ErrMintNotRegistered = NewDomainError("TV-PAY-4041", "mint metadata not found")

	// ErrPaymentManagerConflict indicates the payment manager name is taken.
	ErrPaymentManagerConflict = NewDomainError("TV-PAY-4090", "payment manager already exists")

	// ErrInvalidPaymentManager indicates the payment manager does not match the terms.
	ErrInvalidPaymentManager = NewDomainError("TV-PAY-4001", "invalid payment manager")

	// ErrPaymentRequired indicates a paid flow was attempted without a payer.
	ErrPaymentRequired = NewDomainError("TV-PAY-4002", "payment required")

	// ErrMarketplaceNotFound indicates the marketplace does not exist.
	ErrMarketplaceNotFound = NewDomainError("TV-MKT-4040", "marketplace not found")

	// ErrListingNotFound indicates the listing does not exist.
	ErrListingNotFound = NewDomainError("TV-MKT-4041", "listing not found")

	// ErrMarketplaceConflict indicates the marketplace name is taken.
	ErrMarketplaceConflict = NewDomainError("TV-MKT-4090", "marketplace already exists")

	// ErrListingConflict indicates the token manager is already listed.
	ErrListingConflict = NewDomainError("TV-MKT-4091", "listing already exists")

	// ErrPaymentMintNotAllowed indicates the marketplace does not accept the payment mint.
	ErrPaymentMintNotAllowed = NewDomainError("TV-MKT-4001", "payment mint not allowed")
)

// ============================================================================
// Authentication Errors (AUTH)
// ============================================================================

var (
	// ErrAPIKeyMissing indicates no API key was provided.
	ErrAPIKeyMissing = NewDomainError("TV-AUTH-4010", "api key not provided")

	// ErrAPIKeyInvalid indicates the API key is invalid or does not exist.
	ErrAPIKeyInvalid = NewDomainError("TV-AUTH-4011", "invalid api key")

	// ErrSignatureInvalid indicates the caller signature does not verify.
	ErrSignatureInvalid = NewDomainError("TV-AUTH-4012", "invalid caller signature")

	// ErrCallerMissing indicates the caller identity header is missing.
	ErrCallerMissing = NewDomainError("TV-AUTH-4013", "caller identity not provided")

	// ErrTimestampSkew indicates the signed timestamp is outside the window.
	ErrTimestampSkew = NewDomainError("TV-AUTH-4014", "request timestamp outside window")

	// ErrNonceReplay indicates the request nonce was already used.
	ErrNonceReplay = NewDomainError("TV-AUTH-4015", "nonce already used")

	// ErrPermissionDenied indicates insufficient permissions.
	ErrPermissionDenied = NewDomainError("TV-AUTH-4030", "permission denied")

	// ErrAPIKeyDisabled indicates the API key is disabled.
	ErrAPIKeyDisabled = NewDomainError("TV-AUTH-4032", "api key disabled")

	// ErrIPNotAllowed indicates the client address is not in the allowlist.
	ErrIPNotAllowed = NewDomainError("TV-AUTH-4033", "client ip not allowed")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("TV-SYS-5000", "internal server error")

	// ErrStorageError indicates a storage layer error.
	ErrStorageError = NewDomainError("TV-SYS-5001", "storage error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("TV-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("TV-SYS-4000", "bad request")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("TV-SYS-4290", "too many requests")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("TV-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("TV-ARG-1002", "missing required argument")
)
