package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.
// Messages are part of the observable contract and must not change.

var (
	// Validation errors
	ErrInvalidAmount  = errors.New("Min 10 USDC / Max 10.000 USDC")
	ErrUnknownPlan    = errors.New("Unknown plan")
	ErrInvalidAddress = errors.New("Invalid address")

	// Authorization errors
	ErrNotRegistered = errors.New("Not registered")
	ErrUnauthorized  = errors.New("Not authorized")

	// State errors
	ErrAlreadyClaimed       = errors.New("Already claimed")
	ErrClaimTooEarly        = errors.New("Claim allowed only after 30 days or at plan end")
	ErrContributionFinished = errors.New("Contribution already finished")
	ErrAlreadyRegistered    = errors.New("Already registered")
	ErrDuplicateToken       = errors.New("Token already added")
	ErrNothingToWithdraw    = errors.New("Nothing to withdraw")

	// Lookup errors
	ErrContributionNotFound = errors.New("Contribution not found")
	ErrTokenNotFound        = errors.New("Token not found")

	// Collaborator errors
	ErrTransferFailed      = errors.New("Transfer failed")
	ErrInsufficientBalance = errors.New("insufficient balance")
)

// ErrorKind classifies a domain error for callers that need to react to a
// category rather than a specific failure (HTTP status mapping, metrics).
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindAuthorization ErrorKind = "authorization"
	KindState         ErrorKind = "state"
	KindNotFound      ErrorKind = "not_found"
	KindTransfer      ErrorKind = "transfer"
	KindInternal      ErrorKind = "internal"
)

var errorKinds = []struct {
	err  error
	kind ErrorKind
}{
	{ErrInvalidAmount, KindValidation},
	{ErrUnknownPlan, KindValidation},
	{ErrInvalidAddress, KindValidation},
	{ErrNotRegistered, KindAuthorization},
	{ErrUnauthorized, KindAuthorization},
	{ErrAlreadyClaimed, KindState},
	{ErrClaimTooEarly, KindState},
	{ErrContributionFinished, KindState},
	{ErrAlreadyRegistered, KindState},
	{ErrDuplicateToken, KindState},
	{ErrNothingToWithdraw, KindState},
	{ErrContributionNotFound, KindNotFound},
	{ErrTokenNotFound, KindNotFound},
	{ErrTransferFailed, KindTransfer},
	{ErrInsufficientBalance, KindTransfer},
}

// KindOf returns the taxonomy kind of err, unwrapping as needed.
// Unknown errors are KindInternal.
func KindOf(err error) ErrorKind {
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return KindInternal
}
