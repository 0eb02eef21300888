package raffle

import (
	"errors"
	"fmt"
)

// Kind classifies engine failures so that callers can tell a request that
// may succeed later (state) from one that never will (validation, authorization).
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthorization
	KindState
	KindEligibility
	KindArithmetic
	KindNotFound
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthorization:
		return "authorization"
	case KindState:
		return "state"
	case KindEligibility:
		return "eligibility"
	case KindArithmetic:
		return "arithmetic"
	case KindNotFound:
		return "not-found"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	msg  string
}

func (e *kindError) Error() string { return e.msg }

func newError(kind Kind, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// KindOf reports the category of err, looking through wrapped errors.
func KindOf(err error) Kind {
	var ke *kindError
	if errors.As(err, &ke) {
		return ke.kind
	}
	return KindUnknown
}

// Errors
var (
	// validation
	ErrInvalidName         = newError(KindValidation, "name must be 3-50 bytes")
	ErrInvalidFeeRate      = newError(KindValidation, "fee rate must be within [0, 1]")
	ErrInvalidAmount       = newError(KindValidation, "invalid amount")
	ErrInvalidTicketPrice  = newError(KindValidation, "ticket price must be a native coin")
	ErrInvalidTicketCount  = newError(KindValidation, "ticket count must be positive")
	ErrNoAssets            = newError(KindValidation, "at least one asset is required")
	ErrDuplicateAssets     = newError(KindValidation, "duplicate assets")
	ErrInvalidAsset        = newError(KindValidation, "invalid asset")
	ErrInvalidCondition    = newError(KindValidation, "invalid advantage condition")
	ErrCommentTooLong      = newError(KindValidation, "comment exceeds 20000 bytes")
	ErrInvalidCreationFee  = newError(KindValidation, "creation fee not provided")
	ErrFundsMismatch       = newError(KindValidation, "sent funds do not cover the raffled coins")
	ErrPaymentMismatch     = newError(KindValidation, "payment does not match ticket cost")
	ErrAssetMismatch       = newError(KindValidation, "declared payment does not match sent funds")
	ErrTooManyWinners      = newError(KindValidation, "winner count exceeds ticket count")
	ErrAlreadyInstantiated = newError(KindValidation, "config already exists")
	ErrInvalidIdentity     = newError(KindValidation, "invalid identity")
	ErrInvalidRandomness   = newError(KindValidation, "randomness must be 32 bytes")

	// authorization
	ErrUnauthorized   = newError(KindAuthorization, "unauthorized")
	ErrNotRaffleOwner = newError(KindAuthorization, "sender is not the raffle owner")
	ErrNotOracle      = newError(KindAuthorization, "sender is not the randomness oracle")

	// state
	ErrWrongState                = newError(KindState, "action not allowed in current raffle state")
	ErrContractLocked            = newError(KindState, "contract is locked")
	ErrRandomnessAlreadyProvided = newError(KindState, "randomness has already been provided")
	ErrAlreadyFinalized          = newError(KindState, "raffle already finalized")
	ErrRaffleHasTickets          = newError(KindState, "raffle already has tickets")
	ErrTooManyTickets            = newError(KindState, "raffle ticket cap exceeded")
	ErrTooManyTicketsForUser     = newError(KindState, "per-address ticket cap exceeded")
	ErrRaffleExists              = newError(KindState, "raffle id already in use")

	// eligibility
	ErrIneligible     = newError(KindEligibility, "gating condition not satisfied")
	ErrNotWhitelisted = newError(KindEligibility, "participant not whitelisted")

	// arithmetic
	ErrOverflow  = newError(KindArithmetic, "arithmetic overflow")
	ErrUnderflow = newError(KindArithmetic, "arithmetic underflow")

	// lookups
	ErrRaffleNotFound = newError(KindNotFound, "raffle not found")
	ErrConfigNotFound = newError(KindNotFound, "config not found")
)

// StateError reports an operation attempted in a lifecycle state that forbids it.
type StateError struct {
	Op    string
	State State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s not allowed in state %s", e.Op, e.State)
}

func (e *StateError) Unwrap() error { return ErrWrongState }

// IneligibleError names the participant and the first gating condition it failed.
type IneligibleError struct {
	Participant Identity
	Index       int
	Condition   AdvantageCondition
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("%s does not satisfy gating condition %d (%s)", e.Participant, e.Index, e.Condition)
}

func (e *IneligibleError) Unwrap() error { return ErrIneligible }
