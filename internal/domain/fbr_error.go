package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// FBRErrorKind classifies every failure of an FBR call into exactly three
// kinds. Callers branch on the kind, never on message text.
type FBRErrorKind string

const (
	// FBRErrValidation: the authority rejected the payload. Not retryable
	// without changing the payload.
	FBRErrValidation FBRErrorKind = "validation"
	// FBRErrTransient: timeout, 5xx, or rate limit. Retryable with backoff.
	FBRErrTransient FBRErrorKind = "transient"
	// FBRErrAuth: token invalid or expired. Needs operator intervention;
	// never retried automatically.
	FBRErrAuth FBRErrorKind = "auth"
)

// FBRError is a classified failure from the tax authority.
type FBRError struct {
	Kind    FBRErrorKind
	Code    string
	Message string
	Fields  []FieldError
	Raw     json.RawMessage
}

func (e *FBRError) Error() string {
	return fmt.Sprintf("fbr %s error %s: %s", e.Kind, e.Code, e.Message)
}

// FBRKindOf extracts the classification from an error chain. ok is false if
// the error did not originate from the FBR client.
func FBRKindOf(err error) (FBRErrorKind, bool) {
	var fe *FBRError
	if errors.As(err, &fe) {
		return fe.Kind, true
	}
	return "", false
}

// FailureKindOf maps an error to the persisted failure kind. Only failures
// known to be worth another attempt classify as transient; anything
// unrecognized is treated as permanent so the retry sweep cannot loop on it.
func FailureKindOf(err error) FailureKind {
	if kind, ok := FBRKindOf(err); ok {
		switch kind {
		case FBRErrTransient:
			return FailureTransient
		case FBRErrAuth:
			return FailureAuth
		default:
			return FailureValidation
		}
	}

	var seqErr *SequenceError
	if errors.As(err, &seqErr) {
		return FailureTransient
	}
	if errors.Is(err, ErrSubmissionLocked) {
		return FailureTransient
	}
	return FailureValidation
}
