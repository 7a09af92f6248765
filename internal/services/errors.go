package services

import (
	"errors"
	"fmt"
)

// Kind classifies account failures. Handlers map kinds to status codes.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindUnauthorized
	KindStateCorrupted
	KindInvalidCode
	KindExpiredNonce
	KindGenerationExhausted
	KindPersistence
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthorized:
		return "unauthorized"
	case KindStateCorrupted:
		return "state_corrupted"
	case KindInvalidCode:
		return "invalid_code"
	case KindExpiredNonce:
		return "expired_nonce"
	case KindGenerationExhausted:
		return "generation_exhausted"
	case KindPersistence:
		return "persistence"
	}
	return "unknown"
}

// ErrGenerationExhausted is returned when every draw of a random code collided.
var ErrGenerationExhausted = errors.New("random code generation exhausted")

// AccountError is the only error type the account flow returns.
// LoginID is set for KindExpiredNonce so the caller can reissue.
type AccountError struct {
	Kind    Kind
	LoginID int64
	Err     error
}

func (e *AccountError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AccountError) Unwrap() error { return e.Err }

func accountErr(kind Kind, err error) *AccountError {
	return &AccountError{Kind: kind, Err: err}
}

// KindOf returns the Kind of err, or KindUnknown when err is not an AccountError.
func KindOf(err error) Kind {
	var ae *AccountError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindUnknown
}
