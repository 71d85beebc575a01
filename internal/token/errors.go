package token

import (
	"errors"
	"fmt"
)

// ErrInvalidToken is the umbrella error for every validation failure.
// The specific errors below all match it via errors.Is, so callers that
// only care about pass/fail can test against this one.
var ErrInvalidToken = errors.New("token: invalid token")

var (
	ErrExpired     = fmt.Errorf("%w: expired", ErrInvalidToken)
	ErrSignature   = fmt.Errorf("%w: signature verification failed", ErrInvalidToken)
	ErrMalformed   = fmt.Errorf("%w: malformed", ErrInvalidToken)
	ErrNotYetValid = fmt.Errorf("%w: not yet valid", ErrInvalidToken)
	ErrRevoked     = fmt.Errorf("%w: revoked", ErrInvalidToken)
)
