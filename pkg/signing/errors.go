package signing

import (
	"errors"

	"github.com/uhyunpark/starksettle/pkg/settlement"
)

// Failure taxonomy of the signing pipeline. Every error returned by
// Pipeline matches exactly one of these with errors.Is.
var (
	ErrInvalidInput      = settlement.ErrInvalidInput
	ErrAmountOverflow    = settlement.ErrAmountOverflow
	ErrInvalidResolution = settlement.ErrInvalidResolution

	// ErrHashComputationFailed is returned when the structured-hash primitive rejects the preimage
	ErrHashComputationFailed = errors.New("hash computation failed")
	// ErrSignatureFailed is returned when the signature primitive fails
	ErrSignatureFailed = errors.New("signature failed")
	// ErrInvalidSignature is returned by Verifier when a signature does not check out
	ErrInvalidSignature = errors.New("invalid signature")
)
