// Package ai holds the error taxonomy shared by the STT, TTS and LLM
// provider interfaces.
package ai

import "errors"

var (
	// ErrRecoverable indicates a temporary provider failure that may succeed
	// if retried. Examples: network timeout, service overload, rate limiting.
	ErrRecoverable = errors.New("recoverable provider error")

	// ErrFatal indicates a permanent provider failure that will not succeed
	// if retried. Examples: invalid credentials, unsupported audio format.
	ErrFatal = errors.New("fatal provider error")
)
