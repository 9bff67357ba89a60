package errs

import "errors"

// Sentinel errors shared by the conformance engine and the mock server
var (
	// Transport errors
	ErrRemoteUnreachable = errors.New("remote server unreachable")
	ErrUnexpectedStatus  = errors.New("unexpected HTTP status code")

	// Contract errors
	ErrDecodeFailed      = errors.New("response decode failed")
	ErrContractViolation = errors.New("supplier broke the protocol contract")

	// Token errors (mock server)
	ErrBadToken = errors.New("malformed opaque token")
)
