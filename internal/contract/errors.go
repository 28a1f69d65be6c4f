package contract

import "errors"

// ErrContractNotFound is returned by Registry.Load when no contract file
// exists for the requested agent type.
var ErrContractNotFound = errors.New("contract: not found")

// ErrContractInvalid is returned when a contract file is malformed, has
// required fields missing, or allowed_actions/forbidden_actions overlap.
var ErrContractInvalid = errors.New("contract: invalid")
