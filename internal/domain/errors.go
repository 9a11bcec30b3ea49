package domain

import "errors"

// Error taxonomy. Validation and decryption errors surface synchronously at
// placement; execution-time errors are recorded as the order's FailureReason.
var (
	ErrValidation      = errors.New("invalid order request")
	ErrKeyDecrypt      = errors.New("key decryption failed")
	ErrNotFound        = errors.New("order not found")
	ErrDuplicateID     = errors.New("duplicate order id")
	ErrAlreadyTerminal = errors.New("order already terminal")
	ErrNoRoute         = errors.New("no route")
	ErrSubmission      = errors.New("transaction submission failed")
	ErrStalePrice      = errors.New("stale price")
)
