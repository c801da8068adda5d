package types

import "errors"

// Sentinel errors for the kinds in §7's error-handling table.
var (
	ErrKeyInfoNotFound  = errors.New("types: key info not found")
	ErrNotFound         = errors.New("types: block not found in store")
	ErrNotIncluded      = errors.New("types: message not included on chain")
	ErrEmptyKeyStore    = errors.New("types: no keys available in key store")
)
