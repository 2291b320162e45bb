package service

import "errors"

// ErrRecordCountMismatch means a webhook invoice id did not match exactly
// one record. Nothing is updated when it is returned.
var ErrRecordCountMismatch = errors.New("invoice record count mismatch")
