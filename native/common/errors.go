package common

import "errors"

// Sentinel errors shared across the governance subsystem. Packages wrap these
// with context so callers can branch on the class with errors.Is while logs
// retain the specific failure.
var (
	// ErrValidation marks malformed input: bad thresholds, resource
	// requests, or policy rules.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks lookups of unknown subnets, validators, requests,
	// or proposals.
	ErrNotFound = errors.New("not found")
	// ErrPermission marks privileged registry or proposal actions from
	// callers lacking the required role or status.
	ErrPermission = errors.New("permission denied")
	// ErrExpired marks operations against a record past its deadline.
	ErrExpired = errors.New("expired")
	// ErrDuplicate marks repeat signature shares or repeat votes.
	ErrDuplicate = errors.New("duplicate")
	// ErrAggregation marks cryptographic combination failures.
	ErrAggregation = errors.New("aggregation failed")
)
