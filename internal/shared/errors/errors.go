package errors

import "errors"

// Domain errors
var (
	// Target errors
	ErrTargetRequired = errors.New("target required")
	ErrBlockedTarget  = errors.New("target resolves to a private, loopback or link-local address")
	ErrInvalidHost    = errors.New("unable to resolve host to a public address")

	// Website errors
	ErrInvalidURL      = errors.New("invalid URL")
	ErrUnreachableHost = errors.New("domain could not be resolved or is unreachable")
	ErrFetchFailed     = errors.New("fetch failed")

	// Assessment errors
	ErrMissingInput = errors.New("provide url or software")
	ErrEmptyQuery   = errors.New("empty query")

	// Infrastructure errors
	ErrCacheMiss       = errors.New("cache miss")
	ErrUpstream        = errors.New("upstream request failed")
	ErrNotConfigured   = errors.New("integration not configured")
	ErrUnsupportedKind = errors.New("unsupported job type")
)
