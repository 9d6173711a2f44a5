package proxy

import "errors"

var (
	// ErrNoRules indicates a router was built without any rules
	ErrNoRules = errors.New("no proxy rules configured")
	// ErrDuplicatePrefix indicates two rules share the same match prefix
	ErrDuplicatePrefix = errors.New("duplicate proxy prefix")
	// ErrInvalidPrefix indicates a match prefix is empty or not an absolute path
	ErrInvalidPrefix = errors.New("invalid proxy prefix")
	// ErrInvalidTarget indicates the upstream origin is not a usable http(s) URL
	ErrInvalidTarget = errors.New("invalid proxy target")
	// ErrInvalidStripPrefix indicates the rewrite prefix is not a prefix of the match prefix
	ErrInvalidStripPrefix = errors.New("invalid strip prefix")
)
