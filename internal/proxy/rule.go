package proxy

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// CacheMode selects how upstream responses for a rule are cached.
type CacheMode string

const (
	CacheNone   CacheMode = "none"
	CacheMemory CacheMode = "memory"
	CacheDisk   CacheMode = "disk"
)

// Rule maps a literal path prefix to an upstream origin.
type Rule struct {
	// Prefix is the literal path prefix that selects this rule.
	Prefix string
	// Target is the upstream scheme, host and optional base path.
	Target url.URL
	// StripPrefix is removed once from the start of the request path.
	// It defaults to Prefix.
	StripPrefix string
	// ChangeOrigin presents the upstream host (and origin) instead of the client's.
	ChangeOrigin bool
	// Insecure skips upstream TLS certificate verification.
	Insecure bool
	// Timeout bounds the wait for upstream response headers, zero uses the transport default.
	Timeout time.Duration
	Cache   CacheMode
}

type RuleOption func(*Rule)

// WithStripPrefix overrides the prefix removed from the request path.
func WithStripPrefix(prefix string) RuleOption {
	return func(r *Rule) {
		r.StripPrefix = prefix
	}
}

func WithChangeOrigin(enabled bool) RuleOption {
	return func(r *Rule) {
		r.ChangeOrigin = enabled
	}
}

// WithInsecureTLS disables certificate verification for this rule's upstream.
// Only intended for local development against hosts with untrusted certificates.
func WithInsecureTLS(enabled bool) RuleOption {
	return func(r *Rule) {
		r.Insecure = enabled
	}
}

func WithTimeout(d time.Duration) RuleOption {
	return func(r *Rule) {
		r.Timeout = d
	}
}

func WithCache(mode CacheMode) RuleOption {
	return func(r *Rule) {
		r.Cache = mode
	}
}

// NewRule validates and builds a rule forwarding prefix to target.
func NewRule(prefix, target string, opts ...RuleOption) (Rule, error) {
	if err := validatePrefix(prefix); err != nil {
		return Rule{}, err
	}

	u, err := parseTarget(target)
	if err != nil {
		return Rule{}, err
	}

	r := Rule{
		Prefix:      prefix,
		Target:      *u,
		StripPrefix: prefix,
		Cache:       CacheNone,
	}
	for _, opt := range opts {
		opt(&r)
	}

	if r.StripPrefix == "" {
		r.StripPrefix = prefix
	}
	if !strings.HasPrefix(r.Prefix, r.StripPrefix) {
		return Rule{}, fmt.Errorf("%w: %q is not a prefix of %q", ErrInvalidStripPrefix, r.StripPrefix, r.Prefix)
	}

	switch r.Cache {
	case "":
		r.Cache = CacheNone
	case CacheNone, CacheMemory, CacheDisk:
	default:
		return Rule{}, fmt.Errorf("unknown cache mode %q for prefix %q", r.Cache, prefix)
	}

	if r.Timeout < 0 {
		return Rule{}, fmt.Errorf("negative timeout for prefix %q", prefix)
	}

	return r, nil
}

// Matches reports whether the path starts with the rule's prefix.
func (r Rule) Matches(path string) bool {
	return strings.HasPrefix(path, r.Prefix)
}

// Rewrite returns the outbound path for an inbound path.
func (r Rule) Rewrite(path string) string {
	return StripPrefix(path, r.StripPrefix)
}

// Origin returns the scheme and host of the upstream, e.g. "https://tiles.example.com".
func (r Rule) Origin() string {
	return r.Target.Scheme + "://" + r.Target.Host
}

// RewritesOwnPrefix reports whether the rewrite removes the whole match prefix.
// When false part of the distinguishing prefix is forwarded upstream.
func (r Rule) RewritesOwnPrefix() bool {
	return r.StripPrefix == r.Prefix
}

func (r Rule) String() string {
	return fmt.Sprintf("%s -> %s", r.Prefix, r.Target.String())
}

// StripPrefix removes prefix from the start of path, once. Occurrences of prefix
// later in the path are left alone. A path without the prefix is returned as is.
func StripPrefix(path, prefix string) string {
	if prefix == "" || !strings.HasPrefix(path, prefix) {
		return path
	}
	return path[len(prefix):]
}

func validatePrefix(prefix string) error {
	if prefix == "" {
		return fmt.Errorf("%w: empty prefix", ErrInvalidPrefix)
	}
	if !strings.HasPrefix(prefix, "/") {
		return fmt.Errorf("%w: %q must start with /", ErrInvalidPrefix, prefix)
	}
	if strings.ContainsAny(prefix, "?#") {
		return fmt.Errorf("%w: %q must not contain a query or fragment", ErrInvalidPrefix, prefix)
	}
	return nil
}

func parseTarget(target string) (*url.URL, error) {
	if target == "" {
		return nil, fmt.Errorf("%w: empty target", ErrInvalidTarget)
	}

	u, err := url.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTarget, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: %q must use http:// or https://", ErrInvalidTarget, target)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: %q has no host", ErrInvalidTarget, target)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return nil, fmt.Errorf("%w: %q must not contain a query or fragment", ErrInvalidTarget, target)
	}

	return u, nil
}
