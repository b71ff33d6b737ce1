package retry

import (
	"errors"
	"strings"
)

// Kind partitions upstream failures into the classes the agent reacts to
// differently: rate limits are retried, auth failures are fatal and reported
// as configuration problems, everything else is a generic failure.
type Kind int

const (
	// KindOther is any failure that is neither a rate limit nor an auth error.
	KindOther Kind = iota
	// KindRateLimit is a transient "too many requests" style failure (HTTP 429).
	KindRateLimit
	// KindAuth is an authentication or authorization failure (HTTP 401/403).
	KindAuth
)

// Sentinel errors that collaborators (and tests) may wrap to force a
// classification without relying on provider error text.
var (
	// ErrRateLimited marks an error as a rate-limit signal.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnauthorized marks an error as an authentication failure.
	ErrUnauthorized = errors.New("unauthorized")
)

// rateLimitMarkers are substrings that identify a rate-limit failure in
// provider error text. Matched case-insensitively.
var rateLimitMarkers = []string{
	"429",
	"too many requests",
	"rate limit",
	"rate_limit",
	"quota exceeded",
}

// authMarkers are substrings that identify an authentication failure in
// provider error text. Matched case-insensitively.
var authMarkers = []string{
	"401",
	"403",
	"unauthorized",
	"unauthenticated",
	"invalid api key",
	"invalid_api_key",
	"incorrect api key",
	"permission denied",
	"authentication",
}

// Classify inspects err and returns its Kind.
//
// Wrapped sentinels (ErrRateLimited, ErrUnauthorized) take precedence; when
// neither is present the provider error text is scanned for well-known
// markers. The model providers behind eino surface HTTP status codes in their
// error strings, so substring matching is the pragmatic common denominator
// across backends.
func Classify(err error) Kind {
	if err == nil {
		return KindOther
	}
	if errors.Is(err, ErrRateLimited) {
		return KindRateLimit
	}
	if errors.Is(err, ErrUnauthorized) {
		return KindAuth
	}

	msg := strings.ToLower(err.Error())
	for _, m := range rateLimitMarkers {
		if strings.Contains(msg, m) {
			return KindRateLimit
		}
	}
	for _, m := range authMarkers {
		if strings.Contains(msg, m) {
			return KindAuth
		}
	}
	return KindOther
}
