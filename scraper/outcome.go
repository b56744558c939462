package scraper

import (
	"encoding/json"
	"fmt"
)

// OutcomeKind tags the result of a network call so callers decide
// explicitly whether to use, retry, or skip it.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	// OutcomeRateLimited is an HTTP 429; retried after the rate-limit backoff.
	OutcomeRateLimited
	// OutcomeTransient covers transport errors, 5xx and undecodable bodies.
	OutcomeTransient
	// OutcomePermanent is not retried (4xx other than 429, or a decode
	// failure on the final attempt).
	OutcomePermanent
	// OutcomeExhausted means every attempt was used without a payload.
	OutcomeExhausted
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeTransient:
		return "transient"
	case OutcomePermanent:
		return "permanent"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return fmt.Sprintf("outcome(%d)", int(k))
	}
}

func (k OutcomeKind) Retryable() bool {
	return k == OutcomeRateLimited || k == OutcomeTransient
}

// Result is what FetchWithRetry hands back. Payload is only set for
// OutcomeOK.
type Result struct {
	Kind     OutcomeKind
	Payload  json.RawMessage
	Status   int
	Attempts int
	Encoding string
	Err      error
}

func (r Result) OK() bool {
	return r.Kind == OutcomeOK
}

func (r Result) String() string {
	if r.Err != nil {
		return fmt.Sprintf("%s after %d attempt(s), status %d: %v", r.Kind, r.Attempts, r.Status, r.Err)
	}
	return fmt.Sprintf("%s after %d attempt(s), status %d", r.Kind, r.Attempts, r.Status)
}

// Page is the raw listing objects of one (category, page) request.
type Page struct {
	Number   int
	Listings []json.RawMessage
	Outcome  OutcomeKind
}

func (p Page) Failed() bool {
	return p.Outcome != OutcomeOK
}
