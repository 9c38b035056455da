package dynaccess

import "fmt"

// Recoverable per-domain conditions
var (
	ErrNoAnswer     = fmt.Errorf("no A record in answer")
	ErrRuleNotFound = fmt.Errorf("no rule row matches domain and old address")
)

// Fatal conditions
var (
	ErrDatabaseUnavailable = fmt.Errorf("database unavailable")
)

// ResolveError indicates a failed DNS lookup for one domain. It is
// recoverable: the domain is skipped for the pass and retried on the next
// scheduled run.
type ResolveError struct {
	Domain string
	Err    error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %v", e.Domain, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}

// ErrInvalidEntry indicates a malformed entry in the domain mapping.
type ErrInvalidEntry struct {
	Domain string
	Reason string
}

func (e *ErrInvalidEntry) Error() string {
	return fmt.Sprintf("invalid mapping entry for '%s': %s", e.Domain, e.Reason)
}
