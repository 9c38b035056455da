package dynaccess

import (
	"net"
	"sort"
	"strings"
)

// Mapping holds the last IPv4 address observed for each tracked domain.
// It is the sole source of truth for "what IP did we last associate with
// this domain" and is persisted as a plain JSON object.
type Mapping map[string]string

// Validate checks that every entry is a usable domain/IPv4 pair.
func (m Mapping) Validate() error {
	for domain, ip := range m {
		if strings.TrimSpace(domain) == "" {
			return &ErrInvalidEntry{Domain: domain, Reason: "domain is empty"}
		}
		parsed := net.ParseIP(ip)
		if parsed == nil || parsed.To4() == nil {
			return &ErrInvalidEntry{Domain: domain, Reason: "ip is not a valid IPv4 address"}
		}
	}
	return nil
}

// Domains returns the tracked domains in sorted order.
func (m Mapping) Domains() []string {
	domains := make([]string, 0, len(m))
	for d := range m {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}

// Clone returns an independent copy of the mapping.
func (m Mapping) Clone() Mapping {
	out := make(Mapping, len(m))
	for d, ip := range m {
		out[d] = ip
	}
	return out
}

// Rule is one access-rule row as stored by the proxy manager. Only the
// address field is ever mutated here; rows are never created or deleted.
type Rule struct {
	ID      uint
	Domain  string
	Address string
}

// HostPart returns the address with any CIDR suffix removed. The proxy
// manager stores some addresses as "1.2.3.4/32".
func (r Rule) HostPart() string {
	if idx := strings.IndexByte(r.Address, '/'); idx >= 0 {
		return r.Address[:idx]
	}
	return r.Address
}

// Outcome is the terminal state of one domain within one pass.
type Outcome int

const (
	// OutcomeUnchanged means the resolved IP matched the stored one.
	OutcomeUnchanged Outcome = iota
	// OutcomeUpdated means the rule row and the mapping were both updated.
	OutcomeUpdated
	// OutcomeLearned means a baseline IP was recorded without a DB write.
	OutcomeLearned
	// OutcomeResolveFailed means DNS resolution failed; nothing was touched.
	OutcomeResolveFailed
	// OutcomeRuleMissing means no rule row matched the domain and old IP.
	OutcomeRuleMissing
	// OutcomeUpdateFailed means the DB write failed; the mapping was left
	// untouched so the change is retried on the next pass.
	OutcomeUpdateFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeUpdated:
		return "updated"
	case OutcomeLearned:
		return "learned"
	case OutcomeResolveFailed:
		return "resolve-failed"
	case OutcomeRuleMissing:
		return "rule-missing"
	case OutcomeUpdateFailed:
		return "update-failed"
	}
	return "unknown"
}

// Summary aggregates the outcomes of one pass.
type Summary struct {
	Unchanged     int
	Updated       int
	Learned       int
	ResolveFailed int
	RuleMissing   int
	UpdateFailed  int
	Restored      int
}

// Record counts one per-domain outcome.
func (s *Summary) Record(o Outcome) {
	switch o {
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeLearned:
		s.Learned++
	case OutcomeResolveFailed:
		s.ResolveFailed++
	case OutcomeRuleMissing:
		s.RuleMissing++
	case OutcomeUpdateFailed:
		s.UpdateFailed++
	}
}

// Total returns the number of domains processed in the pass.
func (s Summary) Total() int {
	return s.Unchanged + s.Updated + s.Learned + s.ResolveFailed + s.RuleMissing + s.UpdateFailed
}

// Changed reports whether the pass altered any rule row.
func (s Summary) Changed() bool {
	return s.Updated > 0
}
