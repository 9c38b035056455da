package dynaccess

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

const fallbackNameserver = "1.1.1.1:53"

// Resolver turns a domain name into its current IPv4 address. Lookups are
// bounded by the configured timeout and never retried here; retry cadence
// belongs to the scheduler that re-runs the pass.
type Resolver struct {
	server string
	client *dns.Client
}

// NewResolver creates a resolver against the given nameserver ("host:port").
// An empty server falls back to the first entry of /etc/resolv.conf, then
// to a public resolver.
func NewResolver(server string, timeout time.Duration) *Resolver {
	if server == "" {
		if cfg, _ := dns.ClientConfigFromFile("/etc/resolv.conf"); cfg != nil && len(cfg.Servers) > 0 {
			server = net.JoinHostPort(cfg.Servers[0], cfg.Port)
		} else {
			server = fallbackNameserver
		}
	}
	return &Resolver{
		server: server,
		client: &dns.Client{Timeout: timeout},
	}
}

// Resolve returns the first A record for the domain. Multi-answer
// (round-robin) responses are reduced to the first answer; this is a known
// limitation, not an error. NXDOMAIN, timeouts and transport failures all
// come back as a *ResolveError so the caller can skip and continue.
func (r *Resolver) Resolve(ctx context.Context, domain string) (string, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(domain), dns.TypeA)

	resp, _, err := r.client.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return "", &ResolveError{Domain: domain, Err: err}
	}
	if resp.Rcode != dns.RcodeSuccess {
		return "", &ResolveError{Domain: domain, Err: fmt.Errorf("rcode %s", dns.RcodeToString[resp.Rcode])}
	}

	for _, answer := range resp.Answer {
		if a, ok := answer.(*dns.A); ok {
			return a.A.String(), nil
		}
	}

	return "", &ResolveError{Domain: domain, Err: ErrNoAnswer}
}
