package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/charmbracelet/log"

	"dynaccess/pkg/dynaccess"
)

// RuleStore is the database capability the engine needs. The concrete
// transport (direct connection, exec channel) is an injected
// implementation; the engine stays transport-agnostic.
type RuleStore interface {
	Ping(ctx context.Context) error
	ListRules(ctx context.Context) ([]dynaccess.Rule, error)
	UpdateAddress(ctx context.Context, domain, oldIP, newIP string) error
	RestoreDomain(ctx context.Context, ip, domain string) (bool, error)
}

// Resolver turns a domain into its current IPv4 address.
type Resolver interface {
	Resolve(ctx context.Context, domain string) (string, error)
}

// MappingStore persists the domain mapping between passes.
type MappingStore interface {
	Load() (dynaccess.Mapping, error)
	Save(dynaccess.Mapping) error
}

// ProxyRuntime applies a confirmed change inside the proxy container.
// Optional; all calls are best-effort after a successful DB write.
type ProxyRuntime interface {
	ReplaceAddress(ctx context.Context, oldIP, newIP string) error
	ReloadNginx(ctx context.Context) error
}

// Enricher annotates an IP for the operator log. Optional.
type Enricher interface {
	Describe(ip string) string
}

// Config carries the engine's collaborators. Runtime and Enricher may be
// nil.
type Config struct {
	Rules    RuleStore
	Resolver Resolver
	Mapping  MappingStore
	Runtime  ProxyRuntime
	Enricher Enricher
}

// Engine reconciles the tracked domains against the rule table: one full
// sequential sweep per Run, mutating a rule row only when the freshly
// resolved IP diverges from the last-known one.
//
// Runs are expected not to overlap; nothing here takes a cross-process
// lock, so the scheduling interval must exceed worst-case pass time.
type Engine struct {
	rules    RuleStore
	resolver Resolver
	mapping  MappingStore
	runtime  ProxyRuntime
	enricher Enricher
}

// New builds an engine from its collaborators.
func New(cfg Config) *Engine {
	return &Engine{
		rules:    cfg.Rules,
		resolver: cfg.Resolver,
		mapping:  cfg.Mapping,
		runtime:  cfg.Runtime,
		enricher: cfg.Enricher,
	}
}

// Run executes one pass. Per-domain failures are logged and skipped; the
// returned error is non-nil only for fatal conditions (unreadable mapping,
// unreachable database, failed final mapping write), in which case the
// caller should exit non-zero and let the scheduler retry.
func (e *Engine) Run(ctx context.Context) (dynaccess.Summary, error) {
	var summary dynaccess.Summary

	m, err := e.mapping.Load()
	if err != nil {
		return summary, err
	}

	if err := e.rules.Ping(ctx); err != nil {
		return summary, err
	}

	rules, err := e.rules.ListRules(ctx)
	if err != nil {
		return summary, err
	}

	byDomain := make(map[string]dynaccess.Rule)
	byAddress := make(map[string]dynaccess.Rule)
	for _, rule := range rules {
		if rule.Domain != "" {
			if _, dup := byDomain[rule.Domain]; !dup {
				byDomain[rule.Domain] = rule
			}
		}
		if _, dup := byAddress[rule.HostPart()]; !dup {
			byAddress[rule.HostPart()] = rule
		}
	}

	summary.Restored = e.restoreDomains(ctx, m, byDomain, byAddress)

	changed := false
	for _, domain := range trackedDomains(m, byDomain) {
		outcome := e.reconcile(ctx, domain, m, byDomain)
		summary.Record(outcome)
		if outcome == dynaccess.OutcomeUpdated {
			changed = true
		}
	}

	if changed && e.runtime != nil {
		if err := e.runtime.ReloadNginx(ctx); err != nil {
			log.Warn("nginx reload failed", "error", err)
		}
	}

	// One whole-file rewrite per pass. A crash before this point only
	// means the file lags the database, which the next pass re-detects
	// harmlessly.
	if err := e.mapping.Save(m); err != nil {
		return summary, fmt.Errorf("persist mapping: %w", err)
	}

	return summary, nil
}

// reconcile drives one domain through its pass states.
func (e *Engine) reconcile(ctx context.Context, domain string, m dynaccess.Mapping, byDomain map[string]dynaccess.Rule) dynaccess.Outcome {
	newIP, err := e.resolver.Resolve(ctx, domain)
	if err != nil {
		log.Warn("resolution failed, skipping domain", "domain", domain, "error", err)
		return dynaccess.OutcomeResolveFailed
	}

	oldIP, known := m[domain]
	if !known {
		// Undefined old value: accept the resolved IP as baseline, no DB
		// write. Covers the first run and rows tagged by the operator
		// since the last pass.
		m[domain] = newIP
		log.Info("learned baseline", "domain", domain, "ip", newIP)
		return dynaccess.OutcomeLearned
	}

	if newIP == oldIP {
		return dynaccess.OutcomeUnchanged
	}

	rule, ok := byDomain[domain]
	if !ok {
		log.Warn("ip changed but no rule row carries this domain", "domain", domain, "old", oldIP, "new", newIP)
		return dynaccess.OutcomeRuleMissing
	}

	if rule.HostPart() == newIP {
		// The row already carries the resolved address: a previous run was
		// killed between its DB write and its file save. The mapping follows
		// the database, so adopt the address without another write.
		m[domain] = newIP
		log.Info("adopted address already on rule row", "domain", domain, "old", oldIP, "new", newIP)
		return dynaccess.OutcomeLearned
	}

	if err := e.rules.UpdateAddress(ctx, domain, oldIP, newIP); err != nil {
		if errors.Is(err, dynaccess.ErrRuleNotFound) {
			log.Warn("no rule row matches old address, skipping", "domain", domain, "old", oldIP, "new", newIP)
			return dynaccess.OutcomeRuleMissing
		}
		log.Error("rule update failed, will retry next pass", "domain", domain, "old", oldIP, "new", newIP, "error", err)
		return dynaccess.OutcomeUpdateFailed
	}

	// The mapping follows the database, never the other way around.
	m[domain] = newIP

	if e.runtime != nil {
		if err := e.runtime.ReplaceAddress(ctx, oldIP, newIP); err != nil {
			log.Warn("container config rewrite failed", "domain", domain, "error", err)
		}
	}

	args := []interface{}{"domain", domain, "old", oldIP, "new", newIP}
	if e.enricher != nil {
		if desc := e.enricher.Describe(newIP); desc != "" {
			args = append(args, "origin", desc)
		}
	}
	log.Info("ip updated", args...)

	return dynaccess.OutcomeUpdated
}

// restoreDomains re-tags rule rows whose domain column was lost (for
// example after a proxy-manager reinstall) using the persisted mapping.
func (e *Engine) restoreDomains(ctx context.Context, m dynaccess.Mapping, byDomain, byAddress map[string]dynaccess.Rule) int {
	restored := 0
	for _, domain := range m.Domains() {
		if _, ok := byDomain[domain]; ok {
			continue
		}
		rule, ok := byAddress[m[domain]]
		if !ok || rule.Domain != "" {
			continue
		}
		done, err := e.rules.RestoreDomain(ctx, m[domain], domain)
		if err != nil {
			log.Warn("domain restore failed", "domain", domain, "ip", m[domain], "error", err)
			continue
		}
		if done {
			rule.Domain = domain
			byDomain[domain] = rule
			restored++
			log.Info("restored domain on rule row", "domain", domain, "ip", m[domain])
		}
	}
	return restored
}

// trackedDomains is the union of mapping keys and rule-row domains, in
// stable order.
func trackedDomains(m dynaccess.Mapping, byDomain map[string]dynaccess.Rule) []string {
	seen := make(map[string]struct{}, len(m)+len(byDomain))
	for d := range m {
		seen[d] = struct{}{}
	}
	for d := range byDomain {
		seen[d] = struct{}{}
	}
	domains := make([]string, 0, len(seen))
	for d := range seen {
		domains = append(domains, d)
	}
	sort.Strings(domains)
	return domains
}
