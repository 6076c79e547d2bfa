// Package rdns labels IP address endpoints with reverse DNS names.
package rdns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/miekg/dns"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"netviz/core-go/internal/flowlogs"
	"netviz/core-go/internal/metrics"
)

const (
	DefaultWorkers   = 8
	DefaultTimeout   = 2 * time.Second
	DefaultCacheSize = 4096
	DefaultCacheTTL  = 30 * time.Minute
)

var ErrNoServer = errors.New("rdns: no DNS server configured")

// Resolver answers PTR queries for one address.
type Resolver interface {
	LookupPTR(ctx context.Context, ip string) ([]string, error)
}

// DNSResolver queries a single DNS server over UDP.
type DNSResolver struct {
	Server string
	Client *dns.Client
}

func NewDNSResolver(server string, timeout time.Duration) *DNSResolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if _, _, err := net.SplitHostPort(server); err != nil && server != "" {
		server = net.JoinHostPort(server, "53")
	}
	return &DNSResolver{Server: server, Client: &dns.Client{Timeout: timeout}}
}

func (r *DNSResolver) LookupPTR(ctx context.Context, ip string) ([]string, error) {
	if r.Server == "" {
		return nil, ErrNoServer
	}
	arpa, err := dns.ReverseAddr(ip)
	if err != nil {
		return nil, err
	}

	m := new(dns.Msg)
	m.SetQuestion(arpa, dns.TypePTR)
	m.RecursionDesired = true

	in, _, err := r.Client.ExchangeContext(ctx, m, r.Server)
	if err != nil {
		return nil, err
	}
	switch in.Rcode {
	case dns.RcodeSuccess:
	case dns.RcodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("rdns: %s for %s", dns.RcodeToString[in.Rcode], ip)
	}

	var names []string
	for _, rr := range in.Answer {
		if ptr, ok := rr.(*dns.PTR); ok {
			names = append(names, ptr.Ptr)
		}
	}
	return names, nil
}

type Options struct {
	Workers   int
	Timeout   time.Duration
	CacheSize int
	CacheTTL  time.Duration
}

// Enricher resolves hostnames with a bounded number of concurrent lookups.
// Negative answers are cached too. A nil *Enricher is a no-op.
type Enricher struct {
	log      zerolog.Logger
	metrics  *metrics.Metrics
	resolver Resolver
	cache    *expirable.LRU[string, string]
	workers  int
	timeout  time.Duration
}

func New(log zerolog.Logger, m *metrics.Metrics, resolver Resolver, opts Options) *Enricher {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.CacheSize <= 0 {
		opts.CacheSize = DefaultCacheSize
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	return &Enricher{
		log:      log.With().Str("component", "rdns").Logger(),
		metrics:  m,
		resolver: resolver,
		cache:    expirable.NewLRU[string, string](opts.CacheSize, nil, opts.CacheTTL),
		workers:  opts.Workers,
		timeout:  opts.Timeout,
	}
}

// Lookup returns the best PTR name for ip. ok is false when nothing usable was found.
func (e *Enricher) Lookup(ctx context.Context, ip string) (string, bool) {
	if e == nil || net.ParseIP(ip) == nil {
		return "", false
	}
	if name, ok := e.cache.Get(ip); ok {
		e.metrics.IncRDNSLookup("cached")
		return name, name != ""
	}

	lookupCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	raw, err := e.resolver.LookupPTR(lookupCtx, ip)
	if err != nil {
		e.metrics.IncRDNSLookup("error")
		e.log.Debug().Err(err).Str("ip", ip).Msg("ptr lookup failed")
		return "", false
	}

	name, ok := BestName(raw)
	if ok {
		e.metrics.IncRDNSLookup("hit")
	} else {
		e.metrics.IncRDNSLookup("miss")
	}
	e.cache.Add(ip, name)
	return name, ok
}

// Annotate sets Hostname on every IP Address endpoint in results.
func (e *Enricher) Annotate(ctx context.Context, results []flowlogs.GranularityResult) {
	if e == nil {
		return
	}

	seen := map[string]struct{}{}
	var ips []string
	for _, r := range results {
		for _, c := range r.Connections {
			for _, ep := range []flowlogs.Endpoint{c.Source, c.Target} {
				if ep.Type != flowlogs.EntityIPAddress {
					continue
				}
				if _, ok := seen[ep.Name]; ok {
					continue
				}
				seen[ep.Name] = struct{}{}
				ips = append(ips, ep.Name)
			}
		}
	}
	if len(ips) == 0 {
		return
	}

	names := make([]string, len(ips))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, ip := range ips {
		g.Go(func() error {
			if name, ok := e.Lookup(gctx, ip); ok {
				names[i] = name
			}
			return nil
		})
	}
	_ = g.Wait()

	byIP := make(map[string]string, len(ips))
	for i, ip := range ips {
		if names[i] != "" {
			byIP[ip] = names[i]
		}
	}
	for ri := range results {
		conns := results[ri].Connections
		for ci := range conns {
			label(&conns[ci].Source, byIP)
			label(&conns[ci].Target, byIP)
		}
	}
}

func label(ep *flowlogs.Endpoint, byIP map[string]string) {
	if ep.Type != flowlogs.EntityIPAddress {
		return
	}
	if name, ok := byIP[ep.Name]; ok {
		ep.Hostname = name
	}
}

// NormalizeName lowercases a PTR target and drops the trailing root dot.
// Reverse-zone names and placeholder hosts are rejected.
func NormalizeName(raw string) (string, bool) {
	name := strings.ToLower(strings.TrimSpace(raw))
	name = strings.TrimSuffix(name, ".")
	if name == "" {
		return "", false
	}
	if strings.Contains(name, "in-addr.arpa") || strings.Contains(name, "ip6.arpa") {
		return "", false
	}
	switch name {
	case "localhost", "localdomain", "localhost.localdomain":
		return "", false
	}
	if strings.ContainsAny(name, " \t") {
		return "", false
	}
	return name, true
}

// BestName picks one name from a PTR answer: shortest first, then alphabetical.
func BestName(raw []string) (string, bool) {
	var names []string
	seen := map[string]struct{}{}
	for _, r := range raw {
		n, ok := NormalizeName(r)
		if !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		names = append(names, n)
	}
	if len(names) == 0 {
		return "", false
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) < len(names[j])
		}
		return names[i] < names[j]
	})
	return names[0], true
}
