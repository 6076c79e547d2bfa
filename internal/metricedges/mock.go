package metricedges

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"
)

type edge struct {
	source, target string
}

var baseConnections = []edge{
	{"web-server-1", "db-server"},
	{"load-balancer", "web-server-1"},
	{"web-server-2", "cache-server"},
	{"api-gateway", "load-balancer"},
	{"frontend-lb", "web-server-1"},
	{"web-server-1", "redis-cache"},
	{"monitoring-vm", "log-server"},
	{"backup-service", "storage-vm"},
}

// MockGenerator produces plausible demo edges. Safe for concurrent use.
type MockGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewMockGenerator uses rnd, or a time-seeded source when nil.
func NewMockGenerator(rnd *rand.Rand) *MockGenerator {
	if rnd == nil {
		seed := uint64(time.Now().UnixNano())
		rnd = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return &MockGenerator{rnd: rnd}
}

// Connections returns all base edges for EdgeAll, otherwise the first 3 to 7 of them.
func (g *MockGenerator) Connections(edgeType, metric string) []Connection {
	g.mu.Lock()
	defer g.mu.Unlock()

	edges := baseConnections
	if edgeType != EdgeAll {
		n := max(3, g.rnd.IntN(6)+2)
		edges = baseConnections[:n]
	}
	out := make([]Connection, 0, len(edges))
	for _, e := range edges {
		out = append(out, Connection{Source: e.source, Target: e.target, MetricValue: g.value(metric)})
	}
	return out
}

func (g *MockGenerator) value(metric string) string {
	switch metric {
	case MetricTraffic:
		mb := g.rnd.Float64()*5000 + 100
		if mb > 1000 {
			return fmt.Sprintf("%.1f GB", mb/1000)
		}
		return fmt.Sprintf("%.0f MB", mb)
	case MetricLatency:
		return fmt.Sprintf("%.1fms", g.rnd.Float64()*100+0.5)
	case MetricPacketLoss:
		return fmt.Sprintf("%.2f%%", g.rnd.Float64()*5)
	default:
		return "N/A"
	}
}
