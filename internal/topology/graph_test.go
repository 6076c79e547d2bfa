package topology

import (
	"testing"
	"time"

	"netviz/core-go/internal/flowlogs"
	"netviz/core-go/internal/metricedges"
)

func TestFromFlowResults_dedupesNodesAndLinks(t *testing.T) {
	results := []flowlogs.GranularityResult{
		{
			GranularityName: "Instance to Instance",
			Success:         true,
			Connections: []flowlogs.Connection{
				{Source: flowlogs.Endpoint{Name: "web-1", Type: "Instance"}, Target: flowlogs.Endpoint{Name: "db-1", Type: "Instance"}, Bytes: 1536, Flows: 4},
				{Source: flowlogs.Endpoint{Name: "web-1", Type: "Instance"}, Target: flowlogs.Endpoint{Name: "db-1", Type: "Instance"}, Bytes: 99, Flows: 1},
			},
		},
		{
			GranularityName: "Instance to IP",
			Success:         true,
			Connections: []flowlogs.Connection{
				{Source: flowlogs.Endpoint{Name: "web-1", Type: "Instance"}, Target: flowlogs.Endpoint{Name: "10.0.0.8", Type: "IP Address", Hostname: "cache.internal"}, Bytes: 0, Flows: 2},
			},
		},
	}

	g := FromFlowResults(results)

	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d: %+v", len(g.Nodes), g.Nodes)
	}
	if g.Nodes[0].ID != "Instance-web-1" || g.Nodes[0].Status != StatusHealthy || g.Nodes[0].Icon != "computer" {
		t.Fatalf("unexpected first node: %+v", g.Nodes[0])
	}
	if g.Nodes[2].Icon != "language" || g.Nodes[2].Hostname != "cache.internal" {
		t.Fatalf("unexpected ip node: %+v", g.Nodes[2])
	}
	if len(g.Links) != 2 {
		t.Fatalf("expected 2 links, got %d", len(g.Links))
	}
	if g.Links[0].ID != "Instance-web-1->Instance-db-1" {
		t.Fatalf("unexpected link id %q", g.Links[0].ID)
	}
	if g.Links[0].MetricValue != "1.5 KB (4 flows)" {
		t.Fatalf("expected first link to win, got %q", g.Links[0].MetricValue)
	}
	if g.Links[1].MetricValue != "0 B (2 flows)" {
		t.Fatalf("unexpected metric value %q", g.Links[1].MetricValue)
	}
}

func TestFromFlowResults_emptyIsNonNil(t *testing.T) {
	g := FromFlowResults(nil)
	if g.Nodes == nil || g.Links == nil {
		t.Fatalf("expected empty slices, got %+v", g)
	}
}

func TestSummarize(t *testing.T) {
	results := []flowlogs.GranularityResult{
		{Success: true, Connections: make([]flowlogs.Connection, 3)},
		{Success: true},
		{Success: false, Error: "boom"},
	}
	info := Summarize(results, 1500*time.Millisecond)
	want := LatencyInfo{TotalLatencyMs: 1500, QueryCount: 3, ConnectionCount: 3, SuccessCount: 2, FailureCount: 1}
	if info != want {
		t.Fatalf("expected %+v, got %+v", want, info)
	}
}

func TestFromMetricConnections(t *testing.T) {
	g := FromMetricConnections([]metricedges.Connection{
		{Source: "api-gateway", Target: "load-balancer", MetricValue: "1.2 GB"},
		{Source: "1234567890", Target: "INTERNET", MetricValue: "12.0ms"},
	})
	types := map[string]string{}
	for _, n := range g.Nodes {
		types[n.ID] = n.Type
	}
	want := map[string]string{
		"api-gateway":   TypeService,
		"load-balancer": TypeService,
		"1234567890":    TypeInstance,
		"INTERNET":      TypeExternal,
	}
	for id, typ := range want {
		if types[id] != typ {
			t.Fatalf("node %s: expected type %s, got %s", id, typ, types[id])
		}
	}
	if g.Links[1].MetricValue != "12.0ms" || g.Links[1].ID != "1234567890->INTERNET" {
		t.Fatalf("unexpected link: %+v", g.Links[1])
	}
}

func TestDemoNetwork(t *testing.T) {
	g := DemoNetwork()
	if len(g.Nodes) != 13 {
		t.Fatalf("expected 13 nodes, got %d", len(g.Nodes))
	}
	if len(g.Links) != 13 {
		t.Fatalf("expected 13 links, got %d", len(g.Links))
	}
	ids := map[string]bool{}
	for _, n := range g.Nodes {
		if !IsValidNodeType(n.Type) || !IsValidStatus(n.Status) {
			t.Fatalf("invalid node %+v", n)
		}
		ids[n.ID] = true
	}
	for _, l := range g.Links {
		if !ids[l.Source] || !ids[l.Target] {
			t.Fatalf("dangling link %+v", l)
		}
		if !IsValidLinkType(l.Type) {
			t.Fatalf("invalid link type %q", l.Type)
		}
	}
}

func TestProject_capsAndSorts(t *testing.T) {
	g := DemoNetwork()
	p := Project(g, 5, 0)

	if len(p.Nodes) != 5 {
		t.Fatalf("expected 5 nodes, got %d", len(p.Nodes))
	}
	for i := 1; i < len(p.Nodes); i++ {
		if p.Nodes[i-1].ID > p.Nodes[i].ID {
			t.Fatalf("nodes not sorted: %s > %s", p.Nodes[i-1].ID, p.Nodes[i].ID)
		}
	}
	kept := map[string]bool{}
	for _, n := range p.Nodes {
		kept[n.ID] = true
	}
	for _, l := range p.Links {
		if !kept[l.Source] || !kept[l.Target] {
			t.Fatalf("link %s references a dropped node", l.ID)
		}
	}
	if !p.Truncation.Nodes.Truncated || p.Truncation.Nodes.Total == nil || *p.Truncation.Nodes.Total != 13 {
		t.Fatalf("unexpected node truncation: %+v", p.Truncation.Nodes)
	}
	if p.Truncation.Links.Limit != DefaultMaxLinks || p.Truncation.Links.Truncated {
		t.Fatalf("unexpected link truncation: %+v", p.Truncation.Links)
	}
	if p.Guidance == nil {
		t.Fatalf("expected guidance when truncated")
	}
	if len(g.Nodes) != 13 || g.Nodes[0].ID != "us-central1" {
		t.Fatalf("expected input graph to be left untouched")
	}
}

func TestProject_emptyGraphHasGuidance(t *testing.T) {
	p := Project(Graph{}, 0, 0)
	if p.Guidance == nil || len(p.Nodes) != 0 || p.Nodes == nil {
		t.Fatalf("unexpected empty projection: %+v", p)
	}
	if p.Truncation.Nodes.Limit != DefaultMaxNodes {
		t.Fatalf("expected default node limit, got %d", p.Truncation.Nodes.Limit)
	}
}

func TestClassifyName(t *testing.T) {
	cases := map[string]string{
		"us-central1":   TypeRegion,
		"us-east1-b":    TypeRegion,
		"vpc-prod":      TypeVPC,
		"subnet-a":      TypeSubnet,
		"frontend-lb":   TypeService,
		"web-server-1":  TypeInstance,
		"GOOGLE":        TypeExternal,
		"":              TypeInstance,
		"monitoring-vm": TypeInstance,
	}
	for in, want := range cases {
		if got := ClassifyName(in); got != want {
			t.Fatalf("ClassifyName(%q): expected %s, got %s", in, want, got)
		}
	}
}
