// Package topology projects flow-log and metric results into graph nodes and links for the
// force-directed view.
package topology

import (
	"fmt"
	"sort"
	"time"

	"netviz/core-go/internal/flowlogs"
	"netviz/core-go/internal/metricedges"
)

const (
	DefaultMaxNodes = 500
	DefaultMaxLinks = 1000
)

type Node struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Status   string `json:"status"`
	Region   string `json:"region,omitempty"`
	Icon     string `json:"icon"`
	Hostname string `json:"hostname,omitempty"`
}

type Link struct {
	ID          string `json:"id"`
	Source      string `json:"source"`
	Target      string `json:"target"`
	Type        string `json:"type"`
	MetricValue string `json:"metricValue,omitempty"`
}

type TruncationMetric struct {
	Returned  int     `json:"returned"`
	Limit     int     `json:"limit"`
	Truncated bool    `json:"truncated"`
	Total     *int    `json:"total,omitempty"`
	Warning   *string `json:"warning,omitempty"`
}

type Truncation struct {
	Nodes TruncationMetric `json:"nodes"`
	Links TruncationMetric `json:"links"`
}

type Graph struct {
	Nodes      []Node     `json:"nodes"`
	Links      []Link     `json:"links"`
	Guidance   *string    `json:"guidance,omitempty"`
	Truncation Truncation `json:"truncation"`
}

// LatencyInfo summarises the queries behind a flow topology.
type LatencyInfo struct {
	TotalLatencyMs  int64 `json:"totalLatencyMs"`
	QueryCount      int   `json:"queryCount"`
	ConnectionCount int   `json:"connectionCount"`
	SuccessCount    int   `json:"successCount"`
	FailureCount    int   `json:"failureCount"`
}

func linkID(source, target string) string {
	return source + "->" + target
}

// builder accumulates nodes and links; the first occurrence of an id wins.
type builder struct {
	nodes   []Node
	links   []Link
	nodeIdx map[string]struct{}
	linkIdx map[string]struct{}
}

func newBuilder() *builder {
	return &builder{nodeIdx: map[string]struct{}{}, linkIdx: map[string]struct{}{}}
}

func (b *builder) addNode(n Node) {
	if _, ok := b.nodeIdx[n.ID]; ok {
		return
	}
	if n.Icon == "" {
		n.Icon = flowlogs.EntityIcon(n.Type)
	}
	if n.Status == "" {
		n.Status = StatusHealthy
	}
	b.nodeIdx[n.ID] = struct{}{}
	b.nodes = append(b.nodes, n)
}

func (b *builder) addLink(l Link) {
	if l.ID == "" {
		l.ID = linkID(l.Source, l.Target)
	}
	if _, ok := b.linkIdx[l.ID]; ok {
		return
	}
	if l.Type == "" {
		l.Type = LinkNetwork
	}
	b.linkIdx[l.ID] = struct{}{}
	b.links = append(b.links, l)
}

func (b *builder) graph() Graph {
	g := Graph{Nodes: b.nodes, Links: b.links}
	if g.Nodes == nil {
		g.Nodes = []Node{}
	}
	if g.Links == nil {
		g.Links = []Link{}
	}
	return g
}

// FromFlowResults builds one node per "<type>-<name>" endpoint and one link per ordered pair.
func FromFlowResults(results []flowlogs.GranularityResult) Graph {
	b := newBuilder()
	for _, r := range results {
		for _, c := range r.Connections {
			src := flowNode(c.Source)
			tgt := flowNode(c.Target)
			b.addNode(src)
			b.addNode(tgt)
			b.addLink(Link{
				Source:      src.ID,
				Target:      tgt.ID,
				Type:        LinkNetwork,
				MetricValue: fmt.Sprintf("%s (%d flows)", flowlogs.FormatBytes(c.Bytes), c.Flows),
			})
		}
	}
	return b.graph()
}

func flowNode(e flowlogs.Endpoint) Node {
	return Node{
		ID:       e.Type + "-" + e.Name,
		Name:     e.Name,
		Type:     e.Type,
		Status:   StatusHealthy,
		Hostname: e.Hostname,
	}
}

// Summarize reports counts over every granularity queried, including failed and empty ones.
func Summarize(results []flowlogs.GranularityResult, total time.Duration) LatencyInfo {
	info := LatencyInfo{TotalLatencyMs: total.Milliseconds(), QueryCount: len(results)}
	for _, r := range results {
		info.ConnectionCount += len(r.Connections)
		if r.Success {
			info.SuccessCount++
		} else {
			info.FailureCount++
		}
	}
	return info
}

// FromMetricConnections keys nodes by name and classifies them from the name alone.
func FromMetricConnections(conns []metricedges.Connection) Graph {
	b := newBuilder()
	for _, c := range conns {
		b.addNode(Node{ID: c.Source, Name: c.Source, Type: ClassifyName(c.Source)})
		b.addNode(Node{ID: c.Target, Name: c.Target, Type: ClassifyName(c.Target)})
		b.addLink(Link{Source: c.Source, Target: c.Target, Type: LinkNetwork, MetricValue: c.MetricValue})
	}
	return b.graph()
}

// Project caps the graph and sorts it by id. Links whose endpoints were cut are dropped.
// Non-positive limits use the defaults.
func Project(g Graph, nodeLimit, linkLimit int) Graph {
	if nodeLimit <= 0 {
		nodeLimit = DefaultMaxNodes
	}
	if linkLimit <= 0 {
		linkLimit = DefaultMaxLinks
	}

	nodes := append([]Node(nil), g.Nodes...)
	links := append([]Link(nil), g.Links...)
	sort.SliceStable(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	sort.SliceStable(links, func(i, j int) bool { return links[i].ID < links[j].ID })

	totalNodes := len(nodes)
	if len(nodes) > nodeLimit {
		nodes = nodes[:nodeLimit]
	}
	kept := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		kept[n.ID] = struct{}{}
	}

	filtered := links[:0]
	for _, l := range links {
		_, okS := kept[l.Source]
		_, okT := kept[l.Target]
		if okS && okT {
			filtered = append(filtered, l)
		}
	}
	totalLinks := len(filtered)
	if len(filtered) > linkLimit {
		filtered = filtered[:linkLimit]
	}

	out := Graph{
		Nodes:    nodes,
		Links:    filtered,
		Guidance: g.Guidance,
		Truncation: Truncation{
			Nodes: truncationMetric("nodes", len(nodes), nodeLimit, totalNodes),
			Links: truncationMetric("links", len(filtered), linkLimit, totalLinks),
		},
	}
	if out.Nodes == nil {
		out.Nodes = []Node{}
	}
	if out.Links == nil {
		out.Links = []Link{}
	}
	if out.Guidance == nil && (out.Truncation.Nodes.Truncated || out.Truncation.Links.Truncated) {
		guidance := "Graph truncated. Select fewer granularities or a shorter time range to see every connection."
		out.Guidance = &guidance
	}
	if len(out.Nodes) == 0 && out.Guidance == nil {
		guidance := "No connections found for the selected granularities and time range."
		out.Guidance = &guidance
	}
	return out
}

func truncationMetric(kind string, returned, limit, total int) TruncationMetric {
	m := TruncationMetric{Returned: returned, Limit: limit}
	if total > returned {
		m.Truncated = true
		t := total
		m.Total = &t
		warning := fmt.Sprintf("Showing %d of %d %s.", returned, total, kind)
		m.Warning = &warning
	}
	return m
}
