package topology

import (
	"regexp"
	"strings"
)

const (
	TypeRegion   = "region"
	TypeVPC      = "vpc"
	TypeSubnet   = "subnet"
	TypeInstance = "instance"
	TypeService  = "service"
	TypeExternal = "external"
)

const (
	StatusHealthy = "healthy"
	StatusWarning = "warning"
	StatusError   = "error"
)

const (
	LinkNetwork      = "network"
	LinkPeering      = "peering"
	LinkVPN          = "vpn"
	LinkInterconnect = "interconnect"
)

var allNodeTypes = []string{
	TypeRegion,
	TypeVPC,
	TypeSubnet,
	TypeInstance,
	TypeService,
	TypeExternal,
}

var allLinkTypes = []string{
	LinkNetwork,
	LinkPeering,
	LinkVPN,
	LinkInterconnect,
}

func AllNodeTypes() []string {
	out := make([]string, len(allNodeTypes))
	copy(out, allNodeTypes)
	return out
}

func IsValidNodeType(t string) bool {
	return contains(allNodeTypes, normalize(t))
}

func IsValidLinkType(t string) bool {
	return contains(allLinkTypes, normalize(t))
}

func IsValidStatus(s string) bool {
	switch normalize(s) {
	case StatusHealthy, StatusWarning, StatusError:
		return true
	}
	return false
}

func normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

var (
	regionName = regexp.MustCompile(`^[a-z]+-[a-z]+[0-9]+$`)
	zoneName   = regexp.MustCompile(`^[a-z]+-[a-z]+[0-9]+-[a-z]$`)
	numericID  = regexp.MustCompile(`^[0-9]+$`)
)

// ClassifyName guesses a node type for a bare endpoint name, as reported by Monitoring labels.
// Unrecognised names are instances.
func ClassifyName(raw string) string {
	name := normalize(raw)
	switch {
	case name == "":
		return TypeInstance
	case numericID.MatchString(name):
		return TypeInstance
	case regionName.MatchString(name), zoneName.MatchString(name):
		return TypeRegion
	}

	tokens := tokenize(name)
	matches := func(set ...string) bool {
		for _, t := range tokens {
			if contains(set, t) {
				return true
			}
		}
		return false
	}

	switch {
	case matches("internet", "google", "external", "onprem", "remote", "peering"):
		return TypeExternal
	case matches("vpc", "network", "net"):
		return TypeVPC
	case matches("subnet", "subnetwork"):
		return TypeSubnet
	case matches("lb", "balancer", "gateway", "sql", "storage", "bucket", "service", "svc", "api"):
		return TypeService
	default:
		return TypeInstance
	}
}

func tokenize(value string) []string {
	var out []string
	var buf strings.Builder
	flush := func() {
		if buf.Len() == 0 {
			return
		}
		out = append(out, buf.String())
		buf.Reset()
	}

	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			buf.WriteRune(r)
		case r >= '0' && r <= '9':
			buf.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}
