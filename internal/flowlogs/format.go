package flowlogs

import (
	"math"
	"strconv"
	"strings"
)

var byteUnits = []string{"B", "KB", "MB", "GB", "TB"}

// FormatBytes renders n in base-1024 units with at most two decimals, trailing zeros trimmed.
func FormatBytes(n int64) string {
	if n <= 0 {
		return "0 B"
	}
	v, i := float64(n), 0
	for v >= 1024 && i < len(byteUnits)-1 {
		v /= 1024
		i++
	}
	v = math.Round(v*100) / 100
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + byteUnits[i]
}

// EntityIcon maps an entity type to a Material icon name by substring, first match wins.
func EntityIcon(entityType string) string {
	t := strings.ToLower(entityType)
	switch {
	case strings.Contains(t, "instance"):
		return "computer"
	case strings.Contains(t, "subnet"):
		return "lan"
	case strings.Contains(t, "vpc"):
		return "cloud"
	case strings.Contains(t, "zone"):
		return "location_on"
	case strings.Contains(t, "region"):
		return "public"
	case strings.Contains(t, "ip"), strings.Contains(t, "external"):
		return "language"
	default:
		return "device_hub"
	}
}
