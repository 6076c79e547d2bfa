package flowlogs

import "strings"

// Entity types reported on connection endpoints.
const (
	EntityInstance  = "Instance"
	EntityIPAddress = "IP Address"
	EntityVPC       = "VPC"
	EntityZone      = "Zone"
	EntityRegion    = "Region"
	EntityProject   = "Project"
	EntityCountry   = "Country"
)

// Granularity pairs a source and target JSON field of a flow-log record.
type Granularity struct {
	Index       int    `json:"index"`
	DisplayName string `json:"displayName"`
	SourceField string `json:"sourceField"`
	TargetField string `json:"targetField"`
	SourceType  string `json:"sourceType"`
	TargetType  string `json:"targetType"`
	Description string `json:"description"`
}

var granularities = []Granularity{
	{
		DisplayName: "Instance to Instance",
		SourceField: "json_payload.src_instance.vm_name",
		TargetField: "json_payload.dest_instance.vm_name",
		SourceType:  EntityInstance,
		TargetType:  EntityInstance,
		Description: "Direct instance-to-instance communication",
	},
	{
		DisplayName: "Instance to IP",
		SourceField: "json_payload.src_instance.vm_name",
		TargetField: "json_payload.connection.dest_ip",
		SourceType:  EntityInstance,
		TargetType:  EntityIPAddress,
		Description: "Instance to specific IP address flows",
	},
	{
		DisplayName: "IP to Instance",
		SourceField: "json_payload.connection.src_ip",
		TargetField: "json_payload.dest_instance.vm_name",
		SourceType:  EntityIPAddress,
		TargetType:  EntityInstance,
		Description: "IP address to instance flows",
	},
	{
		DisplayName: "VPC to VPC",
		SourceField: "json_payload.src_vpc.vpc_name",
		TargetField: "json_payload.dest_vpc.vpc_name",
		SourceType:  EntityVPC,
		TargetType:  EntityVPC,
		Description: "VPC-to-VPC traffic patterns",
	},
	{
		DisplayName: "Zone to Zone",
		SourceField: "json_payload.src_instance.zone",
		TargetField: "json_payload.dest_instance.zone",
		SourceType:  EntityZone,
		TargetType:  EntityZone,
		Description: "Cross-zone traffic analysis",
	},
	{
		DisplayName: "Region to Region",
		SourceField: "json_payload.src_gcp_region",
		TargetField: "json_payload.dest_gcp_region",
		SourceType:  EntityRegion,
		TargetType:  EntityRegion,
		Description: "Cross-region traffic flows",
	},
	{
		DisplayName: "Project to Project",
		SourceField: "json_payload.src_instance.project_id",
		TargetField: "json_payload.dest_instance.project_id",
		SourceType:  EntityProject,
		TargetType:  EntityProject,
		Description: "Cross-project traffic flows",
	},
	{
		DisplayName: "Instance to Country",
		SourceField: "json_payload.src_instance.vm_name",
		TargetField: "json_payload.dest_country",
		SourceType:  EntityInstance,
		TargetType:  EntityCountry,
		Description: "Instance to external country",
	},
}

func init() {
	for i := range granularities {
		granularities[i].Index = i
	}
}

// Granularities returns the available granularities in display order.
func Granularities() []Granularity {
	out := make([]Granularity, len(granularities))
	copy(out, granularities)
	return out
}

// GranularityAt returns the granularity at index i.
func GranularityAt(i int) (Granularity, bool) {
	if i < 0 || i >= len(granularities) {
		return Granularity{}, false
	}
	return granularities[i], true
}

// GranularityByName matches a display name case-insensitively.
func GranularityByName(name string) (Granularity, bool) {
	name = strings.TrimSpace(name)
	for _, g := range granularities {
		if strings.EqualFold(g.DisplayName, name) {
			return g, true
		}
	}
	return Granularity{}, false
}
