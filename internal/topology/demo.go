package topology

// DemoNetwork is the static sample topology shown before any GCP data is loaded.
func DemoNetwork() Graph {
	b := newBuilder()
	for _, n := range []Node{
		{ID: "us-central1", Name: "us-central1", Type: TypeRegion, Status: StatusHealthy},
		{ID: "us-east1", Name: "us-east1", Type: TypeRegion, Status: StatusHealthy},
		{ID: "europe-west1", Name: "europe-west1", Type: TypeRegion, Status: StatusHealthy},

		{ID: "vpc-prod", Name: "vpc-production", Type: TypeVPC, Region: "us-central1", Status: StatusHealthy},
		{ID: "vpc-staging", Name: "vpc-staging", Type: TypeVPC, Region: "us-east1", Status: StatusHealthy},
		{ID: "vpc-dev", Name: "vpc-development", Type: TypeVPC, Region: "europe-west1", Status: StatusWarning},

		{ID: "web-server-1", Name: "web-server-1", Type: TypeInstance, Status: StatusHealthy},
		{ID: "web-server-2", Name: "web-server-2", Type: TypeInstance, Status: StatusHealthy},
		{ID: "db-server", Name: "database-server", Type: TypeInstance, Status: StatusHealthy},
		{ID: "cache-server", Name: "redis-cache", Type: TypeInstance, Status: StatusWarning},

		{ID: "api-gateway", Name: "API Gateway", Type: TypeService, Status: StatusHealthy},
		{ID: "load-balancer", Name: "Load Balancer", Type: TypeService, Status: StatusHealthy},
		{ID: "cloud-sql", Name: "Cloud SQL", Type: TypeService, Status: StatusHealthy},
	} {
		b.addNode(n)
	}

	for _, l := range []Link{
		{Source: "us-central1", Target: "vpc-prod", Type: LinkNetwork},
		{Source: "us-east1", Target: "vpc-staging", Type: LinkNetwork},
		{Source: "europe-west1", Target: "vpc-dev", Type: LinkNetwork},

		{Source: "vpc-prod", Target: "vpc-staging", Type: LinkPeering},
		{Source: "vpc-staging", Target: "vpc-dev", Type: LinkVPN},

		{Source: "vpc-prod", Target: "web-server-1", Type: LinkNetwork},
		{Source: "vpc-prod", Target: "web-server-2", Type: LinkNetwork},
		{Source: "vpc-prod", Target: "db-server", Type: LinkNetwork},
		{Source: "vpc-staging", Target: "cache-server", Type: LinkNetwork},

		{Source: "load-balancer", Target: "web-server-1", Type: LinkNetwork},
		{Source: "load-balancer", Target: "web-server-2", Type: LinkNetwork},
		{Source: "api-gateway", Target: "load-balancer", Type: LinkNetwork},
		{Source: "db-server", Target: "cloud-sql", Type: LinkInterconnect},
	} {
		b.addLink(l)
	}
	return b.graph()
}
