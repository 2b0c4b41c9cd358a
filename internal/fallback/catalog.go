package fallback

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"

	"github.com/tjfontaine/jarvis/internal/core/ports"
)

const (
	DefaultCatalogTTL = 60 * time.Second

	catalogKey = "services"
)

// Catalog is a read-through cache of the Home Assistant service catalog.
// Concurrent misses share one fetch.
type Catalog struct {
	ha    ports.HomeAssistant
	cache *expirable.LRU[string, []ports.DomainServices]
	group singleflight.Group
}

// NewCatalog caches ha's catalog for ttl.
func NewCatalog(ha ports.HomeAssistant, ttl time.Duration) *Catalog {
	if ttl <= 0 {
		ttl = DefaultCatalogTTL
	}
	return &Catalog{
		ha:    ha,
		cache: expirable.NewLRU[string, []ports.DomainServices](1, nil, ttl),
	}
}

// Services returns the cached catalog, fetching it when stale.
func (c *Catalog) Services(ctx context.Context) ([]ports.DomainServices, error) {
	if services, ok := c.cache.Get(catalogKey); ok {
		return services, nil
	}

	v, err, _ := c.group.Do(catalogKey, func() (any, error) {
		if services, ok := c.cache.Get(catalogKey); ok {
			return services, nil
		}
		// Every waiter shares this fetch; it outlives the caller that started it.
		services, err := c.ha.GetServices(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch service catalog: %w", err)
		}
		c.cache.Add(catalogKey, services)
		return services, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]ports.DomainServices), nil
}

// Lookup finds one service in the cached catalog.
func (c *Catalog) Lookup(ctx context.Context, domainName, serviceName string) (ports.ServiceInfo, bool, error) {
	services, err := c.Services(ctx)
	if err != nil {
		return ports.ServiceInfo{}, false, err
	}
	for _, d := range services {
		if d.Domain != domainName {
			continue
		}
		info, ok := d.Services[serviceName]
		return info, ok, nil
	}
	return ports.ServiceInfo{}, false, nil
}
