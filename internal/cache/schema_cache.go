package cache

import (
	"context"
	"time"

	"github.com/jomei/notionapi"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/flowsync/flowsync-api/internal/models"
	"github.com/flowsync/flowsync-api/pkg/logger"
	"github.com/flowsync/flowsync-api/pkg/metrics"
)

const (
	schemaCacheName    = "schema"
	defaultSchemaTTL   = 10 * time.Minute
	collectionKeyStart = "collection:"
	databaseKeyStart   = "database:"
)

// SchemaCache keeps recently used collection schemas and database property
// schemas so bursts of webhook deliveries for one collection do not refetch
// them on every event. A full sync invalidates what it touched.
type SchemaCache struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewSchemaCache creates a schema cache with the given TTL.
func NewSchemaCache(ttl time.Duration) *SchemaCache {
	if ttl <= 0 {
		ttl = defaultSchemaTTL
	}
	return &SchemaCache{
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

func collectionKey(integrationID, collectionID string) string {
	return collectionKeyStart + integrationID + ":" + collectionID
}

func databaseKey(databaseID string) string {
	return databaseKeyStart + databaseID
}

// Collection returns the cached collection or loads and caches it.
func (c *SchemaCache) Collection(ctx context.Context, integrationID, collectionID string,
	load func(ctx context.Context) (*models.Collection, error)) (*models.Collection, error) {
	key := collectionKey(integrationID, collectionID)
	if data, found := c.cache.Get(key); found {
		if collection, ok := data.(*models.Collection); ok {
			metrics.CacheHits.WithLabelValues(schemaCacheName).Inc()
			return collection, nil
		}
		logger.Error("Invalid schema cache data type", zap.String("key", key))
		c.cache.Delete(key)
	}
	metrics.CacheMisses.WithLabelValues(schemaCacheName).Inc()

	collection, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, collection, c.ttl)
	return collection, nil
}

// Database returns the cached database properties or loads and caches them.
func (c *SchemaCache) Database(ctx context.Context, databaseID string,
	load func(ctx context.Context) (notionapi.PropertyConfigs, error)) (notionapi.PropertyConfigs, error) {
	key := databaseKey(databaseID)
	if data, found := c.cache.Get(key); found {
		if props, ok := data.(notionapi.PropertyConfigs); ok {
			metrics.CacheHits.WithLabelValues(schemaCacheName).Inc()
			return props, nil
		}
		logger.Error("Invalid schema cache data type", zap.String("key", key))
		c.cache.Delete(key)
	}
	metrics.CacheMisses.WithLabelValues(schemaCacheName).Inc()

	props, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, props, c.ttl)
	return props, nil
}

// Invalidate drops the cached schemas of one collection and its database.
func (c *SchemaCache) Invalidate(integrationID, collectionID, databaseID string) {
	c.cache.Delete(collectionKey(integrationID, collectionID))
	if databaseID != "" {
		c.cache.Delete(databaseKey(databaseID))
	}
	logger.Debug("Schema cache invalidated",
		zap.String("integration_id", integrationID),
		zap.String("collection_id", collectionID))
}

// Flush drops everything.
func (c *SchemaCache) Flush() {
	c.cache.Flush()
}
