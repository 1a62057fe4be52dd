package prediction

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"placement-predictor/internal/common/database"
	"placement-predictor/internal/common/logger"
	"placement-predictor/internal/common/metrics"
	"placement-predictor/internal/pipeline"
)

// Cache memoises single-record predictions in Redis. Keys cover the schema
// fingerprint, backend, threshold and normalized vector, never the
// identifier. Redis failures degrade to a miss.
type Cache struct {
	client *database.RedisClient
	ttl    time.Duration
	log    logger.Logger
}

type cachedResult struct {
	Label       pipeline.Label `json:"label"`
	Probability *float64       `json:"probability,omitempty"`
}

func NewCache(client *database.RedisClient, ttl time.Duration, log logger.Logger) *Cache {
	return &Cache{
		client: client,
		ttl:    ttl,
		log:    log.WithFields(map[string]interface{}{"component": "prediction_cache"}),
	}
}

// Key derives the cache key for one normalized vector.
func (c *Cache) Key(schemaFingerprint, backend string, threshold float64, vector []float64) string {
	var b strings.Builder
	b.WriteString(strconv.FormatFloat(threshold, 'g', -1, 64))
	for _, v := range vector {
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
	}
	digest := uuid.NewSHA1(uuid.NameSpaceOID, []byte(b.String()))
	return "predict:" + schemaFingerprint + ":" + backend + ":" + digest.String()
}

// Get returns the cached result for key, if any.
func (c *Cache) Get(ctx context.Context, key string) (*pipeline.PredictionResult, bool) {
	raw, err := c.client.Get(ctx, key)
	if err != nil {
		if !stderrors.Is(err, database.ErrCacheMiss) {
			c.log.Warn("Cache read failed", map[string]interface{}{"error": err.Error()})
			metrics.CacheLookups.WithLabelValues("error").Inc()
		} else {
			metrics.CacheLookups.WithLabelValues("miss").Inc()
		}
		return nil, false
	}
	var cr cachedResult
	if err := json.Unmarshal([]byte(raw), &cr); err != nil {
		c.log.Warn("Discarding corrupt cache entry", map[string]interface{}{"key": key})
		_ = c.client.Del(ctx, key)
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return &pipeline.PredictionResult{Label: cr.Label, Probability: cr.Probability}, true
}

// Set stores res under key. Identifiers are not cached.
func (c *Cache) Set(ctx context.Context, key string, res *pipeline.PredictionResult) {
	payload, err := json.Marshal(cachedResult{Label: res.Label, Probability: res.Probability})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, payload, c.ttl); err != nil {
		c.log.Warn("Cache write failed", map[string]interface{}{"error": err.Error()})
	}
}
