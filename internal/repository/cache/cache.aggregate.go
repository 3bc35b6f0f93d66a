// FilePath: internal/repository/cache/cache.aggregate.go
package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/itsatony/lumen/internal/models"
	"github.com/itsatony/lumen/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

const keyPrefix = "lumen"

// AggregateCache stores computed grids keyed by patient generation. Every
// appended reading bumps the generation, so a grid computed before the
// append is never served afterwards. Failures are logged and treated as
// misses.
type AggregateCache struct {
	kv  repository.KVStore
	ttl time.Duration
}

func NewAggregateCache(kv repository.KVStore, ttl time.Duration) *AggregateCache {
	return &AggregateCache{kv: kv, ttl: ttl}
}

func generationKey(patientID string) string {
	return fmt.Sprintf("%s:gen:%s", keyPrefix, patientID)
}

// AggregateKey builds the cache key of a grid.
func AggregateKey(patientID string, granularity models.Granularity, from, to time.Time, generation string) string {
	return fmt.Sprintf("%s:agg:%s:%s:%s:%s:g%s", keyPrefix, patientID, granularity,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339), generation)
}

// Generation returns the current generation of the patient, "0" when none
// was recorded yet.
func (c *AggregateCache) Generation(ctx context.Context, patientID string) (string, error) {
	gen, err := c.kv.Get(ctx, generationKey(patientID))
	if err != nil {
		if stderrors.Is(err, repository.ErrCacheMiss) {
			return "0", nil
		}
		return "", err
	}
	return gen, nil
}

// Lookup returns the cached grid and the generation it was looked up under.
// An empty generation means the cache is unavailable and Store should be
// skipped.
func (c *AggregateCache) Lookup(ctx context.Context, patientID string, granularity models.Granularity, from, to time.Time) (*models.AggregateResult, string, bool) {
	gen, err := c.Generation(ctx, patientID)
	if err != nil {
		nuts.L.Warnf("[AggregateCache] Generation lookup failed for %s: %v", patientID, err)
		return nil, "", false
	}

	raw, err := c.kv.Get(ctx, AggregateKey(patientID, granularity, from, to, gen))
	if err != nil {
		if !stderrors.Is(err, repository.ErrCacheMiss) {
			nuts.L.Warnf("[AggregateCache] Get failed for %s: %v", patientID, err)
		}
		return nil, gen, false
	}

	result := &models.AggregateResult{}
	if err := json.Unmarshal([]byte(raw), result); err != nil {
		nuts.L.Warnf("[AggregateCache] Dropping undecodable entry for %s: %v", patientID, err)
		return nil, gen, false
	}
	result.Cached = true
	return result, gen, true
}

// Store caches result under the generation returned by Lookup.
func (c *AggregateCache) Store(ctx context.Context, result *models.AggregateResult, generation string) {
	if generation == "" {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		nuts.L.Warnf("[AggregateCache] Encode failed for %s: %v", result.PatientID, err)
		return
	}
	key := AggregateKey(result.PatientID, result.Granularity, result.From, result.To, generation)
	if err := c.kv.Set(ctx, key, string(payload), c.ttl); err != nil {
		nuts.L.Warnf("[AggregateCache] Set failed for %s: %v", result.PatientID, err)
	}
}

// Invalidate bumps the generation of the patient.
func (c *AggregateCache) Invalidate(ctx context.Context, patientID string) error {
	_, err := c.kv.Incr(ctx, generationKey(patientID))
	return err
}
