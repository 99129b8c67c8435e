package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log"
	"strings"
	"time"

	"deepresearch/internal/redis"
)

const defaultReportCacheTTL = 30 * time.Minute

// reportCache keeps finished reports in redis so a repeated query skips
// the full crew run. All methods tolerate a nil client.
type reportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newReportCache(client *redis.Client, ttl time.Duration) *reportCache {
	if ttl <= 0 {
		ttl = defaultReportCacheTTL
	}
	return &reportCache{client: client, ttl: ttl}
}

// key hashes provider, model and the whitespace-normalized query so
// trivially reworded requests still hit.
func (r *reportCache) key(req ResearchRequest) string {
	normalized := strings.ToLower(strings.Join(strings.Fields(req.Query), " "))
	sum := sha256.Sum256([]byte(req.Provider + "|" + req.Model + "|" + normalized))
	return "report:cache:" + hex.EncodeToString(sum[:])
}

func (r *reportCache) load(ctx context.Context, req ResearchRequest) (string, bool) {
	if r == nil || r.client == nil {
		return "", false
	}
	markdown, err := r.client.Get(ctx, r.key(req))
	if err != nil {
		if err != redis.ErrCacheMiss {
			log.Printf("report cache load failed: %v", err)
		}
		return "", false
	}
	return markdown, markdown != ""
}

func (r *reportCache) store(ctx context.Context, req ResearchRequest, markdown string) {
	if r == nil || r.client == nil || markdown == "" {
		return
	}
	if err := r.client.Set(ctx, r.key(req), markdown, r.ttl); err != nil {
		log.Printf("report cache store failed: %v", err)
	}
}
