package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Goodnessmbakara/shield-drug-sub003/internal/logger"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/types"
	"github.com/Goodnessmbakara/shield-drug-sub003/internal/utils"
)

const keyPrefix = "code:meta:"

// SnapshotCache holds immutable metadata snapshots keyed by codeID, for
// display on the verify page. Snapshots never change after issuance, so
// entries are never invalidated, only expired. Counters and verdicts
// always come from the store, never from here.
type SnapshotCache interface {
	Get(ctx context.Context, codeID string) (*types.MetadataSnapshot, bool)
	Set(ctx context.Context, codeID string, snap types.MetadataSnapshot)
	Close() error
}

type snapshotCache struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewFromEnv(log *logger.Logger) (SnapshotCache, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	ttl := utils.GetEnvAsDuration("CODE_CACHE_TTL", 24*time.Hour, log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &snapshotCache{
		log: log.With("client", "SnapshotCache"),
		rdb: rdb,
		ttl: ttl,
	}, nil
}

func (c *snapshotCache) Get(ctx context.Context, codeID string) (*types.MetadataSnapshot, bool) {
	if c == nil || c.rdb == nil || codeID == "" {
		return nil, false
	}
	raw, err := c.rdb.Get(ctx, keyPrefix+codeID).Bytes()
	if err != nil {
		return nil, false
	}
	var snap types.MetadataSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		c.log.Warn("Corrupt cached snapshot, dropping", "code_id", codeID, "error", err)
		_ = c.rdb.Del(ctx, keyPrefix+codeID).Err()
		return nil, false
	}
	return &snap, true
}

// Set is best effort; a write failure only costs a later cache miss.
func (c *snapshotCache) Set(ctx context.Context, codeID string, snap types.MetadataSnapshot) {
	if c == nil || c.rdb == nil || codeID == "" {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, keyPrefix+codeID, raw, c.ttl).Err(); err != nil {
		c.log.Debug("Snapshot cache write failed", "code_id", codeID, "error", err)
	}
}

func (c *snapshotCache) Close() error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Close()
}
