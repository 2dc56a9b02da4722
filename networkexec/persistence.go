package networkexec

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisPersistence backs NetworkState across process restarts when a
// Network's state.persistence is enabled, storing the snapshot as one JSON
// value per network under Redis's own TTL instead of the in-memory
// stateStore's soft, read-time expiry. Mirrors the registry package's
// tool_use_id-to-stream_id mapping: one Redis key per entry, TTL set on
// write rather than tracked separately.
type redisPersistence struct {
	rdb *redis.Client
}

func newRedisPersistence(rdb *redis.Client) *redisPersistence {
	if rdb == nil {
		return nil
	}
	return &redisPersistence{rdb: rdb}
}

func (p *redisPersistence) key(name string) string {
	return "mastra:network-state:" + name
}

// load returns the persisted values for name, or ok=false if Redis has no
// entry (including one that expired there natively).
func (p *redisPersistence) load(ctx context.Context, name string) (values map[string]any, ok bool) {
	raw, err := p.rdb.Get(ctx, p.key(name)).Bytes()
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, false
	}
	return values, true
}

// save writes values for name with ttl (no expiry if ttl <= 0).
func (p *redisPersistence) save(ctx context.Context, name string, values map[string]any, ttl time.Duration) {
	raw, err := json.Marshal(values)
	if err != nil {
		return
	}
	_ = p.rdb.Set(ctx, p.key(name), raw, ttl).Err()
}
