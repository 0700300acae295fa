package counter

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"hermannm.dev/wrap"
)

const cacheKeyPrefix = "replay/playlist-count/"

// Cached counts expire on their own if recomputation stops running, so a stale count
// is never served indefinitely.
const cacheTTL = 36 * time.Hour

// The cached result of a playlist count recomputation, keyed by the playlist's short
// ID. Overwritten wholesale on each successful recomputation, with the previous run's
// session IDs carried over so the presentation layer can show what changed.
type CachedCountRecord struct {
	SessionIDs  []string  `json:"session_ids"`
	HasMore     bool      `json:"has_more"`
	PreviousIDs []string  `json:"previous_ids,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

type CountCache struct {
	client *redis.Client
}

func NewCountCache(client *redis.Client) *CountCache {
	return &CountCache{client: client}
}

func (cache *CountCache) Get(
	ctx context.Context,
	playlistShortID string,
) (CachedCountRecord, bool, error) {
	encoded, err := cache.client.Get(ctx, cacheKeyPrefix+playlistShortID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return CachedCountRecord{}, false, nil
		}
		return CachedCountRecord{}, false, wrap.Errorf(
			err,
			"failed to read cached count for playlist '%s'",
			playlistShortID,
		)
	}

	var record CachedCountRecord
	if err := json.Unmarshal(encoded, &record); err != nil {
		return CachedCountRecord{}, false, wrap.Errorf(
			err,
			"failed to decode cached count for playlist '%s'",
			playlistShortID,
		)
	}
	return record, true, nil
}

func (cache *CountCache) Set(
	ctx context.Context,
	playlistShortID string,
	record CachedCountRecord,
) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return wrap.Errorf(err, "failed to encode count for playlist '%s'", playlistShortID)
	}

	err = cache.client.Set(ctx, cacheKeyPrefix+playlistShortID, encoded, cacheTTL).Err()
	if err != nil {
		return wrap.Errorf(err, "failed to cache count for playlist '%s'", playlistShortID)
	}
	return nil
}
