// Package playlists stores saved recording playlists: a set of filters owned by a
// team, identified by a stable short ID.
package playlists

import (
	"context"
	"encoding/json"
	"time"
)

type Playlist struct {
	ID      int64
	ShortID string
	TeamID  int64
	// The saved filter document, in either legacy or universal shape. Nil when the
	// playlist has no filters saved yet.
	Filters map[string]any
	Deleted bool
	// When the playlist's session count was last recomputed. Nil when it never has been.
	LastCountedAt *time.Time
}

// Store is the persistence boundary for playlists. Lookups report absence through the
// bool return rather than an error, since a missing playlist is an expected outcome
// for callers working from possibly stale ID lists.
type Store interface {
	GetByID(ctx context.Context, playlistID int64) (playlist Playlist, found bool, err error)
	UpdateFilters(ctx context.Context, playlistID int64, filters map[string]any) error
	UpdateLastCountedAt(ctx context.Context, playlistID int64, countedAt time.Time) error
	// ListEligibleForCounting returns IDs of playlists due for a count recomputation:
	// not deleted, with filters saved, owned by a team with ID at most maxTeamID, and
	// either never counted or last counted before the given cutoff. Never-counted
	// playlists are returned first.
	ListEligibleForCounting(
		ctx context.Context,
		maxTeamID int64,
		countedBefore time.Time,
		limit int,
	) ([]int64, error)
}

func encodeFilters(filters map[string]any) ([]byte, error) {
	if filters == nil {
		return nil, nil
	}
	return json.Marshal(filters)
}

func decodeFilters(encoded []byte) (map[string]any, error) {
	if len(encoded) == 0 {
		return nil, nil
	}
	var filters map[string]any
	if err := json.Unmarshal(encoded, &filters); err != nil {
		return nil, err
	}
	return filters, nil
}
