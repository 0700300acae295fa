package playlists

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"hermannm.dev/wrap"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(ctx context.Context, connectionString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connectionString)
	if err != nil {
		return nil, wrap.Error(err, "failed to create Postgres connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, wrap.Error(err, "failed to ping Postgres")
	}
	return &PostgresStore{pool: pool}, nil
}

func (store *PostgresStore) Close() {
	store.pool.Close()
}

func (store *PostgresStore) GetByID(
	ctx context.Context,
	playlistID int64,
) (Playlist, bool, error) {
	query := `
		SELECT id, short_id, team_id, filters, deleted, last_counted_at
		FROM session_recording_playlists
		WHERE id = $1
	`

	var playlist Playlist
	var encodedFilters []byte
	err := store.pool.QueryRow(ctx, query, playlistID).Scan(
		&playlist.ID,
		&playlist.ShortID,
		&playlist.TeamID,
		&encodedFilters,
		&playlist.Deleted,
		&playlist.LastCountedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Playlist{}, false, nil
		}
		return Playlist{}, false, wrap.Errorf(err, "failed to get playlist %d", playlistID)
	}

	playlist.Filters, err = decodeFilters(encodedFilters)
	if err != nil {
		return Playlist{}, false, wrap.Errorf(
			err,
			"failed to decode stored filters for playlist %d",
			playlistID,
		)
	}

	return playlist, true, nil
}

func (store *PostgresStore) UpdateFilters(
	ctx context.Context,
	playlistID int64,
	filters map[string]any,
) error {
	encodedFilters, err := encodeFilters(filters)
	if err != nil {
		return wrap.Errorf(err, "failed to encode filters for playlist %d", playlistID)
	}

	query := `UPDATE session_recording_playlists SET filters = $2 WHERE id = $1`
	if _, err := store.pool.Exec(ctx, query, playlistID, encodedFilters); err != nil {
		return wrap.Errorf(err, "failed to update filters for playlist %d", playlistID)
	}
	return nil
}

func (store *PostgresStore) UpdateLastCountedAt(
	ctx context.Context,
	playlistID int64,
	countedAt time.Time,
) error {
	query := `UPDATE session_recording_playlists SET last_counted_at = $2 WHERE id = $1`
	if _, err := store.pool.Exec(ctx, query, playlistID, countedAt); err != nil {
		return wrap.Errorf(err, "failed to update last counted time for playlist %d", playlistID)
	}
	return nil
}

func (store *PostgresStore) ListEligibleForCounting(
	ctx context.Context,
	maxTeamID int64,
	countedBefore time.Time,
	limit int,
) ([]int64, error) {
	query := `
		SELECT id
		FROM session_recording_playlists
		WHERE NOT deleted
			AND filters IS NOT NULL
			AND team_id <= $1
			AND (last_counted_at IS NULL OR last_counted_at < $2)
		ORDER BY last_counted_at ASC NULLS FIRST
		LIMIT $3
	`

	rows, err := store.pool.Query(ctx, query, maxTeamID, countedBefore, limit)
	if err != nil {
		return nil, wrap.Error(err, "failed to list playlists eligible for counting")
	}
	defer rows.Close()

	var playlistIDs []int64
	for rows.Next() {
		var playlistID int64
		if err := rows.Scan(&playlistID); err != nil {
			return nil, wrap.Error(err, "failed to scan playlist ID")
		}
		playlistIDs = append(playlistIDs, playlistID)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap.Error(err, "failed to read playlist rows")
	}

	return playlistIDs, nil
}
