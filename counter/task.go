// Package counter recomputes and caches the set of session recordings matching each
// saved playlist's filters, so the playlist listing can show counts without running a
// recordings query per page load.
package counter

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"time"

	"hermannm.dev/devlog/log"
	"hermannm.dev/insights/db"
	"hermannm.dev/insights/filters"
	"hermannm.dev/insights/insightsquery"
	"hermannm.dev/insights/metrics"
	"hermannm.dev/insights/playlists"
	"hermannm.dev/wrap"
)

// Failure kinds used as metric labels, to keep failure cardinality bounded.
const (
	failureKindTranslation    = "translation"
	failureKindQuery          = "query"
	failureKindTooManyQueries = "too_many_queries"
	failureKindCache          = "cache"
	failureKindStore          = "store"
)

// Metric labels for the skip outcomes.
const (
	skipReasonCooldown       = "cooldown"
	skipReasonDefaultFilters = "default_filters"
)

type Task struct {
	store    playlists.Store
	cache    *CountCache
	executor insightsquery.QueryExecutor
	metrics  metrics.Sink
	// Minimum time between recomputations of the same playlist's count.
	cooldown time.Duration
	now      func() time.Time
}

func NewTask(
	store playlists.Store,
	cache *CountCache,
	executor insightsquery.QueryExecutor,
	metricsSink metrics.Sink,
	cooldown time.Duration,
) *Task {
	return &Task{
		store:    store,
		cache:    cache,
		executor: executor,
		metrics:  metricsSink,
		cooldown: cooldown,
		now:      time.Now,
	}
}

// Run recomputes the cached session count for the given playlist. Every run ends in
// exactly one Outcome; the error is non-nil only for OutcomeFailed. A missing playlist
// is an expected condition (the scheduler works from an eligibility list that may be
// stale), so it yields OutcomeUnknown rather than an error.
func (task *Task) Run(ctx context.Context, playlistID int64) (Outcome, error) {
	startTime := task.now()
	defer func() {
		task.metrics.ObserveRunDuration(task.now().Sub(startTime))
	}()

	playlist, found, err := task.store.GetByID(ctx, playlistID)
	if err != nil {
		task.metrics.IncFailed(failureKindStore)
		return OutcomeFailed, wrap.Errorf(err, "failed to load playlist %d", playlistID)
	}
	if !found || playlist.Deleted {
		task.metrics.IncUnknown()
		return OutcomeUnknown, nil
	}

	cached, hasCached, err := task.cache.Get(ctx, playlist.ShortID)
	if err != nil {
		task.metrics.IncFailed(failureKindCache)
		return OutcomeFailed, err
	}
	if hasCached && task.now().Sub(cached.RefreshedAt) <= task.cooldown {
		log.Debug(
			"skipping playlist count recomputation, cooldown active",
			slog.String("playlistShortId", playlist.ShortID),
			slog.Time("refreshedAt", cached.RefreshedAt),
		)
		task.metrics.IncSkipped(skipReasonCooldown)
		return OutcomeSkippedCooldown, nil
	}

	if reflect.DeepEqual(playlist.Filters, filters.DefaultRecordingFilters()) {
		task.metrics.IncSkipped(skipReasonDefaultFilters)
		return OutcomeSkippedDefaultFilters, nil
	}

	filterDocument := playlist.Filters
	if filters.IsLegacy(filterDocument) {
		filterDocument = filters.Normalize(filterDocument)
		if err := task.store.UpdateFilters(ctx, playlist.ID, filterDocument); err != nil {
			task.metrics.IncFailed(failureKindStore)
			return OutcomeFailed, wrap.Errorf(
				err,
				"failed to persist converted filters for playlist %d",
				playlist.ID,
			)
		}
		task.metrics.IncLegacyFiltersConverted()
		log.Infof("converted legacy filters for playlist '%s'", playlist.ShortID)
	}

	query, err := filters.ToRecordingsQuery(filterDocument)
	if err != nil {
		task.metrics.IncFailed(failureKindTranslation)
		return OutcomeFailed, wrap.Errorf(
			err,
			"failed to translate filters for playlist %d",
			playlist.ID,
		)
	}

	response, err := insightsquery.RunRecordingsQuery(ctx, task.executor, query, nil, task.now())
	if err != nil {
		var tooManyQueries *db.TooManyQueriesError
		if errors.As(err, &tooManyQueries) {
			task.metrics.IncFailed(failureKindTooManyQueries)
		} else {
			task.metrics.IncFailed(failureKindQuery)
		}
		return OutcomeFailed, wrap.Errorf(
			err,
			"recordings query failed for playlist %d",
			playlist.ID,
		)
	}

	record := CachedCountRecord{
		SessionIDs:  response.SessionIDs,
		HasMore:     response.HasMore,
		RefreshedAt: task.now(),
	}
	if hasCached {
		record.PreviousIDs = cached.SessionIDs
	}
	if err := task.cache.Set(ctx, playlist.ShortID, record); err != nil {
		task.metrics.IncFailed(failureKindCache)
		return OutcomeFailed, err
	}

	if err := task.store.UpdateLastCountedAt(ctx, playlist.ID, task.now()); err != nil {
		task.metrics.IncFailed(failureKindStore)
		return OutcomeFailed, wrap.Errorf(
			err,
			"failed to update last counted time for playlist %d",
			playlist.ID,
		)
	}

	task.metrics.IncSucceeded()
	log.Debug(
		"recomputed playlist count",
		slog.String("playlistShortId", playlist.ShortID),
		slog.Int("sessionCount", len(record.SessionIDs)),
		slog.Bool("hasMore", record.HasMore),
	)
	return OutcomeSucceeded, nil
}
