package counter

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"hermannm.dev/devlog/log"
	"hermannm.dev/insights/db"
	"hermannm.dev/insights/playlists"
)

// Scheduler periodically enumerates playlists due for a count recomputation and runs
// the task for each. Engine-overload failures are retried with backoff; all other
// failures are final for the batch, the playlist becomes eligible again next interval.
type Scheduler struct {
	task    *Task
	store   playlists.Store
	options SchedulerOptions
}

type SchedulerOptions struct {
	// How often to look for playlists due for recomputation.
	Interval time.Duration
	// Playlists owned by teams above this ID are left out, so a rollout can be bounded
	// to the oldest teams first.
	MaxTeamID int64
	// How old a playlist's last count must be before it is recomputed again.
	RecountAfter time.Duration
	// Maximum number of playlists recomputed per interval.
	BatchSize int
}

const (
	defaultSchedulerInterval = 5 * time.Minute
	defaultRecountAfter      = 2 * time.Hour
	defaultBatchSize         = 500
)

// Overloaded-engine retry policy: a failed run is retried at most twice, with jittered
// exponential backoff so parallel schedulers don't retry in lockstep.
const (
	maxRetries       = 2
	retryBackoffBase = 120 * time.Second
)

func NewScheduler(task *Task, store playlists.Store, options SchedulerOptions) *Scheduler {
	if options.Interval == 0 {
		options.Interval = defaultSchedulerInterval
	}
	if options.RecountAfter == 0 {
		options.RecountAfter = defaultRecountAfter
	}
	if options.BatchSize == 0 {
		options.BatchSize = defaultBatchSize
	}
	return &Scheduler{task: task, store: store, options: options}
}

// Start runs the scheduling loop until the context is canceled.
func (scheduler *Scheduler) Start(ctx context.Context) {
	log.Infof(
		"playlist count scheduler starting (interval %s, recount after %s)",
		scheduler.options.Interval,
		scheduler.options.RecountAfter,
	)

	ticker := time.NewTicker(scheduler.options.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("playlist count scheduler stopping")
			return
		case <-ticker.C:
			scheduler.runBatch(ctx)
		}
	}
}

func (scheduler *Scheduler) runBatch(ctx context.Context) {
	countedBefore := time.Now().Add(-scheduler.options.RecountAfter)
	playlistIDs, err := scheduler.store.ListEligibleForCounting(
		ctx,
		scheduler.options.MaxTeamID,
		countedBefore,
		scheduler.options.BatchSize,
	)
	if err != nil {
		log.ErrorCause(err, "failed to list playlists for count recomputation")
		return
	}
	if len(playlistIDs) == 0 {
		return
	}

	log.Debug(
		"recomputing playlist counts",
		slog.Int("playlistCount", len(playlistIDs)),
	)
	for _, playlistID := range playlistIDs {
		if ctx.Err() != nil {
			return
		}
		scheduler.runWithRetry(ctx, playlistID)
	}
}

func (scheduler *Scheduler) runWithRetry(ctx context.Context, playlistID int64) {
	for attempt := 0; ; attempt++ {
		outcome, err := scheduler.task.Run(ctx, playlistID)
		if err == nil {
			log.Debug(
				"playlist count recomputation finished",
				slog.Int64("playlistId", playlistID),
				slog.String("outcome", outcome.String()),
			)
			return
		}

		var tooManyQueries *db.TooManyQueriesError
		if !errors.As(err, &tooManyQueries) || attempt >= maxRetries {
			log.ErrorCause(
				err,
				"playlist count recomputation failed",
				slog.Int64("playlistId", playlistID),
				slog.Int("attempt", attempt+1),
			)
			return
		}

		backoff := retryBackoffBase << attempt
		backoff += time.Duration(rand.Int63n(int64(backoff) / 2))
		log.Warnf(
			"query engine overloaded, retrying count for playlist %d in %s",
			playlistID,
			backoff,
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
	}
}
