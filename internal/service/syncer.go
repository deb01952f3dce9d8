package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/sourcegraph/conc"
	"github.com/voyagen/plutotv/internal/cache"
	"github.com/voyagen/plutotv/internal/fetcher"
	"github.com/voyagen/plutotv/internal/models"
	"github.com/voyagen/plutotv/internal/pluto"
	"github.com/voyagen/plutotv/internal/source"
	"github.com/voyagen/plutotv/internal/store"
)

// ErrUnknownKind is returned for a sync job whose kind is neither channels nor guide.
var ErrUnknownKind = errors.New("unknown sync kind")

const (
	defaultLockTTL = 30 * time.Minute
	dequeueTimeout = 5 * time.Second
	retryAttempts  = 3
	retryDelay     = 2 * time.Second
)

// Syncer runs sync jobs against registered sources. With Redis it queues
// jobs for background workers and serialises runs per provider and kind;
// without it jobs run inline.
type Syncer struct {
	store   store.Store
	sources *source.Registry
	redis   *cache.Redis // nil when REDIS_URL is not set
	queue   string
	lockTTL time.Duration
}

// NewSyncer returns a Syncer. r may be nil.
func NewSyncer(s store.Store, sources *source.Registry, r *cache.Redis) *Syncer {
	return &Syncer{
		store:   s,
		sources: sources,
		redis:   r,
		queue:   cache.DefaultQueue,
		lockTTL: defaultLockTTL,
	}
}

// Queued reports whether Submit hands jobs to background workers.
func (y *Syncer) Queued() bool {
	return y.redis != nil
}

// Validate checks that job names a registered provider and a known kind.
func (y *Syncer) Validate(job cache.SyncJob) error {
	if _, err := y.sources.Lookup(job.Provider); err != nil {
		return err
	}
	switch job.Kind {
	case models.SyncKindChannels, models.SyncKindGuide:
		return nil
	}
	return fmt.Errorf("%q: %w", job.Kind, ErrUnknownKind)
}

// Submit queues job when Redis is configured and otherwise runs it inline,
// returning its result. A job whose lock is currently held is refused with
// cache.ErrLocked.
func (y *Syncer) Submit(ctx context.Context, job cache.SyncJob) (result any, queued bool, err error) {
	if err := y.Validate(job); err != nil {
		return nil, false, err
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}
	if y.redis == nil {
		result, err := y.Run(ctx, job)
		return result, false, err
	}
	if cache.IsLocked(ctx, y.redis, cache.SyncLockKey(job.Provider, job.Kind)) {
		return nil, false, cache.ErrLocked
	}
	if err := cache.Enqueue(ctx, y.redis, y.queue, job); err != nil {
		return nil, false, fmt.Errorf("enqueue: %w", err)
	}
	return nil, true, nil
}

// Run executes job now. With Redis the provider/kind lock is held for the
// duration of the run.
func (y *Syncer) Run(ctx context.Context, job cache.SyncJob) (any, error) {
	if err := y.Validate(job); err != nil {
		return nil, err
	}
	src, err := y.sources.Lookup(job.Provider)
	if err != nil {
		return nil, err
	}
	if y.redis != nil {
		unlock, err := cache.TryLock(ctx, y.redis, cache.SyncLockKey(job.Provider, job.Kind), y.lockTTL)
		if err != nil {
			return nil, err
		}
		defer unlock()
	}

	if job.Kind == models.SyncKindChannels {
		return SyncChannels(ctx, y.store, src)
	}
	var start time.Time
	if job.Start > 0 {
		start = time.Unix(job.Start, 0)
	}
	return SyncGuide(ctx, y.store, src, start, time.Duration(job.Duration)*time.Second)
}

// runWithRetry runs job, retrying failures that may be transient.
func (y *Syncer) runWithRetry(ctx context.Context, job cache.SyncJob) error {
	return retry.Do(
		func() error {
			_, err := y.Run(ctx, job)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(retryAttempts),
		retry.Delay(retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryable),
		retry.OnRetry(func(n uint, err error) {
			log.Printf("sync[%s/%s]: attempt %d failed: %v", job.Provider, job.Kind, n+1, err)
		}),
	)
}

// retryable excludes errors a second attempt cannot fix. Vendor 4xx
// responses and malformed vendor records are permanent.
func retryable(err error) bool {
	var se *fetcher.StatusError
	switch {
	case errors.Is(err, cache.ErrLocked),
		errors.Is(err, source.ErrUnknown),
		errors.Is(err, ErrUnknownKind),
		errors.Is(err, ErrUnsupported),
		errors.Is(err, pluto.ErrMalformed),
		errors.Is(err, context.Canceled):
		return false
	case errors.As(err, &se):
		return se.StatusCode < 400 || se.StatusCode >= 500
	}
	return true
}

// Work consumes the job queue until ctx is cancelled.
func (y *Syncer) Work(ctx context.Context) {
	if y.redis == nil {
		return
	}
	for ctx.Err() == nil {
		job, err := cache.Dequeue(ctx, y.redis, y.queue, dequeueTimeout)
		if err != nil {
			log.Printf("sync worker: %v", err)
			select {
			case <-ctx.Done():
			case <-time.After(dequeueTimeout):
			}
			continue
		}
		if job == nil {
			continue
		}
		log.Printf("sync[%s/%s]: start (queued %s ago)", job.Provider, job.Kind, time.Since(job.EnqueuedAt).Round(time.Second))
		if err := y.runWithRetry(ctx, *job); err != nil {
			if errors.Is(err, cache.ErrLocked) {
				log.Printf("sync[%s/%s]: skipped, already running", job.Provider, job.Kind)
				continue
			}
			log.Printf("sync[%s/%s]: error: %v", job.Provider, job.Kind, err)
		}
	}
}

// RunBackground runs the scheduler (if any) and, when Redis is configured,
// workers queue consumers. It returns after ctx is cancelled and all of
// them have stopped.
func (y *Syncer) RunBackground(ctx context.Context, sc *Scheduler, workers int) {
	var wg conc.WaitGroup
	if sc != nil {
		wg.Go(func() { sc.Run(ctx) })
	}
	if y.redis != nil {
		for range max(workers, 1) {
			wg.Go(func() { y.Work(ctx) })
		}
	}
	wg.Wait()
}
