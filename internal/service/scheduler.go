package service

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/voyagen/plutotv/internal/cache"
	"github.com/voyagen/plutotv/internal/models"
)

// DefaultSchedulerInterval is how often the Scheduler checks for due syncs.
const DefaultSchedulerInterval = time.Minute

// Scheduler submits channel and guide syncs for every registered provider
// once their refresh interval has elapsed.
type Scheduler struct {
	syncer   *Syncer
	interval time.Duration
	now      func() time.Time

	mu        sync.Mutex
	submitted map[string]time.Time // provider/kind -> last submit
}

// NewScheduler returns a Scheduler checking every interval.
func NewScheduler(y *Syncer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultSchedulerInterval
	}
	return &Scheduler{
		syncer:    y,
		interval:  interval,
		now:       time.Now,
		submitted: make(map[string]time.Time),
	}
}

// Run checks immediately and then on every tick until ctx is cancelled.
func (sc *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()
	for {
		sc.Tick(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Tick submits every sync that is due now.
func (sc *Scheduler) Tick(ctx context.Context) {
	statuses, err := sc.syncer.store.ListProviders(ctx)
	if err != nil {
		log.Printf("scheduler: list providers: %v", err)
		return
	}
	byID := make(map[string]models.ProviderStatus, len(statuses))
	for _, st := range statuses {
		byID[st.ID] = st
	}

	now := sc.now()
	for _, src := range sc.syncer.sources.List() {
		info := src.Info()
		st := byID[info.ID]
		for _, kind := range dueKinds(info, st, now) {
			key := info.ID + "/" + kind
			if sc.recentlySubmitted(key, refreshOf(info, kind), now) {
				continue
			}
			job := cache.SyncJob{Provider: info.ID, Kind: kind, EnqueuedAt: now}
			_, queued, err := sc.syncer.Submit(ctx, job)
			if err != nil {
				log.Printf("scheduler: %s: %v", key, err)
				continue
			}
			sc.mu.Lock()
			sc.submitted[key] = now
			sc.mu.Unlock()
			if queued {
				log.Printf("scheduler: %s queued", key)
			}
		}
	}
}

func (sc *Scheduler) recentlySubmitted(key string, refresh time.Duration, now time.Time) bool {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	at, ok := sc.submitted[key]
	return ok && now.Sub(at) < refresh
}

func refreshOf(info models.ProviderInfo, kind string) time.Duration {
	if kind == models.SyncKindChannels {
		return time.Duration(info.ChannelsRefresh) * time.Second
	}
	return time.Duration(info.GuideRefresh) * time.Second
}

// dueKinds returns the kinds of data the provider supports whose last
// sync is missing or older than the provider's refresh interval.
func dueKinds(info models.ProviderInfo, st models.ProviderStatus, now time.Time) []string {
	var kinds []string
	if info.SupportsChannels && stale(st.ChannelsSyncedAt, refreshOf(info, models.SyncKindChannels), now) {
		kinds = append(kinds, models.SyncKindChannels)
	}
	if info.SupportsGuide && stale(st.GuideSyncedAt, refreshOf(info, models.SyncKindGuide), now) {
		kinds = append(kinds, models.SyncKindGuide)
	}
	return kinds
}

func stale(last *time.Time, refresh time.Duration, now time.Time) bool {
	return last == nil || now.Sub(*last) >= refresh
}
