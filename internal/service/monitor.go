package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	"pumpwatch/internal/alert"
	"pumpwatch/internal/config"
	"pumpwatch/internal/dedupe"
	"pumpwatch/internal/domain"
	"pumpwatch/internal/engine"
	"pumpwatch/internal/ingest"
	"pumpwatch/internal/metrics"
	"pumpwatch/internal/peaks"
	"pumpwatch/internal/pubsub"
	"pumpwatch/internal/rank"
	"pumpwatch/internal/resolve"
	"pumpwatch/internal/spam"
)

var (
	ErrTokenNotFound = errors.New("token not tracked in current epoch")
)

// Fetcher pulls new webhook items since a point in time, starting at the
// given page cursor.
type Fetcher interface {
	FetchSince(ctx context.Context, startPage int, since time.Time) ([]domain.WebhookItem, int, error)
}

// SnapshotStore persists engine snapshots across restarts.
type SnapshotStore interface {
	Save(ctx context.Context, data []byte) error
	Load(ctx context.Context) ([]byte, error)
	Clear(ctx context.Context) error
}

// Current per-window rates for one token, with its recorded peak if any.
type TokenStats struct {
	Mint   string             `json:"mint"`
	Name   string             `json:"name"`
	Rate1m int                `json:"rate_1m"`
	Rate3m int                `json:"rate_3m"`
	Rate5m int                `json:"rate_5m"`
	Peak   *domain.PeakRecord `json:"peak,omitempty"`
}

type Deps struct {
	Log         logger.Logger
	Cfg         *config.Config
	Fetcher     Fetcher
	Deduper     dedupe.Deduper
	Guard       *spam.Guard
	Resolver    *resolve.Resolver
	Store       *engine.Store
	Tracker     *peaks.Tracker
	Trigger     *alert.Trigger
	Broadcaster pubsub.Broadcaster // optional
	Snapshots   SnapshotStore      // optional
}

// Monitor is the only point of orchestration: fetch -> dedup -> spam guard ->
// engine -> rankings -> peaks -> alert -> broadcast. Cycles are strictly
// serialized; a slow fetch delays the next cycle instead of overlapping it.
type Monitor struct {
	log         logger.Logger
	fetcher     Fetcher
	deduper     dedupe.Deduper
	guard       *spam.Guard
	resolver    *resolve.Resolver
	store       *engine.Store
	tracker     *peaks.Tracker
	trigger     *alert.Trigger
	broadcaster pubsub.Broadcaster
	snapshots   SnapshotStore

	filter        *domain.MintFilter
	windows       []time.Duration
	topNs         []int
	retention     time.Duration
	cycleInterval time.Duration
	epochLength   time.Duration

	// cycleMu serializes RunCycle and epoch resets
	cycleMu    sync.Mutex
	page       int
	epochStart time.Time

	// stateMu guards the published rankings snapshot
	stateMu sync.RWMutex
	latest  domain.Rankings
}

func NewMonitor(d *Deps) (*Monitor, error) {
	if d.Log == nil || d.Cfg == nil {
		return nil, errors.New("logger and config are required")
	}
	if d.Fetcher == nil || d.Deduper == nil || d.Guard == nil || d.Resolver == nil ||
		d.Store == nil || d.Tracker == nil || d.Trigger == nil {
		return nil, errors.New("all pipeline stages are required")
	}
	if len(d.Cfg.Ranking.Windows) != 3 {
		return nil, fmt.Errorf("expected 3 ranking windows, got %d", len(d.Cfg.Ranking.Windows))
	}

	windows := make([]time.Duration, 0, len(d.Cfg.Ranking.Windows))
	topNs := make([]int, 0, len(d.Cfg.Ranking.Windows))
	for _, w := range d.Cfg.Ranking.Windows {
		windows = append(windows, w.Window)
		topNs = append(topNs, w.TopN)
	}

	return &Monitor{
		log:           d.Log,
		fetcher:       d.Fetcher,
		deduper:       d.Deduper,
		guard:         d.Guard,
		resolver:      d.Resolver,
		store:         d.Store,
		tracker:       d.Tracker,
		trigger:       d.Trigger,
		broadcaster:   d.Broadcaster,
		snapshots:     d.Snapshots,
		filter:        domain.NewMintFilter(d.Cfg.Ingest.MintSuffix),
		windows:       windows,
		topNs:         topNs,
		retention:     d.Cfg.Engine.Retention,
		cycleInterval: d.Cfg.App.CycleInterval,
		epochLength:   d.Cfg.App.EpochLength,
		page:          1,
		epochStart:    time.Now(),
	}, nil
}

// Run drives scan cycles until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cycleInterval)
	defer ticker.Stop()

	// first cycle immediately, not one interval late
	if err := m.RunCycle(ctx, time.Now()); err != nil {
		m.log.Errorf("Scan cycle failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := m.RunCycle(ctx, now); err != nil {
				m.log.Errorf("Scan cycle failed: %v", err)
			}
		}
	}
}

// RunCycle executes one full scan pass. Partial fetch results are still
// processed; only a fetch that yields nothing is reported as an error.
func (m *Monitor) RunCycle(ctx context.Context, now time.Time) error {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	started := time.Now()
	defer func() {
		metrics.CyclesTotal.Inc()
		metrics.CycleDuration.Observe(time.Since(started).Seconds())
	}()

	if now.Sub(m.epochStart) >= m.epochLength {
		m.resetEpochLocked(ctx, now)
	}

	items, nextPage, err := m.fetcher.FetchSince(ctx, m.page, m.epochStart)
	m.page = nextPage
	if err != nil {
		metrics.FetchErrorsTotal.Inc()
		if len(items) == 0 {
			return fmt.Errorf("webhook fetch failed: %w", err)
		}
		// partial page run: keep what we got, the cursor resumes next cycle
		m.log.Warnf("Webhook fetch incomplete, processing %d items: %v", len(items), err)
	}

	for i := range items {
		m.processItem(ctx, &items[i], now)
	}

	removedPairs, removedTokens := m.store.Prune(m.retention, now)
	if removedPairs > 0 {
		m.log.Debugf("Pruned %d stale pairs, %d empty tokens", removedPairs, removedTokens)
	}

	view := m.store.View(m.windows, now)

	boards := make([][]domain.RankingEntry, len(m.windows))
	for i := range m.windows {
		boards[i] = rank.TopN(view, i, m.topNs[i])
	}

	rankings := domain.Rankings{
		GeneratedAt: now,
		W1m:         boards[0],
		W3m:         boards[1],
		W5m:         boards[2],
	}

	m.updatePeaks(view, boards, now)

	if len(boards[0]) > 0 {
		leader := boards[0][0]
		m.trigger.MaybeTrigger(leader.Name, leader.Count, now)
	}

	m.stateMu.Lock()
	m.latest = rankings
	m.stateMu.Unlock()

	metrics.TrackedTokens.Set(float64(m.store.Len()))

	if m.broadcaster != nil {
		if err := m.broadcaster.Publish(ctx, "rankings", rankings); err != nil {
			// broadcast is not critical, subscribers catch up next cycle
			m.log.Errorf("Failed to broadcast rankings: %v", err)
		}
	}

	return nil
}

func (m *Monitor) processItem(ctx context.Context, item *domain.WebhookItem, now time.Time) {
	// a re-served pre-epoch item must not resurrect state cleared by a reset
	if !item.Eligible(m.epochStart) {
		return
	}

	seen, err := m.deduper.Seen(ctx, item.UUID)
	if err != nil {
		m.log.Errorf("Dedup check failed for %s: %v", item.UUID, err)
		return
	}
	if seen {
		metrics.ItemsDedupedTotal.Inc()
		return
	}

	txs, err := ingest.ParseTransactions(item)
	if err != nil {
		m.log.Warnf("Unparseable webhook content %s: %v", item.UUID, err)
		return
	}

	// marked only now, so an unparseable item is retried on a re-fetch
	if err := m.deduper.Mark(ctx, item.UUID); err != nil {
		m.log.Errorf("Failed to mark item %s processed: %v", item.UUID, err)
	}

	for i := range txs {
		tx := &txs[i]
		if !tx.Valid() {
			continue
		}

		origin := tx.Originator()
		if m.guard.Record(origin, now) {
			metrics.SpamDroppedTotal.Inc()
			m.log.Debugf("Dropping transaction from spamming account %s", origin)
			continue
		}

		metrics.TransactionsTotal.Inc()

		for _, transfer := range tx.TokenTransfers {
			if !m.filter.Qualifies(transfer.Mint) {
				continue
			}

			name := m.resolver.Resolve(transfer.Mint, tx.Description)
			m.store.Record(transfer.Mint, origin, name, now)
		}
	}
}

// updatePeaks writes peak snapshots for every token on any board this cycle.
func (m *Monitor) updatePeaks(view []engine.TokenCounts, boards [][]domain.RankingEntry, now time.Time) {
	counts := make(map[string]engine.TokenCounts, len(view))
	for _, tc := range view {
		counts[tc.Mint] = tc
	}

	for _, entry := range rank.Union(boards...) {
		tc, ok := counts[entry.Mint]
		if !ok || len(tc.ByWindow) != 3 {
			continue
		}
		if m.tracker.Update(tc.Mint, tc.Name, tc.ByWindow[0], tc.ByWindow[1], tc.ByWindow[2], now) {
			metrics.PeaksWrittenTotal.Inc()
		}
	}
}

// Rankings returns the boards produced by the most recent cycle.
func (m *Monitor) Rankings() domain.Rankings {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.latest
}

func (m *Monitor) TokenStats(mint string, now time.Time) (TokenStats, error) {
	view := m.store.View(m.windows, now)
	for _, tc := range view {
		if tc.Mint != mint {
			continue
		}

		stats := TokenStats{
			Mint:   tc.Mint,
			Name:   tc.Name,
			Rate1m: tc.ByWindow[0],
			Rate3m: tc.ByWindow[1],
			Rate5m: tc.ByWindow[2],
		}
		if rec, ok := m.tracker.Get(mint); ok {
			stats.Peak = &rec
		}
		return stats, nil
	}

	return TokenStats{}, ErrTokenNotFound
}

func (m *Monitor) Peaks() []domain.PeakRecord {
	return m.tracker.All()
}

func (m *Monitor) AlertState() alert.State {
	return m.trigger.State()
}

// ResetEpoch wipes all sliding-window state and restarts the fetch cursor.
// Peaks survive; they are the long-term record.
func (m *Monitor) ResetEpoch(ctx context.Context, now time.Time) {
	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()
	m.resetEpochLocked(ctx, now)
}

func (m *Monitor) resetEpochLocked(ctx context.Context, now time.Time) {
	m.store.Reset()
	m.guard.Reset()
	m.deduper.Reset()
	m.trigger.Close()
	m.page = 1
	m.epochStart = now

	m.stateMu.Lock()
	m.latest = domain.Rankings{GeneratedAt: now}
	m.stateMu.Unlock()

	if m.snapshots != nil {
		if err := m.snapshots.Clear(ctx); err != nil {
			m.log.Errorf("Failed to clear persisted snapshot on epoch reset: %v", err)
		}
	}

	metrics.EpochResetsTotal.Inc()
	m.log.Infof("Epoch reset, next fetch starts at %s", now.UTC().Format(time.RFC3339))
}

// SaveSnapshot persists the engine state for warm restarts.
func (m *Monitor) SaveSnapshot(ctx context.Context) error {
	if m.snapshots == nil {
		return nil
	}

	m.cycleMu.Lock()
	data, err := m.store.Snapshot(m.epochStart)
	m.cycleMu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to serialize engine snapshot: %w", err)
	}

	return m.snapshots.Save(ctx, data)
}

// RestoreSnapshot loads persisted engine state, if any. A snapshot whose
// epoch already ended is discarded instead of restored.
func (m *Monitor) RestoreSnapshot(ctx context.Context) error {
	if m.snapshots == nil {
		return nil
	}

	data, err := m.snapshots.Load(ctx)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	m.cycleMu.Lock()
	defer m.cycleMu.Unlock()

	epochStart, err := m.store.Restore(data)
	if err != nil {
		return fmt.Errorf("failed to restore engine snapshot: %w", err)
	}

	if time.Since(epochStart) >= m.epochLength {
		m.store.Reset()
		m.log.Warnf("Discarding stale snapshot from %s", epochStart.UTC().Format(time.RFC3339))
		return nil
	}

	m.epochStart = epochStart
	m.log.Infof("Restored %d tokens from snapshot, epoch started at %s",
		m.store.Len(), epochStart.UTC().Format(time.RFC3339))
	return nil
}

func (m *Monitor) CheckDependency(ctx context.Context) error {
	errDependency := make([]string, 0, 2)

	if m.broadcaster != nil {
		if err := m.broadcaster.Health(ctx); err != nil {
			errDependency = append(errDependency, "NATS: connection not ready")
		}
	}

	if m.snapshots != nil {
		if _, err := m.snapshots.Load(ctx); err != nil {
			errDependency = append(errDependency, fmt.Sprintf("Redis connection error: %v", err))
		}
	}

	if len(errDependency) > 0 {
		return fmt.Errorf("dependency check failed: %v", strings.Join(errDependency, "; "))
	}

	m.log.Debugf("All dependency check passed")
	return nil
}
