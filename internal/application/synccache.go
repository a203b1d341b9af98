package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"hubgate/internal/domain"
	"hubgate/internal/metrics"
)

// SnapshotStore persists device lists per key. Get reports ok=false for
// absent or expired entries.
type SnapshotStore interface {
	Get(ctx context.Context, key domain.SnapshotKey) (*domain.Snapshot, bool, error)
	Put(ctx context.Context, key domain.SnapshotKey, snap domain.Snapshot, ttl time.Duration) error
	Delete(ctx context.Context, key domain.SnapshotKey) error
}

// DeviceLister is the synchronization the cache fronts.
type DeviceLister interface {
	ListDevices(ctx context.Context, userID int64, mode domain.Mode) ([]domain.UIDevice, error)
}

type SyncCacheConfig struct {
	TTL               time.Duration
	BackgroundTimeout time.Duration
}

func (c *SyncCacheConfig) setDefaults() {
	if c.TTL <= 0 {
		c.TTL = 10 * time.Minute
	}
	if c.BackgroundTimeout <= 0 {
		c.BackgroundTimeout = 15 * time.Second
	}
}

// SyncCache serves device lists per (user, mode), optionally stale while a
// background synchronization replaces them.
//
// Every synchronization takes a sequence number when it starts. A result is
// only written if its sequence is above the key's floor; writes and clears
// both raise the floor, so a slow sync can never overwrite a newer result or
// resurrect a cleared entry. Store writes for one key are serialized by that
// key's lock; mu only guards the counters.
type SyncCache struct {
	lister DeviceLister
	store  SnapshotStore
	cfg    SyncCacheConfig
	logger *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	seq   uint64
	floor map[domain.SnapshotKey]uint64
	locks map[domain.SnapshotKey]*sync.Mutex

	group singleflight.Group
	wg    sync.WaitGroup
}

func NewSyncCache(lister DeviceLister, store SnapshotStore, cfg SyncCacheConfig, logger *slog.Logger) *SyncCache {
	cfg.setDefaults()
	return &SyncCache{
		lister: lister,
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		floor:  make(map[domain.SnapshotKey]uint64),
		locks:  make(map[domain.SnapshotKey]*sync.Mutex),
	}
}

// Refresh returns the device list for the key. With background set and a
// cached entry present, the entry is returned at once and a synchronization
// runs behind it; otherwise the caller waits for a fresh one.
func (c *SyncCache) Refresh(ctx context.Context, userID int64, mode domain.Mode, background bool) ([]domain.UIDevice, error) {
	key := domain.SnapshotKey{UserID: userID, Mode: mode}

	if background {
		if snap, ok := c.lookup(ctx, key); ok {
			metrics.CacheLookups.WithLabelValues("stale").Inc()
			c.revalidate(key)
			return domain.CloneDevices(snap.Devices), nil
		}
	}

	metrics.CacheLookups.WithLabelValues("miss").Inc()
	return c.synchronize(ctx, key)
}

// Cached returns the cached list without synchronizing.
func (c *SyncCache) Cached(ctx context.Context, userID int64, mode domain.Mode) ([]domain.UIDevice, time.Time, bool) {
	snap, ok := c.lookup(ctx, domain.SnapshotKey{UserID: userID, Mode: mode})
	if !ok {
		return nil, time.Time{}, false
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return domain.CloneDevices(snap.Devices), snap.SyncedAt, true
}

// Devices serves the cached list when present, else synchronizes.
func (c *SyncCache) Devices(ctx context.Context, userID int64, mode domain.Mode) ([]domain.UIDevice, error) {
	if devices, _, ok := c.Cached(ctx, userID, mode); ok {
		return devices, nil
	}
	metrics.CacheLookups.WithLabelValues("miss").Inc()
	return c.synchronize(ctx, domain.SnapshotKey{UserID: userID, Mode: mode})
}

func (c *SyncCache) ClearCache(ctx context.Context, userID int64, mode domain.Mode) {
	c.clear(ctx, domain.SnapshotKey{UserID: userID, Mode: mode})
}

func (c *SyncCache) ClearAll(ctx context.Context, userID int64) {
	for _, mode := range domain.Modes {
		c.clear(ctx, domain.SnapshotKey{UserID: userID, Mode: mode})
	}
}

// Wait blocks until running background synchronizations finish.
func (c *SyncCache) Wait() {
	c.wg.Wait()
}

func (c *SyncCache) lookup(ctx context.Context, key domain.SnapshotKey) (*domain.Snapshot, bool) {
	snap, ok, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.Warn("snapshot lookup failed", "key", key.String(), "error", err)
		return nil, false
	}
	return snap, ok
}

func (c *SyncCache) synchronize(ctx context.Context, key domain.SnapshotKey) ([]domain.UIDevice, error) {
	seq := c.begin()

	devices, err := c.lister.ListDevices(ctx, key.UserID, key.Mode)
	if err != nil {
		return nil, err
	}

	c.commit(ctx, key, seq, devices)
	return domain.CloneDevices(devices), nil
}

// revalidate registers the refresh before returning, so a second background
// request for the same key always joins the one in flight.
func (c *SyncCache) revalidate(key domain.SnapshotKey) {
	c.wg.Add(1)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.BackgroundTimeout)
		defer cancel()
		return c.synchronize(ctx, key)
	})

	go func() {
		defer c.wg.Done()
		if res := <-ch; res.Err != nil {
			c.logger.Warn("background refresh failed",
				"user_id", key.UserID,
				"mode", key.Mode,
				"error", res.Err,
			)
		}
	}()
}

func (c *SyncCache) begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

func (c *SyncCache) keyLock(key domain.SnapshotKey) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// raise moves the key's floor up to seq, or takes a fresh sequence when seq
// is zero. It reports false when seq is already superseded.
func (c *SyncCache) raise(key domain.SnapshotKey, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq == 0 {
		c.seq++
		seq = c.seq
	}
	if seq <= c.floor[key] {
		return false
	}
	c.floor[key] = seq
	return true
}

func (c *SyncCache) commit(ctx context.Context, key domain.SnapshotKey, seq uint64, devices []domain.UIDevice) {
	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	if !c.raise(key, seq) {
		c.logger.Debug("dropping superseded sync result", "key", key.String(), "seq", seq)
		return
	}

	snap := domain.Snapshot{Devices: domain.CloneDevices(devices), SyncedAt: c.now()}
	if err := c.store.Put(ctx, key, snap, c.cfg.TTL); err != nil {
		c.logger.Warn("snapshot write failed", "key", key.String(), "error", err)
	}
}

func (c *SyncCache) clear(ctx context.Context, key domain.SnapshotKey) {
	l := c.keyLock(key)
	l.Lock()
	defer l.Unlock()

	c.raise(key, 0)
	if err := c.store.Delete(ctx, key); err != nil {
		c.logger.Warn("snapshot delete failed", "key", key.String(), "error", err)
	}
}
