// Package cache keeps the last good metric bundle in a single persisted
// slot for degraded-mode recovery.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rpggio/opsdash/internal/domain/metrics"
	"github.com/rpggio/opsdash/internal/repository"
)

// ErrCacheFault indicates the slot store is unavailable or holds corrupt
// data. It is logged, never returned to callers of Get or Put.
var ErrCacheFault = errors.New("cache fault")

const (
	DefaultTTL  = time.Hour
	DefaultSlot = "opsdash.metricBundle"
)

// Entry is the serialized slot contract.
type Entry struct {
	Timestamp int64           `json:"timestamp"`
	Data      *metrics.Bundle `json:"data"`
}

// Cache is a single-slot bundle cache with lazy expiry.
type Cache struct {
	mu     sync.Mutex
	store  SlotStore
	slot   string
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
	mem    *Entry
}

// Option customises a Cache.
type Option func(*Cache)

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithSlot(name string) Option {
	return func(c *Cache) {
		if name != "" {
			c.slot = name
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache over store. A nil store keeps the entry in memory
// only.
func New(store SlotStore, logger *slog.Logger, opts ...Option) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		store:  store,
		slot:   DefaultSlot,
		ttl:    DefaultTTL,
		now:    time.Now,
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the expiry age.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Put stores b with the current time, replacing any previous entry.
func (c *Cache) Put(ctx context.Context, b *metrics.Bundle) {
	if b == nil {
		return
	}
	entry := &Entry{Timestamp: c.now().UnixMilli(), Data: b}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.mem = entry

	if c.store == nil {
		return
	}
	data, err := json.Marshal(entry)
	if err != nil {
		c.fault("encoding entry", err)
		return
	}
	if err := c.store.Save(ctx, c.slot, data); err != nil {
		c.fault("saving entry", err)
	}
}

// Get returns the cached bundle when it is younger than the TTL. Expired,
// missing and unreadable entries are all reported as absent.
func (c *Cache) Get(ctx context.Context) (*metrics.Bundle, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.mem
	if entry == nil {
		entry = c.load(ctx)
		if entry == nil {
			return nil, false
		}
		c.mem = entry
	}

	age := c.now().Sub(time.UnixMilli(entry.Timestamp))
	if age >= c.ttl {
		c.mem = nil
		if c.store != nil {
			if err := c.store.Delete(ctx, c.slot); err != nil {
				c.fault("dropping expired entry", err)
			}
		}
		c.logger.Debug("cache entry expired", "slot", c.slot, "age", age.String())
		return nil, false
	}
	return entry.Data, true
}

// Age reports how old the current entry is, if any.
func (c *Cache) Age(ctx context.Context) (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.mem
	if entry == nil {
		entry = c.load(ctx)
	}
	if entry == nil {
		return 0, false
	}
	return c.now().Sub(time.UnixMilli(entry.Timestamp)), true
}

func (c *Cache) load(ctx context.Context) *Entry {
	if c.store == nil {
		return nil
	}
	data, err := c.store.Load(ctx, c.slot)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			c.fault("loading entry", err)
		}
		return nil
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		c.fault("decoding entry", err)
		return nil
	}
	if entry.Data == nil || entry.Timestamp <= 0 {
		c.fault("decoding entry", errors.New("missing timestamp or data"))
		return nil
	}
	return &entry
}

func (c *Cache) fault(op string, err error) {
	c.logger.Warn("cache unavailable", "slot", c.slot, "error", fmt.Errorf("%w: %s: %v", ErrCacheFault, op, err))
}
