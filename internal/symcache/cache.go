package symcache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"symbol-systemv1/internal/model"
	"symbol-systemv1/internal/session"
)

// Options configures a Cache.
type Options struct {
	Broker         string            // active broker identifier, recorded on each snapshot
	FNOExchanges   model.ExchangeSet // exchanges that list derivatives
	Reset          session.Boundary  // daily validity boundary
	BytesPerRecord int               // per-record footprint estimate
	DefaultLimit   int               // search limit when the caller passes none
	MaxLimit       int               // hard ceiling on any search limit
	FNOLimit       int               // default limit for faceted FNO search
}

func (o *Options) applyDefaults() {
	if o.BytesPerRecord <= 0 {
		o.BytesPerRecord = 1024
	}
	if o.DefaultLimit <= 0 {
		o.DefaultLimit = 50
	}
	if o.MaxLimit <= 0 {
		o.MaxLimit = 500
	}
	if o.FNOLimit <= 0 {
		o.FNOLimit = 500
	}
	if o.Reset.Loc == nil {
		o.Reset = session.Boundary{Hour: 3, Minute: 0, Loc: session.IST}
	}
}

// published pairs a snapshot with its validity window. The pointer to it is
// the only mutable shared state in the cache; readers load it atomically and
// never see a half-built snapshot.
type published struct {
	snap      *Snapshot
	loadedAt  time.Time
	nextReset time.Time
}

// Cache is the in-memory symbol cache. Construct one per broker session with
// New; all methods are safe for concurrent use.
type Cache struct {
	store model.InstrumentStore
	opts  Options
	log   *slog.Logger

	mu        sync.Mutex // serializes publishers; held only for the swap
	published atomic.Pointer[published]

	now func() time.Time

	hits           atomic.Int64
	misses         atomic.Int64
	storeQueries   atomic.Int64
	reloadFailures atomic.Int64
}

// New creates a Cache backed by the given record store. The cache starts
// unloaded; call Reload to populate it.
func New(store model.InstrumentStore, opts Options) *Cache {
	opts.applyDefaults()
	return &Cache{
		store: store,
		opts:  opts,
		log:   slog.Default().With(slog.String("component", "symcache")),
		now:   time.Now,
	}
}

// Reload performs a full build-then-swap: it reads every row from the record
// store into a fresh snapshot and publishes it only on success. A failed or
// empty load leaves the previously published snapshot untouched.
func (c *Cache) Reload(ctx context.Context) error {
	start := c.now()
	builder := NewBuilder(c.opts.Broker, c.opts.FNOExchanges, c.opts.BytesPerRecord, start)

	err := c.store.ForEach(ctx, func(row model.Instrument) error {
		builder.Add(row)
		return nil
	})
	if err != nil {
		c.reloadFailures.Add(1)
		return fmt.Errorf("symcache: bulk read: %w", err)
	}

	snap, err := builder.Finish()
	if err != nil {
		c.reloadFailures.Add(1)
		return err
	}

	c.publish(snap, snap.BuiltAt())
	c.log.Info("snapshot published",
		slog.Int("records", snap.Count()),
		slog.Int("skipped", builder.Skipped()),
		slog.Int64("approx_bytes", snap.ApproxBytes()),
		slog.Duration("build_time", c.now().Sub(start)))
	return nil
}

// Clear publishes an empty snapshot, releasing the cache's memory and
// sending all subsequent queries to the record store. Used on logout or
// session end.
func (c *Cache) Clear() {
	now := c.now()
	empty := newSnapshot(c.opts.Broker, now)
	// nextReset == loadedAt makes the empty snapshot immediately stale.
	c.mu.Lock()
	c.published.Store(&published{snap: empty, loadedAt: now, nextReset: now})
	c.mu.Unlock()
	c.log.Info("cache cleared")
}

func (c *Cache) publish(snap *Snapshot, loadedAt time.Time) {
	next := c.opts.Reset.NextReset(loadedAt)
	c.mu.Lock()
	c.published.Store(&published{snap: snap, loadedAt: loadedAt, nextReset: next})
	c.mu.Unlock()
}

// IsValid reports whether a snapshot is published and its daily validity
// window has not yet passed. A stale cache is not an error state: queries
// keep working through the record store.
func (c *Cache) IsValid() bool {
	return c.current() != nil
}

// current returns the published snapshot iff it is still valid, else nil.
func (c *Cache) current() *Snapshot {
	p := c.published.Load()
	if p == nil || !c.now().Before(p.nextReset) {
		return nil
	}
	return p.snap
}

// ── Point lookups ──
// Each lookup is a single composite-key map hit against the current
// snapshot; a miss is a normal (zero, false) result. When no valid snapshot
// is published the lookup is answered by the record store instead.

// Token resolves (symbol, exchange) to the broker token.
func (c *Cache) Token(ctx context.Context, symbol, exchange string) (string, bool) {
	if snap := c.current(); snap != nil {
		if rec, ok := snap.bySymbol[exchange+":"+symbol]; ok {
			c.hits.Add(1)
			return rec.Token, true
		}
		c.misses.Add(1)
		return "", false
	}
	rec := c.fallback(ctx, func(ctx context.Context) (*model.Instrument, error) {
		return c.store.BySymbol(ctx, symbol, exchange)
	})
	if rec == nil {
		return "", false
	}
	return rec.Token, true
}

// Symbol resolves (token, exchange) to the canonical symbol.
func (c *Cache) Symbol(ctx context.Context, token, exchange string) (string, bool) {
	if snap := c.current(); snap != nil {
		if rec, ok := snap.byTokenExch[exchange+":"+token]; ok {
			c.hits.Add(1)
			return rec.Symbol, true
		}
		c.misses.Add(1)
		return "", false
	}
	rec := c.fallback(ctx, func(ctx context.Context) (*model.Instrument, error) {
		return c.store.ByTokenExchange(ctx, token, exchange)
	})
	if rec == nil {
		return "", false
	}
	return rec.Symbol, true
}

// BrokerSymbol resolves (symbol, exchange) to the broker-native symbol.
func (c *Cache) BrokerSymbol(ctx context.Context, symbol, exchange string) (string, bool) {
	if snap := c.current(); snap != nil {
		if rec, ok := snap.bySymbol[exchange+":"+symbol]; ok {
			c.hits.Add(1)
			return rec.BrokerSymbol, true
		}
		c.misses.Add(1)
		return "", false
	}
	rec := c.fallback(ctx, func(ctx context.Context) (*model.Instrument, error) {
		return c.store.BySymbol(ctx, symbol, exchange)
	})
	if rec == nil {
		return "", false
	}
	return rec.BrokerSymbol, true
}

// CanonicalSymbol resolves (broker symbol, exchange) back to the canonical
// symbol.
func (c *Cache) CanonicalSymbol(ctx context.Context, brokerSymbol, exchange string) (string, bool) {
	if snap := c.current(); snap != nil {
		if rec, ok := snap.byBrokerSymbol[exchange+":"+brokerSymbol]; ok {
			c.hits.Add(1)
			return rec.Symbol, true
		}
		c.misses.Add(1)
		return "", false
	}
	rec := c.fallback(ctx, func(ctx context.Context) (*model.Instrument, error) {
		return c.store.ByBrokerSymbol(ctx, brokerSymbol, exchange)
	})
	if rec == nil {
		return "", false
	}
	return rec.Symbol, true
}

// BrokerExchange resolves (symbol, exchange) to the broker's exchange code.
func (c *Cache) BrokerExchange(ctx context.Context, symbol, exchange string) (string, bool) {
	if snap := c.current(); snap != nil {
		if rec, ok := snap.bySymbol[exchange+":"+symbol]; ok {
			c.hits.Add(1)
			return rec.BrokerExchange, true
		}
		c.misses.Add(1)
		return "", false
	}
	rec := c.fallback(ctx, func(ctx context.Context) (*model.Instrument, error) {
		return c.store.BySymbol(ctx, symbol, exchange)
	})
	if rec == nil {
		return "", false
	}
	return rec.BrokerExchange, true
}

// Record returns the full record for (symbol, exchange).
func (c *Cache) Record(ctx context.Context, symbol, exchange string) (model.Instrument, bool) {
	if snap := c.current(); snap != nil {
		if rec, ok := snap.bySymbol[exchange+":"+symbol]; ok {
			c.hits.Add(1)
			return *rec, true
		}
		c.misses.Add(1)
		return model.Instrument{}, false
	}
	rec := c.fallback(ctx, func(ctx context.Context) (*model.Instrument, error) {
		return c.store.BySymbol(ctx, symbol, exchange)
	})
	if rec == nil {
		return model.Instrument{}, false
	}
	return *rec, true
}

// RecordByToken returns the full record for a token, across all exchanges.
func (c *Cache) RecordByToken(ctx context.Context, token string) (model.Instrument, bool) {
	if snap := c.current(); snap != nil {
		if rec, ok := snap.byToken[token]; ok {
			c.hits.Add(1)
			return *rec, true
		}
		c.misses.Add(1)
		return model.Instrument{}, false
	}
	rec := c.fallback(ctx, func(ctx context.Context) (*model.Instrument, error) {
		return c.store.ByToken(ctx, token)
	})
	if rec == nil {
		return model.Instrument{}, false
	}
	return *rec, true
}

// ── Bulk lookups ──

// SymbolRef identifies an instrument by (canonical symbol, exchange).
type SymbolRef struct {
	Symbol   string
	Exchange string
}

// TokenRef identifies an instrument by (token, exchange).
type TokenRef struct {
	Token    string
	Exchange string
}

// TokensBulk resolves a batch of (symbol, exchange) pairs to tokens in one
// pass. The result has exactly one element per input, in input order, with
// "" marking an unresolved pair.
func (c *Cache) TokensBulk(ctx context.Context, refs []SymbolRef) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		if tok, ok := c.Token(ctx, ref.Symbol, ref.Exchange); ok {
			out[i] = tok
		}
	}
	return out
}

// SymbolsBulk resolves a batch of (token, exchange) pairs to canonical
// symbols, with the same order and length contract as TokensBulk.
func (c *Cache) SymbolsBulk(ctx context.Context, refs []TokenRef) []string {
	out := make([]string, len(refs))
	for i, ref := range refs {
		if sym, ok := c.Symbol(ctx, ref.Token, ref.Exchange); ok {
			out[i] = sym
		}
	}
	return out
}

// fallback answers a point lookup from the record store, counting it as a
// store-query event. Store failures degrade to a miss; they never surface as
// errors from lookup calls.
func (c *Cache) fallback(ctx context.Context, query func(context.Context) (*model.Instrument, error)) *model.Instrument {
	c.storeQueries.Add(1)
	rec, err := query(ctx)
	if err != nil {
		c.log.Warn("store fallback lookup failed", slog.Any("err", err))
		return nil
	}
	return rec
}

// ── Status ──

// Stats are the cache's monotonically increasing query counters. They are
// updated with atomic increments and read without locking, so values are
// approximate under race.
type Stats struct {
	Hits           int64 `json:"hits"`
	Misses         int64 `json:"misses"`
	StoreQueries   int64 `json:"store_queries"`
	ReloadFailures int64 `json:"reload_failures"`
}

// Status describes the published snapshot and the query counters.
type Status struct {
	Loaded      bool      `json:"loaded"`
	Valid       bool      `json:"valid"`
	Broker      string    `json:"broker"`
	Records     int       `json:"records"`
	ApproxBytes int64     `json:"approx_bytes"`
	SkippedRows int       `json:"skipped_rows"`
	LoadedAt    time.Time `json:"loaded_at"`
	NextReset   time.Time `json:"next_reset"`
	Stats       Stats     `json:"stats"`
}

// Stats returns a point-in-time copy of the query counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		StoreQueries:   c.storeQueries.Load(),
		ReloadFailures: c.reloadFailures.Load(),
	}
}

// Status returns the cache lifecycle state and counters.
func (c *Cache) Status() Status {
	st := Status{Broker: c.opts.Broker, Stats: c.Stats()}
	p := c.published.Load()
	if p == nil {
		return st
	}
	st.Loaded = p.snap.Count() > 0
	st.Valid = st.Loaded && c.now().Before(p.nextReset)
	st.Records = p.snap.Count()
	st.ApproxBytes = p.snap.ApproxBytes()
	st.SkippedRows = p.snap.skipped
	st.LoadedAt = p.loadedAt
	st.NextReset = p.nextReset
	return st
}
