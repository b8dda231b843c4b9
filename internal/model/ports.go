package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the symbol cache from concrete storage
// implementations (SQLite, Redis). The store is injected into the cache at
// construction time; the cache never reaches into storage internals.

// InstrumentStore is the persistent Instrument Record Store. It backs the
// snapshot build (ForEach) and the fallback query path used while the cache
// is unloaded or stale.
//
// Point lookups return (nil, nil) on a miss; a miss is a normal result,
// not an error. Implementations must populate Underlying on every record
// they return, using the same derivation the cache applies at load time.
type InstrumentStore interface {
	// ForEach streams every stored instrument row in load order.
	ForEach(ctx context.Context, fn func(Instrument) error) error

	// BySymbol looks up a record by (canonical symbol, exchange).
	BySymbol(ctx context.Context, symbol, exchange string) (*Instrument, error)

	// ByToken looks up a record by token across all exchanges.
	ByToken(ctx context.Context, token string) (*Instrument, error)

	// ByTokenExchange looks up a record by (token, exchange).
	ByTokenExchange(ctx context.Context, token, exchange string) (*Instrument, error)

	// ByBrokerSymbol looks up a record by (broker symbol, exchange).
	ByBrokerSymbol(ctx context.Context, brokerSymbol, exchange string) (*Instrument, error)

	// Search returns every record matching the filter, in load order,
	// truncated to limit when limit > 0.
	Search(ctx context.Context, f Filter, limit int) ([]Instrument, error)

	// Close releases underlying resources.
	Close() error
}

// InstrumentWriter loads normalized master-contract rows into a store.
// Implemented by the same backends as InstrumentStore; kept separate so the
// cache only sees the read side.
type InstrumentWriter interface {
	// InsertBatch writes a batch of rows in one transaction/pipeline,
	// replacing rows with the same (exchange, token).
	InsertBatch(ctx context.Context, rows []Instrument) error

	// Close releases underlying resources.
	Close() error
}
