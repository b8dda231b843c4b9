// Package symcache is the in-memory symbol cache and search engine. It
// ingests the full master contract from an injected record store, builds one
// immutable multi-index snapshot per load, and serves point lookups, bulk
// lookups, free-text search and FNO faceted search. While the snapshot is
// absent or past its daily reset boundary, every query transparently falls
// back to the record store.
package symcache

import (
	"errors"
	"strings"
	"time"

	"symbol-systemv1/internal/model"
)

// ErrNoRows is returned by a build whose input yielded zero rows. A failed
// build never replaces the published snapshot.
var ErrNoRows = errors.New("symcache: instrument load returned zero rows")

// Snapshot is one complete, internally consistent set of indexes built from
// a single pass over the master contract. It is immutable once built; a
// reload always produces a brand-new Snapshot.
type Snapshot struct {
	byToken        map[string]*model.Instrument // token → record (last write wins)
	bySymbol       map[string]*model.Instrument // "exchange:symbol" → record
	byTokenExch    map[string]*model.Instrument // "exchange:token" → record
	byBrokerSymbol map[string]*model.Instrument // "exchange:brsymbol" → record

	byExchange map[string][]*model.Instrument // load-order buckets
	records    []*model.Instrument            // full set, load order

	expiries             map[string]map[string]struct{} // exchange → expiry set
	expiriesByUnderlying map[string]map[string]struct{} // "exchange:underlying" → expiry set
	underlyings          map[string]map[string]struct{} // exchange → underlying set

	broker      string
	builtAt     time.Time
	approxBytes int64
	skipped     int
}

// Count returns the number of indexed records.
func (s *Snapshot) Count() int { return len(s.records) }

// ApproxBytes returns the estimated memory footprint of the snapshot.
func (s *Snapshot) ApproxBytes() int64 { return s.approxBytes }

// BuiltAt returns the snapshot's build timestamp.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// scope returns the search space for a query: the per-exchange bucket when
// an exchange is given, the full record set otherwise.
func (s *Snapshot) scope(exchange string) []*model.Instrument {
	if exchange != "" {
		return s.byExchange[exchange]
	}
	return s.records
}

// Builder accumulates rows into a Snapshot. It never touches the published
// snapshot; publishing is the cache's job, and only after Finish succeeds.
type Builder struct {
	snap           *Snapshot
	fno            model.ExchangeSet
	bytesPerRecord int
}

// NewBuilder starts a fresh snapshot build.
func NewBuilder(broker string, fno model.ExchangeSet, bytesPerRecord int, builtAt time.Time) *Builder {
	return &Builder{
		snap:           newSnapshot(broker, builtAt),
		fno:            fno,
		bytesPerRecord: bytesPerRecord,
	}
}

func newSnapshot(broker string, builtAt time.Time) *Snapshot {
	return &Snapshot{
		byToken:              make(map[string]*model.Instrument),
		bySymbol:             make(map[string]*model.Instrument),
		byTokenExch:          make(map[string]*model.Instrument),
		byBrokerSymbol:       make(map[string]*model.Instrument),
		byExchange:           make(map[string][]*model.Instrument),
		expiries:             make(map[string]map[string]struct{}),
		expiriesByUnderlying: make(map[string]map[string]struct{}),
		underlyings:          make(map[string]map[string]struct{}),
		broker:               broker,
		builtAt:              builtAt,
	}
}

// Add indexes one master-contract row into every snapshot index in the same
// pass. Rows missing a required field (symbol, exchange, token) are skipped
// and counted; missing optional fields are indexed as absent.
func (b *Builder) Add(row model.Instrument) {
	if row.Symbol == "" || row.Exchange == "" || row.Token == "" {
		b.snap.skipped++
		return
	}

	row.Underlying = model.ExtractUnderlying(row.Symbol, row.Exchange, b.fno)
	rec := &row

	s := b.snap
	s.byToken[rec.Token] = rec
	s.bySymbol[rec.SymbolKey()] = rec
	s.byTokenExch[rec.TokenKey()] = rec
	s.byBrokerSymbol[rec.BrokerSymbolKey()] = rec
	s.byExchange[rec.Exchange] = append(s.byExchange[rec.Exchange], rec)
	s.records = append(s.records, rec)

	if rec.Expiry != "" {
		addToSet(s.expiries, rec.Exchange, rec.Expiry)
		if rec.Underlying != "" {
			addToSet(s.expiriesByUnderlying, rec.Exchange+":"+strings.ToUpper(rec.Underlying), rec.Expiry)
		}
	}
	if rec.Underlying != "" {
		addToSet(s.underlyings, rec.Exchange, strings.ToUpper(rec.Underlying))
	}
}

// Skipped returns the number of rows rejected for missing required fields.
func (b *Builder) Skipped() int { return b.snap.skipped }

// Finish seals the snapshot. It fails with ErrNoRows when no row survived,
// so that an empty load can never evict a working cache.
func (b *Builder) Finish() (*Snapshot, error) {
	if len(b.snap.records) == 0 {
		return nil, ErrNoRows
	}
	// Footprint only needs to grow with record count; a fixed per-record
	// estimate is enough.
	b.snap.approxBytes = int64(len(b.snap.records)) * int64(b.bytesPerRecord)
	return b.snap, nil
}

func addToSet(m map[string]map[string]struct{}, key, value string) {
	set, ok := m[key]
	if !ok {
		set = make(map[string]struct{})
		m[key] = set
	}
	set[value] = struct{}{}
}
