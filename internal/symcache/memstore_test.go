package symcache

import (
	"context"
	"errors"
	"sync"

	"symbol-systemv1/internal/model"
)

// memStore is an in-memory InstrumentStore used as the fallback store in
// tests. It evaluates the same shared Filter the cache evaluates, which is
// exactly the contract a real store implementation must honor.
type memStore struct {
	mu      sync.Mutex
	rows    []model.Instrument
	fno     model.ExchangeSet
	failAll bool // make ForEach fail, simulating an unreachable store
}

var errStoreDown = errors.New("store unreachable")

func newMemStore(fno model.ExchangeSet, rows ...model.Instrument) *memStore {
	return &memStore{rows: rows, fno: fno}
}

func (m *memStore) setRows(rows []model.Instrument) {
	m.mu.Lock()
	m.rows = rows
	m.mu.Unlock()
}

func (m *memStore) snapshotRows() []model.Instrument {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Instrument, len(m.rows))
	copy(out, m.rows)
	for i := range out {
		out[i].Underlying = model.ExtractUnderlying(out[i].Symbol, out[i].Exchange, m.fno)
	}
	return out
}

func (m *memStore) ForEach(ctx context.Context, fn func(model.Instrument) error) error {
	m.mu.Lock()
	failed := m.failAll
	m.mu.Unlock()
	if failed {
		return errStoreDown
	}
	for _, row := range m.snapshotRows() {
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (m *memStore) BySymbol(ctx context.Context, symbol, exchange string) (*model.Instrument, error) {
	for _, row := range m.snapshotRows() {
		if row.Symbol == symbol && row.Exchange == exchange {
			r := row
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) ByToken(ctx context.Context, token string) (*model.Instrument, error) {
	for _, row := range m.snapshotRows() {
		if row.Token == token {
			r := row
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) ByTokenExchange(ctx context.Context, token, exchange string) (*model.Instrument, error) {
	for _, row := range m.snapshotRows() {
		if row.Token == token && row.Exchange == exchange {
			r := row
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) ByBrokerSymbol(ctx context.Context, brokerSymbol, exchange string) (*model.Instrument, error) {
	for _, row := range m.snapshotRows() {
		if row.BrokerSymbol == brokerSymbol && row.Exchange == exchange {
			r := row
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memStore) Search(ctx context.Context, f model.Filter, limit int) ([]model.Instrument, error) {
	var out []model.Instrument
	for _, row := range m.snapshotRows() {
		row := row
		if !f.Matches(&row) {
			continue
		}
		out = append(out, row)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }
