// Package redis implements the Instrument Record Store on Redis hashes, for
// deployments that share one master-contract image across several services.
//
// Layout: one hash per exchange keyed by token holding the record JSON, two
// secondary hashes mapping canonical symbol and broker symbol to the token,
// and a set of known exchange codes:
//
//	symtoken:{exchange}        token    → record JSON
//	symtoken:sym:{exchange}    symbol   → token
//	symtoken:brsym:{exchange}  brsymbol → token
//	symtoken:exchanges         set of exchange codes
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"time"

	"symbol-systemv1/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

// Config configures the Redis store.
type Config struct {
	Addr         string
	Password     string
	DB           int
	FNOExchanges model.ExchangeSet
}

// Store is a Redis-backed instrument store.
type Store struct {
	client *goredis.Client
	fno    model.ExchangeSet
}

// New creates a Store and pings the server.
func New(cfg Config) (*Store, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Store{client: client, fno: cfg.FNOExchanges}, nil
}

func recordsKey(exchange string) string { return "symtoken:" + exchange }
func symbolsKey(exchange string) string { return "symtoken:sym:" + exchange }
func brokerKey(exchange string) string  { return "symtoken:brsym:" + exchange }

const exchangesKey = "symtoken:exchanges"

// InsertBatch writes rows through one pipeline, replacing entries with the
// same (exchange, token).
func (s *Store) InsertBatch(ctx context.Context, rows []model.Instrument) error {
	pipe := s.client.Pipeline()
	for i := range rows {
		r := &rows[i]
		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("redis marshal %s: %w", r.TokenKey(), err)
		}
		pipe.HSet(ctx, recordsKey(r.Exchange), r.Token, data)
		pipe.HSet(ctx, symbolsKey(r.Exchange), r.Symbol, r.Token)
		pipe.HSet(ctx, brokerKey(r.Exchange), r.BrokerSymbol, r.Token)
		pipe.SAdd(ctx, exchangesKey, r.Exchange)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis insert batch: %w", err)
	}
	return nil
}

// ForEach streams every stored row. Hash iteration order is not load order,
// so rows come back sorted by (exchange, token) for determinism.
func (s *Store) ForEach(ctx context.Context, fn func(model.Instrument) error) error {
	exchanges, err := s.exchanges(ctx)
	if err != nil {
		return err
	}
	for _, exch := range exchanges {
		recs, err := s.exchangeRecords(ctx, exch)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if err := fn(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// BySymbol looks up a record by (canonical symbol, exchange).
func (s *Store) BySymbol(ctx context.Context, symbol, exchange string) (*model.Instrument, error) {
	return s.viaSecondary(ctx, symbolsKey(exchange), symbol, exchange)
}

// ByBrokerSymbol looks up a record by (broker symbol, exchange).
func (s *Store) ByBrokerSymbol(ctx context.Context, brokerSymbol, exchange string) (*model.Instrument, error) {
	return s.viaSecondary(ctx, brokerKey(exchange), brokerSymbol, exchange)
}

// ByTokenExchange looks up a record by (token, exchange).
func (s *Store) ByTokenExchange(ctx context.Context, token, exchange string) (*model.Instrument, error) {
	data, err := s.client.HGet(ctx, recordsKey(exchange), token).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget %s: %w", recordsKey(exchange), err)
	}
	return s.decode([]byte(data))
}

// ByToken looks up a record by token across all exchanges.
func (s *Store) ByToken(ctx context.Context, token string) (*model.Instrument, error) {
	exchanges, err := s.exchanges(ctx)
	if err != nil {
		return nil, err
	}
	for _, exch := range exchanges {
		rec, err := s.ByTokenExchange(ctx, token, exch)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return rec, nil
		}
	}
	return nil, nil
}

// Search evaluates the shared Filter over the stored rows, scoped to one
// exchange hash when the filter names an exchange.
func (s *Store) Search(ctx context.Context, f model.Filter, limit int) ([]model.Instrument, error) {
	var exchanges []string
	if f.Exchange != "" {
		exchanges = []string{f.Exchange}
	} else {
		var err error
		exchanges, err = s.exchanges(ctx)
		if err != nil {
			return nil, err
		}
	}

	var out []model.Instrument
	for _, exch := range exchanges {
		recs, err := s.exchangeRecords(ctx, exch)
		if err != nil {
			return nil, err
		}
		for i := range recs {
			if !f.Matches(&recs[i]) {
				continue
			}
			out = append(out, recs[i])
			if limit > 0 && len(out) >= limit {
				return out, nil
			}
		}
	}
	return out, nil
}

// Close closes the client.
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) exchanges(ctx context.Context) ([]string, error) {
	exchanges, err := s.client.SMembers(ctx, exchangesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers %s: %w", exchangesKey, err)
	}
	sort.Strings(exchanges)
	return exchanges, nil
}

// exchangeRecords fetches one exchange hash and decodes it, sorted by token.
func (s *Store) exchangeRecords(ctx context.Context, exchange string) ([]model.Instrument, error) {
	entries, err := s.client.HGetAll(ctx, recordsKey(exchange)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall %s: %w", recordsKey(exchange), err)
	}

	tokens := make([]string, 0, len(entries))
	for token := range entries {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	recs := make([]model.Instrument, 0, len(tokens))
	for _, token := range tokens {
		rec, err := s.decode([]byte(entries[token]))
		if err != nil {
			return nil, err
		}
		recs = append(recs, *rec)
	}
	return recs, nil
}

func (s *Store) viaSecondary(ctx context.Context, key, field, exchange string) (*model.Instrument, error) {
	token, err := s.client.HGet(ctx, key, field).Result()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis hget %s: %w", key, err)
	}
	return s.ByTokenExchange(ctx, token, exchange)
}

func (s *Store) decode(data []byte) (*model.Instrument, error) {
	var rec model.Instrument
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("redis unmarshal record: %w", err)
	}
	rec.Underlying = model.ExtractUnderlying(rec.Symbol, rec.Exchange, s.fno)
	return &rec, nil
}
