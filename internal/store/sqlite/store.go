// Package sqlite implements the Instrument Record Store on SQLite. It is the
// primary persistent backend: the master-contract loader writes into it and
// the symbol cache reads from it, both for bulk snapshot builds and for
// fallback queries while the cache is unloaded or stale.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	"symbol-systemv1/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Config configures the SQLite store.
type Config struct {
	DBPath       string            // path to the database file, e.g. "data/symbols.db"
	FNOExchanges model.ExchangeSet // used to derive Underlying on rows read back
}

// Store is a SQLite-backed instrument store. Safe for concurrent readers;
// writes go through InsertBatch.
type Store struct {
	db  *sql.DB
	fno model.ExchangeSet
}

// New opens the database in WAL mode and bootstraps the schema.
func New(cfg Config) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db, fno: cfg.FNOExchanges}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS symtoken (
			symbol         TEXT NOT NULL,
			brsymbol       TEXT NOT NULL,
			name           TEXT,
			exchange       TEXT NOT NULL,
			brexchange     TEXT,
			token          TEXT NOT NULL,
			expiry         TEXT,
			strike         REAL,
			lotsize        INTEGER,
			instrumenttype TEXT,
			ticksize       REAL,
			UNIQUE (exchange, token) ON CONFLICT REPLACE
		);

		CREATE INDEX IF NOT EXISTS idx_symtoken_symbol   ON symtoken (symbol, exchange);
		CREATE INDEX IF NOT EXISTS idx_symtoken_brsymbol ON symtoken (brsymbol, exchange);
		CREATE INDEX IF NOT EXISTS idx_symtoken_token    ON symtoken (token);
	`)
	return err
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

const selectColumns = `symbol, brsymbol, name, exchange, brexchange, token,
	expiry, strike, lotsize, instrumenttype, ticksize`

// InsertBatch writes rows in a single transaction, replacing rows with the
// same (exchange, token).
func (s *Store) InsertBatch(ctx context.Context, rows []model.Instrument) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO symtoken (symbol, brsymbol, name, exchange, brexchange, token,
			expiry, strike, lotsize, instrumenttype, ticksize)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		_, err := stmt.ExecContext(ctx, r.Symbol, r.BrokerSymbol, r.Name, r.Exchange,
			r.BrokerExchange, r.Token, r.Expiry, r.Strike, r.LotSize, r.InstrumentType, r.TickSize)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert: %w", err)
		}
	}

	return tx.Commit()
}

// ForEach streams every row in load order (rowid).
func (s *Store) ForEach(ctx context.Context, fn func(model.Instrument) error) error {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM symtoken ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("sqlite query symtoken: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := s.scanRow(rows)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return rows.Err()
}

// BySymbol looks up a record by (canonical symbol, exchange).
func (s *Store) BySymbol(ctx context.Context, symbol, exchange string) (*model.Instrument, error) {
	return s.queryOne(ctx, `SELECT `+selectColumns+` FROM symtoken WHERE symbol = ? AND exchange = ? LIMIT 1`,
		symbol, exchange)
}

// ByToken looks up a record by token across all exchanges.
func (s *Store) ByToken(ctx context.Context, token string) (*model.Instrument, error) {
	return s.queryOne(ctx, `SELECT `+selectColumns+` FROM symtoken WHERE token = ? ORDER BY rowid DESC LIMIT 1`,
		token)
}

// ByTokenExchange looks up a record by (token, exchange).
func (s *Store) ByTokenExchange(ctx context.Context, token, exchange string) (*model.Instrument, error) {
	return s.queryOne(ctx, `SELECT `+selectColumns+` FROM symtoken WHERE token = ? AND exchange = ? LIMIT 1`,
		token, exchange)
}

// ByBrokerSymbol looks up a record by (broker symbol, exchange).
func (s *Store) ByBrokerSymbol(ctx context.Context, brokerSymbol, exchange string) (*model.Instrument, error) {
	return s.queryOne(ctx, `SELECT `+selectColumns+` FROM symtoken WHERE brsymbol = ? AND exchange = ? LIMIT 1`,
		brokerSymbol, exchange)
}

// Search scans rows matching a coarse SQL prefilter (the exactly indexable
// constraints), then applies the full shared Filter to each row. Evaluating
// the same Filter the cache evaluates is what keeps the two paths
// set-equivalent. Results come back in load order.
func (s *Store) Search(ctx context.Context, f model.Filter, limit int) ([]model.Instrument, error) {
	query := `SELECT ` + selectColumns + ` FROM symtoken WHERE 1=1`
	var args []any
	if f.Exchange != "" {
		query += ` AND exchange = ?`
		args = append(args, f.Exchange)
	}
	if f.Expiry != "" {
		query += ` AND expiry = ?`
		args = append(args, f.Expiry)
	}
	if f.StrikeMin != nil {
		query += ` AND strike >= ?`
		args = append(args, *f.StrikeMin)
	}
	if f.StrikeMax != nil {
		query += ` AND strike > 0 AND strike <= ?`
		args = append(args, *f.StrikeMax)
	}
	query += ` ORDER BY rowid`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite search: %w", err)
	}
	defer rows.Close()

	var out []model.Instrument
	for rows.Next() {
		rec, err := s.scanRow(rows)
		if err != nil {
			return nil, err
		}
		if !f.Matches(&rec) {
			continue
		}
		out = append(out, rec)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, rows.Err()
}

func (s *Store) queryOne(ctx context.Context, query string, args ...any) (*model.Instrument, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite lookup: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	rec, err := s.scanRow(rows)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// scanRow reads one symtoken row, defaulting NULL optional columns to their
// zero values and deriving Underlying the same way the cache does.
func (s *Store) scanRow(rows *sql.Rows) (model.Instrument, error) {
	var (
		rec           model.Instrument
		name, brexch  sql.NullString
		expiry, itype sql.NullString
		strike, tick  sql.NullFloat64
		lotsize       sql.NullInt64
	)
	err := rows.Scan(&rec.Symbol, &rec.BrokerSymbol, &name, &rec.Exchange, &brexch,
		&rec.Token, &expiry, &strike, &lotsize, &itype, &tick)
	if err != nil {
		return model.Instrument{}, fmt.Errorf("sqlite scan symtoken: %w", err)
	}
	rec.Name = name.String
	rec.BrokerExchange = brexch.String
	rec.Expiry = expiry.String
	rec.Strike = strike.Float64
	rec.LotSize = int(lotsize.Int64)
	rec.InstrumentType = itype.String
	rec.TickSize = tick.Float64
	rec.Underlying = model.ExtractUnderlying(rec.Symbol, rec.Exchange, s.fno)
	return rec, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
