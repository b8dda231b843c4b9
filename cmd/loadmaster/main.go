// Command loadmaster loads a normalized master-contract CSV into the
// instrument record store. It stands in for the per-broker download
// pipelines, which produce rows in the same flat schema.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"symbol-systemv1/config"
	"symbol-systemv1/internal/model"
	redisstore "symbol-systemv1/internal/store/redis"
	sqlitestore "symbol-systemv1/internal/store/sqlite"
)

const batchSize = 500

func main() {
	csvPath := flag.String("csv", "", "path to the normalized master-contract CSV (required)")
	flag.Parse()
	if *csvPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.Load()
	fno := model.NewExchangeSet(cfg.ParseFNOExchanges())

	writer, err := openWriter(cfg, fno)
	if err != nil {
		log.Fatalf("[loadmaster] open store: %v", err)
	}
	defer writer.Close()

	start := time.Now()
	total, skipped, err := load(context.Background(), writer, *csvPath)
	if err != nil {
		log.Fatalf("[loadmaster] %v", err)
	}
	log.Printf("[loadmaster] loaded %d rows (%d skipped) in %v", total, skipped, time.Since(start))
}

func load(ctx context.Context, writer model.InstrumentWriter, path string) (total, skipped int, err error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		return 0, 0, fmt.Errorf("read csv header: %w", err)
	}

	columns := make(map[string]int, len(header))
	for i, col := range header {
		columns[col] = i
	}
	for _, required := range []string{"symbol", "brsymbol", "exchange", "token"} {
		if _, ok := columns[required]; !ok {
			return 0, 0, fmt.Errorf("csv missing required column %q", required)
		}
	}

	field := func(record []string, name string) string {
		i, ok := columns[name]
		if !ok || i >= len(record) {
			return ""
		}
		return record[i]
	}

	batch := make([]model.Instrument, 0, batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := writer.InsertBatch(ctx, batch); err != nil {
			return fmt.Errorf("insert batch: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return total, skipped, fmt.Errorf("read csv record: %w", err)
		}

		row := model.Instrument{
			Symbol:         field(record, "symbol"),
			BrokerSymbol:   field(record, "brsymbol"),
			Name:           field(record, "name"),
			Exchange:       field(record, "exchange"),
			BrokerExchange: field(record, "brexchange"),
			Token:          field(record, "token"),
			Expiry:         field(record, "expiry"),
			Strike:         parseFloatOrZero(field(record, "strike")),
			LotSize:        parseIntOrZero(field(record, "lotsize")),
			InstrumentType: field(record, "instrumenttype"),
			TickSize:       parseFloatOrZero(field(record, "ticksize")),
		}
		if row.Symbol == "" || row.Exchange == "" || row.Token == "" {
			skipped++
			continue
		}

		batch = append(batch, row)
		total++
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return total, skipped, err
			}
		}
	}

	return total, skipped, flush()
}

func openWriter(cfg *config.Config, fno model.ExchangeSet) (model.InstrumentWriter, error) {
	if cfg.StoreBackend == "redis" {
		return redisstore.New(redisstore.Config{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			FNOExchanges: fno,
		})
	}
	return sqlitestore.New(sqlitestore.Config{
		DBPath:       cfg.SQLitePath,
		FNOExchanges: fno,
	})
}

func parseIntOrZero(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseFloatOrZero(s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
