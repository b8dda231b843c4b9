package symcache

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"symbol-systemv1/internal/model"
)

// Search runs a free-text query over the current snapshot. Every term must
// match at least one searchable field (symbol, broker symbol, name, token as
// substrings; strike by exact numeric equality). The scan is bounded to the
// exchange bucket when an exchange is given and stops as soon as limit
// records match; results come back in load order, unranked.
func (c *Cache) Search(ctx context.Context, query, exchange string, limit int) []model.Instrument {
	limit = c.clampLimit(limit, c.opts.DefaultLimit)
	f := model.Filter{Terms: model.ParseTerms(query), Exchange: exchange}

	snap := c.current()
	if snap == nil {
		return c.fallbackSearch(ctx, f, limit)
	}

	var out []model.Instrument
	for _, rec := range snap.scope(exchange) {
		if f.Matches(rec) {
			out = append(out, *rec)
			if len(out) >= limit {
				break
			}
		}
	}
	c.countResult(len(out))
	return out
}

// FNOQuery is a faceted search over derivatives metadata. Zero-value fields
// are unconstrained; Limit defaults to the configured FNO limit.
type FNOQuery struct {
	Query          string
	Exchange       string
	Expiry         string
	InstrumentType string // FUT, CE or PE
	Underlying     string
	StrikeMin      *float64
	StrikeMax      *float64
	Limit          int
}

// FNOSearch filters the snapshot by underlying, expiry, symbol-suffix
// instrument type, inclusive strike range and free text, then ranks the
// matches deterministically before truncating to the limit:
//
//  1. underlying equals the first query term
//  2. underlying starts with the first query term
//  3. symbol starts with the first query term
//  4. lexicographic by canonical symbol
func (c *Cache) FNOSearch(ctx context.Context, q FNOQuery) []model.Instrument {
	limit := c.clampLimit(q.Limit, c.opts.FNOLimit)
	f := model.Filter{
		Terms:          model.ParseTerms(q.Query),
		Exchange:       q.Exchange,
		Expiry:         q.Expiry,
		InstrumentType: strings.ToUpper(q.InstrumentType),
		Underlying:     q.Underlying,
		StrikeMin:      q.StrikeMin,
		StrikeMax:      q.StrikeMax,
	}

	var matched []model.Instrument
	if snap := c.current(); snap != nil {
		for _, rec := range snap.scope(q.Exchange) {
			if f.Matches(rec) {
				matched = append(matched, *rec)
			}
		}
		c.countResult(len(matched))
	} else {
		matched = c.fallbackSearch(ctx, f, 0)
	}

	firstTerm := ""
	if len(f.Terms) > 0 {
		firstTerm = f.Terms[0]
	}
	rankRecords(matched, firstTerm)
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

// rankRecords orders records by the FNO ranking keys relative to the first
// query term. The sort is stable, so records equal under all keys keep their
// load order.
func rankRecords(recs []model.Instrument, firstTerm string) {
	sort.SliceStable(recs, func(i, j int) bool {
		ki, kj := rankKey(&recs[i], firstTerm), rankKey(&recs[j], firstTerm)
		for n := range ki {
			if ki[n] != kj[n] {
				return ki[n] < kj[n]
			}
		}
		return recs[i].Symbol < recs[j].Symbol
	})
}

// rankKey returns the three boolean tie-break keys, 0 meaning better.
func rankKey(rec *model.Instrument, firstTerm string) [3]int {
	var k [3]int
	k[0], k[1], k[2] = 1, 1, 1
	if firstTerm == "" {
		return k
	}
	underlying := strings.ToUpper(rec.Underlying)
	if underlying != "" && underlying == firstTerm {
		k[0] = 0
	}
	if underlying != "" && strings.HasPrefix(underlying, firstTerm) {
		k[1] = 0
	}
	if strings.HasPrefix(strings.ToUpper(rec.Symbol), firstTerm) {
		k[2] = 0
	}
	return k
}

// ── Facet accessors ──
// These expose the derived indexes built alongside the snapshot, for
// option-chain style consumers.

// Expiries returns the distinct expiries listed on an exchange, sorted by
// date with unparsable expiry strings last.
func (c *Cache) Expiries(ctx context.Context, exchange string) []string {
	if snap := c.current(); snap != nil {
		return sortedExpiries(snap.expiries[exchange])
	}
	set := make(map[string]struct{})
	for _, rec := range c.fallbackSearch(ctx, model.Filter{Exchange: exchange}, 0) {
		if rec.Expiry != "" {
			set[rec.Expiry] = struct{}{}
		}
	}
	return sortedExpiries(set)
}

// ExpiriesFor returns the distinct expiries for one underlying on an
// exchange, sorted like Expiries.
func (c *Cache) ExpiriesFor(ctx context.Context, exchange, underlying string) []string {
	underlying = strings.ToUpper(underlying)
	if snap := c.current(); snap != nil {
		return sortedExpiries(snap.expiriesByUnderlying[exchange+":"+underlying])
	}
	set := make(map[string]struct{})
	for _, rec := range c.fallbackSearch(ctx, model.Filter{Exchange: exchange, Underlying: underlying}, 0) {
		if rec.Expiry != "" {
			set[rec.Expiry] = struct{}{}
		}
	}
	return sortedExpiries(set)
}

// Underlyings returns the distinct derived underlyings on an exchange,
// sorted lexicographically.
func (c *Cache) Underlyings(ctx context.Context, exchange string) []string {
	var set map[string]struct{}
	if snap := c.current(); snap != nil {
		set = snap.underlyings[exchange]
	} else {
		set = make(map[string]struct{})
		for _, rec := range c.fallbackSearch(ctx, model.Filter{Exchange: exchange}, 0) {
			if rec.Underlying != "" {
				set[strings.ToUpper(rec.Underlying)] = struct{}{}
			}
		}
	}
	out := make([]string, 0, len(set))
	for u := range set {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// fallbackSearch answers a search from the record store, counted as a store
// query. Store failures degrade to an empty result.
func (c *Cache) fallbackSearch(ctx context.Context, f model.Filter, limit int) []model.Instrument {
	c.storeQueries.Add(1)
	recs, err := c.store.Search(ctx, f, limit)
	if err != nil {
		c.log.Warn("store fallback search failed", slog.Any("err", err))
		return nil
	}
	return recs
}

func (c *Cache) clampLimit(limit, def int) int {
	if limit <= 0 {
		limit = def
	}
	if limit > c.opts.MaxLimit {
		limit = c.opts.MaxLimit
	}
	return limit
}

func (c *Cache) countResult(n int) {
	if n > 0 {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
}

// sortedExpiries orders a set of "DD-MON-YY" strings by parsed date;
// unparsable strings sort last, ordered among themselves by string value.
func sortedExpiries(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		ti, iok := parseExpiry(out[i])
		tj, jok := parseExpiry(out[j])
		if iok != jok {
			return iok // parsable before unparsable
		}
		if iok && !ti.Equal(tj) {
			return ti.Before(tj)
		}
		return out[i] < out[j]
	})
	return out
}

// parseExpiry parses the fixed "DD-MON-YY" expiry format, tolerating any
// month casing.
func parseExpiry(s string) (time.Time, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 {
		return time.Time{}, false
	}
	mon := strings.ToUpper(parts[1])
	if len(mon) != 3 {
		return time.Time{}, false
	}
	mon = mon[:1] + strings.ToLower(mon[1:])
	t, err := time.Parse("02-Jan-06", parts[0]+"-"+mon+"-"+parts[2])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
