package model

import (
	"strconv"
	"strings"
)

// Filter is the single definition of an instrument search: both the
// in-memory cache path and the record-store fallback path evaluate the same
// Filter, which is what keeps the two paths returning identical sets.
//
// Zero-value fields are "no constraint". StrikeMin/StrikeMax are pointers so
// that a zero strike bound is representable.
type Filter struct {
	Terms          []string // uppercased free-text terms, ANDed
	Exchange       string
	Expiry         string
	InstrumentType string // FUT, CE or PE; matched against the symbol suffix
	Underlying     string
	StrikeMin      *float64
	StrikeMax      *float64
}

// ParseTerms splits a free-text query on whitespace and uppercases each
// term; empty terms are discarded.
func ParseTerms(query string) []string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		terms = append(terms, strings.ToUpper(f))
	}
	return terms
}

// DeriveInstrumentType classifies an instrument by its canonical symbol
// suffix. The stored instrument type field carries broker-specific legacy
// codes, so faceted type filters go by the symbol instead.
func DeriveInstrumentType(symbol string) string {
	s := strings.ToUpper(symbol)
	switch {
	case strings.HasSuffix(s, "FUT"):
		return "FUT"
	case strings.HasSuffix(s, "CE"):
		return "CE"
	case strings.HasSuffix(s, "PE"):
		return "PE"
	}
	return ""
}

// Matches reports whether the instrument satisfies every constraint of the
// filter. Constraints short-circuit in a fixed order; records lacking an
// optional field (underlying, strike) never match a constraint on it.
func (f *Filter) Matches(rec *Instrument) bool {
	if f.Exchange != "" && rec.Exchange != f.Exchange {
		return false
	}
	if f.Underlying != "" {
		if rec.Underlying == "" || !strings.EqualFold(rec.Underlying, f.Underlying) {
			return false
		}
	}
	if f.Expiry != "" && rec.Expiry != f.Expiry {
		return false
	}
	if f.InstrumentType != "" && DeriveInstrumentType(rec.Symbol) != f.InstrumentType {
		return false
	}
	if f.StrikeMin != nil || f.StrikeMax != nil {
		if rec.Strike <= 0 {
			return false
		}
		if f.StrikeMin != nil && rec.Strike < *f.StrikeMin {
			return false
		}
		if f.StrikeMax != nil && rec.Strike > *f.StrikeMax {
			return false
		}
	}
	for _, term := range f.Terms {
		if !matchesTerm(rec, term) {
			return false
		}
	}
	return true
}

// matchesTerm reports whether one uppercased term matches any searchable
// field: symbol, broker symbol, name or token as substrings, or the strike
// by exact numeric equality.
func matchesTerm(rec *Instrument, term string) bool {
	if strings.Contains(strings.ToUpper(rec.Symbol), term) ||
		strings.Contains(strings.ToUpper(rec.BrokerSymbol), term) ||
		strings.Contains(strings.ToUpper(rec.Name), term) ||
		strings.Contains(rec.Token, term) {
		return true
	}
	if v, err := strconv.ParseFloat(term, 64); err == nil {
		return rec.Strike > 0 && rec.Strike == v
	}
	return false
}
