package model

import (
	"regexp"
	"strings"
)

// FNO symbols embed the expiry date after the underlying name:
// <underlying><DD><MON><YY>[<strike>][FUT|CE|PE], e.g. NIFTY28MAR2420800CE.
var fnoSymbolPattern = regexp.MustCompile(
	`^(?i)(.+?)(\d{2})(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)(\d{2})(\d+(?:\.\d+)?)?(FUT|CE|PE)?$`)

// ExchangeSet is the set of exchange codes that list derivatives.
type ExchangeSet map[string]struct{}

// NewExchangeSet builds an ExchangeSet from exchange codes, uppercasing
// and dropping empty entries.
func NewExchangeSet(codes []string) ExchangeSet {
	set := make(ExchangeSet, len(codes))
	for _, c := range codes {
		c = strings.ToUpper(strings.TrimSpace(c))
		if c != "" {
			set[c] = struct{}{}
		}
	}
	return set
}

// Contains reports whether the exchange code is in the set.
func (s ExchangeSet) Contains(exchange string) bool {
	_, ok := s[exchange]
	return ok
}

// ExtractUnderlying derives the underlying name from a canonical FNO symbol.
// Returns "" when the exchange does not list derivatives or the symbol does
// not embed an expiry date; it never guesses.
func ExtractUnderlying(symbol, exchange string, fno ExchangeSet) string {
	if !fno.Contains(exchange) {
		return ""
	}
	m := fnoSymbolPattern.FindStringSubmatch(symbol)
	if m == nil {
		return ""
	}
	return m[1]
}
