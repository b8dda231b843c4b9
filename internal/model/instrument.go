package model

// Instrument is one row of the normalized master contract: a single
// tradeable instrument as known to the active broker.
//
// Symbol is the platform-canonical identifier; BrokerSymbol and Token are
// the broker-native identifiers. Token is opaque and unique only within
// (Token, Exchange). Expiry uses the fixed "DD-MON-YY" format and is empty
// for non-derivatives. Strike is 0 when the instrument has no strike
// (strikes are always positive in this domain).
type Instrument struct {
	Symbol         string  `json:"symbol"`
	BrokerSymbol   string  `json:"brsymbol"`
	Name           string  `json:"name"`
	Exchange       string  `json:"exchange"`
	BrokerExchange string  `json:"brexchange"`
	Token          string  `json:"token"`
	Expiry         string  `json:"expiry"`
	Strike         float64 `json:"strike"`
	LotSize        int     `json:"lotsize"`
	InstrumentType string  `json:"instrumenttype"` // EQ, INDEX, FUT, CE, PE or broker legacy codes
	TickSize       float64 `json:"ticksize"`

	// Underlying is derived from Symbol at load time and is set only when
	// Exchange is a derivatives exchange and Symbol embeds an expiry date.
	Underlying string `json:"underlying,omitempty"`
}

// SymbolKey returns the composite lookup key "exchange:symbol".
func (i *Instrument) SymbolKey() string {
	return i.Exchange + ":" + i.Symbol
}

// TokenKey returns the composite lookup key "exchange:token".
func (i *Instrument) TokenKey() string {
	return i.Exchange + ":" + i.Token
}

// BrokerSymbolKey returns the composite lookup key "exchange:brsymbol".
func (i *Instrument) BrokerSymbolKey() string {
	return i.Exchange + ":" + i.BrokerSymbol
}
