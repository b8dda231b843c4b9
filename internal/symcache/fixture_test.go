package symcache

import (
	"context"
	"testing"
	"time"

	"symbol-systemv1/internal/model"
	"symbol-systemv1/internal/session"
)

var fixtureFNO = model.NewExchangeSet([]string{"NFO", "BFO", "MCX", "CDS"})

// fixtureTime is a fixed "now" between two 03:00 IST reset boundaries.
var fixtureTime = time.Date(2026, time.March, 10, 10, 0, 0, 0, session.IST)

func fixtureRows() []model.Instrument {
	return []model.Instrument{
		{Symbol: "RELIANCE", BrokerSymbol: "RELIANCE-EQ", Name: "Reliance Industries", Exchange: "NSE", BrokerExchange: "NSE_CM", Token: "2885", InstrumentType: "EQ", LotSize: 1, TickSize: 0.05},
		{Symbol: "SBIN", BrokerSymbol: "SBIN-EQ", Name: "State Bank of India", Exchange: "NSE", BrokerExchange: "NSE_CM", Token: "3045", InstrumentType: "EQ", LotSize: 1, TickSize: 0.05},
		{Symbol: "INFY", BrokerSymbol: "INFY-EQ", Name: "Infosys", Exchange: "NSE", BrokerExchange: "NSE_CM", Token: "1594", InstrumentType: "EQ", LotSize: 1, TickSize: 0.05},
		{Symbol: "NIFTY28MAR24FUT", BrokerSymbol: "NIFTY24MARFUT", Name: "Nifty 50", Exchange: "NFO", BrokerExchange: "NSE_FO", Token: "35001", Expiry: "28-MAR-24", InstrumentType: "FUTIDX", LotSize: 50},
		{Symbol: "NIFTY28MAR2420800CE", BrokerSymbol: "NIFTY24MAR20800CE", Name: "Nifty 50", Exchange: "NFO", BrokerExchange: "NSE_FO", Token: "43612", Expiry: "28-MAR-24", Strike: 20800, InstrumentType: "OPTIDX", LotSize: 50},
		{Symbol: "NIFTY28MAR2420800PE", BrokerSymbol: "NIFTY24MAR20800PE", Name: "Nifty 50", Exchange: "NFO", BrokerExchange: "NSE_FO", Token: "43613", Expiry: "28-MAR-24", Strike: 20800, InstrumentType: "OPTIDX", LotSize: 50},
		{Symbol: "NIFTY28MAR2421000CE", BrokerSymbol: "NIFTY24MAR21000CE", Name: "Nifty 50", Exchange: "NFO", BrokerExchange: "NSE_FO", Token: "43620", Expiry: "28-MAR-24", Strike: 21000, InstrumentType: "OPTIDX", LotSize: 50},
		{Symbol: "NIFTY25APR2420800CE", BrokerSymbol: "NIFTY24APR20800CE", Name: "Nifty 50", Exchange: "NFO", BrokerExchange: "NSE_FO", Token: "51201", Expiry: "25-APR-24", Strike: 20800, InstrumentType: "OPTIDX", LotSize: 50},
		{Symbol: "BANKNIFTY24APR24FUT", BrokerSymbol: "BANKNIFTY24APRFUT", Name: "Nifty Bank", Exchange: "NFO", BrokerExchange: "NSE_FO", Token: "35002", Expiry: "24-APR-24", InstrumentType: "FUTIDX", LotSize: 15},
		{Symbol: "BANKNIFTY24APR2448000CE", BrokerSymbol: "BANKNIFTY24APR48000CE", Name: "Nifty Bank", Exchange: "NFO", BrokerExchange: "NSE_FO", Token: "43700", Expiry: "24-APR-24", Strike: 48000, InstrumentType: "OPTIDX", LotSize: 15},
		{Symbol: "BANKNIFTY24APR2448000PE", BrokerSymbol: "BANKNIFTY24APR48000PE", Name: "Nifty Bank", Exchange: "NFO", BrokerExchange: "NSE_FO", Token: "43701", Expiry: "24-APR-24", Strike: 48000, InstrumentType: "OPTIDX", LotSize: 15},
		{Symbol: "CRUDEOIL17FEB25FUT", BrokerSymbol: "CRUDEOIL25FEBFUT", Name: "Crude Oil", Exchange: "MCX", BrokerExchange: "MCX_FO", Token: "91001", Expiry: "17-FEB-25", InstrumentType: "FUTCOM", LotSize: 100},
	}
}

func testOptions() Options {
	return Options{
		Broker:       "testbroker",
		FNOExchanges: fixtureFNO,
		Reset:        session.Boundary{Hour: 3, Minute: 0, Loc: session.IST},
	}
}

// newLoadedCache returns a cache loaded with the fixture rows, pinned to
// fixtureTime, together with its backing store.
func newLoadedCache(t *testing.T) (*Cache, *memStore) {
	t.Helper()
	store := newMemStore(fixtureFNO, fixtureRows()...)
	c := New(store, testOptions())
	c.now = func() time.Time { return fixtureTime }
	if err := c.Reload(context.Background()); err != nil {
		t.Fatalf("fixture reload failed: %v", err)
	}
	if !c.IsValid() {
		t.Fatal("fixture cache should be valid after reload")
	}
	return c, store
}
