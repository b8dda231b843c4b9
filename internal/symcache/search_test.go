package symcache

import (
	"context"
	"testing"

	"symbol-systemv1/internal/model"
)

func symbols(recs []model.Instrument) []string {
	out := make([]string, len(recs))
	for i := range recs {
		out[i] = recs[i].Symbol
	}
	return out
}

func TestSearch_TermAndFieldSemantics(t *testing.T) {
	c, _ := newLoadedCache(t)
	ctx := context.Background()

	// Multi-term AND across fields, case-insensitive.
	recs := c.Search(ctx, "nifty 20800 ce", "NFO", 0)
	for _, r := range recs {
		if r.Strike != 20800 {
			t.Fatalf("unexpected record %s in 20800 search", r.Symbol)
		}
	}
	if len(recs) != 2 { // 28-MAR and 25-APR 20800 CE
		t.Fatalf("expected 2 records, got %v", symbols(recs))
	}

	// Name substring matches too.
	recs = c.Search(ctx, "state bank", "NSE", 0)
	if len(recs) != 1 || recs[0].Symbol != "SBIN" {
		t.Fatalf("name search returned %v", symbols(recs))
	}

	// Unscoped search spans all exchanges.
	recs = c.Search(ctx, "CRUDEOIL", "", 0)
	if len(recs) != 1 || recs[0].Exchange != "MCX" {
		t.Fatalf("unscoped search returned %v", symbols(recs))
	}

	// No match is a miss, not an error.
	if recs := c.Search(ctx, "ZZZZZ", "", 0); len(recs) != 0 {
		t.Fatalf("expected empty result, got %v", symbols(recs))
	}
}

func TestSearch_LimitStopsScan(t *testing.T) {
	c, _ := newLoadedCache(t)

	recs := c.Search(context.Background(), "NIFTY", "NFO", 3)
	if len(recs) != 3 {
		t.Fatalf("expected exactly 3 records, got %d", len(recs))
	}
	// Bucket order: first three NIFTY rows in load order.
	want := []string{"NIFTY28MAR24FUT", "NIFTY28MAR2420800CE", "NIFTY28MAR2420800PE"}
	for i, w := range want {
		if recs[i].Symbol != w {
			t.Fatalf("load-order scan broken: got %v", symbols(recs))
		}
	}
}

func TestFNOSearch_TypeFilterGoesBySymbolSuffix(t *testing.T) {
	c, _ := newLoadedCache(t)
	ctx := context.Background()

	// The stored instrument type is FUTIDX/OPTIDX (broker legacy codes);
	// the facet must classify by symbol suffix regardless.
	for _, typ := range []string{"FUT", "CE", "PE"} {
		recs := c.FNOSearch(ctx, FNOQuery{Exchange: "NFO", InstrumentType: typ})
		if len(recs) == 0 {
			t.Fatalf("no %s records", typ)
		}
		for _, r := range recs {
			if model.DeriveInstrumentType(r.Symbol) != typ {
				t.Fatalf("%s returned for type filter %s", r.Symbol, typ)
			}
		}
	}
}

func TestFNOSearch_Facets(t *testing.T) {
	c, _ := newLoadedCache(t)
	ctx := context.Background()

	recs := c.FNOSearch(ctx, FNOQuery{Exchange: "NFO", Underlying: "banknifty"})
	if len(recs) != 3 {
		t.Fatalf("underlying facet returned %v", symbols(recs))
	}

	recs = c.FNOSearch(ctx, FNOQuery{Exchange: "NFO", Expiry: "28-MAR-24"})
	if len(recs) != 4 {
		t.Fatalf("expiry facet returned %v", symbols(recs))
	}

	lo, hi := 20900.0, 48000.0
	recs = c.FNOSearch(ctx, FNOQuery{Exchange: "NFO", StrikeMin: &lo, StrikeMax: &hi})
	if len(recs) != 3 { // 21000 CE + both 48000 options; futures have no strike
		t.Fatalf("strike range returned %v", symbols(recs))
	}

	// All filters combined.
	lo = 48000
	recs = c.FNOSearch(ctx, FNOQuery{
		Query: "banknifty", Exchange: "NFO", Expiry: "24-APR-24",
		InstrumentType: "CE", StrikeMin: &lo, StrikeMax: &hi, Underlying: "BANKNIFTY",
	})
	if len(recs) != 1 || recs[0].Symbol != "BANKNIFTY24APR2448000CE" {
		t.Fatalf("combined filters returned %v", symbols(recs))
	}
}

func TestFNOSearch_Ranking(t *testing.T) {
	c, _ := newLoadedCache(t)
	ctx := context.Background()

	// "NIFTY" as first term: exact-underlying NIFTY records rank above
	// BANKNIFTY (whose underlying merely contains the term) even though
	// BANKNIFTY sorts first lexicographically.
	recs := c.FNOSearch(ctx, FNOQuery{Query: "NIFTY", Exchange: "NFO"})
	if len(recs) == 0 {
		t.Fatal("no records")
	}
	if recs[0].Underlying != "NIFTY" {
		t.Fatalf("expected exact underlying match first, got %v", symbols(recs))
	}
	sawBank := false
	for _, r := range recs {
		if r.Underlying == "BANKNIFTY" {
			sawBank = true
		} else if r.Underlying == "NIFTY" && sawBank {
			t.Fatalf("NIFTY record ranked below BANKNIFTY: %v", symbols(recs))
		}
	}

	// Within one rank class, order is lexicographic by symbol.
	var lastNifty string
	for _, r := range recs {
		if r.Underlying != "NIFTY" {
			continue
		}
		if lastNifty != "" && r.Symbol < lastNifty {
			t.Fatalf("lexicographic tie-break broken: %v", symbols(recs))
		}
		lastNifty = r.Symbol
	}
}

func TestFNOSearch_LimitTruncatesAfterRanking(t *testing.T) {
	c, _ := newLoadedCache(t)

	recs := c.FNOSearch(context.Background(), FNOQuery{Query: "NIFTY", Exchange: "NFO", Limit: 2})
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	// Best-ranked first: exact NIFTY underlying, lexicographic.
	if recs[0].Underlying != "NIFTY" || recs[1].Underlying != "NIFTY" {
		t.Fatalf("truncation must keep the best-ranked records: %v", symbols(recs))
	}
}

func TestFacetAccessors(t *testing.T) {
	c, _ := newLoadedCache(t)
	ctx := context.Background()

	exp := c.Expiries(ctx, "NFO")
	want := []string{"28-MAR-24", "24-APR-24", "25-APR-24"} // date order
	if len(exp) != len(want) {
		t.Fatalf("Expiries(NFO) = %v", exp)
	}
	for i := range want {
		if exp[i] != want[i] {
			t.Fatalf("Expiries(NFO) = %v, want %v", exp, want)
		}
	}

	exp = c.ExpiriesFor(ctx, "NFO", "nifty")
	if len(exp) != 2 || exp[0] != "28-MAR-24" || exp[1] != "25-APR-24" {
		t.Fatalf("ExpiriesFor(NFO, nifty) = %v", exp)
	}

	und := c.Underlyings(ctx, "NFO")
	if len(und) != 2 || und[0] != "BANKNIFTY" || und[1] != "NIFTY" {
		t.Fatalf("Underlyings(NFO) = %v", und)
	}

	if got := c.Underlyings(ctx, "NSE"); len(got) != 0 {
		t.Fatalf("Underlyings(NSE) = %v", got)
	}
}

func TestSortedExpiries_UnparsableSortLast(t *testing.T) {
	set := map[string]struct{}{
		"25-APR-24": {},
		"BOGUS":     {},
		"28-MAR-24": {},
		"??":        {},
	}
	got := sortedExpiries(set)
	want := []string{"28-MAR-24", "25-APR-24", "??", "BOGUS"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sortedExpiries = %v, want %v", got, want)
		}
	}
}
