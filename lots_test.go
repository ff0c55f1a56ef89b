package subledger

import (
	"errors"
	"testing"

	"github.com/ledgerlab/subledger/date"
)

func usd(v float64) Money { return M(v, "USD") }

func TestMatchLots(t *testing.T) {
	d := date.MustParse

	testCases := []struct {
		name          string
		trades        []Trade
		wantRemaining map[string]float64
	}{
		{
			name: "single buy untouched",
			trades: []Trade{
				NewBuy("T1", "C1", "ISIN1", d("2025-01-10"), Q(100), usd(10)),
			},
			wantRemaining: map[string]float64{"T1": 100},
		},
		{
			name: "partial sell drains front lot",
			trades: []Trade{
				NewBuy("T1", "C1", "ISIN1", d("2025-01-10"), Q(100), usd(10)),
				NewSell("T2", "C1", "ISIN1", d("2025-01-12"), Q(60), usd(12)),
			},
			wantRemaining: map[string]float64{"T1": 40},
		},
		{
			name: "sell spans several lots in order",
			trades: []Trade{
				NewBuy("T1", "C1", "ISIN1", d("2025-01-10"), Q(50), usd(10)),
				NewBuy("T2", "C1", "ISIN1", d("2025-01-11"), Q(50), usd(11)),
				NewBuy("T3", "C1", "ISIN1", d("2025-01-12"), Q(50), usd(12)),
				NewSell("T4", "C1", "ISIN1", d("2025-01-13"), Q(120), usd(13)),
			},
			wantRemaining: map[string]float64{"T1": 0, "T2": 0, "T3": 30},
		},
		{
			name: "same-date trades tie-break on trade id",
			trades: []Trade{
				NewBuy("T2", "C1", "ISIN1", d("2025-01-10"), Q(10), usd(11)),
				NewBuy("T1", "C1", "ISIN1", d("2025-01-10"), Q(10), usd(10)),
				NewSell("T3", "C1", "ISIN1", d("2025-01-11"), Q(10), usd(12)),
			},
			wantRemaining: map[string]float64{"T1": 0, "T2": 10},
		},
		{
			name: "interleaved buys and sells",
			trades: []Trade{
				NewBuy("T1", "C1", "ISIN1", d("2025-01-10"), Q(100), usd(10)),
				NewSell("T2", "C1", "ISIN1", d("2025-01-11"), Q(100), usd(11)),
				NewBuy("T3", "C1", "ISIN1", d("2025-01-12"), Q(30), usd(12)),
				NewSell("T4", "C1", "ISIN1", d("2025-01-13"), Q(10), usd(13)),
			},
			wantRemaining: map[string]float64{"T1": 0, "T3": 20},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			open, err := MatchLots(tc.trades)
			if err != nil {
				t.Fatalf("MatchLots() returned error: %v", err)
			}
			if len(open) != len(tc.wantRemaining) {
				t.Fatalf("MatchLots() returned %d open trades, want %d", len(open), len(tc.wantRemaining))
			}
			for _, o := range open {
				want, ok := tc.wantRemaining[o.ID]
				if !ok {
					t.Errorf("unexpected open trade %s", o.ID)
					continue
				}
				if !o.Remaining.Equal(Q(want)) {
					t.Errorf("remaining(%s) = %s, want %v", o.ID, o.Remaining, want)
				}
			}
		})
	}
}

func TestMatchLots_InsufficientInventory(t *testing.T) {
	d := date.MustParse
	trades := []Trade{
		NewBuy("T1", "C1", "ISIN1", d("2025-01-10"), Q(50), usd(10)),
		NewSell("T2", "C1", "ISIN1", d("2025-01-11"), Q(80), usd(12)),
	}

	open, err := MatchLots(trades)
	if open != nil {
		t.Errorf("MatchLots() should return no result on inventory shortfall, got %v", open)
	}

	var shortfall *InsufficientInventoryError
	if !errors.As(err, &shortfall) {
		t.Fatalf("MatchLots() error = %v, want *InsufficientInventoryError", err)
	}
	if shortfall.TradeID != "T2" {
		t.Errorf("shortfall.TradeID = %s, want T2", shortfall.TradeID)
	}
	if !shortfall.Short.Equal(Q(30)) {
		t.Errorf("shortfall.Short = %s, want 30", shortfall.Short)
	}
}

// FIFO conservation: Σ remaining == Σ buys − Σ sells when matching succeeds.
func TestMatchLots_Conservation(t *testing.T) {
	d := date.MustParse
	trades := []Trade{
		NewBuy("T1", "C1", "ISIN1", d("2025-01-05"), Q(37.5), usd(10)),
		NewBuy("T2", "C1", "ISIN1", d("2025-01-06"), Q(12.5), usd(11)),
		NewSell("T3", "C1", "ISIN1", d("2025-01-07"), Q(20), usd(12)),
		NewBuy("T4", "C1", "ISIN1", d("2025-01-08"), Q(100), usd(9)),
		NewSell("T5", "C1", "ISIN1", d("2025-01-09"), Q(75), usd(13)),
	}

	open, err := MatchLots(trades)
	if err != nil {
		t.Fatalf("MatchLots() returned error: %v", err)
	}

	bought, sold := Q(0), Q(0)
	for _, tr := range trades {
		if tr.Side == Buy {
			bought = bought.Add(tr.Quantity)
		} else {
			sold = sold.Add(tr.Quantity)
		}
	}
	if want := bought.Sub(sold); !OpenQuantity(open).Equal(want) {
		t.Errorf("Σ remaining = %s, want %s", OpenQuantity(open), want)
	}
}

// The matcher must not depend on input order beyond the chronological sort,
// and must not mutate its input.
func TestMatchLots_Deterministic(t *testing.T) {
	d := date.MustParse
	trades := []Trade{
		NewSell("T3", "C1", "ISIN1", d("2025-01-07"), Q(20), usd(12)),
		NewBuy("T2", "C1", "ISIN1", d("2025-01-06"), Q(30), usd(11)),
		NewBuy("T1", "C1", "ISIN1", d("2025-01-05"), Q(10), usd(10)),
	}
	before := trades[0]

	open, err := MatchLots(trades)
	if err != nil {
		t.Fatalf("MatchLots() returned error: %v", err)
	}
	if trades[0] != before {
		t.Errorf("MatchLots() mutated its input")
	}

	// T1 (earliest buy) is fully consumed, then 10 from T2.
	want := map[string]float64{"T1": 0, "T2": 20}
	for _, o := range open {
		if !o.Remaining.Equal(Q(want[o.ID])) {
			t.Errorf("remaining(%s) = %s, want %v", o.ID, o.Remaining, want[o.ID])
		}
	}
}

func TestOpenOnly(t *testing.T) {
	d := date.MustParse
	trades := []Trade{
		NewBuy("T1", "C1", "ISIN1", d("2025-01-10"), Q(100), usd(10)),
		NewBuy("T2", "C1", "ISIN1", d("2025-01-11"), Q(50), usd(11)),
		NewSell("T3", "C1", "ISIN1", d("2025-01-12"), Q(100), usd(12)),
	}
	open, err := MatchLots(trades)
	if err != nil {
		t.Fatalf("MatchLots() returned error: %v", err)
	}

	filtered := OpenOnly(open)
	if len(filtered) != 1 || filtered[0].ID != "T2" {
		t.Fatalf("OpenOnly() = %v, want only T2", filtered)
	}
	if !filtered[0].Remaining.Equal(Q(50)) {
		t.Errorf("remaining(T2) = %s, want 50", filtered[0].Remaining)
	}
}
