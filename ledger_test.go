package subledger

import (
	"fmt"
	"slices"
	"strings"
	"testing"

	"github.com/ledgerlab/subledger/date"
)

func testSets(t *testing.T) []PostingSet {
	t.Helper()
	g := mustGenerator(t)
	trades := []Trade{
		NewBuy("T1", "C1", "ISIN1", date.MustParse("2025-01-10"), Q(100), usd(10)),
		NewSell("T2", "C1", "ISIN1", date.MustParse("2025-01-12"), Q(60), usd(12)),
	}
	sets, err := g.TradePostings(trades)
	if err != nil {
		t.Fatalf("TradePostings() returned error: %v", err)
	}
	return sets
}

func TestAggregateLedger(t *testing.T) {
	chart := DefaultChart()
	ledger := AggregateLedger(testSets(t), DebitPositive)

	// One row per (date, account, currency) touched: two accounts on the buy
	// date, three on the sale date.
	if len(ledger) != 5 {
		t.Fatalf("AggregateLedger() returned %d rows, want 5: %v", len(ledger), ledger)
	}

	// Cash: -1000 on the 10th, +720 on the 12th, cumulating to -280.
	if got := ledger.Balance(chart.Cash, "USD", date.MustParse("2025-01-10")); !Q(got).Equal(Q(-1000)) {
		t.Errorf("cash balance on the 10th = %s, want -1000", got)
	}
	if got := ledger.Balance(chart.Cash, "USD", date.MustParse("2025-01-12")); !Q(got).Equal(Q(-280)) {
		t.Errorf("cash balance on the 12th = %s, want -280", got)
	}
	// Securities: 1000 then down to 400 at average cost.
	if got := ledger.Balance(chart.Securities, "USD", date.MustParse("2025-01-12")); !Q(got).Equal(Q(400)) {
		t.Errorf("securities balance on the 12th = %s, want 400", got)
	}
	// Realised P&L: credit 120, negative under debit-positive.
	if got := ledger.Balance(chart.RealisedPnL, "USD", date.MustParse("2025-01-12")); !Q(got).Equal(Q(-120)) {
		t.Errorf("realised pnl balance on the 12th = %s, want -120", got)
	}

	// Balance before any posting is zero.
	if got := ledger.Balance(chart.Cash, "USD", date.MustParse("2025-01-09")); !Q(got).IsZero() {
		t.Errorf("cash balance before first posting = %s, want 0", got)
	}
}

func TestAggregateLedger_RowOrder(t *testing.T) {
	ledger := AggregateLedger(testSets(t), DebitPositive)

	sorted := slices.IsSortedFunc(ledger, func(a, b LedgerEntry) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := int(a.Account - b.Account); c != 0 {
			return c
		}
		return strings.Compare(a.Currency, b.Currency)
	})
	if !sorted {
		t.Errorf("ledger rows not ordered by (date, account, currency): %v", ledger)
	}
}

func TestAggregateLedger_ReplayIsByteIdentical(t *testing.T) {
	sets := testSets(t)

	first := AggregateLedger(sets, DebitPositive)
	second := AggregateLedger(sets, DebitPositive)

	a := fmt.Sprintf("%v", first)
	b := fmt.Sprintf("%v", second)
	if a != b {
		t.Errorf("replaying the same posting sets produced different ledgers:\n%s\n%s", a, b)
	}
}

func TestAggregateLedger_CreditPositive(t *testing.T) {
	chart := DefaultChart()

	debit := AggregateLedger(testSets(t), DebitPositive)
	credit := AggregateLedger(testSets(t), CreditPositive)

	on := date.MustParse("2025-01-12")
	for _, account := range []AccountCode{chart.Cash, chart.Securities, chart.RealisedPnL} {
		d := debit.Balance(account, "USD", on)
		c := credit.Balance(account, "USD", on)
		if !Q(d).Equal(Q(c.Neg())) {
			t.Errorf("account %s: debit-positive %s, credit-positive %s, want exact negation", account, d, c)
		}
	}
}

func TestParseSignConvention(t *testing.T) {
	testCases := []struct {
		in      string
		want    SignConvention
		wantErr bool
	}{
		{in: "", want: DebitPositive},
		{in: "debit-positive", want: DebitPositive},
		{in: "credit-positive", want: CreditPositive},
		{in: " Credit-Positive ", want: CreditPositive},
		{in: "sideways", wantErr: true},
	}

	for _, tc := range testCases {
		got, err := ParseSignConvention(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseSignConvention(%q) = %s, want error", tc.in, got)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseSignConvention(%q) = %s, %v, want %s", tc.in, got, err, tc.want)
		}
	}
}
