package subledger

import (
	"testing"

	"github.com/ledgerlab/subledger/date"
	"github.com/shopspring/decimal"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func TestWithinTolerance(t *testing.T) {
	testCases := []struct {
		name                   string
		diff, expected, actual float64
		tolerance              float64
		want                   bool
	}{
		{name: "exact match at zero tolerance", diff: 0, expected: 100, actual: 100, tolerance: 0, want: true},
		{name: "any drift fails at zero tolerance", diff: 0.0000001, expected: 100, actual: 100.0000001, tolerance: 0, want: false},
		{name: "absolute pass", diff: 0.000001, expected: 1, actual: 1.000001, tolerance: 0.000001, want: true},
		{name: "relative pass on large values", diff: 0.5, expected: 1000000, actual: 1000000.5, tolerance: 0.000001, want: true},
		{name: "relative fail", diff: 5, expected: 100, actual: 95, tolerance: 0.000001, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := withinTolerance(dec(tc.diff), dec(tc.expected), dec(tc.actual), dec(tc.tolerance))
			if got != tc.want {
				t.Errorf("withinTolerance(%v, %v, %v, %v) = %v, want %v",
					tc.diff, tc.expected, tc.actual, tc.tolerance, got, tc.want)
			}
		})
	}
}

func TestCheckPositions(t *testing.T) {
	checker := NewChecker(DefaultChart(), DebitPositive, DefaultTolerances())
	key := PositionKey{Customer: "C1", ISIN: "ISIN1", Currency: "USD"}
	open := map[PositionKey][]OpenTrade{
		key: {openTrade("T1", "2025-01-10", 100, 95, 10)},
	}
	positions := []Position{
		{Customer: "C1", ISIN: "ISIN1", Currency: "USD", AsOf: date.MustParse("2025-01-31"), Quantity: Q(100)},
	}

	rows := checker.CheckPositions(open, positions)
	if len(rows) != 1 {
		t.Fatalf("CheckPositions() returned %d rows, want 1", len(rows))
	}
	row := rows[0]
	if row.Pass {
		t.Errorf("control row passed with FIFO 95 vs official 100")
	}
	if !Q(row.Diff).Equal(Q(-5)) {
		t.Errorf("Diff = %s, want -5", row.Diff)
	}
	if row.Status() != "BREAK" {
		t.Errorf("Status() = %s, want BREAK", row.Status())
	}
}

func TestCheckPositions_OuterJoin(t *testing.T) {
	checker := NewChecker(DefaultChart(), DebitPositive, DefaultTolerances())
	fifoOnly := PositionKey{Customer: "C1", ISIN: "ISIN1", Currency: "USD"}
	open := map[PositionKey][]OpenTrade{
		fifoOnly: {openTrade("T1", "2025-01-10", 40, 40, 10)},
	}
	positions := []Position{
		{Customer: "C2", ISIN: "ISIN2", Currency: "USD", AsOf: date.MustParse("2025-01-31"), Quantity: Q(25)},
	}

	rows := checker.CheckPositions(open, positions)
	if len(rows) != 2 {
		t.Fatalf("CheckPositions() returned %d rows, want one per side of the join", len(rows))
	}
	for _, row := range rows {
		if row.Pass {
			t.Errorf("unmatched partition %s passed", row.Key)
		}
	}
}

func TestCheckAllocations(t *testing.T) {
	checker := NewChecker(DefaultChart(), DebitPositive, DefaultTolerances())
	key := PositionKey{Customer: "C1", ISIN: "ISIN1", Currency: "USD"}
	on := date.MustParse("2025-01-31")
	marks := BuildMarkSeries([]Mark{
		{Customer: "C1", ISIN: "ISIN1", Currency: "USD", AsOf: on, Value: usd(50)},
	})
	allocations := []Allocation{
		{TradeID: "T1", Key: key, AsOf: on, Value: usd(20)},
		{TradeID: "T2", Key: key, AsOf: on, Value: usd(30)},
	}

	rows := checker.CheckAllocations(allocations, marks)
	if len(rows) != 1 {
		t.Fatalf("CheckAllocations() returned %d rows, want 1", len(rows))
	}
	if !rows[0].Pass {
		t.Errorf("allocation control broke on an exact sum: %+v", rows[0])
	}

	// Drop one allocation: the mark is no longer covered.
	rows = checker.CheckAllocations(allocations[:1], marks)
	if rows[0].Pass {
		t.Errorf("allocation control passed with 20 allocated against a 50 mark")
	}
	if !Q(rows[0].Diff).Equal(Q(-30)) {
		t.Errorf("Diff = %s, want -30", rows[0].Diff)
	}
}

func TestCheckRevaluation(t *testing.T) {
	g := mustGenerator(t)
	checker := NewChecker(DefaultChart(), DebitPositive, DefaultTolerances())
	marks := BuildMarkSeries([]Mark{
		{Customer: "C1", ISIN: "ISIN1", Currency: "USD", AsOf: date.MustParse("2025-01-10"), Value: usd(100)},
		{Customer: "C1", ISIN: "ISIN1", Currency: "USD", AsOf: date.MustParse("2025-01-11"), Value: usd(80)},
	})
	sets, err := g.RevaluationPostings(marks)
	if err != nil {
		t.Fatalf("RevaluationPostings() returned error: %v", err)
	}

	rows := checker.CheckRevaluation(marks, sets)
	// Two position-level rows plus two portfolio rows.
	if len(rows) != 4 {
		t.Fatalf("CheckRevaluation() returned %d rows, want 4", len(rows))
	}
	for _, row := range rows {
		if !row.Pass {
			t.Errorf("revaluation control broke on generator output: %+v", row)
		}
	}

	// Tampering with the posting sets must surface as a break.
	sets[1].Postings = sets[1].Postings[:2]
	rows = checker.CheckRevaluation(marks, sets)
	if len(Breaches(rows)) == 0 {
		t.Errorf("revaluation control passed after dropping half a posting set")
	}
}

func TestCheckRevaluation_ConventionIndependent(t *testing.T) {
	g := mustGenerator(t)
	marks := BuildMarkSeries([]Mark{
		{Customer: "C1", ISIN: "ISIN1", Currency: "USD", AsOf: date.MustParse("2025-01-10"), Value: usd(80)},
	})
	sets, err := g.RevaluationPostings(marks)
	if err != nil {
		t.Fatalf("RevaluationPostings() returned error: %v", err)
	}

	// The control reads the revaluation account DR-positive whatever the
	// ledger fold convention is; both conventions must agree on a pass.
	for _, convention := range []SignConvention{DebitPositive, CreditPositive} {
		checker := NewChecker(DefaultChart(), convention, DefaultTolerances())
		for _, row := range checker.CheckRevaluation(marks, sets) {
			if !row.Pass {
				t.Errorf("%s: revaluation control broke on generator output: %+v", convention, row)
			}
			if !Q(row.Actual).Equal(Q(80)) {
				t.Errorf("%s: GL movement = %s, want 80", convention, row.Actual)
			}
		}
	}
}

func TestCheckLedger(t *testing.T) {
	checker := NewChecker(DefaultChart(), DebitPositive, DefaultTolerances())
	sets := testSets(t)
	ledger := AggregateLedger(sets, DebitPositive)

	rows := checker.CheckLedger(ledger, sets)
	if len(rows) != len(ledger) {
		t.Fatalf("CheckLedger() returned %d rows, want one per ledger entry (%d)", len(rows), len(ledger))
	}
	for _, row := range rows {
		if !row.Pass {
			t.Errorf("ledger control broke on aggregator output: %+v", row)
		}
	}

	// A corrupted balance must break at the exact-comparison tolerance.
	ledger[0].Balance = ledger[0].Balance.Add(decimal.New(1, -9))
	rows = checker.CheckLedger(ledger, sets)
	if len(Breaches(rows)) != 1 {
		t.Errorf("ledger control found %d breaches after corrupting one balance, want 1", len(Breaches(rows)))
	}
}

func TestBreaches(t *testing.T) {
	rows := []ControlRow{
		{Control: ControlFIFOPosition, Pass: true},
		{Control: ControlAllocation, Pass: false},
		{Control: ControlLedger, Pass: true},
	}
	got := Breaches(rows)
	if len(got) != 1 || got[0].Control != ControlAllocation {
		t.Errorf("Breaches() = %v, want the single failing row", got)
	}
}
