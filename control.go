package subledger

import (
	"github.com/shopspring/decimal"
)

// Control names, one per reconciliation control.
const (
	ControlFIFOPosition = "fifo-vs-position"
	ControlAllocation   = "allocation-vs-mtm"
	ControlRevaluation  = "fo-mtm-vs-gl-reval"
	ControlLedger       = "ledger-vs-postings"
	ControlZeroNotional = "zero-open-notional"
)

// ControlRow is one numeric comparison of a reconciliation control.
// Controls are advisory: a failing row never stops a run.
type ControlRow struct {
	Control  string
	Key      string
	Expected decimal.Decimal
	Actual   decimal.Decimal
	Diff     decimal.Decimal
	Pass     bool
}

// Status renders the pass flag the way the report prints it.
func (r ControlRow) Status() string {
	if r.Pass {
		return "OK"
	}
	return "BREAK"
}

// Breaches filters control rows down to the failing ones.
func Breaches(rows []ControlRow) []ControlRow {
	var out []ControlRow
	for _, r := range rows {
		if !r.Pass {
			out = append(out, r)
		}
	}
	return out
}

// withinTolerance reports whether diff is acceptable, in absolute terms or
// relative to the larger of the two compared values.
func withinTolerance(diff, expected, actual, tolerance decimal.Decimal) bool {
	ad := diff.Abs()
	if ad.LessThanOrEqual(tolerance) {
		return true
	}
	scale := decimal.Max(expected.Abs(), actual.Abs())
	return ad.LessThanOrEqual(tolerance.Mul(scale))
}

func newControlRow(control, key string, expected, actual, tolerance decimal.Decimal) ControlRow {
	diff := actual.Sub(expected)
	return ControlRow{
		Control:  control,
		Key:      key,
		Expected: expected,
		Actual:   actual,
		Diff:     diff,
		Pass:     withinTolerance(diff, expected, actual, tolerance),
	}
}

// Tolerances carries the per-control tolerance ε. The zero value means exact
// comparison for every control.
type Tolerances struct {
	Position    decimal.Decimal
	Allocation  decimal.Decimal
	Revaluation decimal.Decimal
	Ledger      decimal.Decimal
}

// DefaultTolerances returns the standard control tolerances: exact for the
// position and ledger controls, 1e-6 for the controls that involve pro-rata
// division.
func DefaultTolerances() Tolerances {
	eps := decimal.New(1, -6)
	return Tolerances{
		Position:    decimal.Zero,
		Allocation:  eps,
		Revaluation: eps,
		Ledger:      decimal.Zero,
	}
}

// Checker runs the cross-view reconciliation controls. All controls are
// advisory; the checker always completes and reports every failing row.
type Checker struct {
	chart      Chart
	convention SignConvention
	tolerances Tolerances
}

// NewChecker creates a checker for the given chart, sign convention and
// tolerances.
func NewChecker(chart Chart, convention SignConvention, tolerances Tolerances) *Checker {
	return &Checker{chart: chart, convention: convention, tolerances: tolerances}
}

// CheckPositions is control 1: FIFO-derived open quantity per partition vs
// the official position quantity.
func (c *Checker) CheckPositions(open map[PositionKey][]OpenTrade, positions []Position) []ControlRow {
	return ReconcilePositions(open, positions, c.tolerances.Position)
}

// CheckAllocations is control 2: Σ allocated MtM per partition and date vs
// the position-level mark for that date.
func (c *Checker) CheckAllocations(allocations []Allocation, marks MarkSeries) []ControlRow {
	sums := make(map[PositionKey]map[string]decimal.Decimal)
	for _, a := range allocations {
		byDate, ok := sums[a.Key]
		if !ok {
			byDate = make(map[string]decimal.Decimal)
			sums[a.Key] = byDate
		}
		byDate[a.AsOf.String()] = byDate[a.AsOf.String()].Add(a.Value.Amount())
	}

	var rows []ControlRow
	for _, key := range sortedKeys(marks) {
		for on, mark := range marks[key].Values() {
			allocated := decimal.Zero
			if byDate, ok := sums[key]; ok {
				allocated = byDate[on.String()]
			}
			rows = append(rows, newControlRow(ControlAllocation, key.String()+"@"+on.String(),
				mark.Amount(), allocated, c.tolerances.Allocation))
		}
	}
	return rows
}

// CheckRevaluation is control 3: the FO day-on-day MtM delta vs the signed
// movement on the revaluation account, at position level and aggregated over
// the whole portfolio per currency.
func (c *Checker) CheckRevaluation(marks MarkSeries, sets []PostingSet) []ControlRow {
	// Signed revaluation-account movement per partition and date. The
	// generator books a positive mark as Dr on the revaluation account, so
	// the movement is read DR-positive regardless of the run's ledger sign
	// convention; the FO delta on the other side is convention-free.
	glMove := make(map[PositionKey]map[string]decimal.Decimal)
	for _, set := range sets {
		for _, p := range set.Postings {
			if p.Account != c.chart.RevalReserve {
				continue
			}
			key := PositionKey{Customer: p.Customer, ISIN: p.ISIN, Currency: p.Currency}
			byDate, ok := glMove[key]
			if !ok {
				byDate = make(map[string]decimal.Decimal)
				glMove[key] = byDate
			}
			byDate[p.Date.String()] = byDate[p.Date.String()].Add(DebitPositive.signed(p))
		}
	}

	var rows []ControlRow
	portfolioFO := make(map[string]decimal.Decimal) // (ccy@date) → Σ FO delta
	portfolioGL := make(map[string]decimal.Decimal)
	var portfolioKeys []string

	for _, key := range sortedKeys(marks) {
		prev := decimal.Zero
		for on, mark := range marks[key].Values() {
			foDelta := mark.Amount().Sub(prev)
			prev = mark.Amount()

			gl := decimal.Zero
			if byDate, ok := glMove[key]; ok {
				gl = byDate[on.String()]
			}
			rows = append(rows, newControlRow(ControlRevaluation, key.String()+"@"+on.String(),
				foDelta, gl, c.tolerances.Revaluation))

			pk := key.Currency + "@" + on.String()
			if _, seen := portfolioFO[pk]; !seen {
				portfolioKeys = append(portfolioKeys, pk)
			}
			portfolioFO[pk] = portfolioFO[pk].Add(foDelta)
			portfolioGL[pk] = portfolioGL[pk].Add(gl)
		}
	}

	for _, pk := range portfolioKeys {
		rows = append(rows, newControlRow(ControlRevaluation, "portfolio/"+pk,
			portfolioFO[pk], portfolioGL[pk], c.tolerances.Revaluation))
	}
	return rows
}

// CheckLedger is control 4: every thin-ledger balance vs an independently
// recomputed cumulative sum of signed postings up to that date. A break here
// means the aggregator itself drifted.
func (c *Checker) CheckLedger(ledger ThinLedger, sets []PostingSet) []ControlRow {
	var rows []ControlRow
	for _, entry := range ledger {
		recomputed := decimal.Zero
		for _, set := range sets {
			for _, p := range set.Postings {
				if p.Account != entry.Account || p.Currency != entry.Currency {
					continue
				}
				if p.Date.After(entry.Date) {
					continue
				}
				recomputed = recomputed.Add(c.convention.signed(p))
			}
		}
		key := entry.Date.String() + "/" + entry.Account.String() + "/" + entry.Currency
		rows = append(rows, newControlRow(ControlLedger, key,
			recomputed, entry.Balance, c.tolerances.Ledger))
	}
	return rows
}
