package subledger

import (
	"slices"
	"strings"

	"github.com/ledgerlab/subledger/date"
	"github.com/shopspring/decimal"
)

// allocationScale is the number of decimal places allocated MtM values are
// materialized at. The rounding residual of a pro-rata split is assigned to
// the largest-notional trade, so conservation holds exactly at this scale.
const allocationScale int32 = 8

// Mark is a position-level mark-to-market snapshot supplied by the front
// office: one value per partition per as-of date. The series per partition
// is append-only; a later load for the same date replaces the value.
type Mark struct {
	Customer string
	ISIN     string
	Currency string
	AsOf     date.Date
	Value    Money
}

// Key returns the partition key of the mark.
func (m Mark) Key() PositionKey {
	return PositionKey{Customer: m.Customer, ISIN: m.ISIN, Currency: m.Currency}
}

// MarkSeries is the MtM time series of every partition.
type MarkSeries map[PositionKey]*date.History[Money]

// BuildMarkSeries indexes marks by partition into chronological series.
func BuildMarkSeries(marks []Mark) MarkSeries {
	series := make(MarkSeries)
	for _, m := range marks {
		h, ok := series[m.Key()]
		if !ok {
			h = &date.History[Money]{}
			series[m.Key()] = h
		}
		h.Append(m.AsOf, m.Value)
	}
	return series
}

// Allocation is the share of a position-level mark attributed to one open
// deal on one date.
type Allocation struct {
	TradeID  string
	Key      PositionKey
	AsOf     date.Date
	Notional Money // open notional used as the allocation weight
	Value    Money // allocated MtM
}

// Allocate distributes a position-level mark across the open deals of one
// partition, pro-rata by open notional (remaining quantity × reference
// price). Deals with no remaining quantity receive nothing and are omitted.
//
// If the total open notional is zero the allocation is undefined: every open
// deal is allocated zero and the second return value is true so the caller
// can raise a control warning instead of dividing by zero.
//
// Every allocation except the largest-notional one is rounded to the
// allocation scale; the largest receives the exact remainder, which makes
// Σ allocations equal the position mark to the output's numeric resolution.
func Allocate(on date.Date, open []OpenTrade, price Money, positionMTM Money) ([]Allocation, bool) {
	deals := OpenOnly(open)
	if len(deals) == 0 {
		return nil, false
	}

	allocations := make([]Allocation, 0, len(deals))
	total := M(0, positionMTM.Currency())
	for _, deal := range deals {
		// Without a reference price the deal's own trade price stands in.
		notional := deal.OpenNotional(price)
		if price.IsZero() {
			notional = deal.OpenNotional(deal.Price)
		}
		total = total.Add(notional)
		allocations = append(allocations, Allocation{
			TradeID:  deal.ID,
			Key:      deal.Trade.Key(),
			AsOf:     on,
			Notional: notional,
			Value:    M(0, positionMTM.Currency()),
		})
	}

	if total.IsZero() {
		return allocations, true
	}

	// The largest-notional deal absorbs the rounding residual.
	// Ties break on the smallest trade id to keep the run deterministic.
	largest := 0
	for i := 1; i < len(allocations); i++ {
		a, l := allocations[i], allocations[largest]
		if a.Notional.GreaterThan(l.Notional) ||
			(a.Notional.Equal(l.Notional) && strings.Compare(a.TradeID, l.TradeID) < 0) {
			largest = i
		}
	}

	allocated := M(0, positionMTM.Currency())
	for i := range allocations {
		if i == largest {
			continue
		}
		share := positionMTM.Mul(Q(allocations[i].Notional.Amount())).Div(Q(total.Amount())).Round(allocationScale)
		allocations[i].Value = share
		allocated = allocated.Add(share)
	}
	allocations[largest].Value = positionMTM.Sub(allocated)

	return allocations, false
}

// AllocateSeries runs Allocate for every date a partition has a mark,
// producing the deal-level MtM view across time. The returned control rows
// flag zero-notional dates (advisory warnings, not errors).
func AllocateSeries(key PositionKey, open []OpenTrade, price Money, series MarkSeries) ([]Allocation, []ControlRow) {
	history, ok := series[key]
	if !ok {
		return nil, nil
	}

	var allocations []Allocation
	var warnings []ControlRow
	for on, mark := range history.Values() {
		rows, zeroNotional := Allocate(on, open, price, mark)
		allocations = append(allocations, rows...)
		if zeroNotional {
			// The full mark stays unallocated; the row passes only when the
			// mark itself is zero.
			warnings = append(warnings, newControlRow(ControlZeroNotional,
				key.String()+"@"+on.String(), mark.Amount(), decimal.Zero, decimal.Zero))
		}
	}
	return allocations, warnings
}

// sortAllocations orders allocations by (date, key, trade id) for stable
// reporting.
func sortAllocations(allocations []Allocation) {
	slices.SortFunc(allocations, func(a, b Allocation) int {
		if c := a.AsOf.Compare(b.AsOf); c != 0 {
			return c
		}
		if c := a.Key.Compare(b.Key); c != 0 {
			return c
		}
		return strings.Compare(a.TradeID, b.TradeID)
	})
}
