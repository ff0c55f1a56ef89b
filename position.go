package subledger

import (
	"github.com/ledgerlab/subledger/date"
	"github.com/shopspring/decimal"
)

// Position is the externally supplied "official" position for a partition at
// an as-of date. It is a read-only input: the engine never derives or
// adjusts it, only compares against it.
type Position struct {
	Customer string
	ISIN     string
	Currency string
	AsOf     date.Date
	Quantity Quantity
	Price    Money
}

// Key returns the partition key of the position.
func (p Position) Key() PositionKey {
	return PositionKey{Customer: p.Customer, ISIN: p.ISIN, Currency: p.Currency}
}

// ReconcilePositions compares the FIFO-derived open quantity of every
// partition against the official position quantity for the same key.
//
// Keys present on only one side compare against zero, so an official
// position with no trades (or trades with no official position) still
// surfaces as a break. Breaks are advisory: one control row per key, flagged
// when |diff| exceeds the tolerance.
func ReconcilePositions(open map[PositionKey][]OpenTrade, positions []Position, tolerance decimal.Decimal) []ControlRow {
	official := make(map[PositionKey]Quantity, len(positions))
	for _, p := range positions {
		official[p.Key()] = official[p.Key()].Add(p.Quantity)
	}

	// Outer join of both key sets.
	keys := make(map[PositionKey]struct{}, len(open)+len(official))
	for k := range open {
		keys[k] = struct{}{}
	}
	for k := range official {
		keys[k] = struct{}{}
	}

	var rows []ControlRow
	for _, key := range sortedKeys(keys) {
		fifoQty := OpenQuantity(open[key])
		rows = append(rows, newControlRow(ControlFIFOPosition, key.String(),
			official[key].Dec(), fifoQty.Dec(), tolerance))
	}
	return rows
}
