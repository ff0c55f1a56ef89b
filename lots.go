package subledger

// OpenTrade is a BUY trade together with the quantity still open after FIFO
// consumption by subsequent sells. It is derived per run and never patched:
// matching always recomputes the whole partition from scratch.
type OpenTrade struct {
	Trade
	Remaining Quantity
}

// OpenNotional returns remaining quantity × the given reference price.
func (o OpenTrade) OpenNotional(price Money) Money { return price.Mul(o.Remaining) }

// lot represents a single purchase still (partially) open in the FIFO queue.
type lot struct {
	tradeID  string
	quantity Quantity
}

type lots []lot

// openQuantity is the total quantity currently held in the queue.
func (l lots) openQuantity() Quantity {
	total := Q(0)
	for _, currentLot := range l {
		total = total.Add(currentLot.quantity)
	}
	return total
}

// sell drains quantityToSell from the front of the queue, removing or
// partially reducing lots in order. consumed records how much was taken from
// each trade id.
func (l lots) sell(quantityToSell Quantity, consumed map[string]Quantity) (lots, Quantity) {
	remainingLots := l
	for quantityToSell.IsPositive() && len(remainingLots) > 0 {
		front := remainingLots[0]
		used := front.quantity.Min(quantityToSell)
		consumed[front.tradeID] = consumed[front.tradeID].Add(used)
		quantityToSell = quantityToSell.Sub(used)

		if front.quantity.Equal(used) {
			remainingLots = remainingLots[1:]
		} else {
			// Replace the front lot rather than mutate it in place.
			reduced := lot{tradeID: front.tradeID, quantity: front.quantity.Sub(used)}
			remainingLots = append(lots{reduced}, remainingLots[1:]...)
		}
	}
	return remainingLots, quantityToSell
}

// MatchLots runs FIFO lot matching over the trades of a single partition.
//
// Trades are processed in chronological order (stable tie-break on trade id):
// a BUY pushes a new lot, a SELL consumes from the earliest open lots. The
// result holds the final remaining quantity of every BUY trade: zero for
// fully consumed lots, the original quantity for untouched ones.
//
// A SELL larger than the open quantity returns an
// *InsufficientInventoryError and no result for the partition: short selling
// is not modeled, and clamping silently would fabricate inventory.
func MatchLots(trades []Trade) ([]OpenTrade, error) {
	ordered := make([]Trade, len(trades))
	copy(ordered, trades)
	sortTrades(ordered)

	var queue lots
	consumed := make(map[string]Quantity)

	for _, t := range ordered {
		switch t.Side {
		case Buy:
			queue = append(queue, lot{tradeID: t.ID, quantity: t.Quantity})
		case Sell:
			var short Quantity
			queue, short = queue.sell(t.Quantity, consumed)
			if short.IsPositive() {
				return nil, &InsufficientInventoryError{Key: t.Key(), TradeID: t.ID, Short: short}
			}
		}
	}

	var open []OpenTrade
	for _, t := range ordered {
		if t.Side != Buy {
			continue
		}
		open = append(open, OpenTrade{Trade: t, Remaining: t.Quantity.Sub(consumed[t.ID])})
	}
	return open, nil
}

// OpenOnly filters the matcher output down to trades with a positive
// remaining quantity, the deal-level open-trades view.
func OpenOnly(open []OpenTrade) []OpenTrade {
	var out []OpenTrade
	for _, o := range open {
		if o.Remaining.IsPositive() {
			out = append(out, o)
		}
	}
	return out
}

// OpenQuantity sums the remaining quantity over the matcher output.
func OpenQuantity(open []OpenTrade) Quantity {
	total := Q(0)
	for _, o := range open {
		total = total.Add(o.Remaining)
	}
	return total
}
