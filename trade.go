package subledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ledgerlab/subledger/date"
)

// Side is the direction of a trade.
type Side int

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "unknown"
	}
}

// ParseSide parses a string into a Side. It is case-insensitive.
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "BUY":
		return Buy, nil
	case "SELL":
		return Sell, nil
	default:
		return 0, fmt.Errorf("unknown trade side: %q", s)
	}
}

// PositionKey identifies the partition a trade or a position belongs to.
// All matching, allocation and reconciliation happens within one key.
type PositionKey struct {
	Customer string
	ISIN     string
	Currency string
}

func (k PositionKey) String() string {
	return k.Customer + "/" + k.ISIN + "/" + k.Currency
}

// Compare orders keys lexicographically, suitable for slices.SortFunc.
func (k PositionKey) Compare(o PositionKey) int {
	if c := strings.Compare(k.Customer, o.Customer); c != 0 {
		return c
	}
	if c := strings.Compare(k.ISIN, o.ISIN); c != 0 {
		return c
	}
	return strings.Compare(k.Currency, o.Currency)
}

// Trade is a single record of the trade blotter. It is created once from
// input and never mutated; all derived views (open lots, allocations,
// postings) are computed from it.
type Trade struct {
	ID       string
	Customer string
	ISIN     string
	Currency string
	Date     date.Date
	Side     Side
	Price    Money
	Quantity Quantity
}

// NewBuy creates a BUY trade record.
func NewBuy(id, customer, isin string, on date.Date, quantity Quantity, price Money) Trade {
	return Trade{ID: id, Customer: customer, ISIN: isin, Currency: price.Currency(),
		Date: on, Side: Buy, Price: price, Quantity: quantity}
}

// NewSell creates a SELL trade record.
func NewSell(id, customer, isin string, on date.Date, quantity Quantity, price Money) Trade {
	return Trade{ID: id, Customer: customer, ISIN: isin, Currency: price.Currency(),
		Date: on, Side: Sell, Price: price, Quantity: quantity}
}

// Key returns the partition key of the trade.
func (t Trade) Key() PositionKey {
	return PositionKey{Customer: t.Customer, ISIN: t.ISIN, Currency: t.Currency}
}

// Notional returns price × quantity.
func (t Trade) Notional() Money { return t.Price.Mul(t.Quantity) }

// Validate checks the Trade's fields for structural correctness.
func (t Trade) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("trade has no id")
	}
	if t.Customer == "" || t.ISIN == "" || t.Currency == "" {
		return fmt.Errorf("trade %s has incomplete key %q", t.ID, t.Key())
	}
	if t.Date.IsZero() {
		return fmt.Errorf("trade %s has no trade date", t.ID)
	}
	if !t.Quantity.IsPositive() {
		return fmt.Errorf("trade %s quantity must be positive, got %s", t.ID, t.Quantity)
	}
	if t.Price.IsNegative() {
		return fmt.Errorf("trade %s price must not be negative, got %s", t.ID, t.Price)
	}
	return nil
}

// sortTrades orders trades chronologically with a stable tie-break on trade
// id, the canonical processing order for matching and posting generation.
func sortTrades(trades []Trade) {
	slices.SortStableFunc(trades, func(a, b Trade) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// GroupTrades partitions trades by (customer, isin, ccy) and sorts every
// partition chronologically. The input slice is not modified.
func GroupTrades(trades []Trade) map[PositionKey][]Trade {
	groups := make(map[PositionKey][]Trade)
	for _, t := range trades {
		key := t.Key()
		groups[key] = append(groups[key], t)
	}
	for _, group := range groups {
		sortTrades(group)
	}
	return groups
}

// sortedKeys returns the partition keys in deterministic order.
func sortedKeys[T any](m map[PositionKey]T) []PositionKey {
	keys := make([]PositionKey, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, PositionKey.Compare)
	return keys
}
