package subledger

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ledgerlab/subledger/date"
	"github.com/shopspring/decimal"
)

// SignConvention fixes, once per run, which side of a posting carries the
// positive sign in ledger balances.
type SignConvention int

const (
	// DebitPositive folds DR as + and CR as −, the conventional view for
	// asset-side reporting.
	DebitPositive SignConvention = iota
	// CreditPositive is the inverse convention.
	CreditPositive
)

func (c SignConvention) String() string {
	switch c {
	case DebitPositive:
		return "debit-positive"
	case CreditPositive:
		return "credit-positive"
	default:
		return "unknown"
	}
}

// ParseSignConvention parses a string into a SignConvention.
func ParseSignConvention(s string) (SignConvention, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "debit-positive":
		return DebitPositive, nil
	case "credit-positive":
		return CreditPositive, nil
	default:
		return 0, fmt.Errorf("unknown sign convention: %q", s)
	}
}

// signed returns the posting amount with the convention's sign applied.
func (c SignConvention) signed(p Posting) decimal.Decimal {
	positive := DR
	if c == CreditPositive {
		positive = CR
	}
	if p.DrCr == positive {
		return p.Amount.Amount()
	}
	return p.Amount.Amount().Neg()
}

// LedgerEntry is one row of the thin ledger: the running balance of an
// account and currency as of a posting date.
type LedgerEntry struct {
	Date     date.Date
	Account  AccountCode
	Currency string
	Change   decimal.Decimal // signed movement on this date
	Balance  decimal.Decimal // cumulative balance up to and including this date
}

// ThinLedger is the full ordered set of ledger entries, one row per distinct
// (date, account, currency) with at least one posting. Rows are ordered by
// (date, account, currency).
type ThinLedger []LedgerEntry

// Balance returns the balance of an account and currency as of a date,
// i.e. the balance of the latest entry on or before it.
func (l ThinLedger) Balance(account AccountCode, currency string, on date.Date) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range l {
		if e.Account != account || e.Currency != currency || e.Date.After(on) {
			continue
		}
		balance = e.Balance
	}
	return balance
}

// AggregateLedger folds posting sets into the thin ledger.
//
// The fold is a strict left-fold over postings in (date, account, currency)
// order: for a fixed (account, currency) the balance of each date is the
// previous balance plus that date's signed movements. The fold is fully
// deterministic: replaying the same posting sequence yields byte-identical
// entries.
func AggregateLedger(sets []PostingSet, convention SignConvention) ThinLedger {
	type dayKey struct {
		on       date.Date
		account  AccountCode
		currency string
	}
	changes := make(map[dayKey]decimal.Decimal)
	for _, set := range sets {
		for _, p := range set.Postings {
			k := dayKey{on: p.Date, account: p.Account, currency: p.Currency}
			changes[k] = changes[k].Add(convention.signed(p))
		}
	}

	keys := make([]dayKey, 0, len(changes))
	for k := range changes {
		keys = append(keys, k)
	}
	// Cumulate per (account, currency) in chronological order.
	slices.SortFunc(keys, func(a, b dayKey) int {
		if c := int(a.account - b.account); c != 0 {
			return c
		}
		if c := strings.Compare(a.currency, b.currency); c != 0 {
			return c
		}
		return a.on.Compare(b.on)
	})

	ledger := make(ThinLedger, 0, len(keys))
	balance := decimal.Zero
	var prev dayKey
	for i, k := range keys {
		if i == 0 || k.account != prev.account || k.currency != prev.currency {
			balance = decimal.Zero
		}
		balance = balance.Add(changes[k])
		ledger = append(ledger, LedgerEntry{
			Date:     k.on,
			Account:  k.account,
			Currency: k.currency,
			Change:   changes[k],
			Balance:  balance,
		})
		prev = k
	}

	// Present rows by (date, account, currency).
	slices.SortFunc(ledger, func(a, b LedgerEntry) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if c := int(a.Account - b.Account); c != 0 {
			return c
		}
		return strings.Compare(a.Currency, b.Currency)
	})
	return ledger
}
