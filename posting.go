package subledger

import (
	"fmt"
	"strconv"

	"github.com/ledgerlab/subledger/date"
)

// AccountCode identifies a general-ledger account.
type AccountCode int

func (c AccountCode) String() string { return strconv.Itoa(int(c)) }

// AccountType classifies an account for reporting.
type AccountType int

const (
	Asset AccountType = iota
	Liability
	IncomeExpense
)

func (t AccountType) String() string {
	switch t {
	case Asset:
		return "asset"
	case Liability:
		return "liability"
	case IncomeExpense:
		return "income/expense"
	default:
		return "unknown"
	}
}

// Account is one entry of the chart of accounts.
type Account struct {
	Code AccountCode
	Type AccountType
	Name string
}

// Chart is the fixed account-code mapping the posting generator writes to.
// It is supplied explicitly at construction, never read from package state,
// so runs with different charts of accounts can coexist.
type Chart struct {
	Cash          AccountCode `yaml:"cash" json:"cash"`
	Securities    AccountCode `yaml:"securities" json:"securities"`
	RealisedPnL   AccountCode `yaml:"realised_pnl" json:"realised_pnl"`
	UnrealisedPnL AccountCode `yaml:"unrealised_pnl" json:"unrealised_pnl"`
	RevalReserve  AccountCode `yaml:"revaluation_reserve" json:"revaluation_reserve"`
}

// DefaultChart returns the standard chart of accounts.
func DefaultChart() Chart {
	return Chart{
		Cash:          100000,
		Securities:    200100,
		RealisedPnL:   300100,
		UnrealisedPnL: 400100,
		RevalReserve:  400200,
	}
}

// Accounts lists the chart as typed accounts.
func (c Chart) Accounts() []Account {
	return []Account{
		{Code: c.Cash, Type: Asset, Name: "Cash"},
		{Code: c.Securities, Type: Asset, Name: "Securities at cost"},
		{Code: c.RealisedPnL, Type: IncomeExpense, Name: "Realised P&L"},
		{Code: c.UnrealisedPnL, Type: IncomeExpense, Name: "Unrealised P&L"},
		{Code: c.RevalReserve, Type: Liability, Name: "Revaluation reserve"},
	}
}

// Validate checks that every account purpose is mapped and that no two
// purposes share a code. A failure is a *ConfigurationError: the chart is
// known in advance and a hole in it is a setup defect, not a data defect.
func (c Chart) Validate() error {
	seen := make(map[AccountCode]string)
	for _, account := range c.Accounts() {
		if account.Code == 0 {
			return &ConfigurationError{Reason: fmt.Sprintf("account %q has no code", account.Name)}
		}
		if other, dup := seen[account.Code]; dup {
			return &ConfigurationError{Reason: fmt.Sprintf("account code %s mapped to both %q and %q",
				account.Code, other, account.Name)}
		}
		seen[account.Code] = account.Name
	}
	return nil
}

// DrCr is the side of a posting.
type DrCr int

const (
	DR DrCr = iota
	CR
)

func (d DrCr) String() string {
	if d == DR {
		return "DR"
	}
	return "CR"
}

// PostingKind labels the economic event a posting belongs to.
type PostingKind string

const (
	KindPurchase    PostingKind = "PURCHASE"
	KindSale        PostingKind = "SALE"
	KindSalePnL     PostingKind = "SALE_PNL"
	KindMtm         PostingKind = "MTM"
	KindMtmReversal PostingKind = "MTM_REVERSAL"
)

// Posting is one side of a double-entry record. Amount is always positive;
// the direction is carried by DrCr.
type Posting struct {
	SetID    string
	Date     date.Date
	Account  AccountCode
	Currency string
	DrCr     DrCr
	Amount   Money
	Kind     PostingKind
	TradeID  string // empty for revaluation postings
	Customer string
	ISIN     string
}

// PostingSet is a balanced group of postings produced by one economic event.
type PostingSet struct {
	ID       string
	Postings []Posting
}

// Balanced reports whether Σ DR equals Σ CR exactly. Double-entry balance is
// a zero-tolerance invariant; the control tolerances never apply here.
func (s PostingSet) Balanced() bool {
	dr := M(0, "")
	cr := M(0, "")
	for _, p := range s.Postings {
		if p.DrCr == DR {
			dr = dr.Add(p.Amount)
		} else {
			cr = cr.Add(p.Amount)
		}
	}
	return dr.Amount().Equal(cr.Amount())
}

// PostingGenerator emits the two double-entry posting families: trade
// settlement postings under a running average-cost basis, and MtM
// revaluation postings from day-on-day differencing of the mark series.
//
// The GL cost basis is deliberately average-cost while the exposure view is
// FIFO: two different conventions feeding the same ledger, reconciled by the
// controls rather than unified.
type PostingGenerator struct {
	chart Chart
}

// NewPostingGenerator validates the chart and returns a generator.
func NewPostingGenerator(chart Chart) (*PostingGenerator, error) {
	if err := chart.Validate(); err != nil {
		return nil, err
	}
	return &PostingGenerator{chart: chart}, nil
}

// costBasis tracks the running average-cost position of one partition.
type costBasis struct {
	quantity Quantity
	cost     Money
}

// TradePostings generates one balanced posting set per trade.
//
// BUY: Dr Securities / Cr Cash at notional. SELL: Dr Cash at proceeds,
// Cr Securities at the average cost of the sold units, and Dr or Cr Realised
// P&L for the difference. Trades are processed per partition in the same
// chronological order the lot matcher uses; the running average cost depends
// on that order.
func (g *PostingGenerator) TradePostings(trades []Trade) ([]PostingSet, error) {
	groups := GroupTrades(trades)

	var sets []PostingSet
	for _, key := range sortedKeys(groups) {
		basis := costBasis{quantity: Q(0), cost: M(0, key.Currency)}
		for _, t := range groups[key] {
			var set PostingSet
			switch t.Side {
			case Buy:
				set = g.buySet(t)
				basis.quantity = basis.quantity.Add(t.Quantity)
				basis.cost = basis.cost.Add(t.Notional())
			case Sell:
				var costOfSold Money
				set, costOfSold = g.sellSet(t, basis)
				basis.quantity = basis.quantity.Sub(t.Quantity)
				basis.cost = basis.cost.Sub(costOfSold)
			}
			if !set.Balanced() {
				return nil, &InvariantViolationError{
					Context: "trade postings for " + t.ID,
					Detail:  "posting set does not balance",
				}
			}
			sets = append(sets, set)
		}
	}
	return sets, nil
}

func (g *PostingGenerator) buySet(t Trade) PostingSet {
	notional := t.Notional()
	set := PostingSet{ID: newSetID()}
	set.Postings = []Posting{
		g.tradePosting(set.ID, t, g.chart.Securities, DR, notional, KindPurchase),
		g.tradePosting(set.ID, t, g.chart.Cash, CR, notional, KindPurchase),
	}
	return set
}

func (g *PostingGenerator) sellSet(t Trade, basis costBasis) (PostingSet, Money) {
	proceeds := t.Notional()

	// Average cost of the sold units. With no prior inventory the sale price
	// is used as unit cost, which books zero realised P&L; the lot matcher
	// independently reports the inventory shortfall.
	var avgUnitCost Money
	if basis.quantity.IsPositive() {
		avgUnitCost = basis.cost.Div(basis.quantity)
	} else {
		avgUnitCost = t.Price
	}
	costOfSold := avgUnitCost.Mul(t.Quantity)
	pnl := proceeds.Sub(costOfSold)

	set := PostingSet{ID: newSetID()}
	set.Postings = []Posting{
		g.tradePosting(set.ID, t, g.chart.Cash, DR, proceeds, KindSale),
		g.tradePosting(set.ID, t, g.chart.Securities, CR, costOfSold, KindSale),
	}
	if !pnl.IsZero() {
		side := CR
		if pnl.IsNegative() {
			side = DR
		}
		set.Postings = append(set.Postings,
			g.tradePosting(set.ID, t, g.chart.RealisedPnL, side, pnl.Abs(), KindSalePnL))
	}
	return set, costOfSold
}

func (g *PostingGenerator) tradePosting(setID string, t Trade, account AccountCode, side DrCr, amount Money, kind PostingKind) Posting {
	return Posting{
		SetID:    setID,
		Date:     t.Date,
		Account:  account,
		Currency: t.Currency,
		DrCr:     side,
		Amount:   amount,
		Kind:     kind,
		TradeID:  t.ID,
		Customer: t.Customer,
		ISIN:     t.ISIN,
	}
}

// RevaluationPostings generates one balanced posting set per partition per
// mark date. The first date books the initial MtM level; every later date
// first reverses the prior level and then books the new one, so the net
// effect of a set equals the day-on-day MtM delta.
func (g *PostingGenerator) RevaluationPostings(series MarkSeries) ([]PostingSet, error) {
	var sets []PostingSet
	for _, key := range sortedKeys(series) {
		prev := M(0, key.Currency)
		for on, mark := range series[key].Values() {
			set := PostingSet{ID: newSetID()}
			if !prev.IsZero() {
				set.Postings = append(set.Postings, g.mtmPair(set.ID, key, on, prev.Neg(), KindMtmReversal)...)
			}
			if !mark.IsZero() {
				set.Postings = append(set.Postings, g.mtmPair(set.ID, key, on, mark, KindMtm)...)
			}
			prev = mark

			if len(set.Postings) == 0 {
				continue
			}
			if !set.Balanced() {
				return nil, &InvariantViolationError{
					Context: fmt.Sprintf("revaluation postings for %s on %s", key, on),
					Detail:  "posting set does not balance",
				}
			}
			sets = append(sets, set)
		}
	}
	return sets, nil
}

// mtmPair books an MtM amount as a matched revaluation pair: a positive
// amount is Dr Revaluation reserve / Cr Unrealised P&L, a negative amount
// the inverse. A zero amount books nothing.
func (g *PostingGenerator) mtmPair(setID string, key PositionKey, on date.Date, amount Money, kind PostingKind) []Posting {
	if amount.IsZero() {
		return nil
	}

	debit, credit := g.chart.RevalReserve, g.chart.UnrealisedPnL
	if amount.IsNegative() {
		debit, credit = g.chart.UnrealisedPnL, g.chart.RevalReserve
	}

	mtmPosting := func(account AccountCode, side DrCr) Posting {
		return Posting{
			SetID:    setID,
			Date:     on,
			Account:  account,
			Currency: key.Currency,
			DrCr:     side,
			Amount:   amount.Abs(),
			Kind:     kind,
			Customer: key.Customer,
			ISIN:     key.ISIN,
		}
	}
	return []Posting{mtmPosting(debit, DR), mtmPosting(credit, CR)}
}
