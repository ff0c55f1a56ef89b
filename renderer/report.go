// Package renderer produces the markdown subledger report: the full chain
// from trade blotter to thin general ledger, with every reconciliation
// control inline.
package renderer

import (
	"fmt"
	"strings"

	"github.com/ledgerlab/subledger"
)

// ReportOptions selects which sections of the report are rendered.
// The zero value renders everything.
type ReportOptions struct {
	SkipPostings bool // omit the two posting sections
	SkipLedger   bool // omit the thin-ledger section
}

// Report renders the full run result to a markdown string.
func Report(result *subledger.Result, opts ReportOptions) string {
	r := &reportRenderer{Builder: &strings.Builder{}}

	r.Printf("# Trading Subledger Report\n\n")
	r.renderGroupErrors(result.GroupErrors)
	r.renderOpenTrades(result.OpenTrades())
	r.renderControls("Control: FIFO position vs positions table", result.Controls, subledger.ControlFIFOPosition)
	r.renderAllocations(result.Allocations)
	r.renderControls("Control: allocated MtM vs FO MtM", result.Controls,
		subledger.ControlAllocation, subledger.ControlZeroNotional)
	if !opts.SkipPostings {
		r.renderPostings("GL Trade Postings", result.TradeSets)
		r.renderPostings("GL MtM Postings", result.RevalSets)
	}
	r.renderControls("Control: FO MtM delta vs GL revaluation delta", result.Controls, subledger.ControlRevaluation)
	if !opts.SkipLedger {
		r.renderLedger(result.Ledger)
	}
	r.renderControls("Control: ledger balances vs postings", result.Controls, subledger.ControlLedger)
	r.renderSummary(result)

	return r.String()
}

// reportRenderer formats the report sections into a markdown string.
type reportRenderer struct {
	*strings.Builder
}

// Printf formats according to a format specifier and writes to the renderer's buffer.
func (r *reportRenderer) Printf(format string, args ...any) {
	fmt.Fprintf(r, format, args...)
}

func (r *reportRenderer) renderGroupErrors(errs []error) {
	if len(errs) == 0 {
		return
	}
	r.Printf("## Matching Failures\n\n")
	for _, err := range errs {
		r.Printf("- %v\n", err)
	}
	r.Printf("\n")
}

func (r *reportRenderer) renderOpenTrades(open []subledger.OpenTrade) {
	r.Printf("## Open Trades\n\n")
	if len(open) == 0 {
		r.Printf("No open trades.\n\n")
		return
	}
	r.Printf("| Trade | Customer | ISIN | Ccy | Date | Quantity | Remaining |\n")
	r.Printf("|:---|:---|:---|:---|:---|---:|---:|\n")
	for _, o := range open {
		r.Printf("| %s | %s | %s | %s | %s | %s | %s |\n",
			o.ID, o.Customer, o.ISIN, o.Currency, o.Date, o.Quantity, o.Remaining)
	}
	r.Printf("\n")
}

func (r *reportRenderer) renderAllocations(allocations []subledger.Allocation) {
	r.Printf("## Allocated MtM\n\n")
	if len(allocations) == 0 {
		r.Printf("No allocations.\n\n")
		return
	}
	r.Printf("| Date | Position | Trade | Open Notional | Allocated MtM |\n")
	r.Printf("|:---|:---|:---|---:|---:|\n")
	for _, a := range allocations {
		r.Printf("| %s | %s | %s | %s | %s |\n",
			a.AsOf, a.Key, a.TradeID, a.Notional, a.Value)
	}
	r.Printf("\n")
}

func (r *reportRenderer) renderPostings(title string, sets []subledger.PostingSet) {
	r.Printf("## %s\n\n", title)
	if len(sets) == 0 {
		r.Printf("No postings.\n\n")
		return
	}
	r.Printf("| Set | Date | Account | Ccy | DR/CR | Amount | Kind | Trade |\n")
	r.Printf("|:---|:---|:---|:---|:---|---:|:---|:---|\n")
	for _, set := range sets {
		for _, p := range set.Postings {
			trade := p.TradeID
			if trade == "" {
				trade = "-"
			}
			r.Printf("| %s | %s | %s | %s | %s | %s | %s | %s |\n",
				p.SetID, p.Date, p.Account, p.Currency, p.DrCr, p.Amount, p.Kind, trade)
		}
	}
	r.Printf("\n")
}

func (r *reportRenderer) renderLedger(ledger subledger.ThinLedger) {
	r.Printf("## Thin General Ledger\n\n")
	if len(ledger) == 0 {
		r.Printf("No ledger entries.\n\n")
		return
	}
	r.Printf("| Date | Account | Ccy | Change | Balance |\n")
	r.Printf("|:---|:---|:---|---:|---:|\n")
	for _, e := range ledger {
		r.Printf("| %s | %s | %s | %s | %s |\n", e.Date, e.Account, e.Currency, e.Change, e.Balance)
	}
	r.Printf("\n")
}

func (r *reportRenderer) renderControls(title string, rows []subledger.ControlRow, controls ...string) {
	selected := make([]subledger.ControlRow, 0, len(rows))
	for _, row := range rows {
		for _, control := range controls {
			if row.Control == control {
				selected = append(selected, row)
			}
		}
	}

	r.Printf("## %s\n\n", title)
	if len(selected) == 0 {
		r.Printf("No control rows.\n\n")
		return
	}
	r.Printf("| Control | Key | Expected | Actual | Diff | Status |\n")
	r.Printf("|:---|:---|---:|---:|---:|:---|\n")
	for _, row := range selected {
		r.Printf("| %s | %s | %s | %s | %s | %s |\n",
			row.Control, row.Key, row.Expected, row.Actual, row.Diff, row.Status())
	}
	r.Printf("\n")
}

func (r *reportRenderer) renderSummary(result *subledger.Result) {
	breaches := result.Breaches()
	r.Printf("## Summary\n\n")
	r.Printf("Controls: %d, breaches: %d, matching failures: %d.\n",
		len(result.Controls), len(breaches), len(result.GroupErrors))
}
