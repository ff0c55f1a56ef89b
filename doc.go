// Package subledger translates a raw securities trade blotter into three
// mutually consistent views and proves, with numeric controls, that the
// three agree:
//
//   - an open-position view, derived per deal by FIFO lot matching of sells
//     against prior buys;
//   - a mark-to-market allocation, distributing position-level FO marks down
//     to individual open deals pro-rata by open notional;
//   - a double-entry general-ledger representation, with trade settlement
//     postings under a running average-cost basis and daily MtM revaluation
//     postings, folded into a thin ledger of running balances.
//
// The exposure view is FIFO while the GL cost basis is average-cost. The two
// conventions are kept deliberately distinct, and the reconciliation controls
// make any divergence visible instead of papering over it.
//
// All quantities and amounts are exact decimals. Double-entry balance is a
// zero-tolerance invariant; cross-view controls compare within configurable
// tolerances and are always advisory: a run completes and surfaces every
// failing row.
//
// This package is the foundational logic for the `sgl` command-line tool.
package subledger
