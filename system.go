package subledger

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ledgerlab/subledger/date"
	"golang.org/x/sync/errgroup"
)

// Config is the full configuration surface of a run: the chart of accounts,
// the per-control tolerances and the ledger sign convention. It is passed
// explicitly at construction; there is no ambient configuration.
type Config struct {
	Chart      Chart
	Tolerances Tolerances
	Convention SignConvention
}

// DefaultConfig returns the standard chart, tolerances and convention.
func DefaultConfig() Config {
	return Config{
		Chart:      DefaultChart(),
		Tolerances: DefaultTolerances(),
		Convention: DebitPositive,
	}
}

// Input is the staging data of one run: the trade blotter, the official
// positions and the FO mark series. If AsOf is set, trades and marks after
// that date are excluded and positions are restricted to that date.
type Input struct {
	Trades    []Trade
	Positions []Position
	Marks     []Mark
	AsOf      date.Date
}

// Result holds every view a run derives, each owned by the stage that
// computed it and immutable from then on.
type Result struct {
	Open        map[PositionKey][]OpenTrade // matcher output per partition
	Allocations []Allocation                // deal-level MtM across dates
	TradeSets   []PostingSet                // trade settlement postings
	RevalSets   []PostingSet                // MtM revaluation postings
	Ledger      ThinLedger
	Controls    []ControlRow
	GroupErrors []error // per-partition matching failures, reported not fatal
}

// Sets returns all posting sets of the run, trade postings first.
func (r *Result) Sets() []PostingSet {
	sets := make([]PostingSet, 0, len(r.TradeSets)+len(r.RevalSets))
	sets = append(sets, r.TradeSets...)
	sets = append(sets, r.RevalSets...)
	return sets
}

// Breaches returns the failing control rows of the run.
func (r *Result) Breaches() []ControlRow { return Breaches(r.Controls) }

// OpenTrades returns the deal-level open-trades view across all partitions,
// in deterministic order.
func (r *Result) OpenTrades() []OpenTrade {
	var open []OpenTrade
	for _, key := range sortedKeys(r.Open) {
		open = append(open, OpenOnly(r.Open[key])...)
	}
	return open
}

// System is the trade-to-ledger translation engine. It derives the FIFO
// open-position view, the deal-level MtM allocation and the double-entry
// ledger from one staging input, and proves the three views consistent with
// numeric controls.
type System struct {
	chart      Chart
	tolerances Tolerances
	convention SignConvention
	generator  *PostingGenerator
	checker    *Checker
}

// NewSystem validates the configuration and creates a System. An incomplete
// chart of accounts is a *ConfigurationError.
func NewSystem(cfg Config) (*System, error) {
	generator, err := NewPostingGenerator(cfg.Chart)
	if err != nil {
		return nil, err
	}
	return &System{
		chart:      cfg.Chart,
		tolerances: cfg.Tolerances,
		convention: cfg.Convention,
		generator:  generator,
		checker:    NewChecker(cfg.Chart, cfg.Convention, cfg.Tolerances),
	}, nil
}

// partitionResult is the output of one partition's worker. Partitions share
// no mutable state, so workers only ever write their own slot.
type partitionResult struct {
	open        []OpenTrade
	allocations []Allocation
	warnings    []ControlRow
	sets        []PostingSet
	groupErr    error
}

// Run executes the full chain: FIFO matching, MtM allocation and trade
// postings per partition (concurrently: partitions are independent), then
// the revaluation postings, the global ledger fold and the reconciliation
// controls.
//
// Data-quality problems local to one partition (an over-sold position) are
// reported in Result.GroupErrors without aborting the run. Structural
// problems (invalid trades, internal invariant violations) abort with an
// error.
func (s *System) Run(ctx context.Context, in Input) (*Result, error) {
	trades, positions, marks, err := s.stage(in)
	if err != nil {
		return nil, err
	}

	groups := GroupTrades(trades)
	keys := sortedKeys(groups)
	series := BuildMarkSeries(marks)
	prices := referencePrices(positions)

	results := make([]partitionResult, len(keys))
	g, ctx := errgroup.WithContext(ctx)
	for i, key := range keys {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = s.runPartition(key, groups[key], prices[key], series)
			var violation *InvariantViolationError
			if errors.As(results[i].groupErr, &violation) {
				// A broken internal invariant is never data-driven.
				return results[i].groupErr
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &Result{Open: make(map[PositionKey][]OpenTrade, len(keys))}
	var warnings []ControlRow
	for i, key := range keys {
		pr := results[i]
		if pr.groupErr != nil {
			log.Printf("partition %s: %v", key, pr.groupErr)
			result.GroupErrors = append(result.GroupErrors, pr.groupErr)
			continue
		}
		result.Open[key] = pr.open
		result.Allocations = append(result.Allocations, pr.allocations...)
		result.TradeSets = append(result.TradeSets, pr.sets...)
		warnings = append(warnings, pr.warnings...)
	}
	sortAllocations(result.Allocations)

	// Revaluation postings and the ledger fold need all partitions done:
	// the fold order is global.
	result.RevalSets, err = s.generator.RevaluationPostings(series)
	if err != nil {
		return nil, err
	}
	result.Ledger = AggregateLedger(result.Sets(), s.convention)

	result.Controls = append(result.Controls, s.checker.CheckPositions(result.Open, positions)...)
	result.Controls = append(result.Controls, s.checker.CheckAllocations(result.Allocations, series)...)
	result.Controls = append(result.Controls, warnings...)
	result.Controls = append(result.Controls, s.checker.CheckRevaluation(series, result.RevalSets)...)
	result.Controls = append(result.Controls, s.checker.CheckLedger(result.Ledger, result.Sets())...)

	return result, nil
}

// runPartition computes the partition-local views: open lots, deal
// allocations and trade postings.
func (s *System) runPartition(key PositionKey, trades []Trade, price Money, series MarkSeries) partitionResult {
	open, err := MatchLots(trades)
	if err != nil {
		return partitionResult{groupErr: err}
	}

	allocations, warnings := AllocateSeries(key, open, price, series)

	sets, err := s.generator.TradePostings(trades)
	if err != nil {
		return partitionResult{groupErr: err}
	}

	return partitionResult{open: open, allocations: allocations, warnings: warnings, sets: sets}
}

// stage validates and filters the input.
func (s *System) stage(in Input) ([]Trade, []Position, []Mark, error) {
	var trades []Trade
	for _, t := range in.Trades {
		if err := t.Validate(); err != nil {
			return nil, nil, nil, fmt.Errorf("invalid trade: %w", err)
		}
		if !in.AsOf.IsZero() && t.Date.After(in.AsOf) {
			continue
		}
		trades = append(trades, t)
	}

	positions := in.Positions
	if !in.AsOf.IsZero() {
		positions = nil
		for _, p := range in.Positions {
			if p.AsOf == in.AsOf {
				positions = append(positions, p)
			}
		}
	}

	marks := in.Marks
	if !in.AsOf.IsZero() {
		marks = nil
		for _, m := range in.Marks {
			if !m.AsOf.After(in.AsOf) {
				marks = append(marks, m)
			}
		}
	}

	return trades, positions, marks, nil
}

// referencePrices picks the reference price per partition from the official
// positions, keeping the latest as-of date when several are supplied.
func referencePrices(positions []Position) map[PositionKey]Money {
	prices := make(map[PositionKey]Money)
	asOf := make(map[PositionKey]date.Date)
	for _, p := range positions {
		key := p.Key()
		if seen, ok := asOf[key]; ok && p.AsOf.Before(seen) {
			continue
		}
		prices[key] = p.Price
		asOf[key] = p.AsOf
	}
	return prices
}
