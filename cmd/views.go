package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
)

type openCmd struct {
	asOf string
}

func (*openCmd) Name() string     { return "open" }
func (*openCmd) Synopsis() string { return "prints the deal-level open-trades view" }
func (*openCmd) Usage() string {
	return `sgl open [-as-of <date>]

  Prints every trade with a positive remaining quantity after FIFO matching.

`
}

func (p *openCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.asOf, "as-of", "", "Reporting date; trades after it are ignored.")
}

func (p *openCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	result, err := runChain(ctx, p.asOf)
	if err != nil {
		return fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TRADE\tCUSTOMER\tISIN\tCCY\tREMAINING")
	for _, o := range result.OpenTrades() {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", o.ID, o.Customer, o.ISIN, o.Currency, o.Remaining)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type ledgerCmd struct {
	asOf string
}

func (*ledgerCmd) Name() string     { return "ledger" }
func (*ledgerCmd) Synopsis() string { return "prints the thin general ledger" }
func (*ledgerCmd) Usage() string {
	return `sgl ledger [-as-of <date>]

  Prints one row per (date, account, currency) with the running balance.

`
}

func (p *ledgerCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.asOf, "as-of", "", "Reporting date; trades and marks after it are ignored.")
}

func (p *ledgerCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	result, err := runChain(ctx, p.asOf)
	if err != nil {
		return fail(err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tACCOUNT\tCCY\tCHANGE\tBALANCE")
	for _, e := range result.Ledger {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Date, e.Account, e.Currency, e.Change, e.Balance)
	}
	w.Flush()
	return subcommands.ExitSuccess
}

type controlsCmd struct {
	asOf     string
	breaches bool
}

func (*controlsCmd) Name() string     { return "controls" }
func (*controlsCmd) Synopsis() string { return "prints the reconciliation control rows" }
func (*controlsCmd) Usage() string {
	return `sgl controls [-as-of <date>] [-breaches]

  Prints every control row of the run. Exits with a failure status when any
  control breaks, so the command can gate a downstream GL feed.

`
}

func (p *controlsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.asOf, "as-of", "", "Reporting date; trades and marks after it are ignored.")
	f.BoolVar(&p.breaches, "breaches", false, "Only print failing rows.")
}

func (p *controlsCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	result, err := runChain(ctx, p.asOf)
	if err != nil {
		return fail(err)
	}

	rows := result.Controls
	if p.breaches {
		rows = result.Breaches()
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CONTROL\tKEY\tEXPECTED\tACTUAL\tDIFF\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", r.Control, r.Key, r.Expected, r.Actual, r.Diff, r.Status())
	}
	w.Flush()

	if len(result.Breaches()) > 0 || len(result.GroupErrors) > 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
