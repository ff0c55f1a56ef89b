package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"
	"github.com/ledgerlab/subledger/renderer"
)

type runCmd struct {
	asOf         string
	pretty       bool
	skipPostings bool
	skipLedger   bool
}

func (*runCmd) Name() string { return "run" }
func (*runCmd) Synopsis() string {
	return "runs the full trade-to-ledger translation and prints the subledger report"
}
func (*runCmd) Usage() string {
	return `sgl run [-as-of <date>] [-pretty]

  Loads the staging CSV extracts, derives the open-trades view, the deal-level
  MtM allocation and the double-entry postings, folds the thin general ledger,
  and prints the full markdown report with every reconciliation control.

Usage Examples:
# Run over the whole blotter and render for the terminal.
$ sgl run -pretty

# Run as of a reporting date.
$ sgl run -as-of 2025-01-31

`
}

func (p *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.asOf, "as-of", "", "Reporting date; trades and marks after it are ignored.")
	f.BoolVar(&p.pretty, "pretty", false, "Render the markdown report for the terminal.")
	f.BoolVar(&p.skipPostings, "skip-postings", false, "Omit the posting sections.")
	f.BoolVar(&p.skipLedger, "skip-ledger", false, "Omit the thin-ledger section.")
}

func (p *runCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	result, err := runChain(ctx, p.asOf)
	if err != nil {
		return fail(err)
	}

	report := renderer.Report(result, renderer.ReportOptions{
		SkipPostings: p.skipPostings,
		SkipLedger:   p.skipLedger,
	})

	if p.pretty {
		rendered, err := glamour.Render(report, "auto")
		if err != nil {
			return fail(fmt.Errorf("could not render report: %w", err))
		}
		report = rendered
	}

	fmt.Fprint(os.Stdout, report)
	return subcommands.ExitSuccess
}
