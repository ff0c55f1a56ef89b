// Package cmd implements the CLI application that runs the trade-to-ledger
// translation over a staging directory of CSV extracts.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/ledgerlab/subledger"
	"github.com/ledgerlab/subledger/date"
)

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(&runCmd{}, "reports")
	c.Register(&openCmd{}, "views")
	c.Register(&ledgerCmd{}, "views")
	c.Register(&controlsCmd{}, "views")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var dataPath = flag.String("data", "data", "Path to the staging directory with the CSV extracts")
var configFile = flag.String("config", "", "Path to the run configuration file (YAML or JSON); defaults apply if empty")

// loadSystem builds the engine from the configuration file, or from
// defaults when none is given.
func loadSystem() (*subledger.System, error) {
	cfg := subledger.DefaultConfig()
	if *configFile != "" {
		var err error
		cfg, err = subledger.LoadConfig(*configFile)
		if err != nil {
			return nil, err
		}
	}
	return subledger.NewSystem(cfg)
}

// runChain loads staging data and executes the full translation. An empty
// asOf runs over the whole blotter.
func runChain(ctx context.Context, asOf string) (*subledger.Result, error) {
	system, err := loadSystem()
	if err != nil {
		return nil, err
	}

	in, err := subledger.LoadStaging(*dataPath)
	if err != nil {
		return nil, err
	}
	if asOf != "" {
		if in.AsOf, err = date.Parse(asOf); err != nil {
			return nil, err
		}
	}

	return system.Run(ctx, in)
}

// fail prints the error and returns the failure exit status.
func fail(err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return subcommands.ExitFailure
}
