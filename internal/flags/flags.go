// Package flags holds the urfave/cli categories and the cli.App
// constructor shared by the indexer's command line entry point.
package flags

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Flag categories, grouped so `--help` output reads as one coherent
// reference rather than a flat alphabetical dump.
const (
	NodeCategory      = "NODE"
	StorageCategory   = "STORAGE"
	StreamCategory    = "STREAMS"
	SchedulerCategory = "SCHEDULER"
	LoggingCategory   = "LOGGING"
)

// NewApp creates an *cli.App with the common flags and metadata shared
// across the indexer's subcommands.
func NewApp(usage string) *cli.App {
	app := cli.NewApp()
	app.EnableBashCompletion = true
	app.Usage = usage
	app.Copyright = "Copyright 2026 The BlockExplorer Authors"
	app.Before = func(ctx *cli.Context) error {
		return nil
	}
	app.ExitErrHandler = func(ctx *cli.Context, err error) {
		if err != nil {
			fmt.Fprintf(ctx.App.ErrWriter, "error: %v\n", err)
		}
	}
	return app
}
