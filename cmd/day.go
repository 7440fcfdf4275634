package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/platelog/renderer"
	"github.com/google/subcommands"
)

type dayCmd struct {
	day string
}

func (*dayCmd) Name() string     { return "day" }
func (*dayCmd) Synopsis() string { return "show the meals of a day and their totals" }
func (*dayCmd) Usage() string {
	return `day [-d <date>]

  Shows the meals logged on a day, today by default, and their nutrient totals.
  Dates are ISO dates or relative to today, like -1d for yesterday.
`
}

func (c *dayCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.day, "d", "", "day to show (default today)")
}

func (c *dayCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	day, err := parseDay(c.day)
	if err != nil {
		fmt.Fprintf(stderr, "invalid -d: %v\n", err)
		return subcommands.ExitUsageError
	}
	a, err := newApp()
	if err != nil {
		return fail("Error: %v", err)
	}
	ledger, store, err := a.ledger(ctx, day)
	if err != nil {
		return fail("Error loading meals of %s: %v", day, err)
	}
	defer store.Close()

	printMarkdown(renderer.RenderDay(renderer.NewDay(a.user, day, ledger.Meals(), ledger.Totals())))
	return subcommands.ExitSuccess
}
