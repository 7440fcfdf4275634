package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/platelog/date"
	"github.com/etnz/platelog/renderer"
	"github.com/google/subcommands"
)

type historyCmd struct {
	period string
	start  string
	end    string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "show daily nutrient totals over a period" }
func (*historyCmd) Usage() string {
	return `history [-p <period> | -s <date>] [-d <date>]

  Shows the nutrient totals of every day with meals, and their daily average.

  By default the range is the week containing the end date. Use -p to pick
  another period (day, week, month, year), or -s to start on a given date.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.period, "p", "", "period containing the end date: day, week, month or year")
	f.StringVar(&c.start, "s", "", "first day of the range")
	f.StringVar(&c.end, "d", "", "last day of the range (default today)")
}

// span returns the range selected by the flags.
func (c *historyCmd) span() (date.Range, error) {
	if c.period != "" && c.start != "" {
		return date.Range{}, fmt.Errorf("-p and -s are mutually exclusive")
	}
	end, err := parseDay(c.end)
	if err != nil {
		return date.Range{}, fmt.Errorf("invalid -d: %w", err)
	}
	if c.start != "" {
		start, err := date.Parse(c.start)
		if err != nil {
			return date.Range{}, fmt.Errorf("invalid -s: %w", err)
		}
		if start.After(end) {
			return date.Range{}, fmt.Errorf("start %s is after end %s", start, end)
		}
		return date.NewRange(start, end), nil
	}
	period := date.Weekly
	if c.period != "" {
		if period, err = date.ParsePeriod(c.period); err != nil {
			return date.Range{}, fmt.Errorf("invalid -p: %w", err)
		}
	}
	r := period.Range(end)
	r.To = end
	return r, nil
}

func (c *historyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	r, err := c.span()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return subcommands.ExitUsageError
	}
	a, err := newApp()
	if err != nil {
		return fail("Error: %v", err)
	}
	store, err := a.openStore(ctx)
	if err != nil {
		return fail("Error: %v", err)
	}
	defer store.Close()

	days, err := store.ListDailyTotals(ctx, a.user, r)
	if err != nil {
		return fail("Error reading history of %s: %v", r, err)
	}
	printMarkdown(renderer.RenderHistory(renderer.NewHistory(a.user, r, days)))
	return subcommands.ExitSuccess
}
