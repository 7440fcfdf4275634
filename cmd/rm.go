package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type rmCmd struct {
	day string
}

func (*rmCmd) Name() string     { return "rm" }
func (*rmCmd) Synopsis() string { return "remove logged meals" }
func (*rmCmd) Usage() string {
	return `rm [-d <date>] <meal-id>...

  Removes meals from a day, today by default. Meal ids are shown by the day command.
`
}

func (c *rmCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.day, "d", "", "day of the meals (default today)")
}

func (c *rmCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		fmt.Fprintln(stderr, "at least one meal id is required")
		return subcommands.ExitUsageError
	}
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

	status := subcommands.ExitSuccess
	for _, id := range f.Args() {
		meal, _ := ledger.Meal(id)
		if err := ledger.Delete(ctx, id); err != nil {
			status = fail("Error removing %s: %v", id, err)
			continue
		}
		success("Removed %s (%v)", meal.FoodName, meal.Portion)
	}
	fmt.Fprintf(stdout, "Total of %s: %v\n", day, ledger.Totals())
	return status
}
