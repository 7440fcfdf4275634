package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/etnz/platelog"
	"github.com/etnz/platelog/renderer"
	"github.com/google/subcommands"
)

type logCmd struct {
	image   string
	portion string
	day     string
	yes     bool
}

func (*logCmd) Name() string     { return "log" }
func (*logCmd) Synopsis() string { return "log a meal from its photo" }
func (*logCmd) Usage() string {
	return `log -i <image|-> [-portion <grams>] [-d <date>] [-y]

  Analyzes the photo of a meal and shows its estimated nutrients. You can then
  change the portion, in grams, or type "cancel" to discard the meal. An empty
  answer logs the meal as shown.

  With -portion or -y the meal is logged without asking. Reading the image
  from the standard input requires one of them.
`
}

func (c *logCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.image, "i", "", "image file of the meal, or - for the standard input")
	f.StringVar(&c.portion, "portion", "", "portion eaten in grams, default to the estimated portion")
	f.StringVar(&c.day, "d", "", "day to log the meal for (default today)")
	f.BoolVar(&c.yes, "y", false, "log the meal without asking")
}

func (c *logCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.image == "" {
		fmt.Fprintln(stderr, "-i is required")
		return subcommands.ExitUsageError
	}
	var portion platelog.Grams
	if c.portion != "" {
		var err error
		if portion, err = platelog.ParseGrams(c.portion); err != nil {
			fmt.Fprintf(stderr, "invalid -portion: %v\n", err)
			return subcommands.ExitUsageError
		}
	}
	interactive := !c.yes && c.portion == ""
	if c.image == "-" && interactive {
		fmt.Fprintln(stderr, "reading the image from the standard input requires -portion or -y")
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
	analyzer, err := a.openAnalyzer(ctx)
	if err != nil {
		return fail("Error creating the analyzer: %v", err)
	}
	ledger, store, err := a.ledger(ctx, day)
	if err != nil {
		return fail("Error loading meals of %s: %v", day, err)
	}
	defer store.Close()

	s := platelog.NewCaptureSession(analyzer, a.user)
	s.Logger = a.logger
	defer s.Close()

	var p *prompter
	if c.image != "-" && !c.yes {
		p = newPrompter(stdin, stdout)
	}
	if err := captureMeal(ctx, s, c.image, p); err != nil {
		return fail("Error analyzing %s: %v", c.image, err)
	}
	if c.portion != "" {
		if err := s.SetPortion(portion); err != nil {
			return fail("Error: %v", err)
		}
	}
	if err := showCandidate(s); err != nil {
		return fail("Error: %v", err)
	}

	if interactive {
		if err := adjustPortion(s, p); err != nil {
			if errors.Is(err, errCancelled) {
				if err := s.Discard(); err != nil {
					warn("%v", err)
				}
				success("Meal discarded.")
				return subcommands.ExitSuccess
			}
			return fail("Error: %v", err)
		}
	}

	meal, err := s.Commit(ctx, ledger)
	if err != nil {
		return fail("Error logging the meal: %v", err)
	}
	success("Logged %s (%v): %v", meal.FoodName, meal.Portion, meal.Nutrients)
	fmt.Fprintf(stdout, "Total of %s: %v\n", day, ledger.Totals())
	return subcommands.ExitSuccess
}

// captureMeal runs s up to an adjustable candidate for the image at path.
// Failed analyses are retried as long as p confirms; a nil p never retries.
func captureMeal(ctx context.Context, s *platelog.CaptureSession, path string, p *prompter) error {
	src, err := openSource(path)
	if err != nil {
		return err
	}
	if err := s.Start(src); err != nil {
		return err
	}
	if err := s.Capture(ctx); err != nil {
		return err
	}
	for {
		err := s.Analyze(ctx)
		if err == nil || p == nil || !errors.Is(err, platelog.ErrAnalysis) {
			return err
		}
		warn("%v", err)
		retry, perr := p.confirm("Retry the analysis?")
		if perr != nil || !retry {
			return err
		}
	}
}

// adjustPortion asks for portions until the user keeps the one shown.
func adjustPortion(s *platelog.CaptureSession, p *prompter) error {
	for {
		c, ok := s.Candidate()
		if !ok {
			return fmt.Errorf("%w: no candidate meal", platelog.ErrInvalidState)
		}
		g, changed, err := p.portion(c.Portion)
		switch {
		case errors.Is(err, platelog.ErrValidation):
			warn("%v", err)
			continue
		case err != nil:
			return err
		case !changed:
			return nil
		}
		if err := s.SetPortion(g); err != nil {
			warn("%v", err)
			continue
		}
		if err := showCandidate(s); err != nil {
			return err
		}
	}
}

// showCandidate prints the candidate meal of s.
func showCandidate(s *platelog.CaptureSession) error {
	c, ok := s.Candidate()
	if !ok {
		return fmt.Errorf("%w: no candidate meal", platelog.ErrInvalidState)
	}
	view, err := renderer.NewCandidate(c)
	if err != nil {
		return err
	}
	printMarkdown(renderer.RenderCandidate(view))
	return nil
}
