package cmd

import (
	"context"
	"flag"
	"fmt"

	"github.com/etnz/platelog"
	"github.com/google/subcommands"
)

type analyzeCmd struct {
	image string
}

func (*analyzeCmd) Name() string     { return "analyze" }
func (*analyzeCmd) Synopsis() string { return "estimate the nutrients of a meal without logging it" }
func (*analyzeCmd) Usage() string {
	return `analyze -i <image|->

  Analyzes the photo of a meal and prints its estimated nutrients. Nothing is logged.
`
}

func (c *analyzeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.image, "i", "", "image file of the meal, or - for the standard input")
}

func (c *analyzeCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.image == "" {
		fmt.Fprintln(stderr, "-i is required")
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

	s := platelog.NewCaptureSession(analyzer, a.user)
	s.Logger = a.logger
	defer s.Close()

	if err := captureMeal(ctx, s, c.image, nil); err != nil {
		return fail("Error analyzing %s: %v", c.image, err)
	}
	if err := showCandidate(s); err != nil {
		return fail("Error: %v", err)
	}
	if err := s.Discard(); err != nil {
		warn("%v", err)
	}
	return subcommands.ExitSuccess
}
