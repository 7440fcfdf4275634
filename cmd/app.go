// Package cmd implements the CLI application to log meals from their photos.
package cmd

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/etnz/platelog"
	"github.com/etnz/platelog/capture"
	"github.com/etnz/platelog/config"
	"github.com/etnz/platelog/date"
	"github.com/fatih/color"
	"github.com/google/subcommands"
)

// Commands lists the application subcommands.
var Commands = []subcommands.Command{
	&logCmd{},
	&analyzeCmd{},
	&dayCmd{},
	&rmCmd{},
	&historyCmd{},
	&topicCmd{},
}

// Register the subcommands.
// A main package will call Register() to allow subcommands, and Execute() on the user-selected one.
func Register(c *subcommands.Commander) {
	c.Register(c.HelpCommand(), "")
	c.Register(c.FlagsCommand(), "")
	c.Register(c.CommandsCommand(), "")
	for _, cmd := range Commands {
		group := "meals"
		if cmd.Name() == "topic" {
			group = "help"
		}
		c.Register(cmd, group)
	}
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var (
	userFlag  = flag.String("user", "", "user to log meals for (default $PLATELOG_USER)")
	storeFlag = flag.String("store", "", "meal store: sqlite:<file>, jsonl:<folder> or an http(s) URL (default $PLATELOG_STORE)")
	verbose   = flag.Bool("v", false, "log debug messages")
)

// standard streams, replaced in tests.
var (
	stdin  io.Reader = os.Stdin
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// openAnalyzer creates the analyzer of cfg. Tests replace it with a fake.
var openAnalyzer = func(ctx context.Context, cfg config.Config, logger *slog.Logger) (platelog.Analyzer, error) {
	return cfg.OpenAnalyzer(ctx, logger)
}

// app is what every command needs: the configuration, a logger, and the user.
type app struct {
	cfg    config.Config
	logger *slog.Logger
	user   platelog.UserID
}

// newApp reads the configuration and applies the global flags on top of it.
func newApp() (*app, error) {
	cfg, err := config.Parse()
	if err != nil {
		return nil, err
	}
	if *userFlag != "" {
		cfg.User = *userFlag
	}
	if *storeFlag != "" {
		cfg.Store = *storeFlag
	}
	if *verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	user, err := cfg.UserID()
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, logger: logger, user: user}, nil
}

func (a *app) openStore(ctx context.Context) (config.StoreCloser, error) {
	return a.cfg.OpenStore(ctx, a.logger)
}

func (a *app) openAnalyzer(ctx context.Context) (platelog.Analyzer, error) {
	return openAnalyzer(ctx, a.cfg, a.logger)
}

// ledger opens the store and loads the ledger of day.
func (a *app) ledger(ctx context.Context, day date.Date) (*platelog.DailyLedger, io.Closer, error) {
	store, err := a.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	l := platelog.NewDailyLedger(store, a.user, day)
	l.Logger = a.logger
	if err := l.Load(ctx, day); err != nil {
		store.Close()
		return nil, nil, err
	}
	return l, store, nil
}

// openSource opens the image at path, or standard input for "-".
func openSource(path string) (platelog.Source, error) {
	if path == "-" {
		return capture.NewReaderSource("stdin", stdin), nil
	}
	return capture.Open(path)
}

// parseDay parses a date flag, an empty one is today.
func parseDay(s string) (date.Date, error) {
	if s == "" {
		return date.Today(), nil
	}
	return date.Parse(s)
}

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

// success prints a status line on stdout.
func success(format string, a ...any) { green.Fprintf(stdout, format+"\n", a...) }

// warn prints a warning on stderr.
func warn(format string, a ...any) { yellow.Fprintf(stderr, format+"\n", a...) }

// fail prints an error on stderr and returns ExitFailure.
func fail(format string, a ...any) subcommands.ExitStatus {
	red.Fprintf(stderr, format+"\n", a...)
	return subcommands.ExitFailure
}

// printMarkdown prints md, rendered for the terminal when stdout is one.
func printMarkdown(md string) {
	if color.NoColor {
		fmt.Fprint(stdout, md)
		return
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Fprint(stdout, md)
		return
	}
	fmt.Fprint(stdout, out)
}
