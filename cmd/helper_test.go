package cmd

import (
	"bytes"
	"context"
	"flag"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/etnz/platelog"
	"github.com/etnz/platelog/config"
	"github.com/fatih/color"
	"github.com/google/subcommands"
)

var jpegHeader = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

var rice = platelog.Analysis{
	FoodName:        "Rice",
	BaselinePortion: platelog.G(100),
	Baseline:        platelog.N(200, 10, 30, 5),
	Confidence:      platelog.ConfidenceHigh,
}

// stubAnalyzer returns errs in order, then its analysis.
type stubAnalyzer struct {
	analysis platelog.Analysis
	errs     []error

	mu    sync.Mutex
	calls int
}

func (a *stubAnalyzer) Analyze(ctx context.Context, image []byte, user platelog.UserID) (platelog.Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.calls <= len(a.errs) {
		return platelog.Analysis{}, a.errs[a.calls-1]
	}
	return a.analysis, nil
}

func (a *stubAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// testEnv is the environment commands run in: a jsonl store in a temporary
// folder, the analyzer, and buffers for the standard streams.
type testEnv struct {
	dir string
	out *bytes.Buffer
	err *bytes.Buffer
}

func setup(t *testing.T, analyzer platelog.Analyzer) *testEnv {
	t.Helper()
	env := &testEnv{dir: t.TempDir(), out: &bytes.Buffer{}, err: &bytes.Buffer{}}
	t.Setenv("PLATELOG_USER", "ana")
	t.Setenv("PLATELOG_STORE", "jsonl:"+env.dir)
	t.Setenv("PLATELOG_CACHE_SIZE", "0")
	t.Setenv("PLATELOG_LOG_LEVEL", "error")

	oldIn, oldOut, oldErr := stdin, stdout, stderr
	oldAnalyzer, oldLogger, oldNoColor := openAnalyzer, slog.Default(), color.NoColor
	stdin, stdout, stderr = strings.NewReader(""), env.out, env.err
	openAnalyzer = func(context.Context, config.Config, *slog.Logger) (platelog.Analyzer, error) {
		return analyzer, nil
	}
	color.NoColor = true
	t.Cleanup(func() {
		stdin, stdout, stderr = oldIn, oldOut, oldErr
		openAnalyzer = oldAnalyzer
		slog.SetDefault(oldLogger)
		color.NoColor = oldNoColor
	})
	return env
}

// input sets what the commands read on the standard input.
func (e *testEnv) input(s string) { stdin = strings.NewReader(s) }

// reset clears the captured outputs.
func (e *testEnv) reset() {
	e.out.Reset()
	e.err.Reset()
}

// run parses args with the flags of c and executes it.
func run(t *testing.T, c subcommands.Command, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("%s: failed to parse %q: %v", c.Name(), args, err)
	}
	return c.Execute(context.Background(), f)
}

func wantContains(t *testing.T, got string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(got, w) {
			t.Errorf("output does not contain %q:\n%s", w, got)
		}
	}
}
