package platelog

import (
	"context"
	"errors"
	"testing"
	"time"
)

// startCaptured returns a session in the Captured state, and its source.
func startCaptured(t *testing.T, a Analyzer) (*CaptureSession, *fakeSource) {
	t.Helper()
	s := NewCaptureSession(a, "ana")
	src := newFakeSource([]byte("jpeg"))
	if err := s.Start(src); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	if err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture() unexpected error: %v", err)
	}
	return s, src
}

// startAdjustable returns a session in the Adjustable state for a rice analysis.
func startAdjustable(t *testing.T) (*CaptureSession, *fakeSource) {
	t.Helper()
	s, src := startCaptured(t, &fakeAnalyzer{analysis: rice})
	if err := s.Analyze(context.Background()); err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}
	return s, src
}

func wantState(t *testing.T, s *CaptureSession, want State) {
	t.Helper()
	if got := s.State(); got != want {
		t.Errorf("State() = %v, want %v", got, want)
	}
}

func TestCaptureSession_HappyPath(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{analysis: rice}
	s := NewCaptureSession(analyzer, "ana")
	wantState(t, s, Idle)

	src := newFakeSource([]byte("jpeg"))
	if err := s.Start(src); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	wantState(t, s, Capturing)

	if err := s.Capture(ctx); err != nil {
		t.Fatalf("Capture() unexpected error: %v", err)
	}
	wantState(t, s, Captured)
	if got := string(s.Image()); got != "jpeg" {
		t.Errorf("Image() = %q, want %q", got, "jpeg")
	}

	if err := s.Analyze(ctx); err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}
	wantState(t, s, Adjustable)
	c, ok := s.Candidate()
	if !ok {
		t.Fatalf("Candidate() not available in Adjustable")
	}
	if !c.Portion.Equal(G(100)) || c.FoodName != "Rice" || c.Confidence != ConfidenceHigh {
		t.Errorf("Candidate() = %+v, want rice at 100g", c)
	}

	if err := s.SetPortion(G(150)); err != nil {
		t.Fatalf("SetPortion(150) unexpected error: %v", err)
	}
	c, _ = s.Candidate()
	if got, _ := c.Display(); !got.Equal(N(300, 15, 45, 7.5)) {
		t.Errorf("Display() at 150g = %v, want %v", got, N(300, 15, 45, 7.5))
	}

	ledger := newTestLedger(&memStore{})
	m, err := s.Commit(ctx, ledger)
	if err != nil {
		t.Fatalf("Commit() unexpected error: %v", err)
	}
	wantState(t, s, Committed)
	if !m.Nutrients.Equal(N(300, 15, 45, 7.5)) || string(m.Image) != "jpeg" {
		t.Errorf("Commit() = %v, want rice at 150g with its image", m)
	}
	if got := ledger.Totals(); !got.Equal(m.Nutrients) {
		t.Errorf("ledger Totals() = %v, want %v", got, m.Nutrients)
	}
	if _, ok := s.Candidate(); ok {
		t.Errorf("Candidate() available after commit")
	}
	if got := src.Closed(); got != 1 {
		t.Errorf("source closed %d times, want 1", got)
	}

	// a new entry can start right away.
	if err := s.Start(newFakeSource([]byte("png"))); err != nil {
		t.Errorf("Start() after commit unexpected error: %v", err)
	}
}

func TestCaptureSession_InvalidTransitions(t *testing.T) {
	ctx := context.Background()
	ops := map[string]func(s *CaptureSession) error{
		"Capture":    func(s *CaptureSession) error { return s.Capture(ctx) },
		"Analyze":    func(s *CaptureSession) error { return s.Analyze(ctx) },
		"SetPortion": func(s *CaptureSession) error { return s.SetPortion(G(10)) },
		"Commit": func(s *CaptureSession) error {
			_, err := s.Commit(ctx, newTestLedger(&memStore{}))
			return err
		},
		"Discard": func(s *CaptureSession) error { return s.Discard() },
	}

	testCases := []struct {
		name    string
		setup   func(t *testing.T) *CaptureSession
		state   State
		invalid []string
	}{
		{
			name:    "idle",
			setup:   func(t *testing.T) *CaptureSession { return NewCaptureSession(&fakeAnalyzer{analysis: rice}, "ana") },
			state:   Idle,
			invalid: []string{"Capture", "Analyze", "SetPortion", "Commit", "Discard"},
		},
		{
			name: "capturing",
			setup: func(t *testing.T) *CaptureSession {
				s := NewCaptureSession(&fakeAnalyzer{analysis: rice}, "ana")
				if err := s.Start(newFakeSource([]byte("jpeg"))); err != nil {
					t.Fatalf("Start() unexpected error: %v", err)
				}
				return s
			},
			state:   Capturing,
			invalid: []string{"Analyze", "SetPortion", "Commit"},
		},
		{
			name: "captured",
			setup: func(t *testing.T) *CaptureSession {
				s, _ := startCaptured(t, &fakeAnalyzer{analysis: rice})
				return s
			},
			state:   Captured,
			invalid: []string{"Capture", "SetPortion", "Commit"},
		},
		{
			name: "adjustable",
			setup: func(t *testing.T) *CaptureSession {
				s, _ := startAdjustable(t)
				return s
			},
			state:   Adjustable,
			invalid: []string{"Capture", "Analyze"},
		},
		{
			name: "discarded",
			setup: func(t *testing.T) *CaptureSession {
				s, _ := startAdjustable(t)
				if err := s.Discard(); err != nil {
					t.Fatalf("Discard() unexpected error: %v", err)
				}
				return s
			},
			state:   Discarded,
			invalid: []string{"Capture", "Analyze", "SetPortion", "Commit", "Discard"},
		},
	}
	for _, tc := range testCases {
		for _, op := range tc.invalid {
			t.Run(tc.name+"/"+op, func(t *testing.T) {
				s := tc.setup(t)
				if err := ops[op](s); !errors.Is(err, ErrInvalidState) {
					t.Errorf("%s() while %v = %v, want ErrInvalidState", op, tc.state, err)
				}
				wantState(t, s, tc.state)
			})
		}
	}
}

func TestCaptureSession_StartWhileBusy(t *testing.T) {
	s, src := startAdjustable(t)
	if err := s.SetPortion(G(250)); err != nil {
		t.Fatalf("SetPortion() unexpected error: %v", err)
	}

	other := newFakeSource([]byte("png"))
	if err := s.Start(other); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Start() while adjustable = %v, want ErrInvalidState", err)
	}
	wantState(t, s, Adjustable)
	c, ok := s.Candidate()
	if !ok || !c.Portion.Equal(G(250)) || string(c.Image) != "jpeg" {
		t.Errorf("Candidate() = %+v, %v, want the untouched 250g rice", c, ok)
	}
	if got := other.Closed(); got != 1 {
		t.Errorf("rejected source closed %d times, want 1", got)
	}
	if got := src.Closed(); got != 1 {
		t.Errorf("current source closed %d times, want 1", got)
	}
}

func TestCaptureSession_AnalysisFailure(t *testing.T) {
	ctx := context.Background()
	engineErr := errors.New("quota exceeded")
	analyzer := &fakeAnalyzer{err: engineErr}
	s, _ := startCaptured(t, analyzer)

	err := s.Analyze(ctx)
	if !errors.Is(err, ErrAnalysis) || !errors.Is(err, engineErr) {
		t.Errorf("Analyze() = %v, want ErrAnalysis wrapping %v", err, engineErr)
	}
	wantState(t, s, Captured)
	if got := string(s.Image()); got != "jpeg" {
		t.Errorf("Image() after failed analysis = %q, want %q", got, "jpeg")
	}
	if !errors.Is(s.LastError(), engineErr) {
		t.Errorf("LastError() = %v, want %v", s.LastError(), engineErr)
	}

	// a malformed answer is an analysis failure too.
	analyzer.err = nil
	analyzer.analysis = Analysis{FoodName: "Rice"}
	if err := s.Analyze(ctx); !errors.Is(err, ErrAnalysis) {
		t.Errorf("Analyze() with no portion = %v, want ErrAnalysis", err)
	}
	wantState(t, s, Captured)

	// retry without capturing again.
	analyzer.analysis = rice
	if err := s.Analyze(ctx); err != nil {
		t.Fatalf("Analyze() retry unexpected error: %v", err)
	}
	wantState(t, s, Adjustable)
	if s.LastError() != nil {
		t.Errorf("LastError() after success = %v, want nil", s.LastError())
	}
	if got := analyzer.Calls(); got != 3 {
		t.Errorf("analyzer called %d times, want 3", got)
	}
}

func TestCaptureSession_StaleAnalysis(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: rice, block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, _ := startCaptured(t, analyzer)

	errc := make(chan error, 1)
	go func() { errc <- s.Analyze(context.Background()) }()
	<-analyzer.started
	wantState(t, s, Analyzing)

	if err := s.Discard(); err != nil {
		t.Fatalf("Discard() while analyzing unexpected error: %v", err)
	}
	close(analyzer.block)

	if err := <-errc; !errors.Is(err, ErrStaleAnalysis) {
		t.Errorf("Analyze() after discard = %v, want ErrStaleAnalysis", err)
	}
	wantState(t, s, Discarded)
	if _, ok := s.Candidate(); ok {
		t.Errorf("Candidate() available after a stale analysis")
	}
}

// A response of an earlier entry must not fill a newer one.
func TestCaptureSession_StaleAnalysisAfterRestart(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: rice, block: make(chan struct{}), started: make(chan struct{}, 1)}
	s, _ := startCaptured(t, analyzer)

	errc := make(chan error, 1)
	go func() { errc <- s.Analyze(context.Background()) }()
	<-analyzer.started
	if err := s.Discard(); err != nil {
		t.Fatalf("Discard() unexpected error: %v", err)
	}
	if err := s.Start(newFakeSource([]byte("png"))); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	if err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture() unexpected error: %v", err)
	}
	close(analyzer.block)

	if err := <-errc; !errors.Is(err, ErrStaleAnalysis) {
		t.Errorf("Analyze() of the first entry = %v, want ErrStaleAnalysis", err)
	}
	wantState(t, s, Captured)
	if got := string(s.Image()); got != "png" {
		t.Errorf("Image() = %q, want the second entry's %q", got, "png")
	}
}

func TestCaptureSession_CaptureFailure(t *testing.T) {
	testCases := []struct {
		name string
		src  *fakeSource
	}{
		{name: "source error", src: &fakeSource{err: errors.New("camera busy"), done: make(chan struct{})}},
		{name: "empty image", src: newFakeSource(nil)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewCaptureSession(&fakeAnalyzer{analysis: rice}, "ana")
			if err := s.Start(tc.src); err != nil {
				t.Fatalf("Start() unexpected error: %v", err)
			}
			if err := s.Capture(context.Background()); err == nil {
				t.Errorf("Capture() succeeded, want error")
			}
			wantState(t, s, Idle)
			if got := tc.src.Closed(); got != 1 {
				t.Errorf("source closed %d times, want 1", got)
			}
		})
	}
}

func TestCaptureSession_DiscardWhileCapturing(t *testing.T) {
	s := NewCaptureSession(&fakeAnalyzer{analysis: rice}, "ana")
	src := newFakeSource(nil)
	src.block = true
	if err := s.Start(src); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}

	errc := make(chan error, 1)
	go func() { errc <- s.Capture(context.Background()) }()
	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.acquiring
	})

	if err := s.Discard(); err != nil {
		t.Fatalf("Discard() unexpected error: %v", err)
	}
	if err := <-errc; !errors.Is(err, ErrInvalidState) {
		t.Errorf("Capture() after discard = %v, want ErrInvalidState", err)
	}
	wantState(t, s, Discarded)
	if got := src.Closed(); got != 1 {
		t.Errorf("source closed %d times, want 1", got)
	}
}

func TestCaptureSession_SetPortionValidation(t *testing.T) {
	s, _ := startAdjustable(t)
	for _, g := range []Grams{G(0), G(-10)} {
		if err := s.SetPortion(g); !errors.Is(err, ErrValidation) {
			t.Errorf("SetPortion(%v) = %v, want ErrValidation", g, err)
		}
	}
	c, _ := s.Candidate()
	if !c.Portion.Equal(G(100)) {
		t.Errorf("Candidate().Portion = %v, want unchanged 100g", c.Portion)
	}
	wantState(t, s, Adjustable)
}

func TestCaptureSession_CommitFailure(t *testing.T) {
	s, _ := startAdjustable(t)
	store := &memStore{saveErr: errors.New("offline")}
	ledger := newTestLedger(store)

	if _, err := s.Commit(context.Background(), ledger); !errors.Is(err, ErrCommit) {
		t.Errorf("Commit() with a failing store = %v, want ErrCommit", err)
	}
	wantState(t, s, Adjustable)
	if len(ledger.Meals()) != 0 {
		t.Errorf("ledger has %d meals, want none", len(ledger.Meals()))
	}

	// the user can retry once the store is back.
	store.saveErr = nil
	if _, err := s.Commit(context.Background(), ledger); err != nil {
		t.Errorf("Commit() retry unexpected error: %v", err)
	}
	wantState(t, s, Committed)
}

// enteringStore signals each SaveMeal call before running it.
type enteringStore struct {
	*memStore
	entered chan struct{}
}

func (s *enteringStore) SaveMeal(ctx context.Context, meal CommittedMeal) error {
	s.entered <- struct{}{}
	return s.memStore.SaveMeal(ctx, meal)
}

func TestCaptureSession_CommitInFlight(t *testing.T) {
	ctx := context.Background()
	s, _ := startAdjustable(t)
	store := &memStore{gate: make(chan struct{})}
	saving := &enteringStore{memStore: store, entered: make(chan struct{}, 1)}
	ledger := newTestLedger(saving)

	done := make(chan error, 1)
	go func() {
		_, err := s.Commit(ctx, ledger)
		done <- err
	}()
	<-saving.entered

	// the session still answers while the store is saving.
	wantState(t, s, Adjustable)
	if err := s.SetPortion(G(200)); !errors.Is(err, ErrInvalidState) {
		t.Errorf("SetPortion() while committing = %v, want ErrInvalidState", err)
	}
	if err := s.Discard(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Discard() while committing = %v, want ErrInvalidState", err)
	}
	if _, err := s.Commit(ctx, ledger); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Commit() while committing = %v, want ErrInvalidState", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close() while committing unexpected error: %v", err)
	}

	close(store.gate)
	if err := <-done; err != nil {
		t.Fatalf("Commit() unexpected error: %v", err)
	}
	wantState(t, s, Committed)
	meals := ledger.Meals()
	if len(meals) != 1 || !meals[0].Portion.Equal(G(100)) {
		t.Errorf("ledger holds %v, want one meal of 100g", meals)
	}
}

func TestCaptureSession_CommitToAnotherUser(t *testing.T) {
	s, _ := startAdjustable(t)
	ledger := NewDailyLedger(&memStore{}, "bob", march1)
	if _, err := s.Commit(context.Background(), ledger); !errors.Is(err, ErrValidation) {
		t.Errorf("Commit() to bob's ledger = %v, want ErrValidation", err)
	}
	wantState(t, s, Adjustable)
}

func TestCaptureSession_Close(t *testing.T) {
	s, src := startCaptured(t, &fakeAnalyzer{analysis: rice})
	if err := s.Close(); err != nil {
		t.Fatalf("Close() unexpected error: %v", err)
	}
	wantState(t, s, Discarded)
	if got := src.Closed(); got != 1 {
		t.Errorf("source closed %d times, want 1", got)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() unexpected error: %v", err)
	}
	if got := src.Closed(); got != 1 {
		t.Errorf("source closed %d times after second Close, want 1", got)
	}
}

func TestCaptureSession_ReleaseError(t *testing.T) {
	s := NewCaptureSession(&fakeAnalyzer{analysis: rice}, "ana")
	src := newFakeSource([]byte("jpeg"))
	src.closeErr = errors.New("device gone")
	if err := s.Start(src); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	if err := s.Discard(); !errors.Is(err, src.closeErr) {
		t.Errorf("Discard() = %v, want %v", err, src.closeErr)
	}
	// the entry is discarded anyway.
	wantState(t, s, Discarded)
}

func TestCaptureSession_ReleaseErrorBeforeAnalysis(t *testing.T) {
	ctx := context.Background()
	analyzer := &fakeAnalyzer{analysis: rice}
	s := NewCaptureSession(analyzer, "ana")
	src := newFakeSource([]byte("jpeg"))
	src.closeErr = errors.New("device gone")
	if err := s.Start(src); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	if err := s.Capture(ctx); err != nil {
		t.Fatalf("Capture() unexpected error: %v", err)
	}

	if err := s.Analyze(ctx); !errors.Is(err, src.closeErr) {
		t.Errorf("Analyze() = %v, want %v", err, src.closeErr)
	}
	wantState(t, s, Captured)
	if got := analyzer.Calls(); got != 0 {
		t.Errorf("analyzer called %d times, want 0", got)
	}

	// the source is gone, analyzing again goes on with the image.
	if err := s.Analyze(ctx); err != nil {
		t.Fatalf("second Analyze() unexpected error: %v", err)
	}
	wantState(t, s, Adjustable)
	if got := src.Closed(); got != 1 {
		t.Errorf("source closed %d times, want 1", got)
	}
}

// waitFor polls cond until it holds.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition never met")
		}
		time.Sleep(time.Millisecond)
	}
}
