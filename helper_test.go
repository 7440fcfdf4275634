package platelog

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/etnz/platelog/date"
)

// memStore is an in-memory Store. Errors set on it are returned by the
// matching method instead of doing the work.
type memStore struct {
	mu        sync.Mutex
	meals     []CommittedMeal
	listErr   error
	saveErr   error
	deleteErr error
	// calls records "save <food>", "delete <id>" and "list <date>" in call order.
	calls []string
	// gate, when not nil, is received from before every SaveMeal.
	gate chan struct{}
}

func (s *memStore) ListMeals(ctx context.Context, user UserID, day date.Date) ([]CommittedMeal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "list "+day.String())
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []CommittedMeal
	for _, m := range s.meals {
		if m.User == user && m.Date == day {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *memStore) SaveMeal(ctx context.Context, meal CommittedMeal) error {
	if s.gate != nil {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "save "+meal.FoodName)
	if s.saveErr != nil {
		return s.saveErr
	}
	s.meals = append(s.meals, meal)
	return nil
}

func (s *memStore) DeleteMeal(ctx context.Context, user UserID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "delete "+id)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	i := slices.IndexFunc(s.meals, func(m CommittedMeal) bool { return m.ID == id && m.User == user })
	if i < 0 {
		return ErrNotFound
	}
	s.meals = slices.Delete(s.meals, i, i+1)
	return nil
}

func (s *memStore) ListDailyTotals(ctx context.Context, user UserID, r date.Range) ([]DailySummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var mine []CommittedMeal
	for _, m := range s.meals {
		if m.User == user {
			mine = append(mine, m)
		}
	}
	return Summarize(mine, r), nil
}

func (s *memStore) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

// fakeAnalyzer answers with a fixed analysis or error. When block is set, it
// waits for it (or ctx) before answering.
type fakeAnalyzer struct {
	analysis Analysis
	err      error
	block    chan struct{}
	started  chan struct{}
	mu       sync.Mutex
	calls    int
}

func (a *fakeAnalyzer) Analyze(ctx context.Context, image []byte, user UserID) (Analysis, error) {
	a.mu.Lock()
	a.calls++
	a.mu.Unlock()
	if a.started != nil {
		a.started <- struct{}{}
	}
	if a.block != nil {
		select {
		case <-a.block:
		case <-ctx.Done():
			return Analysis{}, ctx.Err()
		}
	}
	return a.analysis, a.err
}

func (a *fakeAnalyzer) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// fakeSource yields image once. Close unblocks a pending Acquire.
type fakeSource struct {
	image    []byte
	err      error
	block    bool
	closeErr error

	mu     sync.Mutex
	closed int
	done   chan struct{}
}

func newFakeSource(image []byte) *fakeSource {
	return &fakeSource{image: image, done: make(chan struct{})}
}

func (s *fakeSource) Acquire(ctx context.Context) ([]byte, error) {
	if s.block {
		select {
		case <-s.done:
			return nil, errors.New("source closed")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.image, s.err
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	if s.closed == 1 {
		close(s.done)
	}
	return s.closeErr
}

func (s *fakeSource) Closed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// rice is the analysis used across tests: 100g at 200 kcal.
var rice = Analysis{
	FoodName:        "Rice",
	BaselinePortion: G(100),
	Baseline:        N(200, 10, 30, 5),
	Confidence:      ConfidenceHigh,
}

// fixedClock returns a Now function always answering t.
func fixedClock(t time.Time) func() time.Time { return func() time.Time { return t } }

// sequentialIDs returns a NewID function answering m1, m2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return "m" + strconv.Itoa(n)
	}
}

// meal returns a committed meal of user "ana" with only calories set.
func meal(id, day string, calories int) CommittedMeal {
	return CommittedMeal{
		ID:        id,
		User:      "ana",
		Date:      date.MustParse(day),
		FoodName:  "food " + id,
		Portion:   G(100),
		Nutrients: N(calories, 0, 0, 0),
	}
}
