package platelog

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/etnz/platelog/date"
	"github.com/google/uuid"
)

// DailyLedger is the in-memory view of one day of committed meals and their
// totals, kept consistent with a Store of record.
//
// Totals always equal the sum of the meals: they are maintained
// incrementally, one meal at a time, and only after the store confirmed the
// change. Mutations (Load, Commit, Delete) are processed one at a time in the
// order they were issued.
type DailyLedger struct {
	store Store
	user  UserID

	// Now returns the current local time, stamped on committed meals.
	Now func() time.Time
	// NewID returns a fresh meal identifier.
	NewID func() string
	// Logger receives the ledger's structured logs; nil means slog.Default().
	Logger *slog.Logger

	serial ticketLock

	mu     sync.RWMutex // guards the fields below
	day    date.Date
	meals  []CommittedMeal
	totals Nutrients
}

// NewDailyLedger returns an empty ledger of user for day. Call Load to fetch
// the meals already in the store.
func NewDailyLedger(store Store, user UserID, day date.Date) *DailyLedger {
	return &DailyLedger{
		store: store,
		user:  user,
		day:   day,
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

func (l *DailyLedger) logger() *slog.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return slog.Default()
}

// User returns the ledger's owner.
func (l *DailyLedger) User() UserID { return l.user }

// Date returns the day the ledger shows.
func (l *DailyLedger) Date() date.Date {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.day
}

// Meals returns a copy of the day's meals in commit order.
func (l *DailyLedger) Meals() []CommittedMeal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.meals)
}

// Totals returns the day's totals.
func (l *DailyLedger) Totals() Nutrients {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals
}

// Rescan recomputes the totals from the meal list. It always equals Totals.
func (l *DailyLedger) Rescan() Nutrients {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Sum(l.meals)
}

// Meal returns the meal with that id, if present.
func (l *DailyLedger) Meal(id string) (CommittedMeal, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i := l.indexOf(id)
	if i < 0 {
		return CommittedMeal{}, false
	}
	return l.meals[i], true
}

func (l *DailyLedger) indexOf(id string) int {
	return slices.IndexFunc(l.meals, func(m CommittedMeal) bool { return m.ID == id })
}

// Load replaces the ledger content with the meals the store holds for day,
// and recomputes the totals from scratch.
//
// On failure the ledger is unchanged and the error wraps ErrLoad. The ledger
// has no fallback content: the caller decides what to show.
func (l *DailyLedger) Load(ctx context.Context, day date.Date) error {
	if err := l.serial.lock(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLoad, err)
	}
	defer l.serial.unlock()

	meals, err := l.store.ListMeals(ctx, l.user, day)
	if err != nil {
		l.logger().Warn("ledger load failed", "user", l.user, "date", day, "error", err)
		return fmt.Errorf("%w: meals of %s on %s: %w", ErrLoad, l.user, day, err)
	}
	slices.SortStableFunc(meals, func(a, b CommittedMeal) int { return a.At.Compare(b.At) })

	l.mu.Lock()
	defer l.mu.Unlock()
	l.day = day
	l.meals = meals
	l.totals = Sum(meals)
	l.logger().Debug("ledger loaded", "user", l.user, "date", day, "meals", len(meals))
	return nil
}

// Commit turns an adjusted candidate into a committed meal of the ledger's
// day, saves it to the store and, once saved, appends it to the ledger.
//
// The meal's nutrients are the candidate's rescaled nutrients with display
// rounding applied; its time is Now truncated to the minute.
//
// Errors wrap ErrValidation for an invalid candidate (the store is not
// called) or ErrCommit for a store failure. In both cases the ledger is
// unchanged.
func (l *DailyLedger) Commit(ctx context.Context, c CandidateMeal) (CommittedMeal, error) {
	if err := c.Validate(); err != nil {
		return CommittedMeal{}, err
	}
	nutrients, err := c.Display()
	if err != nil {
		return CommittedMeal{}, err
	}

	if err := l.serial.lock(ctx); err != nil {
		return CommittedMeal{}, fmt.Errorf("%w: %w", ErrCommit, err)
	}
	defer l.serial.unlock()

	meal := CommittedMeal{
		ID:        l.NewID(),
		User:      l.user,
		Date:      l.Date(),
		At:        l.Now().Truncate(time.Minute),
		FoodName:  c.FoodName,
		Portion:   c.Portion,
		Nutrients: nutrients,
		Image:     slices.Clone(c.Image),
	}
	if err := l.store.SaveMeal(ctx, meal); err != nil {
		l.logger().Warn("ledger commit failed", "user", l.user, "food", meal.FoodName, "error", err)
		return CommittedMeal{}, fmt.Errorf("%w: %q: %w", ErrCommit, meal.FoodName, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.meals = append(l.meals, meal)
	l.totals = l.totals.Add(meal.Nutrients)
	l.logger().Info("meal committed", "user", l.user, "id", meal.ID, "food", meal.FoodName, "portion", meal.Portion.String())
	return meal, nil
}

// Delete removes a meal from the store and then from the ledger.
//
// The meal must be in the ledger, otherwise the error wraps ErrNotFound. A
// store failure wraps ErrDelete. In both cases the ledger is unchanged: a
// meal never leaves the ledger before the store confirmed its deletion.
func (l *DailyLedger) Delete(ctx context.Context, id string) error {
	if err := l.serial.lock(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDelete, err)
	}
	defer l.serial.unlock()

	if _, ok := l.Meal(id); !ok {
		return fmt.Errorf("%w: %q in %s ledger", ErrNotFound, id, l.Date())
	}
	if err := l.store.DeleteMeal(ctx, l.user, id); err != nil {
		l.logger().Warn("ledger delete failed", "user", l.user, "id", id, "error", err)
		return fmt.Errorf("%w: %q: %w", ErrDelete, id, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// mutations are serialized, the meal is still at some index.
	i := l.indexOf(id)
	meal := l.meals[i]
	l.meals = slices.Delete(l.meals, i, i+1)
	l.totals = l.totals.Sub(meal.Nutrients)
	l.logger().Info("meal deleted", "user", l.user, "id", id, "food", meal.FoodName)
	return nil
}
