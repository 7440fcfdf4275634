package platelog

import (
	"context"
	"slices"

	"github.com/etnz/platelog/date"
)

// Analyzer identifies the food in an image and estimates its nutrients for a
// default portion.
//
// It is treated as a slow, possibly failing, pure function: the session calls
// it once per request and never retries on its own.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, user UserID) (Analysis, error)
}

// Store is the store of record for committed meals.
//
// Implementations return an error wrapping ErrNotFound when deleting a meal
// they do not hold.
type Store interface {
	ListMeals(ctx context.Context, user UserID, day date.Date) ([]CommittedMeal, error)
	SaveMeal(ctx context.Context, meal CommittedMeal) error
	DeleteMeal(ctx context.Context, user UserID, id string) error
	// ListDailyTotals returns one summary per day of r that has meals, in chronological order.
	ListDailyTotals(ctx context.Context, user UserID, r date.Range) ([]DailySummary, error)
}

// Source is an acquired image-producing resource, like an open camera stream
// or a picked file.
//
// Close releases the resource; it is called exactly once by the session, on
// whatever path the session leaves acquisition.
type Source interface {
	Acquire(ctx context.Context) ([]byte, error)
	Close() error
}

// DailySummary is the aggregate of one day of meals.
type DailySummary struct {
	Date      date.Date `json:"date"`
	Totals    Nutrients `json:"totals"`
	MealCount int       `json:"mealCount"`
}

// Summarize groups meals by day and returns one summary per day in
// chronological order. Meals outside r are ignored; a zero r accepts all.
func Summarize(meals []CommittedMeal, r date.Range) []DailySummary {
	index := make(map[date.Date]int)
	var out []DailySummary
	for _, m := range meals {
		if r != (date.Range{}) && !r.Contains(m.Date) {
			continue
		}
		i, ok := index[m.Date]
		if !ok {
			i = len(out)
			index[m.Date] = i
			out = append(out, DailySummary{Date: m.Date})
		}
		out[i].Totals = out[i].Totals.Add(m.Nutrients)
		out[i].MealCount++
	}
	slices.SortFunc(out, func(a, b DailySummary) int { return a.Date.Sub(b.Date) })
	return out
}
