// Package remote stores meals in a nutrition backend over HTTP.
//
// The backend speaks JSON:
//
//	GET    /api/meals/{user}/{date}            meals of a day
//	POST   /api/meal/save                      save a meal
//	DELETE /api/meal/{id}                      delete a meal
//	GET    /api/meals/history/{user}?days=N    meals of the last N days, by day
package remote

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/etnz/platelog"
	"github.com/etnz/platelog/date"
	"github.com/etnz/platelog/internal/jsonhttp"
	"github.com/shopspring/decimal"
)

// Store is a platelog.Store talking to a remote backend.
//
// Reads are retried on transient failures; writes are not, as the backend
// gives no way to tell whether a failed write was applied.
type Store struct {
	base   string
	client *http.Client
	logger *slog.Logger

	// Attempts and Delay tune the retry of reads.
	Attempts uint
	Delay    time.Duration
	// Location is the time zone of the backend's meal times, time.Local by default.
	Location *time.Location
	// Today returns the current day, used to size history requests.
	Today func() date.Date
}

// New returns a store for the backend at base, like "https://meals.example.com".
func New(base string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		base:     strings.TrimSuffix(base, "/"),
		client:   jsonhttp.NewClient(logger, 30*time.Second),
		logger:   logger,
		Attempts: 3,
		Delay:    200 * time.Millisecond,
		Location: time.Local,
		Today:    date.Today,
	}
}

// jmeal is a meal as the backend exchanges it.
type jmeal struct {
	MealID      string          `json:"meal_id"`
	UserID      string          `json:"user_id"`
	Date        string          `json:"date"`
	Time        string          `json:"time"`
	FoodName    string          `json:"food_name"`
	PortionSize decimal.Decimal `json:"portion_size"`
	Calories    decimal.Decimal `json:"calories"`
	Protein     decimal.Decimal `json:"protein"`
	Carbs       decimal.Decimal `json:"carbs"`
	Fats        decimal.Decimal `json:"fats"`
	ImageBase64 *string         `json:"image_base64,omitempty"`
}

func (s *Store) toWire(m platelog.CommittedMeal) jmeal {
	j := jmeal{
		MealID:      m.ID,
		UserID:      string(m.User),
		Date:        m.Date.String(),
		Time:        m.At.In(s.Location).Format("15:04"),
		FoodName:    m.FoodName,
		PortionSize: m.Portion.Decimal(),
		Calories:    m.Nutrients.Calories,
		Protein:     m.Nutrients.Protein,
		Carbs:       m.Nutrients.Carbs,
		Fats:        m.Nutrients.Fats,
	}
	if len(m.Image) > 0 {
		img := base64.StdEncoding.EncodeToString(m.Image)
		j.ImageBase64 = &img
	}
	return j
}

func (s *Store) fromWire(j jmeal) (platelog.CommittedMeal, error) {
	day, err := date.Parse(j.Date)
	if err != nil {
		return platelog.CommittedMeal{}, fmt.Errorf("meal %q: %w", j.MealID, err)
	}
	at := day.In(s.Location)
	if j.Time != "" {
		hm, err := time.Parse("15:04", j.Time)
		if err != nil {
			return platelog.CommittedMeal{}, fmt.Errorf("meal %q: invalid time %q: %w", j.MealID, j.Time, err)
		}
		at = time.Date(day.Year(), day.Month(), day.Day(), hm.Hour(), hm.Minute(), 0, 0, s.Location)
	}
	m := platelog.CommittedMeal{
		ID:        j.MealID,
		User:      platelog.UserID(j.UserID),
		Date:      day,
		At:        at,
		FoodName:  j.FoodName,
		Portion:   platelog.G(j.PortionSize),
		Nutrients: platelog.N(j.Calories, j.Protein, j.Carbs, j.Fats),
	}
	if j.ImageBase64 != nil && *j.ImageBase64 != "" {
		if m.Image, err = base64.StdEncoding.DecodeString(*j.ImageBase64); err != nil {
			return platelog.CommittedMeal{}, fmt.Errorf("meal %q: invalid image: %w", j.MealID, err)
		}
	}
	return m, nil
}

// transient reports whether a failed read is worth retrying.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *jsonhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// get performs an idempotent GET, retrying transient failures.
func (s *Store) get(ctx context.Context, addr string, out any) error {
	return retry.Do(
		func() error { return jsonhttp.Get(ctx, s.client, addr, out) },
		retry.Context(ctx),
		retry.Attempts(s.Attempts),
		retry.Delay(s.Delay),
		retry.MaxDelay(5*time.Second),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(transient),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("retrying meal backend", "attempt", n+1, "url", addr, "error", err)
		}),
	)
}

// ListMeals returns the meals of user on day.
func (s *Store) ListMeals(ctx context.Context, user platelog.UserID, day date.Date) ([]platelog.CommittedMeal, error) {
	var resp struct {
		Meals []jmeal `json:"meals"`
	}
	addr := fmt.Sprintf("%s/api/meals/%s/%s", s.base, url.PathEscape(string(user)), day)
	if err := s.get(ctx, addr, &resp); err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	meals := make([]platelog.CommittedMeal, 0, len(resp.Meals))
	for _, j := range resp.Meals {
		m, err := s.fromWire(j)
		if err != nil {
			return nil, fmt.Errorf("list meals: %w", err)
		}
		meals = append(meals, m)
	}
	return meals, nil
}

// SaveMeal posts the meal, with its image if any.
func (s *Store) SaveMeal(ctx context.Context, m platelog.CommittedMeal) error {
	if err := jsonhttp.Do(ctx, s.client, http.MethodPost, s.base+"/api/meal/save", s.toWire(m), nil); err != nil {
		return fmt.Errorf("save meal: %w", err)
	}
	return nil
}

// DeleteMeal deletes the meal with that id. The backend identifies meals by
// id alone; user is not sent.
func (s *Store) DeleteMeal(ctx context.Context, user platelog.UserID, id string) error {
	err := jsonhttp.Do(ctx, s.client, http.MethodDelete, s.base+"/api/meal/"+url.PathEscape(id), nil, nil)
	var se *jsonhttp.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %q", platelog.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	return nil
}

// ListDailyTotals asks the history from r.From up to today and keeps the
// days of r. Totals are recomputed from the meals, exactly.
func (s *Store) ListDailyTotals(ctx context.Context, user platelog.UserID, r date.Range) ([]platelog.DailySummary, error) {
	days := s.Today().Sub(r.From) + 1
	if days < 1 {
		return nil, nil
	}
	var resp struct {
		History []struct {
			Date  string  `json:"date"`
			Meals []jmeal `json:"meals"`
		} `json:"history"`
	}
	addr := fmt.Sprintf("%s/api/meals/history/%s?days=%s", s.base, url.PathEscape(string(user)), strconv.Itoa(days))
	if err := s.get(ctx, addr, &resp); err != nil {
		return nil, fmt.Errorf("list daily totals: %w", err)
	}
	var meals []platelog.CommittedMeal
	for _, day := range resp.History {
		for _, j := range day.Meals {
			m, err := s.fromWire(j)
			if err != nil {
				return nil, fmt.Errorf("list daily totals: %w", err)
			}
			meals = append(meals, m)
		}
	}
	return platelog.Summarize(meals, r), nil
}
