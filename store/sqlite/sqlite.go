// Package sqlite stores meals in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/etnz/platelog"
	"github.com/etnz/platelog/date"
	"github.com/etnz/platelog/store/sqlite/migrations"
	"github.com/shopspring/decimal"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store is a platelog.Store backed by SQLite. Decimals are stored as text so
// that they read back exactly.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and brings its schema up to date.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// a single writer, SQLite would serialize anyway.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

const mealColumns = `id, user_id, day, at, food_name, portion_grams, calories, protein, carbs, fats`

type scanner interface{ Scan(dest ...any) error }

// scanMeal reads mealColumns, plus the image when withImage.
func scanMeal(row scanner, withImage bool) (platelog.CommittedMeal, error) {
	var m platelog.CommittedMeal
	var user, day, at, portion, cal, pro, carb, fat string
	var image []byte
	dest := []any{&m.ID, &user, &day, &at, &m.FoodName, &portion, &cal, &pro, &carb, &fat}
	if withImage {
		dest = append(dest, &image)
	}
	if err := row.Scan(dest...); err != nil {
		return platelog.CommittedMeal{}, err
	}

	var err error
	m.User = platelog.UserID(user)
	if m.Date, err = date.Parse(day); err != nil {
		return platelog.CommittedMeal{}, fmt.Errorf("meal %q: %w", m.ID, err)
	}
	if m.At, err = time.Parse(time.RFC3339Nano, at); err != nil {
		return platelog.CommittedMeal{}, fmt.Errorf("meal %q: invalid time: %w", m.ID, err)
	}
	values := make([]decimal.Decimal, 5)
	for i, s := range []string{portion, cal, pro, carb, fat} {
		if values[i], err = decimal.NewFromString(s); err != nil {
			return platelog.CommittedMeal{}, fmt.Errorf("meal %q: invalid number %q: %w", m.ID, s, err)
		}
	}
	m.Portion = platelog.G(values[0])
	m.Nutrients = platelog.N(values[1], values[2], values[3], values[4])
	if len(image) > 0 {
		m.Image = image
	}
	return m, nil
}

func (s *Store) queryMeals(ctx context.Context, withImage bool, query string, args ...any) ([]platelog.CommittedMeal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var meals []platelog.CommittedMeal
	for rows.Next() {
		m, err := scanMeal(rows, withImage)
		if err != nil {
			return nil, err
		}
		meals = append(meals, m)
	}
	return meals, rows.Err()
}

// ListMeals returns the meals of user on day in commit order.
func (s *Store) ListMeals(ctx context.Context, user platelog.UserID, day date.Date) ([]platelog.CommittedMeal, error) {
	meals, err := s.queryMeals(ctx, true,
		`SELECT `+mealColumns+`, image FROM meals WHERE user_id = ? AND day = ? ORDER BY at, rowid`,
		string(user), day.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list meals: %w", err)
	}
	return meals, nil
}

// SaveMeal inserts the meal. Saving an id twice is an error.
func (s *Store) SaveMeal(ctx context.Context, m platelog.CommittedMeal) error {
	if m.ID == "" {
		return fmt.Errorf("meal id is required")
	}
	var image any
	if len(m.Image) > 0 {
		image = m.Image
	}
	n := m.Nutrients
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meals (`+mealColumns+`, image) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.User), m.Date.String(), m.At.Format(time.RFC3339Nano), m.FoodName,
		m.Portion.Decimal().String(), n.Calories.String(), n.Protein.String(), n.Carbs.String(), n.Fats.String(),
		image,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("save meal: id %q already exists", m.ID)
		}
		return fmt.Errorf("save meal: %w", err)
	}
	return nil
}

// DeleteMeal deletes the meal of user with that id.
func (s *Store) DeleteMeal(ctx context.Context, user platelog.UserID, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM meals WHERE id = ? AND user_id = ?`, id, string(user))
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %q", platelog.ErrNotFound, id)
	}
	return nil
}

// ListDailyTotals summarizes the days of r that have meals. Sums are made in
// Go: SQLite would sum the text decimals as floats.
func (s *Store) ListDailyTotals(ctx context.Context, user platelog.UserID, r date.Range) ([]platelog.DailySummary, error) {
	meals, err := s.queryMeals(ctx, false,
		`SELECT `+mealColumns+` FROM meals WHERE user_id = ? AND day BETWEEN ? AND ?`,
		string(user), r.From.String(), r.To.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list daily totals: %w", err)
	}
	return platelog.Summarize(meals, r), nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
