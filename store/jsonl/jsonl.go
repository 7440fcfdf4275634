// Package jsonl stores meals in a folder of JSON Lines files, human-readable
// and git-friendly: one folder per user and one file per year.
//
//	<root>/ana/2025.jsonl
//	<root>/ana/2026.jsonl
package jsonl

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/etnz/platelog"
	"github.com/etnz/platelog/date"
)

const yearFilesGlob = "[0-9][0-9][0-9][0-9].jsonl"

// Store is a platelog.Store backed by a folder.
type Store struct {
	root string
	mu   sync.Mutex // serializes file access
}

// Open returns a store rooted at dir, creating it if needed.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create meal folder %q: %w", dir, err)
	}
	return &Store{root: dir}, nil
}

// userDir returns the folder of user, rejecting names that are not a plain folder name.
func (s *Store) userDir(user platelog.UserID) (string, error) {
	name := string(user)
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid user name %q", user)
	}
	return filepath.Join(s.root, name), nil
}

func yearFile(dir string, year int) string {
	return filepath.Join(dir, fmt.Sprintf("%04d.jsonl", year))
}

// readFile decodes a year file. A missing file holds no meal.
func readFile(filename string) ([]platelog.CommittedMeal, error) {
	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot open %q for reading: %w", filename, err)
	}
	meals, err := platelog.DecodeMeals(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("format error in %q: %w", filename, err)
	}
	return meals, nil
}

// writeFile replaces a year file atomically, or removes it when meals is empty.
func writeFile(filename string, meals []platelog.CommittedMeal) error {
	if len(meals) == 0 {
		if err := os.Remove(filename); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("persist error: cannot remove %q: %w", filename, err)
		}
		return nil
	}
	var buf bytes.Buffer
	if err := platelog.EncodeMeals(&buf, meals); err != nil {
		return fmt.Errorf("persist error: %w", err)
	}
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("persist error: cannot write %q: %w", tmp, err)
	}
	if err := os.Rename(tmp, filename); err != nil {
		return fmt.Errorf("persist error: cannot replace %q: %w", filename, err)
	}
	return nil
}

// ListMeals returns the meals of user on day, in file order.
func (s *Store) ListMeals(ctx context.Context, user platelog.UserID, day date.Date) ([]platelog.CommittedMeal, error) {
	dir, err := s.userDir(user)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	meals, err := readFile(yearFile(dir, day.Year()))
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(meals, func(m platelog.CommittedMeal) bool { return m.Date != day }), nil
}

// SaveMeal appends the meal to its year file.
func (s *Store) SaveMeal(ctx context.Context, meal platelog.CommittedMeal) error {
	dir, err := s.userDir(meal.User)
	if err != nil {
		return err
	}
	if meal.ID == "" {
		return fmt.Errorf("cannot save a meal without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("persist error: cannot create %q: %w", dir, err)
	}
	f, err := os.OpenFile(yearFile(dir, meal.Date.Year()), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("persist error: cannot open year file: %w", err)
	}
	if err := platelog.EncodeMeal(f, meal); err != nil {
		f.Close()
		return fmt.Errorf("persist error: %w", err)
	}
	return f.Close()
}

// DeleteMeal removes the meal with that id from whichever year file holds it.
func (s *Store) DeleteMeal(ctx context.Context, user platelog.UserID, id string) error {
	dir, err := s.userDir(user)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	filenames, err := filepath.Glob(filepath.Join(dir, yearFilesGlob))
	if err != nil {
		return fmt.Errorf("cannot scan folder %q: %w", dir, err)
	}
	for _, filename := range filenames {
		meals, err := readFile(filename)
		if err != nil {
			return err
		}
		i := slices.IndexFunc(meals, func(m platelog.CommittedMeal) bool { return m.ID == id })
		if i < 0 {
			continue
		}
		return writeFile(filename, slices.Delete(meals, i, i+1))
	}
	return fmt.Errorf("%w: %q", platelog.ErrNotFound, id)
}

// ListDailyTotals summarizes the days of r that have meals.
func (s *Store) ListDailyTotals(ctx context.Context, user platelog.UserID, r date.Range) ([]platelog.DailySummary, error) {
	dir, err := s.userDir(user)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	filenames, err := filepath.Glob(filepath.Join(dir, yearFilesGlob))
	if err != nil {
		return nil, fmt.Errorf("cannot scan folder %q: %w", dir, err)
	}
	var meals []platelog.CommittedMeal
	for _, filename := range filenames {
		year, err := strconv.Atoi(strings.TrimSuffix(filepath.Base(filename), ".jsonl"))
		if err != nil || year < r.From.Year() || year > r.To.Year() {
			continue
		}
		m, err := readFile(filename)
		if err != nil {
			return nil, err
		}
		meals = append(meals, m...)
	}
	return platelog.Summarize(meals, r), nil
}
