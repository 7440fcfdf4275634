package platelog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/etnz/platelog/date"
	"github.com/shopspring/decimal"
)

// Meals are persisted as JSON Lines: one meal per line, keys in a fixed order
// and nutrients flattened, so that a day file reads well and diffs well.
//
//	{"id":"…","user":"ana","date":"2025-03-01","at":"2025-03-01T12:30:00+01:00","food":"rice","portion":150,"calories":195,"protein":4.1,"carbs":42,"fats":0.5}

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// maxLineSize bounds one encoded meal, image included.
const maxLineSize = 32 << 20

// jmeal is the decoding side of a meal line.
type jmeal struct {
	ID       string          `json:"id"`
	User     UserID          `json:"user"`
	Date     date.Date       `json:"date"`
	At       time.Time       `json:"at"`
	Food     string          `json:"food"`
	Portion  Grams           `json:"portion"`
	Calories decimal.Decimal `json:"calories"`
	Protein  decimal.Decimal `json:"protein"`
	Carbs    decimal.Decimal `json:"carbs"`
	Fats     decimal.Decimal `json:"fats"`
	Image    []byte          `json:"image"`
}

// MarshalJSON writes the meal as a flat object with a stable key order.
func (m CommittedMeal) MarshalJSON() ([]byte, error) {
	var w jsonObjectWriter
	w.Append("id", m.ID).
		Append("user", m.User).
		Append("date", m.Date).
		Append("at", m.At).
		Append("food", m.FoodName).
		Append("portion", m.Portion).
		EmbedFrom(m.Nutrients).
		Optional("image", m.Image)
	return w.MarshalJSON()
}

// UnmarshalJSON reads a meal written by MarshalJSON.
func (m *CommittedMeal) UnmarshalJSON(data []byte) error {
	var j jmeal
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	*m = CommittedMeal{
		ID:        j.ID,
		User:      j.User,
		Date:      j.Date,
		At:        j.At,
		FoodName:  j.Food,
		Portion:   j.Portion,
		Nutrients: Nutrients{Calories: j.Calories, Protein: j.Protein, Carbs: j.Carbs, Fats: j.Fats},
		Image:     j.Image,
	}
	return nil
}

// EncodeMeal writes m as a single line.
func EncodeMeal(w io.Writer, m CommittedMeal) error {
	line, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("could not encode meal %q: %w", m.ID, err)
	}
	line = append(line, '\n')
	_, err = w.Write(line)
	return err
}

// EncodeMeals writes meals, one per line, in the given order.
func EncodeMeals(w io.Writer, meals []CommittedMeal) error {
	bw := bufio.NewWriter(w)
	for _, m := range meals {
		if err := EncodeMeal(bw, m); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// DecodeMeals reads meals written by EncodeMeals. Blank lines are ignored.
func DecodeMeals(r io.Reader) ([]CommittedMeal, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	var meals []CommittedMeal
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}
		var m CommittedMeal
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, fmt.Errorf("could not decode meal in line %d: %w", lineNum, err)
		}
		if m.ID == "" {
			return nil, fmt.Errorf("meal in line %d has no id", lineNum)
		}
		meals = append(meals, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("could not read meals: %w", err)
	}
	return meals, nil
}
