package renderer

import (
	"strings"

	"github.com/etnz/platelog"
	"github.com/etnz/platelog/date"
	"github.com/shopspring/decimal"
)

// Nutrition holds nutrient values formatted for display.
type Nutrition struct {
	Calories string
	Protein  string
	Carbs    string
	Fats     string
}

func nutrition(n platelog.Nutrients) Nutrition {
	r := n.Rounded()
	return Nutrition{
		Calories: r.Calories.String(),
		Protein:  r.Protein.StringFixed(1),
		Carbs:    r.Carbs.StringFixed(1),
		Fats:     r.Fats.StringFixed(1),
	}
}

// cell escapes s for use in a markdown table cell.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	return strings.Join(strings.Fields(s), " ")
}

// MealRow is one committed meal of a Day.
type MealRow struct {
	ID      string
	Time    string
	Food    string
	Portion string
	Nutrition
}

// Day is the view of one day of meals.
type Day struct {
	User   string
	Date   string
	Meals  []MealRow
	Count  int
	Totals Nutrition
}

// NewDay builds the view of a ledger's day.
func NewDay(user platelog.UserID, day date.Date, meals []platelog.CommittedMeal, totals platelog.Nutrients) *Day {
	d := &Day{
		User:   string(user),
		Date:   day.String(),
		Count:  len(meals),
		Totals: nutrition(totals),
	}
	for _, m := range meals {
		d.Meals = append(d.Meals, MealRow{
			ID:        m.ID,
			Time:      m.At.Format("15:04"),
			Food:      cell(m.FoodName),
			Portion:   m.Portion.String(),
			Nutrition: nutrition(m.Nutrients),
		})
	}
	return d
}

// Candidate is the preview of a candidate meal.
type Candidate struct {
	Food       string
	Portion    string
	Baseline   string
	Confidence string
	Nutrition
}

// NewCandidate builds the preview of c at its current portion.
func NewCandidate(c platelog.CandidateMeal) (*Candidate, error) {
	n, err := c.Display()
	if err != nil {
		return nil, err
	}
	confidence := string(c.Confidence)
	if c.Confidence == platelog.ConfidenceUnknown {
		confidence = "unknown"
	}
	return &Candidate{
		Food:       c.FoodName,
		Portion:    c.Portion.String(),
		Baseline:   c.BaselinePortion.String(),
		Confidence: confidence,
		Nutrition:  nutrition(n),
	}, nil
}

// DayRow is one day of a History.
type DayRow struct {
	Date  string
	Count int
	Nutrition
}

// History is the view of the daily totals over a range.
type History struct {
	User    string
	From    string
	To      string
	Days    []DayRow
	Average Nutrition // over the days with meals
}

// NewHistory builds the view of the summaries of r.
func NewHistory(user platelog.UserID, r date.Range, days []platelog.DailySummary) *History {
	h := &History{
		User: string(user),
		From: r.From.String(),
		To:   r.To.String(),
	}
	var sum platelog.Nutrients
	for _, d := range days {
		h.Days = append(h.Days, DayRow{
			Date:      d.Date.String(),
			Count:     d.MealCount,
			Nutrition: nutrition(d.Totals),
		})
		sum = sum.Add(d.Totals)
	}
	if len(days) > 0 {
		n := decimal.NewFromInt(int64(len(days)))
		h.Average = nutrition(platelog.Nutrients{
			Calories: sum.Calories.Div(n),
			Protein:  sum.Protein.Div(n),
			Carbs:    sum.Carbs.Div(n),
			Fats:     sum.Fats.Div(n),
		})
	}
	return h
}
