// Package analysis implements platelog.Analyzer on top of image recognition
// services.
package analysis

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/etnz/platelog"
	"github.com/shopspring/decimal"
)

// food is one recognised food as the engines answer it. Nutrients are
// nullable so that an absent value is told apart from a zero.
type food struct {
	FoodName    string              `json:"food_name"`
	PortionSize decimal.Decimal     `json:"portion_size"`
	Calories    decimal.NullDecimal `json:"calories"`
	Protein     decimal.NullDecimal `json:"protein"`
	Carbs       decimal.NullDecimal `json:"carbs"`
	Fats        decimal.NullDecimal `json:"fats"`
	Confidence  string              `json:"confidence"`
}

// check reports the nutrients f does not give.
func (f food) check() error {
	var missing []string
	for _, n := range []struct {
		name  string
		value decimal.NullDecimal
	}{{"calories", f.Calories}, {"protein", f.Protein}, {"carbs", f.Carbs}, {"fats", f.Fats}} {
		if !n.value.Valid {
			missing = append(missing, n.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %q has no %s", platelog.ErrAnalysis, f.FoodName, strings.Join(missing, ", "))
	}
	return nil
}

func (f food) analysis() platelog.Analysis {
	return platelog.Analysis{
		FoodName:        strings.TrimSpace(f.FoodName),
		BaselinePortion: platelog.G(f.PortionSize),
		Baseline:        platelog.N(f.Calories.Decimal, f.Protein.Decimal, f.Carbs.Decimal, f.Fats.Decimal),
		Confidence:      platelog.ParseConfidence(f.Confidence),
	}
}

func addNull(a, b decimal.NullDecimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: a.Decimal.Add(b.Decimal), Valid: a.Valid && b.Valid}
}

// merge combines several foods seen on the same plate into one: names are
// joined with " + ", portions and nutrients are summed. The first food's
// confidence is kept.
func merge(foods []food) food {
	out := foods[0]
	names := []string{strings.TrimSpace(foods[0].FoodName)}
	for _, f := range foods[1:] {
		names = append(names, strings.TrimSpace(f.FoodName))
		out.PortionSize = out.PortionSize.Add(f.PortionSize)
		out.Calories = addNull(out.Calories, f.Calories)
		out.Protein = addNull(out.Protein, f.Protein)
		out.Carbs = addNull(out.Carbs, f.Carbs)
		out.Fats = addNull(out.Fats, f.Fats)
	}
	out.FoodName = strings.Join(names, " + ")
	return out
}

var fenceRE = regexp.MustCompile("```(?:json)?\\s*")

// Parse reads an engine's text answer: a JSON object describing one food, or
// an array of foods that are merged into one. Markdown code fences around
// the JSON are ignored.
//
// Errors wrap platelog.ErrAnalysis, including for answers that parse but
// cannot seed a candidate (no name, no portion, a missing nutrient).
func Parse(text string) (platelog.Analysis, error) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimSpace(fenceRE.ReplaceAllString(text, ""))
	}
	raw := []byte(text)

	var f food
	switch {
	case bytes.HasPrefix(raw, []byte("[")):
		var foods []food
		if err := json.Unmarshal(raw, &foods); err != nil {
			return platelog.Analysis{}, fmt.Errorf("%w: cannot parse answer %q: %w", platelog.ErrAnalysis, abbrev(text), err)
		}
		if len(foods) == 0 {
			return platelog.Analysis{}, fmt.Errorf("%w: no food identified", platelog.ErrAnalysis)
		}
		for _, f := range foods {
			if err := f.check(); err != nil {
				return platelog.Analysis{}, err
			}
		}
		f = merge(foods)
	case bytes.HasPrefix(raw, []byte("{")):
		if err := json.Unmarshal(raw, &f); err != nil {
			return platelog.Analysis{}, fmt.Errorf("%w: cannot parse answer %q: %w", platelog.ErrAnalysis, abbrev(text), err)
		}
		if err := f.check(); err != nil {
			return platelog.Analysis{}, err
		}
	default:
		return platelog.Analysis{}, fmt.Errorf("%w: answer is not JSON: %q", platelog.ErrAnalysis, abbrev(text))
	}

	a := f.analysis()
	if err := a.Validate(); err != nil {
		return platelog.Analysis{}, err
	}
	return a, nil
}

// abbrev shortens s for error messages.
func abbrev(s string) string {
	const max = 120
	if r := []rune(s); len(r) > max {
		return string(r[:max]) + "…"
	}
	return s
}
