package platelog

import (
	"fmt"
	"strings"
	"time"

	"github.com/etnz/platelog/date"
)

// UserID identifies the user every ledger and analysis call is made for.
type UserID string

// Confidence is the analysis engine's own estimate of its accuracy.
type Confidence string

const (
	ConfidenceUnknown Confidence = ""
	ConfidenceLow     Confidence = "low"
	ConfidenceMedium  Confidence = "medium"
	ConfidenceHigh    Confidence = "high"
)

// ParseConfidence accepts english and portuguese levels ("alta", "média", "baixa").
// Unknown levels map to ConfidenceUnknown.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "alta":
		return ConfidenceHigh
	case "medium", "média", "media":
		return ConfidenceMedium
	case "low", "baixa":
		return ConfidenceLow
	default:
		return ConfidenceUnknown
	}
}

// Analysis is the answer of the analysis engine for one image: the food it
// recognised and its nutrients for the baseline portion.
type Analysis struct {
	FoodName        string     `json:"foodName"`
	BaselinePortion Grams      `json:"portionGrams"`
	Baseline        Nutrients  `json:"nutrients"`
	Confidence      Confidence `json:"confidence,omitempty"`
}

// Validate checks that the analysis can seed a candidate meal.
//
// Errors wrap ErrAnalysis: a malformed answer is a failure of the engine, not of the user.
func (a Analysis) Validate() error {
	var problems []string
	if strings.TrimSpace(a.FoodName) == "" {
		problems = append(problems, "missing food name")
	}
	if !a.BaselinePortion.IsPositive() {
		problems = append(problems, fmt.Sprintf("baseline portion %v is not positive", a.BaselinePortion))
	}
	if a.Baseline.IsNegative() {
		problems = append(problems, fmt.Sprintf("negative nutrients %v", a.Baseline))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrAnalysis, strings.Join(problems, ", "))
	}
	return nil
}

// CandidateMeal is an in-progress meal entry produced by one capture and
// analysis cycle. Only the portion is mutable.
type CandidateMeal struct {
	FoodName        string
	BaselinePortion Grams
	Baseline        Nutrients
	Confidence      Confidence
	Portion         Grams
	Image           []byte
}

// newCandidate seeds a candidate from a valid analysis, at the baseline portion.
func newCandidate(a Analysis, image []byte) CandidateMeal {
	return CandidateMeal{
		FoodName:        a.FoodName,
		BaselinePortion: a.BaselinePortion,
		Baseline:        a.Baseline,
		Confidence:      a.Confidence,
		Portion:         a.BaselinePortion,
		Image:           image,
	}
}

// Validate checks the candidate can be committed.
func (c CandidateMeal) Validate() error {
	switch {
	case strings.TrimSpace(c.FoodName) == "":
		return fmt.Errorf("%w: candidate has no food name", ErrValidation)
	case !c.BaselinePortion.IsPositive():
		return fmt.Errorf("%w: candidate baseline portion %v is not positive", ErrValidation, c.BaselinePortion)
	case !c.Portion.IsPositive():
		return fmt.Errorf("%w: portion %v is not positive", ErrValidation, c.Portion)
	case c.Baseline.IsNegative():
		return fmt.Errorf("%w: candidate has negative nutrients", ErrValidation)
	}
	return nil
}

// Scaled returns the exact nutrients for the current portion.
func (c CandidateMeal) Scaled() (Nutrients, error) {
	return Rescale(c.Baseline, c.BaselinePortion, c.Portion)
}

// Display returns the nutrients for the current portion as they are shown and committed.
func (c CandidateMeal) Display() (Nutrients, error) {
	n, err := c.Scaled()
	if err != nil {
		return Nutrients{}, err
	}
	return n.Rounded(), nil
}

// CommittedMeal is a meal saved in the store of record. It is immutable: it
// can only be removed.
type CommittedMeal struct {
	ID        string
	User      UserID
	Date      date.Date // the day the meal counts for
	At        time.Time // local time of the commit, to the minute
	FoodName  string
	Portion   Grams
	Nutrients Nutrients // rounded for display
	Image     []byte    // optional
}

func (m CommittedMeal) String() string {
	return fmt.Sprintf("%s %s %s (%v): %v", m.Date, m.At.Format("15:04"), m.FoodName, m.Portion, m.Nutrients)
}
