package platelog

import "fmt"

// Rescale returns the nutrients of 'portion' grams of a food whose nutrients
// for 'baselinePortion' grams are 'baseline'.
//
// Scaling is linear and exact: baseline * portion / baselinePortion for each
// nutrient. The result is not rounded, so rescaling always starts from the
// analysis baseline and errors never compound across edits.
func Rescale(baseline Nutrients, baselinePortion, portion Grams) (Nutrients, error) {
	if !baselinePortion.IsPositive() {
		return Nutrients{}, fmt.Errorf("%w: baseline portion %v is not positive", ErrValidation, baselinePortion)
	}
	if !portion.IsPositive() {
		return Nutrients{}, fmt.Errorf("%w: portion %v is not positive", ErrValidation, portion)
	}
	p, b := portion.value, baselinePortion.value
	return Nutrients{
		Calories: baseline.Calories.Mul(p).Div(b),
		Protein:  baseline.Protein.Mul(p).Div(b),
		Carbs:    baseline.Carbs.Mul(p).Div(b),
		Fats:     baseline.Fats.Mul(p).Div(b),
	}, nil
}
