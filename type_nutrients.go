package platelog

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Nutrients is the nutrient profile of a portion of food.
//
// Values are exact decimals. Rounding is a presentation concern applied by
// Rounded, never to values that are going to be scaled again.
type Nutrients struct {
	Calories decimal.Decimal `json:"calories"` // kcal
	Protein  decimal.Decimal `json:"protein"`  // grams
	Carbs    decimal.Decimal `json:"carbs"`    // grams
	Fats     decimal.Decimal `json:"fats"`     // grams
}

// N builds a nutrient profile from kcal and macro grams.
func N[T float32 | float64 | int | int32 | int64 | decimal.Decimal](calories, protein, carbs, fats T) Nutrients {
	return Nutrients{
		Calories: newDecimal(calories),
		Protein:  newDecimal(protein),
		Carbs:    newDecimal(carbs),
		Fats:     newDecimal(fats),
	}
}

// Add returns the element-wise sum of n and m.
func (n Nutrients) Add(m Nutrients) Nutrients {
	return Nutrients{
		Calories: n.Calories.Add(m.Calories),
		Protein:  n.Protein.Add(m.Protein),
		Carbs:    n.Carbs.Add(m.Carbs),
		Fats:     n.Fats.Add(m.Fats),
	}
}

// Sub returns the element-wise difference n - m.
func (n Nutrients) Sub(m Nutrients) Nutrients {
	return Nutrients{
		Calories: n.Calories.Sub(m.Calories),
		Protein:  n.Protein.Sub(m.Protein),
		Carbs:    n.Carbs.Sub(m.Carbs),
		Fats:     n.Fats.Sub(m.Fats),
	}
}

// Equal reports whether every nutrient of n equals the one of m.
func (n Nutrients) Equal(m Nutrients) bool {
	return n.Calories.Equal(m.Calories) &&
		n.Protein.Equal(m.Protein) &&
		n.Carbs.Equal(m.Carbs) &&
		n.Fats.Equal(m.Fats)
}

// IsNegative reports whether any nutrient is negative.
func (n Nutrients) IsNegative() bool {
	return n.Calories.IsNegative() || n.Protein.IsNegative() || n.Carbs.IsNegative() || n.Fats.IsNegative()
}

// Rounded returns the display values: calories to the nearest integer, macros to one decimal.
func (n Nutrients) Rounded() Nutrients {
	return Nutrients{
		Calories: n.Calories.Round(0),
		Protein:  n.Protein.Round(1),
		Carbs:    n.Carbs.Round(1),
		Fats:     n.Fats.Round(1),
	}
}

func (n Nutrients) String() string {
	r := n.Rounded()
	return fmt.Sprintf("%s kcal, %sg protein, %sg carbs, %sg fats",
		r.Calories, r.Protein.StringFixed(1), r.Carbs.StringFixed(1), r.Fats.StringFixed(1))
}

// Sum returns the element-wise sum of all the meals' nutrients.
func Sum(meals []CommittedMeal) Nutrients {
	var total Nutrients
	for _, m := range meals {
		total = total.Add(m.Nutrients)
	}
	return total
}
