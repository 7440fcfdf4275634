package platelog

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// newDecimal is a convenient factory for decimal.Decimal
func newDecimal[T float32 | float64 | int | int32 | int64 | decimal.Decimal](value T) decimal.Decimal {
	switch v := any(value).(type) {
	case decimal.Decimal:
		return v
	case float32:
		return decimal.NewFromFloat32(v)
	case float64:
		return decimal.NewFromFloat(v)
	case int:
		return decimal.NewFromInt(int64(v))
	case int32:
		return decimal.NewFromInt32(v)
	case int64:
		return decimal.NewFromInt(v)
	default:
		panic("unsupported type")
	}
}

// Grams is a portion weight.
type Grams struct {
	value decimal.Decimal
}

// G returns a portion of value grams.
func G[T float32 | float64 | int | int32 | int64 | decimal.Decimal](value T) Grams {
	return Grams{value: newDecimal(value)}
}

// ParseGrams parses a portion like "150", "150g" or "87.5 g". A decimal comma is accepted.
func ParseGrams(s string) (Grams, error) {
	v := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), "g"))
	d, err := decimal.NewFromString(strings.Replace(v, ",", ".", 1))
	if err != nil {
		return Grams{}, fmt.Errorf("%w: invalid portion %q", ErrValidation, s)
	}
	return Grams{value: d}, nil
}

func (g Grams) Equal(p Grams) bool       { return g.value.Equal(p.value) }
func (g Grams) IsPositive() bool         { return g.value.IsPositive() }
func (g Grams) IsZero() bool             { return g.value.IsZero() }
func (g Grams) Add(p Grams) Grams        { return Grams{value: g.value.Add(p.value)} }
func (g Grams) Decimal() decimal.Decimal { return g.value }
func (g Grams) Float64() float64         { return g.value.InexactFloat64() }

// String prints the portion with at most one decimal, e.g. "150g" or "87.5g".
func (g Grams) String() string { return g.value.Round(1).String() + "g" }

// MarshalJSON writes the grams as a bare JSON number.
func (g Grams) MarshalJSON() ([]byte, error) {
	return g.value.MarshalJSON()
}

func (g *Grams) UnmarshalJSON(decimalBytes []byte) error {
	return g.value.UnmarshalJSON(decimalBytes)
}
