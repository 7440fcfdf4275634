package analysis

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"
	"github.com/etnz/platelog"
	"github.com/etnz/platelog/internal/jsonhttp"
	"github.com/shopspring/decimal"
)

// HTTP analyzes images with a remote nutrition service:
//
//	POST {base}/api/food/analyze {"image_base64": "...", "user_id": "..."}
//
// The answer is a JSON object; Paths tells where each value is found in it.
type HTTP struct {
	base   string
	client *http.Client
	// Paths locates the answer's values, DefaultPaths if nil.
	Paths *Paths
}

// Paths are the JSONPath expressions locating an answer's values.
type Paths struct {
	FoodName, Portion, Calories, Protein, Carbs, Fats, Confidence string
}

// DefaultPaths match the flat answer of the reference service.
var DefaultPaths = Paths{
	FoodName:   "$.food_name",
	Portion:    "$.portion_size",
	Calories:   "$.calories",
	Protein:    "$.protein",
	Carbs:      "$.carbs",
	Fats:       "$.fats",
	Confidence: "$.confidence",
}

// NewHTTP returns an analyzer calling the service at base, like "https://nutrition.example.com".
func NewHTTP(base string, logger *slog.Logger) *HTTP {
	return &HTTP{
		base:   strings.TrimSuffix(base, "/"),
		client: jsonhttp.NewClient(logger, 60*time.Second),
	}
}

type analyzeRequest struct {
	ImageBase64 string `json:"image_base64"`
	UserID      string `json:"user_id"`
}

// Analyze posts the image and reads the answer.
func (h *HTTP) Analyze(ctx context.Context, image []byte, user platelog.UserID) (platelog.Analysis, error) {
	req := analyzeRequest{
		ImageBase64: base64.StdEncoding.EncodeToString(image),
		UserID:      string(user),
	}
	var jobj any
	if err := jsonhttp.Do(ctx, h.client, http.MethodPost, h.base+"/api/food/analyze", req, &jobj); err != nil {
		var se *jsonhttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return platelog.Analysis{}, fmt.Errorf("%w: user %q unknown to %s", platelog.ErrAnalysis, user, h.base)
		}
		return platelog.Analysis{}, fmt.Errorf("%w: %w", platelog.ErrAnalysis, err)
	}

	paths := DefaultPaths
	if h.Paths != nil {
		paths = *h.Paths
	}
	var errs []error
	str := func(path string) string {
		v, err := lookup(path, jobj)
		if err != nil {
			return ""
		}
		s, _ := v.(string)
		return s
	}
	num := func(path string) decimal.Decimal {
		v, err := lookup(path, jobj)
		if err != nil {
			errs = append(errs, fmt.Errorf("missing %s: %w", path, err))
			return decimal.Zero
		}
		d, err := toDecimal(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
		return d
	}

	a := platelog.Analysis{
		FoodName:        strings.TrimSpace(str(paths.FoodName)),
		BaselinePortion: platelog.G(num(paths.Portion)),
		Baseline:        platelog.N(num(paths.Calories), num(paths.Protein), num(paths.Carbs), num(paths.Fats)),
		Confidence:      platelog.ParseConfidence(str(paths.Confidence)),
	}
	if err := errors.Join(errs...); err != nil {
		return platelog.Analysis{}, fmt.Errorf("%w: malformed answer: %w", platelog.ErrAnalysis, err)
	}
	if err := a.Validate(); err != nil {
		return platelog.Analysis{}, err
	}
	return a, nil
}

// lookup evaluates path on jobj. jsonpath may answer a list of one value or
// the value itself: the first one is kept.
func lookup(path string, jobj any) (any, error) {
	if path == "" {
		return nil, errors.New("no path")
	}
	v, err := jsonpath.Get(path, jobj)
	if err != nil {
		return nil, err
	}
	if list, ok := v.([]any); ok {
		if len(list) == 0 {
			return nil, fmt.Errorf("no value at %s", path)
		}
		v = list[0]
	}
	if v == nil {
		return nil, fmt.Errorf("null at %s", path)
	}
	return v, nil
}

// toDecimal reads a number, or a number sent as a string, possibly with a
// decimal comma.
func toDecimal(v any) (decimal.Decimal, error) {
	switch v := v.(type) {
	case float64:
		return decimal.NewFromFloat(v), nil
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", ".")
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("invalid number %q", v)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("not a number: %v", v)
	}
}
