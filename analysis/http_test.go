package analysis

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/etnz/platelog"
	"github.com/google/go-cmp/cmp"
)

func TestHTTP_Analyze(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/food/analyze" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req analyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("request body: %v", err)
		}
		if req.UserID == "ghost" {
			http.Error(w, `{"detail":"user not found"}`, http.StatusNotFound)
			return
		}
		img, _ := base64.StdEncoding.DecodeString(req.ImageBase64)
		switch string(img) {
		case "feijoada":
			io.WriteString(w, `{"meal_id":"x","food_name":"Feijoada","portion_size":300,"calories":"450,5","protein":28,"carbs":30,"fats":22,"confidence":"média"}`)
		case "nested":
			io.WriteString(w, `{"result":{"name":"Toast","grams":30,"kcal":80,"macros":{"p":2.6,"c":15,"f":1}}}`)
		case "water":
			io.WriteString(w, `{"food_name":"Water","portion_size":250,"calories":0,"protein":0,"carbs":0,"fats":0}`)
		case "bare":
			io.WriteString(w, `{"food_name":"Arroz","portion_size":100}`)
		case "null":
			io.WriteString(w, `{"food_name":"Rice","portion_size":100,"calories":130,"protein":2.7,"carbs":null,"fats":0.3}`)
		case "garbage":
			io.WriteString(w, `{"food_name":"Toast","portion_size":30,"calories":"lots"}`)
		default:
			io.WriteString(w, `{"food_name":"Alimento não identificado","portion_size":0}`)
		}
	}))
	defer srv.Close()
	ctx := context.Background()

	h := NewHTTP(srv.URL+"/", nil)
	got, err := h.Analyze(ctx, []byte("feijoada"), "ana")
	if err != nil {
		t.Fatalf("Analyze() unexpected error: %v", err)
	}
	want := platelog.Analysis{
		FoodName:        "Feijoada",
		BaselinePortion: platelog.G(300),
		Baseline:        platelog.N(450.5, 28, 30, 22),
		Confidence:      platelog.ConfidenceMedium,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Analyze() mismatch (-want +got):\n%s", diff)
	}

	nested := NewHTTP(srv.URL, nil)
	nested.Paths = &Paths{
		FoodName: "$.result.name",
		Portion:  "$.result.grams",
		Calories: "$.result.kcal",
		Protein:  "$.result.macros.p",
		Carbs:    "$.result.macros.c",
		Fats:     "$.result.macros.f",
	}
	got, err = nested.Analyze(ctx, []byte("nested"), "ana")
	if err != nil {
		t.Fatalf("Analyze() with custom paths unexpected error: %v", err)
	}
	if got.FoodName != "Toast" || !got.Baseline.Equal(platelog.N(80, 2.6, 15, 1)) {
		t.Errorf("Analyze() with custom paths = %+v, want 80 kcal of toast", got)
	}

	got, err = h.Analyze(ctx, []byte("water"), "ana")
	if err != nil {
		t.Fatalf("Analyze() of zero nutrients unexpected error: %v", err)
	}
	if !got.Baseline.Equal(platelog.N(0, 0, 0, 0)) {
		t.Errorf("Analyze() of water = %v, want zero nutrients", got.Baseline)
	}

	for _, tc := range []struct {
		image string
		user  platelog.UserID
	}{
		{"garbage", "ana"},
		{"unknown", "ana"},
		{"bare", "ana"},
		{"null", "ana"},
		{"feijoada", "ghost"},
	} {
		if _, err := h.Analyze(ctx, []byte(tc.image), tc.user); !errors.Is(err, platelog.ErrAnalysis) {
			t.Errorf("Analyze(%q, %q) = %v, want ErrAnalysis", tc.image, tc.user, err)
		}
	}
}
