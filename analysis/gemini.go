package analysis

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/etnz/platelog"
	"github.com/etnz/platelog/capture"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

const systemInstruction = `You are a nutritionist specialised in food analysis.
Identify the food in the picture and estimate the portion shown, in grams, and
its nutrients for that portion: calories in kcal, protein, carbohydrates and
fats in grams. If several foods are on the plate, answer one item per food.
Rate your confidence as high, medium or low.`

// ClientConfig selects the Gemini backend.
type ClientConfig struct {
	// APIKey selects the Gemini API. Without it, Vertex AI is used with the
	// application default credentials.
	APIKey   string
	Project  string
	Location string // Vertex AI only, default "us-central1"
	// BaseURL overrides the service endpoint.
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a genai client for cfg.
func NewClient(ctx context.Context, cfg ClientConfig, logger *slog.Logger) (*genai.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config := &genai.ClientConfig{
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	}
	if cfg.APIKey != "" {
		config.Backend = genai.BackendGeminiAPI
		config.APIKey = cfg.APIKey
		logger.Debug("using Gemini API with API key")
	} else {
		if cfg.Project == "" {
			return nil, fmt.Errorf("gemini: either an API key or a Google Cloud project is required")
		}
		location := cfg.Location
		if location == "" {
			location = "us-central1"
		}
		config.Backend = genai.BackendVertexAI
		config.Project = cfg.Project
		config.Location = location
		logger.Debug("using Vertex AI with application default credentials", "project", cfg.Project, "location", location)
	}
	client, err := genai.NewClient(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// Gemini analyzes images with a Gemini model, asking for a structured JSON answer.
type Gemini struct {
	client *genai.Client
	model  string
	// Logger receives debug logs of the raw answers; nil means slog.Default().
	Logger *slog.Logger
}

// NewGemini returns an analyzer using model, or DefaultModel if empty.
func NewGemini(client *genai.Client, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{client: client, model: strings.TrimPrefix(model, "models/")}
}

func (g *Gemini) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// foodSchema describes one food of the answer.
func foodSchema() *genai.Schema {
	number := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeNumber, Description: desc}
	}
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"food_name":    {Type: genai.TypeString, Description: "Common name of the food"},
			"portion_size": number("Estimated portion in the picture, in grams"),
			"calories":     number("Energy of the portion in kcal"),
			"protein":      number("Protein of the portion in grams"),
			"carbs":        number("Carbohydrates of the portion in grams"),
			"fats":         number("Fats of the portion in grams"),
			"confidence": {
				Type:        genai.TypeString,
				Enum:        []string{"high", "medium", "low"},
				Description: "Confidence in the identification and the estimates",
			},
		},
		PropertyOrdering: []string{"food_name", "portion_size", "calories", "protein", "carbs", "fats", "confidence"},
		Required:         []string{"food_name", "portion_size", "calories", "protein", "carbs", "fats", "confidence"},
	}
}

// Analyze sends the image to the model and parses its answer.
//
// user is not sent: the model has no notion of users.
func (g *Gemini) Analyze(ctx context.Context, image []byte, user platelog.UserID) (platelog.Analysis, error) {
	temperature := float32(0.1)
	config := &genai.GenerateContentConfig{
		Temperature:       &temperature,
		MaxOutputTokens:   1024,
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: systemInstruction}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    &genai.Schema{Type: genai.TypeArray, Items: foodSchema()},
	}
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: "Identify the food in this picture and estimate its nutrients."},
			{InlineData: &genai.Blob{MIMEType: capture.MIMEType(image), Data: image}},
		},
	}}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return platelog.Analysis{}, fmt.Errorf("%w: gemini %s: %w", platelog.ErrAnalysis, g.model, err)
	}
	text := resp.Text()
	if text == "" {
		return platelog.Analysis{}, fmt.Errorf("%w: gemini %s returned no text", platelog.ErrAnalysis, g.model)
	}
	g.logger().Debug("gemini answer", "model", g.model, "user", user, "text", text)
	return Parse(text)
}
