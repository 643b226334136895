package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
	"google.golang.org/genai"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.5-flash"

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiStructurer asks Gemini for a JSON reply constrained by receiptSchema.
type GeminiStructurer struct {
	models contentGenerator
	model  string
	now    func() time.Time
}

// NewGeminiStructurer creates a Gemini API client. An empty model selects
// DefaultGeminiModel.
func NewGeminiStructurer(ctx context.Context, apiKey, model string) (*GeminiStructurer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return newGeminiStructurer(client.Models, model), nil
}

func newGeminiStructurer(g contentGenerator, model string) *GeminiStructurer {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiStructurer{models: g, model: model, now: time.Now}
}

func (s *GeminiStructurer) Structure(ctx context.Context, text string) (models.Record, error) {
	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: buildPrompt(text, s.now())}},
		},
	}
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   receiptSchema(),
	}

	resp, err := s.models.GenerateContent(ctx, s.model, contents, cfg)
	if err != nil {
		return models.Record{}, fmt.Errorf("%w: generate content: %w", common.ErrParse, err)
	}
	if resp == nil {
		return models.Record{}, fmt.Errorf("%w: empty response from model", common.ErrParse)
	}
	return decodeRecord(resp.Text())
}

func receiptSchema() *genai.Schema {
	str := func(desc string) *genai.Schema { return &genai.Schema{Type: genai.TypeString, Description: desc} }
	num := func(desc string) *genai.Schema { return &genai.Schema{Type: genai.TypeNumber, Description: desc} }

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"merchantName":    str("Name of the merchant or store."),
			"transactionDate": str("Date of transaction in YYYY-MM-DD format."),
			"currency":        str("Currency symbol or code (e.g., $, USD, EUR)."),
			"totalAmount":     num("Final total amount paid."),
			"category":        str("General category of the purchase (e.g., Food, Transport, Utilities)."),
			"items": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"description": str(""),
						"qty":         num(""),
						"price":       num(""),
					},
				},
			},
			"confidenceScore": num("Confidence score from 0 to 100 based on data completeness."),
		},
		Required: []string{"merchantName", "totalAmount", "items"},
	}
}
