package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
)

const (
	// DefaultAnthropicModel is used when no model is configured.
	DefaultAnthropicModel = "claude-3-5-haiku-latest"

	anthropicMaxTokens = 2048
	anthropicSystem    = "You convert OCR receipt text into a single JSON object. Reply with JSON only."
)

type messageCreator interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicStructurer asks a Claude model for the record as plain JSON text.
type AnthropicStructurer struct {
	messages messageCreator
	model    string
	now      func() time.Time
}

func NewAnthropicStructurer(apiKey, model string) *AnthropicStructurer {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return newAnthropicStructurer(&client.Messages, model)
}

func newAnthropicStructurer(m messageCreator, model string) *AnthropicStructurer {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicStructurer{messages: m, model: model, now: time.Now}
}

func (s *AnthropicStructurer) Structure(ctx context.Context, text string) (models.Record, error) {
	msg, err := s.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: anthropicMaxTokens,
		System:    []anthropic.TextBlockParam{{Text: anthropicSystem}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(text, s.now()))),
		},
	})
	if err != nil {
		return models.Record{}, fmt.Errorf("%w: create message: %w", common.ErrParse, err)
	}
	if msg == nil {
		return models.Record{}, fmt.Errorf("%w: empty response from model", common.ErrParse)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return decodeRecord(b.String())
}
