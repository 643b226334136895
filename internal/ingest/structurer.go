package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
	"github.com/shopspring/decimal"
)

// Structurer maps raw OCR text onto a record. The returned record has no ID.
type Structurer interface {
	Structure(ctx context.Context, text string) (models.Record, error)
}

// buildPrompt renders the instructions sent to every model backend.
func buildPrompt(text string, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are a receipt parsing engine. I will provide you with raw text extracted from a receipt using OCR.\n")
	b.WriteString("Your job is to structure this text into JSON.\n\n")
	b.WriteString("RAW OCR TEXT:\n\"\"\"\n")
	b.WriteString(text)
	b.WriteString("\n\"\"\"\n\n")
	b.WriteString("Instructions:\n")
	b.WriteString("1. Identify the merchant name.\n")
	fmt.Fprintf(&b, "2. Extract the date (YYYY-MM-DD). If the year is missing, assume %d.\n", now.Year())
	b.WriteString("3. Extract the total amount.\n")
	b.WriteString("4. Extract individual line items with quantity and price.\n")
	b.WriteString("5. Determine a general category (e.g. Food, Transport, Utilities).\n")
	b.WriteString("6. Give a confidenceScore from 0 to 100 based on data completeness.\n\n")
	b.WriteString("Return one JSON object with the keys merchantName, transactionDate, currency, ")
	b.WriteString("totalAmount, category, items (description, qty, price) and confidenceScore.\n")
	b.WriteString("Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n")
	return b.String()
}

type wireItem struct {
	Description string           `json:"description"`
	Qty         *decimal.Decimal `json:"qty"`
	Price       decimal.Decimal  `json:"price"`
}

type wireRecord struct {
	MerchantName    string          `json:"merchantName"`
	TransactionDate string          `json:"transactionDate"`
	Currency        string          `json:"currency"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Category        string          `json:"category"`
	Items           []wireItem      `json:"items"`
	ConfidenceScore decimal.Decimal `json:"confidenceScore"`
}

// decodeRecord parses a model reply. Missing quantities default to 1.
func decodeRecord(raw string) (models.Record, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return models.Record{}, fmt.Errorf("%w: empty response from model", common.ErrParse)
	}

	var w wireRecord
	if err := json.Unmarshal([]byte(clean), &w); err != nil {
		return models.Record{}, fmt.Errorf("%w: unmarshal JSON: %w", common.ErrParse, err)
	}

	r := models.Record{
		MerchantName:    strings.TrimSpace(w.MerchantName),
		TransactionDate: strings.TrimSpace(w.TransactionDate),
		Currency:        strings.TrimSpace(w.Currency),
		TotalAmount:     w.TotalAmount,
		Category:        strings.TrimSpace(w.Category),
		ConfidenceScore: int(w.ConfidenceScore.Round(0).IntPart()),
		Items:           make([]models.LineItem, 0, len(w.Items)),
	}
	for _, it := range w.Items {
		qty := decimal.NewFromInt(1)
		if it.Qty != nil {
			qty = *it.Qty
		}
		r.Items = append(r.Items, models.LineItem{
			Description: strings.TrimSpace(it.Description),
			Qty:         qty,
			Price:       it.Price,
		})
	}
	return r, nil
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return ""
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}
