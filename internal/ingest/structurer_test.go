package ingest

import (
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleReply = `{
  "merchantName": " Rimi ",
  "transactionDate": "2024-03-02",
  "currency": "EUR",
  "totalAmount": 12.4,
  "category": "Groceries",
  "items": [
    {"description": "Milk", "qty": 2, "price": 1.2},
    {"description": "Bread", "price": 2.5}
  ],
  "confidenceScore": 87.6
}`

func TestDecodeRecord(t *testing.T) {
	r, err := decodeRecord(sampleReply)
	require.NoError(t, err)

	assert.Equal(t, "Rimi", r.MerchantName)
	assert.Equal(t, "2024-03-02", r.TransactionDate)
	assert.Equal(t, "EUR", r.Currency)
	assert.Equal(t, "12.4", r.TotalAmount.String())
	assert.Equal(t, 88, r.ConfidenceScore)
	assert.Empty(t, r.ID)
	assert.False(t, r.Synced)

	require.Len(t, r.Items, 2)
	assert.Equal(t, "2", r.Items[0].Qty.String())
	assert.Equal(t, "1", r.Items[1].Qty.String(), "absent qty defaults to 1")
	assert.Equal(t, "2.5", r.Items[1].Price.String())
}

func TestDecodeRecord_NoItems(t *testing.T) {
	r, err := decodeRecord(`{"merchantName": "Kiosk", "totalAmount": 3}`)
	require.NoError(t, err)
	assert.NotNil(t, r.Items)
	assert.Empty(t, r.Items)
}

func TestDecodeRecord_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "not json at all", `{"merchantName": 5}`, "```"} {
		_, err := decodeRecord(raw)
		require.ErrorIs(t, err, common.ErrParse, "input %q", raw)
	}
}

func TestCleanModelJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```":            `{"a":1}`,
		"```\n{\"a\":1}```":                  `{"a":1}`,
		"Here you go: {\"a\":{\"b\":2}} ok": `{"a":{"b":2}}`,
		"  {\"a\":1}  ":                      `{"a":1}`,
	}
	for in, want := range cases {
		assert.Equal(t, want, cleanModelJSON(in), "input %q", in)
	}
}

func TestBuildPrompt(t *testing.T) {
	p := buildPrompt("RIMI TOTAL 5.00", time.Date(2031, 1, 1, 0, 0, 0, 0, time.UTC))

	assert.Contains(t, p, "RIMI TOTAL 5.00")
	assert.Contains(t, p, "assume 2031")
	assert.Contains(t, p, "YYYY-MM-DD")
	assert.True(t, strings.Contains(p, "confidenceScore"))
}
