// Package models defines the receipt record stored locally and mirrored to
// the remote tier.
package models

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// LineItem is a single purchased position on a receipt.
type LineItem struct {
	Description string          `json:"description"`
	Qty         decimal.Decimal `json:"qty"`
	Price       decimal.Decimal `json:"price"`
}

// UnmarshalJSON decodes an item; an absent or null qty means one unit.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	type plain LineItem
	var w struct {
		plain
		Qty *decimal.Decimal `json:"qty"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*li = LineItem(w.plain)
	li.Qty = decimal.NewFromInt(1)
	if w.Qty != nil {
		li.Qty = *w.Qty
	}
	return nil
}

// Record is a structured receipt.
//
// ID is assigned once on the client and never changes. Synced is a local-only
// annotation: false means the record exists only in the local tier, true means
// the remote tier has confirmed a copy. It is never written remotely.
type Record struct {
	ID              string          `json:"id"`
	MerchantName    string          `json:"merchantName"`
	TransactionDate string          `json:"transactionDate"`
	Currency        string          `json:"currency"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	Items           []LineItem      `json:"items"`
	Category        string          `json:"category"`
	ConfidenceScore int             `json:"confidenceScore"`
	Synced          bool            `json:"synced,omitempty"`
}

// Clone returns a copy of r that shares no slices with it.
func (r Record) Clone() Record {
	c := r
	if r.Items != nil {
		c.Items = make([]LineItem, len(r.Items))
		copy(c.Items, r.Items)
	}
	return c
}

// CloneAll copies every record in rs.
func CloneAll(rs []Record) []Record {
	out := make([]Record, len(rs))
	for i := range rs {
		out[i] = rs[i].Clone()
	}
	return out
}

// Status is the human-readable sync state used by listings and exports.
func (r Record) Status() string {
	if r.Synced {
		return "Synced"
	}
	return "Local"
}
