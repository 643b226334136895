package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOCR struct {
	text  string
	err   error
	calls int
}

func (f *fakeOCR) ExtractText(context.Context, []byte, string) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeStructurer struct {
	rec   models.Record
	err   error
	calls int
}

func (f *fakeStructurer) Structure(context.Context, string) (models.Record, error) {
	f.calls++
	return f.rec.Clone(), f.err
}

func parsed() models.Record {
	return models.Record{
		MerchantName: "Rimi", TransactionDate: "2024/03/02", Currency: "EUR",
		TotalAmount: decimal.RequireFromString("3.70"), Category: "Groceries", ConfidenceScore: 140,
		Items: []models.LineItem{
			{Description: "Milk", Qty: decimal.NewFromInt(1), Price: decimal.RequireFromString("1.20")},
		},
	}
}

func newTestPipeline(ocr OCRClient, s Structurer) *Pipeline {
	p := NewPipeline(ocr, s, nil)
	n := 0
	p.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return p
}

func TestPipeline_Process(t *testing.T) {
	p := newTestPipeline(&fakeOCR{text: "RIMI\nMILK 1.20"}, &fakeStructurer{rec: parsed()})

	r, err := p.Process(context.Background(), []byte("img"), "r.jpg")
	require.NoError(t, err)

	assert.Equal(t, "id-1", r.ID)
	assert.False(t, r.Synced)
	assert.Equal(t, "2024-03-02", r.TransactionDate)
	assert.Equal(t, 100, r.ConfidenceScore)
	assert.Equal(t, "Rimi", r.MerchantName)
}

func TestPipeline_FreshIDs(t *testing.T) {
	p := NewPipeline(&fakeOCR{text: "RIMI\nMILK 1.20"}, &fakeStructurer{rec: parsed()}, nil)

	a, err := p.Process(context.Background(), []byte("img"), "a.jpg")
	require.NoError(t, err)
	b, err := p.Process(context.Background(), []byte("img"), "b.jpg")
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestPipeline_ShortTextSkipsStructurer(t *testing.T) {
	s := &fakeStructurer{rec: parsed()}
	p := newTestPipeline(&fakeOCR{text: " ab "}, s)

	_, err := p.Process(context.Background(), []byte("img"), "r.jpg")
	require.ErrorIs(t, err, common.ErrOCR)
	assert.Zero(t, s.calls)
}

func TestPipeline_EmptyUpload(t *testing.T) {
	o := &fakeOCR{text: "whatever"}
	_, err := newTestPipeline(o, &fakeStructurer{}).Process(context.Background(), nil, "r.jpg")
	require.ErrorIs(t, err, common.ErrOCR)
	assert.Zero(t, o.calls)
}

func TestPipeline_PropagatesErrors(t *testing.T) {
	ocrErr := fmt.Errorf("%w: backend down", common.ErrOCR)
	_, err := newTestPipeline(&fakeOCR{err: ocrErr}, &fakeStructurer{}).Process(context.Background(), []byte("x"), "r")
	require.ErrorIs(t, err, common.ErrOCR)

	parseErr := fmt.Errorf("%w: bad json", common.ErrParse)
	_, err = newTestPipeline(&fakeOCR{text: "long enough"}, &fakeStructurer{err: parseErr}).Process(context.Background(), []byte("x"), "r")
	require.ErrorIs(t, err, common.ErrParse)
}

func TestPipeline_RejectsInvalidShape(t *testing.T) {
	cases := map[string]func(r *models.Record){
		"no merchant":    func(r *models.Record) { r.MerchantName = "" },
		"negative total": func(r *models.Record) { r.TotalAmount = decimal.NewFromInt(-1) },
		"negative price": func(r *models.Record) { r.Items[0].Price = decimal.NewFromInt(-2) },
		"negative qty":   func(r *models.Record) { r.Items[0].Qty = decimal.NewFromInt(-2) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			rec := parsed()
			mutate(&rec)
			p := newTestPipeline(&fakeOCR{text: "long enough"}, &fakeStructurer{rec: rec})

			_, err := p.Process(context.Background(), []byte("x"), "r")
			require.True(t, errors.Is(err, common.ErrParse), "got %v", err)
		})
	}
}

func TestNormalize_Defaults(t *testing.T) {
	r := models.Record{MerchantName: "Kiosk", TransactionDate: "03/02/2024", ConfidenceScore: -5}
	require.NoError(t, normalize(&r))

	assert.NotNil(t, r.Items)
	assert.Equal(t, "03/02/2024", r.TransactionDate, "unparseable dates are kept verbatim")
	assert.Zero(t, r.ConfidenceScore)
}
