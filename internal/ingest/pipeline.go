package ingest

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/logging"
	"github.com/dmitrijs2005/receiptkeeper/internal/models"
	"github.com/dmitrijs2005/receiptkeeper/internal/reconcile"
	"github.com/google/uuid"
)

// Pipeline runs OCR and structuring for one uploaded image.
type Pipeline struct {
	ocr        OCRClient
	structurer Structurer
	log        logging.Logger
	newID      func() string
}

func NewPipeline(ocr OCRClient, s Structurer, log logging.Logger) *Pipeline {
	if log == nil {
		log = logging.Nop{}
	}
	return &Pipeline{ocr: ocr, structurer: s, log: log, newID: uuid.NewString}
}

// Process returns a new, unsynced record for image. Errors wrap common.ErrOCR
// or common.ErrParse.
func (p *Pipeline) Process(ctx context.Context, image []byte, filename string) (models.Record, error) {
	if len(image) == 0 {
		return models.Record{}, fmt.Errorf("%w: empty upload", common.ErrOCR)
	}

	raw, err := p.ocr.ExtractText(ctx, image, filename)
	if err != nil {
		return models.Record{}, err
	}
	text, err := checkText(raw)
	if err != nil {
		return models.Record{}, err
	}
	p.log.Debug(ctx, "ocr text extracted", "file", filename, "chars", len(text))

	r, err := p.structurer.Structure(ctx, text)
	if err != nil {
		return models.Record{}, err
	}
	if err := normalize(&r); err != nil {
		return models.Record{}, err
	}

	r.ID = p.newID()
	r.Synced = false
	p.log.Info(ctx, "receipt parsed", "id", r.ID, "merchant", r.MerchantName, "items", len(r.Items))
	return r, nil
}

// normalize validates the structured record and fills defaults.
func normalize(r *models.Record) error {
	if r.MerchantName == "" {
		return fmt.Errorf("%w: merchant name missing", common.ErrParse)
	}
	if r.TotalAmount.IsNegative() {
		return fmt.Errorf("%w: negative total %s", common.ErrParse, r.TotalAmount)
	}
	for i := range r.Items {
		it := &r.Items[i]
		if it.Price.IsNegative() {
			return fmt.Errorf("%w: item %d has negative price %s", common.ErrParse, i, it.Price)
		}
		if it.Qty.IsNegative() {
			return fmt.Errorf("%w: item %d has negative qty %s", common.ErrParse, i, it.Qty)
		}
	}
	if r.Items == nil {
		r.Items = []models.LineItem{}
	}

	if t, ok := reconcile.ParseDate(r.TransactionDate); ok {
		r.TransactionDate = t.Format("2006-01-02")
	}

	r.ConfidenceScore = min(max(r.ConfidenceScore, 0), 100)
	return nil
}
