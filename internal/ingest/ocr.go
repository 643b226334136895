package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/receiptkeeper/internal/common"
	"github.com/dmitrijs2005/receiptkeeper/internal/netx"
)

// minTextLength is the shortest trimmed OCR output treated as a receipt.
const minTextLength = 5

// OCRClient extracts raw text from an image.
type OCRClient interface {
	ExtractText(ctx context.Context, image []byte, filename string) (string, error)
}

// HTTPOCRClient calls an OCR service that accepts a multipart "file" field and
// replies with {"success": bool, "text": string}.
type HTTPOCRClient struct {
	endpoint string
	client   *http.Client
}

func NewHTTPOCRClient(endpoint string, timeout time.Duration) *HTTPOCRClient {
	return &HTTPOCRClient{endpoint: endpoint, client: &http.Client{Timeout: timeout}}
}

type ocrResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error,omitempty"`
}

func (c *HTTPOCRClient) ExtractText(ctx context.Context, image []byte, filename string) (string, error) {
	if filename == "" {
		filename = "receipt"
	}

	body, err := netx.PostFile(ctx, c.client, c.endpoint, "file", filename, image)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrOCR, err)
	}

	var resp ocrResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", common.ErrOCR, err)
	}
	if !resp.Success {
		msg := "processing marked as failed by backend"
		if resp.Error != "" {
			msg += ": " + resp.Error
		}
		return "", fmt.Errorf("%w: %s", common.ErrOCR, msg)
	}
	return resp.Text, nil
}

// checkText rejects OCR output too short to be a receipt.
func checkText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if len([]rune(text)) < minTextLength {
		return "", fmt.Errorf("%w: no readable text found on receipt", common.ErrOCR)
	}
	return text, nil
}
