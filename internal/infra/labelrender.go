package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// LabelLine is one composition row printed on a packet label.
type LabelLine struct {
	Size     string `json:"size"`
	Color    string `json:"color"`
	Quantity int    `json:"quantity"`
}

// LabelPayload is sent by the worker pool to the label-render sidecar, which
// owns the barcode fonts and the thermal-printer templates.
type LabelPayload struct {
	Barcode        string      `json:"barcode"`
	ProductName    string      `json:"product_name"`
	SupplierName   string      `json:"supplier_name"`
	Composition    []LabelLine `json:"composition"`
	TotalItems     int         `json:"total_items"`
	SuggestedPrice string      `json:"suggested_price"`
	Loose          bool        `json:"loose"`
}

// LabelResponse is returned by the sidecar after rendering.
type LabelResponse struct {
	Status    string `json:"status"` // "ok" | "error"
	PDFBase64 string `json:"pdf_base64"`
	Message   string `json:"message,omitempty"`
}

// LabelClient is an HTTP client that delegates label rendering to the
// sidecar. Keeping rendering out of process isolates template and font
// failures from the core backend.
type LabelClient struct {
	sidecarURL string
	httpClient *http.Client
}

func NewLabelClient(sidecarURL string) *LabelClient {
	return &LabelClient{
		sidecarURL: sidecarURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// Render sends a POST to the sidecar and returns the rendered label.
func (c *LabelClient) Render(ctx context.Context, payload LabelPayload) (*LabelResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("label: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sidecarURL+"/render", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("label: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("label: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("label: sidecar returned %d", resp.StatusCode)
	}

	var result LabelResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("label: decode response: %w", err)
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("label: sidecar rejected render: %s", result.Message)
	}
	return &result, nil
}
