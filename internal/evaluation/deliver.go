package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/primitive-tutor/backend/internal/models"
)

// HTTPDeliverer posts evaluation results to the gateway's submission
// endpoint. The attempt id doubles as the idempotency key, so redelivering
// after an ambiguous failure is safe.
type HTTPDeliverer struct {
	url    string
	client *http.Client
}

func NewHTTPDeliverer(url string) *HTTPDeliverer {
	return &HTTPDeliverer{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

func (d *HTTPDeliverer) Deliver(ctx context.Context, result *models.EvaluationResult) error {
	body, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", result.AttemptID)

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("post result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("backend rejected result: status %d: %s", resp.StatusCode, snippet)
	}
	return nil
}
