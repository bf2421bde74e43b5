package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// transport issues single-shot authenticated requests to a remote
// endpoint. There is no retry and no locally enforced timeout; one
// attempt per call is the full contract.
type transport struct {
	logger *zap.Logger
	client Doer
}

func newTransport(logger *zap.Logger, client Doer) *transport {
	if client == nil {
		client = &http.Client{}
	}
	return &transport{logger: logger, client: client}
}

// request POSTs a JSON payload to baseURL+path with bearer auth and
// decodes the response into out (which may be nil when the caller only
// cares about the error channel).
//
// Extra headers are applied after the defaults, so an explicitly set
// caller header wins (last-write-wins). A non-success status produces a
// TransportError without parsing the body; a success status whose body
// carries an application-level "error" field produces an APIError.
func (t *transport) request(ctx context.Context, token, baseURL, path string, payload any, headers map[string]string, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	requestID := uuid.NewString()
	t.logger.Debug("compute api request",
		zap.String("request_id", requestID),
		zap.String("path", path))

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		t.logger.Debug("compute api error status",
			zap.String("request_id", requestID),
			zap.Int("status_code", resp.StatusCode))
		return &TransportError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	// The remote system signals logical failures inside 2xx responses
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Error) > 0 && string(envelope.Error) != "null" {
		var message string
		if err := json.Unmarshal(envelope.Error, &message); err != nil {
			message = string(envelope.Error)
		}
		return &APIError{Message: message}
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	t.logger.Debug("compute api response",
		zap.String("request_id", requestID),
		zap.Int("status_code", resp.StatusCode))

	return nil
}
