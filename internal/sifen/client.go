// Package sifen talks to the electronic-invoicing certification gateway.
package sifen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrGatewayUnreachable: the call never produced an authoritative
	// answer. The invoice stays pending; retrying automatically could
	// duplicate a legal filing, so any retry is an operator decision.
	ErrGatewayUnreachable = errors.New("certification gateway unreachable")

	ErrGatewayRejected = errors.New("document rejected by certification gateway")
)

// RejectionError carries the provider's reason so the operator can decide
// on manual resubmission. errors.Is(err, ErrGatewayRejected) holds.
type RejectionError struct {
	Code    string
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("gateway rejected document: code=%s message=%s", e.Code, e.Message)
}

func (e *RejectionError) Is(target error) bool {
	return target == ErrGatewayRejected
}

// SubmitResult is the authority's proof of acceptance.
type SubmitResult struct {
	CDC             string
	ProtocolID      string
	VerificationURL string
}

const verificationURLBase = "https://ekuatia.set.gov.py/consultas/qr?cdc="

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type submitResponse struct {
	Code            string `json:"code"`
	Message         string `json:"message"`
	CDC             string `json:"cdc"`
	ProtocolID      string `json:"protocol_id"`
	VerificationURL string `json:"verification_url"`
}

// Submit sends the document once. No internal retry loop: the caller's
// context bounds the whole call.
func (c *Client) Submit(ctx context.Context, document []byte) (*SubmitResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/documents", bytes.NewReader(document))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: status %d", ErrGatewayUnreachable, resp.StatusCode)
	}

	var body submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, &RejectionError{
				Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
				Message: "unparseable gateway response",
			}
		}
		return nil, fmt.Errorf("%w: decode response: %v", ErrGatewayUnreachable, err)
	}

	if resp.StatusCode != http.StatusOK || !isSuccessCode(body.Code) {
		return nil, &RejectionError{Code: body.Code, Message: body.Message}
	}

	result := &SubmitResult{
		CDC:        body.CDC,
		ProtocolID: body.ProtocolID,
	}
	switch {
	case body.VerificationURL != "":
		result.VerificationURL = body.VerificationURL
	case body.CDC != "":
		// The canonical consultation URL is deterministic given the CDC.
		result.VerificationURL = verificationURLBase + body.CDC
	}
	return result, nil
}

// isSuccessCode interprets the provider's result code. "0" is plain
// approval, "05" approval with observations; both mean the document was
// certified.
func isSuccessCode(code string) bool {
	switch code {
	case "0", "05":
		return true
	default:
		return false
	}
}
