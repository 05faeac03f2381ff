package fbr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"fbrgate/internal/config"
	"fbrgate/internal/domain"
	"fbrgate/internal/port"
)

// Client implements port.FBRClient against the authority's HTTP API. It
// performs exactly one network call per Submit and persists nothing; every
// failure comes back as a *domain.FBRError so callers branch on the
// classification, never on message text.
type Client struct {
	sandboxURL    string
	productionURL string
	client        *http.Client
}

// NewClient creates an FBR client from config.
func NewClient(cfg *config.FBRConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		sandboxURL:    cfg.SandboxURL,
		productionURL: cfg.ProductionURL,
		client:        &http.Client{Timeout: timeout},
	}
}

// NewClientWithEndpoints creates a client pointing at custom endpoints (for testing).
func NewClientWithEndpoints(sandboxURL, productionURL string, timeout time.Duration) *Client {
	return &Client{
		sandboxURL:    sandboxURL,
		productionURL: productionURL,
		client:        &http.Client{Timeout: timeout},
	}
}

// successEnvelope is the authority's response to an accepted POST.
type successEnvelope struct {
	Valid                bool               `json:"valid"`
	InvoiceNumber        string             `json:"invoiceNumber"`
	TransmissionID       string             `json:"transmissionId"`
	AcknowledgmentNumber string             `json:"acknowledgmentNumber"`
	Errors               []fieldErrorDetail `json:"errors"`
}

// errorEnvelope is the authority's machine-readable error shape.
type errorEnvelope struct {
	Code    string             `json:"code"`
	Message string             `json:"message"`
	Errors  []fieldErrorDetail `json:"errors"`
}

type fieldErrorDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (c *Client) endpoint(mode domain.IntegrationMode) (string, error) {
	switch mode {
	case domain.ModeSandbox:
		return c.sandboxURL, nil
	case domain.ModeProduction:
		return c.productionURL, nil
	default:
		return "", fmt.Errorf("fbr: no endpoint for mode %q", mode)
	}
}

// Submit posts one invoice payload to the endpoint for mode.
func (c *Client) Submit(ctx context.Context, mode domain.IntegrationMode, token string, req *port.FBRInvoiceRequest) (*port.FBRResult, error) {
	url, err := c.endpoint(mode)
	if err != nil {
		return nil, err
	}

	bodyBytes, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// Timeouts and connection failures are transient: the caller retries
		// with backoff and the authority dedups on businessInvoiceRef.
		return nil, &domain.FBRError{
			Kind:    domain.FBRErrTransient,
			Code:    "NETWORK",
			Message: err.Error(),
		}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.FBRError{
			Kind:    domain.FBRErrTransient,
			Code:    "NETWORK",
			Message: fmt.Sprintf("reading response: %v", err),
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(resp.StatusCode, respBody)
	}

	var env successEnvelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, &domain.FBRError{
			Kind:    domain.FBRErrTransient,
			Code:    "MALFORMED_RESPONSE",
			Message: fmt.Sprintf("decoding response: %v", err),
			Raw:     respBody,
		}
	}

	if !env.Valid {
		// HTTP 200 with valid=false is a payload rejection.
		return nil, &domain.FBRError{
			Kind:    domain.FBRErrValidation,
			Code:    "REJECTED",
			Message: "authority rejected the invoice payload",
			Fields:  toFieldErrors(env.Errors),
			Raw:     respBody,
		}
	}

	return &port.FBRResult{
		Accepted:             true,
		TransmissionID:       env.TransmissionID,
		AcknowledgmentNumber: env.AcknowledgmentNumber,
		InvoiceNumber:        env.InvoiceNumber,
		Raw:                  respBody,
	}, nil
}

func classifyHTTPError(status int, body []byte) *domain.FBRError {
	var env errorEnvelope
	_ = json.Unmarshal(body, &env)
	if env.Code == "" {
		env.Code = fmt.Sprintf("HTTP_%d", status)
	}
	if env.Message == "" {
		env.Message = string(body)
	}

	fe := &domain.FBRError{
		Code:    env.Code,
		Message: env.Message,
		Fields:  toFieldErrors(env.Errors),
		Raw:     body,
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		fe.Kind = domain.FBRErrAuth
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		fe.Kind = domain.FBRErrValidation
	case status == http.StatusRequestTimeout || status == http.StatusTooManyRequests || status >= 500:
		fe.Kind = domain.FBRErrTransient
	default:
		// Unknown 4xx: treat as a payload problem rather than burning
		// retries against a response we do not understand.
		fe.Kind = domain.FBRErrValidation
	}
	return fe
}

func toFieldErrors(details []fieldErrorDetail) []domain.FieldError {
	if len(details) == 0 {
		return nil
	}
	out := make([]domain.FieldError, 0, len(details))
	for _, d := range details {
		out = append(out, domain.FieldError{Field: d.Field, Message: d.Message})
	}
	return out
}

// IsRetryable reports whether an error from Submit may be retried without
// changing the payload.
func IsRetryable(err error) bool {
	var fe *domain.FBRError
	return errors.As(err, &fe) && fe.Kind == domain.FBRErrTransient
}
