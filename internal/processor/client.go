package processor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/config"
)

// Client talks to the processor's REST API. Calls carry a hard timeout via
// the underlying http.Client; a timeout or 5xx is classified transient, a
// decline or restriction permanent. The Idempotency-Key header makes
// replays of the same logical operation safe on the processor side.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(cfg config.ProcessorConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// permanentCodes are processor error codes that will not succeed on retry.
var permanentCodes = map[string]bool{
	"card_declined":       true,
	"insufficient_funds":  true,
	"account_restricted":  true,
	"method_not_found":    true,
	"payout_unsupported":  true,
	"setup_intent_failed": true,
}

func (c *Client) do(ctx context.Context, method, path, idempotencyKey string, body, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return apperr.Internal("encode processor request", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return apperr.Internal("build processor request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Network failures and client-side timeouts are retryable.
		return apperr.PaymentTransient("processor unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return apperr.Internal("decode processor response", err)
			}
		}
		return nil
	}

	var apiErr apiError
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)
	cause := fmt.Errorf("processor %s %s: status %d code %q: %s",
		method, path, resp.StatusCode, apiErr.Code, apiErr.Message)

	switch {
	case resp.StatusCode == http.StatusRequestTimeout,
		resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode >= 500:
		return apperr.PaymentTransient("processor temporary failure", cause)
	case permanentCodes[apiErr.Code], resp.StatusCode == http.StatusPaymentRequired:
		return apperr.PaymentPermanent(apiErr.Message, cause)
	default:
		return apperr.PaymentPermanent("processor rejected request", cause)
	}
}

func (c *Client) Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error) {
	payload := map[string]any{
		"reference":      req.JobID.String(),
		"amount":         req.AmountCents,
		"payment_method": req.PaymentMethodID,
		"capture":        false,
	}
	var out struct {
		HoldID string `json:"hold_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/holds", req.IdempotencyKey, payload, &out); err != nil {
		return nil, err
	}
	return &AuthorizeResult{HoldID: out.HoldID}, nil
}

func (c *Client) Capture(ctx context.Context, holdID, idempotencyKey string) error {
	return c.do(ctx, http.MethodPost, "/v1/holds/"+holdID+"/capture", idempotencyKey, nil, nil)
}

func (c *Client) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	payload := map[string]any{
		"reference":   req.JobID.String(),
		"destination": req.PayoutAccount,
		"amount":      req.AmountCents,
	}
	var out struct {
		TransferID string `json:"transfer_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/transfers", req.IdempotencyKey, payload, &out); err != nil {
		return nil, err
	}
	return &TransferResult{TransferID: out.TransferID}, nil
}

func (c *Client) Refund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	payload := map[string]any{
		"hold_id": req.HoldID,
		"amount":  req.AmountCents,
	}
	var out struct {
		RefundID string `json:"refund_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/refunds", req.IdempotencyKey, payload, &out); err != nil {
		return nil, err
	}
	return &RefundResult{RefundID: out.RefundID}, nil
}

func (c *Client) CreateSetupIntent(ctx context.Context, userID uuid.UUID) (*SetupIntent, error) {
	payload := map[string]any{"customer": userID.String()}
	var out struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/setup_intents", "", payload, &out); err != nil {
		return nil, err
	}
	return &SetupIntent{ID: out.ID, ClientSecret: out.ClientSecret}, nil
}

func (c *Client) ConfirmSetupIntent(ctx context.Context, intentID, token string) (*CardInfo, error) {
	payload := map[string]any{"token": token}
	var out struct {
		MethodID    string `json:"method_id"`
		Brand       string `json:"brand"`
		Last4       string `json:"last4"`
		ExpiryMonth int    `json:"expiry_month"`
		ExpiryYear  int    `json:"expiry_year"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/setup_intents/"+intentID+"/confirm", intentID, payload, &out); err != nil {
		return nil, err
	}
	return &CardInfo{
		MethodID:    out.MethodID,
		Brand:       out.Brand,
		Last4:       out.Last4,
		ExpiryMonth: out.ExpiryMonth,
		ExpiryYear:  out.ExpiryYear,
	}, nil
}

func (c *Client) DetachPaymentMethod(ctx context.Context, methodID string) error {
	return c.do(ctx, http.MethodDelete, "/v1/payment_methods/"+methodID, "", nil, nil)
}

var _ Processor = (*Client)(nil)
