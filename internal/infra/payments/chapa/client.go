package chapa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"staybook/internal/app/policies"
	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
)

const DefaultBaseURL = "https://api.chapa.co"

// Client talks to the Chapa hosted checkout API.
type Client struct {
	HTTP        *http.Client
	BaseURL     string
	SecretKey   string
	CallbackURL string
	ReturnURL   string
	Logger      *slog.Logger
}

type initializeRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	TxRef       string `json:"tx_ref"`
	CallbackURL string `json:"callback_url,omitempty"`
	ReturnURL   string `json:"return_url,omitempty"`
}

type envelope struct {
	Message json.RawMessage `json:"message"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	CheckoutURL string `json:"checkout_url"`
	TxRef       string `json:"tx_ref"`
}

type verifyData struct {
	Status    string     `json:"status"`
	Amount    flexAmount `json:"amount"`
	Currency  string     `json:"currency"`
	TxRef     string     `json:"tx_ref"`
	Reference string     `json:"reference"`
}

// flexAmount accepts both JSON numbers and quoted decimals.
type flexAmount string

func (a *flexAmount) UnmarshalJSON(raw []byte) error {
	s := strings.TrimSpace(string(raw))
	if s == "null" {
		*a = ""
		return nil
	}
	*a = flexAmount(strings.Trim(s, `"`))
	return nil
}

// InitiateCharge opens a hosted checkout for the reference.
func (c *Client) InitiateCharge(ctx context.Context, reference string, amount money.Money) (policies.ChargeHandle, error) {
	var zero policies.ChargeHandle
	if err := c.ready(); err != nil {
		return zero, err
	}
	payload := initializeRequest{
		Amount:      amount.Decimal(),
		Currency:    amount.Currency,
		TxRef:       reference,
		CallbackURL: c.CallbackURL,
		ReturnURL:   c.ReturnURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return zero, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("/v1/transaction/initialize"), bytes.NewReader(body))
	if err != nil {
		return zero, err
	}
	request.Header.Set("Content-Type", "application/json")

	var data initializeData
	if err := c.do(request, reference, &data); err != nil {
		return zero, err
	}
	if data.CheckoutURL == "" {
		return zero, fmt.Errorf("%w: chapa returned no checkout url for %s", domainpayment.ErrGatewayUnavailable, reference)
	}
	txID := data.TxRef
	if txID == "" {
		txID = reference
	}
	return policies.ChargeHandle{TransactionID: txID, CheckoutURL: data.CheckoutURL}, nil
}

// QueryStatus asks Chapa for the current state of the reference.
func (c *Client) QueryStatus(ctx context.Context, reference string) (policies.ChargeStatus, error) {
	var zero policies.ChargeStatus
	if err := c.ready(); err != nil {
		return zero, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("/v1/transaction/verify/"+url.PathEscape(reference)), nil)
	if err != nil {
		return zero, err
	}

	var data verifyData
	if err := c.do(request, reference, &data); err != nil {
		return zero, err
	}
	state, err := domainpayment.ParseGatewayState(data.Status)
	if err != nil {
		return zero, fmt.Errorf("%w: %w", domainpayment.ErrGatewayUnavailable, err)
	}
	status := policies.ChargeStatus{State: state, TransactionID: data.Reference}
	if data.Amount != "" && data.Currency != "" {
		amount, err := money.ParseDecimal(string(data.Amount), data.Currency)
		if err != nil {
			return zero, fmt.Errorf("%w: %w", domainpayment.ErrGatewayUnavailable, err)
		}
		status.Amount = amount
	}
	return status, nil
}

func (c *Client) do(request *http.Request, reference string, out any) error {
	request.Header.Set("Authorization", "Bearer "+c.SecretKey)
	request.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(request)
	if err != nil {
		c.logError("chapa request failed", reference, err)
		return fmt.Errorf("%w: %w", domainpayment.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err := fmt.Errorf("%w: chapa returned status %d: %s", domainpayment.ErrGatewayUnavailable, resp.StatusCode, strings.TrimSpace(string(snippet)))
		c.logError("chapa returned error", reference, err)
		return err
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.logError("chapa decode failed", reference, err)
		return fmt.Errorf("%w: decode response: %w", domainpayment.ErrGatewayUnavailable, err)
	}
	if !strings.EqualFold(env.Status, "success") {
		return fmt.Errorf("%w: chapa status %q: %s", domainpayment.ErrGatewayUnavailable, env.Status, string(env.Message))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: chapa response without data", domainpayment.ErrGatewayUnavailable)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %w", domainpayment.ErrGatewayUnavailable, err)
	}
	return nil
}

func (c *Client) ready() error {
	if c == nil || c.HTTP == nil {
		return errors.New("chapa: http client not configured")
	}
	if c.SecretKey == "" {
		return errors.New("chapa: secret key not configured")
	}
	return nil
}

func (c *Client) endpoint(path string) string {
	base := strings.TrimRight(c.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return base + path
}

func (c *Client) logError(msg, reference string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Error(msg, "reference", reference, "error", err)
}

var _ policies.PaymentGateway = (*Client)(nil)
