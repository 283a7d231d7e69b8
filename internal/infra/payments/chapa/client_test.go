package chapa

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &Client{
		HTTP:        srv.Client(),
		BaseURL:     srv.URL,
		SecretKey:   "CHASECK_TEST",
		CallbackURL: "https://staybook.test/api/v1/payments/callback",
	}
}

func TestInitiateChargeSendsDecimalAmount(t *testing.T) {
	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer CHASECK_TEST", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message":"Hosted Link","status":"success","data":{"checkout_url":"https://checkout.chapa.co/pay/abc"}}`))
	})

	handle, err := client.InitiateCharge(context.Background(), "stb-1", money.Must(20000, "ETB"))
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.chapa.co/pay/abc", handle.CheckoutURL)
	assert.Equal(t, "stb-1", handle.TransactionID)
	assert.Equal(t, "200.00", got["amount"])
	assert.Equal(t, "ETB", got["currency"])
	assert.Equal(t, "stb-1", got["tx_ref"])
	assert.Equal(t, "https://staybook.test/api/v1/payments/callback", got["callback_url"])
}

func TestInitiateChargeRejected(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Invalid API Key","status":"failed","data":null}`))
	})

	_, err := client.InitiateCharge(context.Background(), "stb-1", money.Must(20000, "ETB"))
	assert.ErrorIs(t, err, domainpayment.ErrGatewayUnavailable)
}

func TestQueryStatusMapsProviderStates(t *testing.T) {
	cases := []struct {
		body   string
		state  domainpayment.GatewayState
		amount int64
	}{
		{`{"status":"success","data":{"status":"success","amount":200,"currency":"ETB","reference":"APx1"}}`, domainpayment.GatewaySucceeded, 20000},
		{`{"status":"success","data":{"status":"success","amount":"199.50","currency":"ETB"}}`, domainpayment.GatewaySucceeded, 19950},
		{`{"status":"success","data":{"status":"failed","amount":200,"currency":"ETB"}}`, domainpayment.GatewayFailed, 20000},
		{`{"status":"success","data":{"status":"pending","amount":null,"currency":"ETB"}}`, domainpayment.GatewayPending, 0},
	}
	for _, tc := range cases {
		body := tc.body
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/transaction/verify/stb-9", r.URL.Path)
			_, _ = w.Write([]byte(body))
		})

		status, err := client.QueryStatus(context.Background(), "stb-9")
		require.NoError(t, err, body)
		assert.Equal(t, tc.state, status.State, body)
		assert.Equal(t, tc.amount, status.Amount.Amount, body)
	}
}

func TestQueryStatusServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.QueryStatus(context.Background(), "stb-9")
	assert.ErrorIs(t, err, domainpayment.ErrGatewayUnavailable)
}

func TestClientRequiresSecret(t *testing.T) {
	client := &Client{HTTP: http.DefaultClient}
	_, err := client.QueryStatus(context.Background(), "stb-9")
	require.Error(t, err)
}
