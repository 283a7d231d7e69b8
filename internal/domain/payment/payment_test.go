package payment

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"staybook/internal/domain/shared/money"
)

func TestParseGatewayState(t *testing.T) {
	cases := map[string]GatewayState{
		"success":   GatewaySucceeded,
		"SUCCEEDED": GatewaySucceeded,
		"failed":    GatewayFailed,
		"pending":   GatewayPending,
		"":          GatewayPending,
	}
	for raw, want := range cases {
		got, err := ParseGatewayState(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}
	_, err := ParseGatewayState("refunded-ish")
	assert.Error(t, err)
}

func TestLatestTerminalSkipsPending(t *testing.T) {
	now := time.Now()
	attempts := []*Payment{
		{ID: "p3", Status: StatusPending, CreatedAt: now},
		{ID: "p2", Status: StatusFailed, CreatedAt: now.Add(-time.Hour)},
		{ID: "p1", Status: StatusCompleted, CreatedAt: now.Add(-2 * time.Hour)},
	}
	got := LatestTerminal(attempts)
	require.NotNil(t, got)
	assert.Equal(t, PaymentID("p2"), got.ID)
	assert.Nil(t, LatestTerminal(attempts[:1]))
}

func TestNewPaymentStartsPending(t *testing.T) {
	p, err := NewPayment(CreateParams{ID: "p", BookingID: "b", Reference: "ref-1", Amount: money.Must(20000, "ETB")})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, p.Status)

	_, err = NewPayment(CreateParams{ID: "p", BookingID: "b", Reference: "", Amount: money.Must(20000, "ETB")})
	assert.Error(t, err)
}
