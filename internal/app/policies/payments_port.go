package policies

import (
	"context"

	domainpayment "staybook/internal/domain/payment"
	"staybook/internal/domain/shared/money"
)

// PaymentGateway is the external payment provider. Implementations must be safe to
// call again with the same reference.
type PaymentGateway interface {
	InitiateCharge(ctx context.Context, reference string, amount money.Money) (ChargeHandle, error)
	QueryStatus(ctx context.Context, reference string) (ChargeStatus, error)
}

type ChargeHandle struct {
	TransactionID string
	CheckoutURL   string
}

type ChargeStatus struct {
	State         domainpayment.GatewayState
	Amount        money.Money
	TransactionID string
}
