package ginserver

import (
	"net/http"
	"strings"

	gin "github.com/gin-gonic/gin"

	"staybook/internal/app/apperr"
	"staybook/internal/app/commands"
	paymentsapp "staybook/internal/app/handlers/payments"
)

type PaymentHandler struct {
	Commands commands.Bus
}

type callbackRequest struct {
	TxRef     string `json:"tx_ref" form:"tx_ref"`
	TrxRef    string `json:"trx_ref" form:"trx_ref"`
	Reference string `json:"reference" form:"reference"`
	EventID   string `json:"event_id" form:"event_id"`
}

func (h PaymentHandler) Initiate(c *gin.Context) {
	cmd := paymentsapp.InitiatePaymentCommand{
		BookingID:       c.Param("id"),
		ActorID:         actorID(c),
		IdempotencyKeyV: c.GetHeader(idempotencyHeader),
	}
	checkout, err := commands.Dispatch[paymentsapp.InitiatePaymentCommand, *paymentsapp.Checkout](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusCreated
	if checkout != nil && checkout.Reused {
		status = http.StatusOK
	}
	c.JSON(status, checkout)
}

func (h PaymentHandler) Verify(c *gin.Context) {
	cmd := paymentsapp.VerifyPaymentCommand{BookingID: c.Param("id"), ActorID: actorID(c)}
	out, err := commands.Dispatch[paymentsapp.VerifyPaymentCommand, *paymentsapp.Outcome](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Callback accepts the provider notification either as JSON or as query
// parameters. The payload is never trusted: the ledger re-queries the provider.
func (h PaymentHandler) Callback(c *gin.Context) {
	var req callbackRequest
	_ = c.ShouldBindQuery(&req)
	if c.Request.Method == http.MethodPost && c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, apperr.Wrap(apperr.KindValidation, err))
			return
		}
	}
	ref := firstNonEmpty(req.TxRef, req.TrxRef, req.Reference)
	eventID := firstNonEmpty(c.GetHeader(eventHeader), req.EventID)
	cmd := paymentsapp.PaymentCallbackCommand{Reference: ref, EventID: eventID, Source: "http"}
	res, err := commands.Dispatch[paymentsapp.PaymentCallbackCommand, *paymentsapp.CallbackResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var _ PaymentHTTP = PaymentHandler{}
