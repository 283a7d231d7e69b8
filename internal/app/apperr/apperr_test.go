package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"staybook/internal/app/uow"
	domainbooking "staybook/internal/domain/booking"
	domainpayment "staybook/internal/domain/payment"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{fmt.Errorf("%w: overlaps", domainbooking.ErrSlotUnavailable), KindContention},
		{domainbooking.ErrCapacityExceeded, KindValidation},
		{domainpayment.ErrAmountMismatch, KindValidation},
		{fmt.Errorf("%w: cancel on COMPLETED", domainbooking.ErrInvalidTransition), KindInvariant},
		{fmt.Errorf("%w: dial tcp", domainpayment.ErrGatewayUnavailable), KindExternal},
		{domainpayment.ErrNoPaymentFound, KindNotFound},
		{New(KindValidation, "replayed"), KindValidation},
		{Wrap(KindValidation, errors.New("bad field")), KindValidation},
		{errors.New("mystery"), KindUnknown},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, Classify(tc.err), tc.err.Error())
	}
}

func TestIsRetriable(t *testing.T) {
	assert.True(t, IsRetriable(fmt.Errorf("%w: timeout", domainpayment.ErrGatewayUnavailable)))
	assert.True(t, IsRetriable(context.DeadlineExceeded))
	assert.True(t, IsRetriable(uow.ErrConcurrentUpdate))
	assert.False(t, IsRetriable(domainbooking.ErrSlotUnavailable))
	assert.False(t, IsRetriable(domainbooking.ErrInvalidTransition))
	assert.False(t, IsRetriable(nil))
}
