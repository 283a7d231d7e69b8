package policies

import "time"

type Metrics interface {
	BookingReserved(outcome string)
	BookingTransition(from, to, trigger string)
	PaymentInitiated(outcome string)
	PaymentSettled(status string)
	GatewayCall(op string, d time.Duration, err error)
}

type NopMetrics struct{}

func (NopMetrics) BookingReserved(string)                   {}
func (NopMetrics) BookingTransition(string, string, string) {}
func (NopMetrics) PaymentInitiated(string)                  {}
func (NopMetrics) PaymentSettled(string)                    {}
func (NopMetrics) GatewayCall(string, time.Duration, error) {}

// MetricsOrNop never returns nil.
func MetricsOrNop(m Metrics) Metrics {
	if m == nil {
		return NopMetrics{}
	}
	return m
}
