// Package payments adapts external card gateways behind a small charging
// interface so order flows never depend on a concrete provider SDK.
package payments

import "context"

// ChargeRequest describes a synchronous card charge. Amount is in integer
// minor units of CurrencyCode.
type ChargeRequest struct {
	Amount       int64
	CurrencyCode string
	Email        string
	// SourceID is the one-time card token created client-side.
	SourceID    string
	Description string
	// OrderID keys gateway-side idempotency so a retried request cannot
	// double-charge.
	OrderID  string
	Metadata map[string]string
}

// ChargeResult is the gateway's verdict. A decline is a normal result, not an
// error: OK is false and the decline fields are populated. Errors are
// reserved for transport and protocol failures where no verdict exists.
type ChargeResult struct {
	OK       bool
	ChargeID string
	// Code is the gateway's machine readable decline code.
	Code string
	// UserMessage is safe to surface to the buyer.
	UserMessage string
	// MerchantMessage is the operator-facing explanation.
	MerchantMessage string
	Raw             map[string]any
}

// CardCharger executes synchronous card charges.
type CardCharger interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// GatewayLogger defines the logging contract for gateway operations.
type GatewayLogger func(ctx context.Context, event string, fields map[string]any)
