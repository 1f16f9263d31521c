package event

import (
	"fmt"

	refunddomain "github.com/smallbiznis/uprl/internal/refund/domain"
)

// RefundLifecyclePayload is the status-only refund timeline body.
type RefundLifecyclePayload struct {
	RefundID     string
	Status       refunddomain.RefundStatus
	RefundAmount Amount
	Currency     string
	RefundReason string
}

// RefundLifecycle parses and validates the RefundLifecycle payload.
func (e *Envelope) RefundLifecycle() (*RefundLifecyclePayload, error) {
	payload := &RefundLifecyclePayload{}
	if _, err := e.field("refund_id", &payload.RefundID); err != nil {
		return nil, err
	}
	if payload.RefundID == "" {
		return nil, invalid(refunddomain.ErrMissingRefundID)
	}
	if _, err := e.field("status", &payload.Status); err != nil {
		return nil, err
	}
	if _, ok := refunddomain.KnownRefundStatuses[payload.Status]; !ok {
		return nil, invalid(fmt.Errorf("%w: %s", refunddomain.ErrInvalidRefundStatus, payload.Status))
	}
	if _, err := e.field("refund_amount", &payload.RefundAmount); err != nil {
		return nil, err
	}
	if _, err := e.field("currency", &payload.Currency); err != nil {
		return nil, err
	}
	if payload.Currency == "" {
		return nil, invalidf(ErrMissingPayload, "currency is required")
	}
	if _, err := e.field("refund_reason", &payload.RefundReason); err != nil {
		return nil, err
	}
	return payload, nil
}
