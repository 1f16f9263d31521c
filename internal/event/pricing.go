package event

import (
	"fmt"

	pricingdomain "github.com/smallbiznis/uprl/internal/pricing/domain"
)

// PricingComponent is one component row of a pricing or refund snapshot.
type PricingComponent struct {
	ComponentType               string         `json:"component_type"`
	Amount                      Amount         `json:"amount"`
	Currency                    string         `json:"currency"`
	Dimensions                  map[string]any `json:"dimensions"`
	Description                 string         `json:"description"`
	IsRefund                    bool           `json:"is_refund"`
	RefundOfComponentSemanticID *string        `json:"refund_of_component_semantic_id"`
}

// Totals is the optional cross-check block on PricingUpdated. A
// mismatch against the component sum is a warning, never a rejection.
type Totals struct {
	CustomerTotal Amount `json:"customer_total"`
	Currency      string `json:"currency"`
}

// DetailContext attaches entity and FX context to one order detail.
type DetailContext struct {
	OrderDetailID string         `json:"order_detail_id"`
	EntityContext map[string]any `json:"entity_context"`
	FXContext     map[string]any `json:"fx_context"`
}

// PricingPayload is the lifted PricingUpdated body. Legacy events
// carrying a single detail_context arrive here as a one-element
// DetailContexts slice.
type PricingPayload struct {
	Vertical       string
	Components     []PricingComponent
	Totals         *Totals
	DetailContexts []DetailContext
}

// ContextFor resolves the detail context for an order_detail_id, nil
// when no context matches.
func (p *PricingPayload) ContextFor(orderDetailID string) *DetailContext {
	for i := range p.DetailContexts {
		if p.DetailContexts[i].OrderDetailID == orderDetailID {
			return &p.DetailContexts[i]
		}
	}
	return nil
}

// Pricing parses and validates the PricingUpdated payload.
func (e *Envelope) Pricing() (*PricingPayload, error) {
	payload := &PricingPayload{}
	if _, err := e.field("vertical", &payload.Vertical); err != nil {
		return nil, err
	}
	if _, err := e.field("components", &payload.Components); err != nil {
		return nil, err
	}
	if len(payload.Components) == 0 {
		return nil, invalid(pricingdomain.ErrComponentsEmpty)
	}
	if _, err := e.field("totals", &payload.Totals); err != nil {
		return nil, err
	}
	if err := e.liftDetailContexts(payload); err != nil {
		return nil, err
	}
	if err := validateComponents(payload.Components); err != nil {
		return nil, err
	}
	return payload, nil
}

// RefundIssuedPayload is the refund.issued body: refund components
// carrying lineage back to original pricing rows.
type RefundIssuedPayload struct {
	RefundID   string
	Components []PricingComponent
}

// RefundIssued parses and validates the refund.issued payload. Every
// component is a refund: negative amount, lineage required.
func (e *Envelope) RefundIssued() (*RefundIssuedPayload, error) {
	payload := &RefundIssuedPayload{}
	if _, err := e.field("refund_id", &payload.RefundID); err != nil {
		return nil, err
	}
	if payload.RefundID == "" {
		return nil, invalidf(ErrMissingPayload, "refund_id is required")
	}
	if _, err := e.field("components", &payload.Components); err != nil {
		return nil, err
	}
	if len(payload.Components) == 0 {
		return nil, invalid(pricingdomain.ErrComponentsEmpty)
	}
	// Producers sometimes omit is_refund on refund.issued components;
	// the event kind already decides it.
	for i := range payload.Components {
		payload.Components[i].IsRefund = true
	}
	if err := validateComponents(payload.Components); err != nil {
		return nil, err
	}
	return payload, nil
}

func (e *Envelope) liftDetailContexts(payload *PricingPayload) error {
	if _, err := e.field("detail_contexts", &payload.DetailContexts); err != nil {
		return err
	}
	if len(payload.DetailContexts) > 0 {
		return nil
	}
	var single *DetailContext
	if _, err := e.field("detail_context", &single); err != nil {
		return err
	}
	if single != nil {
		payload.DetailContexts = []DetailContext{*single}
	}
	return nil
}

func validateComponents(components []PricingComponent) error {
	for i, c := range components {
		if c.Currency == "" {
			return invalidf(ErrMissingPayload, "components[%d].currency is required", i)
		}
		if c.IsRefund {
			if c.Amount >= 0 {
				return invalid(fmt.Errorf("%w: components[%d]", pricingdomain.ErrRefundAmountPositive, i))
			}
			if c.RefundOfComponentSemanticID == nil || *c.RefundOfComponentSemanticID == "" {
				return invalid(fmt.Errorf("%w: components[%d]", pricingdomain.ErrRefundLineageMissing, i))
			}
		}
	}
	return nil
}
