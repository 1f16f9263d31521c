package event

import (
	"fmt"

	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
)

// PartnerAdjustmentPayload is a single standalone obligation. It never
// references a supplier timeline version; the line it produces is
// written with the standalone marker.
type PartnerAdjustmentPayload struct {
	OrderDetailID         string
	SupplierReferenceID   string
	FulfillmentInstanceID *string
	Party                 Party
	Line                  PartyLine
}

// PartnerAdjustment parses and validates the PartnerAdjustmentEvent
// payload. Nested party/line objects are canonical; legacy producers
// flatten both onto the event body.
func (e *Envelope) PartnerAdjustment() (*PartnerAdjustmentPayload, error) {
	payload := &PartnerAdjustmentPayload{}
	if _, err := e.field("order_detail_id", &payload.OrderDetailID); err != nil {
		return nil, err
	}
	if payload.OrderDetailID == "" {
		return nil, invalid(supplierdomain.ErrMissingOrderDetail)
	}
	if _, err := e.field("supplier_reference_id", &payload.SupplierReferenceID); err != nil {
		return nil, err
	}
	if _, err := e.field("fulfillment_instance_id", &payload.FulfillmentInstanceID); err != nil {
		return nil, err
	}
	if payload.FulfillmentInstanceID != nil && *payload.FulfillmentInstanceID == "" {
		return nil, invalid(supplierdomain.ErrEmptyFulfillmentInstanceID)
	}

	if err := e.liftPartnerParty(payload); err != nil {
		return nil, err
	}

	if payload.Party.PartyID == "" {
		return nil, invalid(supplierdomain.ErrMissingParty)
	}
	if _, ok := supplierdomain.KnownPartyTypes[payload.Party.PartyType]; !ok {
		return nil, invalid(fmt.Errorf("%w: %s", supplierdomain.ErrInvalidPartyType, payload.Party.PartyType))
	}
	if err := validatePartyLine(&payload.Line); err != nil {
		return nil, invalid(err)
	}
	if payload.Line.Currency == "" {
		return nil, invalidf(ErrMissingPayload, "line.currency is required")
	}
	return payload, nil
}

func (e *Envelope) liftPartnerParty(payload *PartnerAdjustmentPayload) error {
	partyPresent, err := e.field("party", &payload.Party)
	if err != nil {
		return err
	}
	linePresent, err := e.field("line", &payload.Line)
	if err != nil {
		return err
	}
	if partyPresent && linePresent {
		return nil
	}

	// Flat legacy shape: party and line fields on the event body.
	for key, dst := range map[string]any{
		"party_id":        &payload.Party.PartyID,
		"party_name":      &payload.Party.PartyName,
		"party_type":      &payload.Party.PartyType,
		"obligation_type": &payload.Line.ObligationType,
		"amount":          &payload.Line.Amount,
		"currency":        &payload.Line.Currency,
		"amount_effect":   &payload.Line.AmountEffect,
		"calculation":     &payload.Line.Calculation,
		"description":     &payload.Line.Description,
	} {
		if _, err := e.field(key, dst); err != nil {
			return err
		}
	}
	return nil
}
