package event

import (
	"fmt"

	supplierdomain "github.com/smallbiznis/uprl/internal/supplier/domain"
)

// Cancellation carries the fee terms on CancelledWithFee events.
type Cancellation struct {
	FeeAmount   Amount `json:"fee_amount"`
	FeeCurrency string `json:"fee_currency"`
	Reason      string `json:"reason"`
}

// Supplier is the supplier block of a lifecycle event.
type Supplier struct {
	Status                supplierdomain.SupplierStatus `json:"status"`
	SupplierID            string                        `json:"supplier_id"`
	BookingCode           string                        `json:"booking_code"`
	SupplierRef           string                        `json:"supplier_ref"`
	FulfillmentInstanceID *string                       `json:"fulfillment_instance_id"`
	AmountDue             Amount                        `json:"amount_due"`
	AmountBasis           supplierdomain.AmountBasis    `json:"amount_basis"`
	Currency              string                        `json:"currency"`
	FXContext             map[string]any                `json:"fx_context"`
	EntityContext         map[string]any                `json:"entity_context"`
	Cancellation          *Cancellation                 `json:"cancellation"`
}

// ReferenceID returns the supplier reference used for instance
// scoping. supplier_ref is canonical, booking_code the legacy name.
func (s *Supplier) ReferenceID() string {
	if s.SupplierRef != "" {
		return s.SupplierRef
	}
	return s.BookingCode
}

// Calculation explains how a party line amount was derived.
type Calculation struct {
	Basis       string  `json:"basis"`
	Rate        float64 `json:"rate"`
	Description string  `json:"description"`
}

// PartyLine is one obligation inside a party block.
type PartyLine struct {
	ObligationType string                      `json:"obligation_type"`
	Amount         Amount                      `json:"amount"`
	Currency       string                      `json:"currency"`
	AmountEffect   supplierdomain.AmountEffect `json:"amount_effect"`
	Calculation    *Calculation                `json:"calculation"`
	Description    string                      `json:"description"`
}

// Party is one counterparty with its obligation lines.
type Party struct {
	PartyType supplierdomain.PartyType `json:"party_type"`
	PartyID   string                   `json:"party_id"`
	PartyName string                   `json:"party_name"`
	Lines     []PartyLine              `json:"lines"`
}

// SupplierPayload is the lifted supplier lifecycle body. An explicitly
// empty parties array is distinct from an absent one: empty means the
// producer asserts no timeline-linked obligations for this version,
// absent means the event predates multi-party (v1) or omits them.
type SupplierPayload struct {
	OrderDetailID  string
	Supplier       Supplier
	Parties        []Party
	PartiesPresent bool
}

// Supplier parses and validates the supplier lifecycle payload for
// both timeline schema versions.
func (e *Envelope) Supplier() (*SupplierPayload, error) {
	payload := &SupplierPayload{}
	if _, err := e.field("order_detail_id", &payload.OrderDetailID); err != nil {
		return nil, err
	}
	if payload.OrderDetailID == "" {
		return nil, invalid(supplierdomain.ErrMissingOrderDetail)
	}

	present, err := e.field("supplier", &payload.Supplier)
	if err != nil {
		return nil, err
	}
	if !present {
		return nil, invalidf(ErrMissingPayload, "supplier object is required")
	}

	sup := &payload.Supplier
	if sup.SupplierID == "" {
		return nil, invalid(supplierdomain.ErrMissingSupplier)
	}
	if _, ok := supplierdomain.KnownSupplierStatuses[sup.Status]; !ok {
		return nil, invalid(fmt.Errorf("%w: %s", supplierdomain.ErrInvalidSupplierStatus, sup.Status))
	}
	if sup.AmountBasis != "" {
		if _, ok := supplierdomain.KnownAmountBases[sup.AmountBasis]; !ok {
			return nil, invalid(fmt.Errorf("%w: %s", supplierdomain.ErrInvalidAmountBasis, sup.AmountBasis))
		}
	}
	if sup.Currency == "" {
		return nil, invalidf(ErrMissingPayload, "supplier.currency is required")
	}
	// The empty string would silently collide with the booking-level
	// key; only null or a real instance id are allowed.
	if sup.FulfillmentInstanceID != nil && *sup.FulfillmentInstanceID == "" {
		return nil, invalid(supplierdomain.ErrEmptyFulfillmentInstanceID)
	}

	payload.PartiesPresent = e.Has("parties")
	if payload.PartiesPresent {
		if _, err := e.field("parties", &payload.Parties); err != nil {
			return nil, err
		}
		if err := validateParties(payload.Parties); err != nil {
			return nil, err
		}
	}
	return payload, nil
}

func validateParties(parties []Party) error {
	for i := range parties {
		party := &parties[i]
		if party.PartyID == "" {
			return invalid(fmt.Errorf("%w: parties[%d]", supplierdomain.ErrMissingParty, i))
		}
		if _, ok := supplierdomain.KnownPartyTypes[party.PartyType]; !ok {
			return invalid(fmt.Errorf("%w: parties[%d]: %s", supplierdomain.ErrInvalidPartyType, i, party.PartyType))
		}
		for j := range party.Lines {
			if err := validatePartyLine(&party.Lines[j]); err != nil {
				return invalid(fmt.Errorf("parties[%d].lines[%d]: %w", i, j, err))
			}
		}
	}
	return nil
}

func validatePartyLine(line *PartyLine) error {
	if line.ObligationType == "" {
		return supplierdomain.ErrMissingObligationType
	}
	if line.Amount < 0 {
		return supplierdomain.ErrNegativeLineAmount
	}
	switch line.AmountEffect {
	case "":
		line.AmountEffect = supplierdomain.AmountEffectIncreases
	case supplierdomain.AmountEffectIncreases, supplierdomain.AmountEffectDecreases:
	default:
		return fmt.Errorf("%w: %s", supplierdomain.ErrInvalidAmountEffect, line.AmountEffect)
	}
	return nil
}
