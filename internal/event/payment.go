package event

import (
	"encoding/json"
	"fmt"
	"strings"

	paymentdomain "github.com/smallbiznis/uprl/internal/payment/domain"
)

// PaymentMethod identifies the rails a payment ran on.
type PaymentMethod struct {
	Channel  string `json:"channel"`
	Provider string `json:"provider"`
	Brand    string `json:"brand"`
}

// PaymentPayload is the canonical nested payment body. Legacy
// producers emit the same fields flat at the top level; liftPayment
// folds those into this shape before validation.
type PaymentPayload struct {
	Status              paymentdomain.PaymentStatus `json:"status"`
	PaymentID           *string                     `json:"payment_id"`
	PGReferenceID       *string                     `json:"pg_reference_id"`
	PaymentMethod       *PaymentMethod              `json:"payment_method"`
	Currency            string                      `json:"currency"`
	AuthorizedAmount    *Amount                     `json:"authorized_amount"`
	CapturedAmount      *Amount                     `json:"captured_amount"`
	CapturedAmountTotal *Amount                     `json:"captured_amount_total"`
	Instrument          map[string]any              `json:"instrument"`
	BNPLPlan            map[string]any              `json:"bnpl_plan"`
}

// instrumentPayloadKeys maps instrument types to the key their typed
// payload lives under.
var instrumentPayloadKeys = map[paymentdomain.InstrumentType]string{
	paymentdomain.InstrumentTypeVA:      "va",
	paymentdomain.InstrumentTypeCard:    "card",
	paymentdomain.InstrumentTypeEWallet: "ewallet",
	paymentdomain.InstrumentTypeBNPL:    "bnpl",
	paymentdomain.InstrumentTypeQR:      "qr",
	paymentdomain.InstrumentTypeLoyalty: "loyalty",
}

// Payment parses and validates the PaymentLifecycle payload,
// canonicalizing legacy flat bodies to the nested form.
func (e *Envelope) Payment() (*PaymentPayload, error) {
	var payload *PaymentPayload
	present, err := e.field("payment", &payload)
	if err != nil {
		return nil, err
	}
	if !present || payload == nil {
		payload, err = e.liftPayment()
		if err != nil {
			return nil, err
		}
	}

	if payload.Status == "" {
		return nil, invalidf(ErrMissingPayload, "payment.status is required")
	}
	if _, ok := paymentdomain.KnownPaymentStatuses[payload.Status]; !ok {
		return nil, invalid(fmt.Errorf("%w: %s", paymentdomain.ErrInvalidPaymentStatus, payload.Status))
	}
	if payload.Currency == "" {
		return nil, invalidf(ErrMissingPayload, "payment.currency is required")
	}
	if err := validateInstrument(payload.Instrument); err != nil {
		return nil, err
	}
	return payload, nil
}

// liftPayment rebuilds the nested payment object from legacy flat
// top-level fields.
func (e *Envelope) liftPayment() (*PaymentPayload, error) {
	flat := map[string]json.RawMessage{}
	for key, msg := range e.body {
		if _, ok := envelopeKeys[key]; ok {
			continue
		}
		flat[key] = msg
	}
	raw, err := json.Marshal(flat)
	if err != nil {
		return nil, invalidf(ErrMalformedJSON, "%v", err)
	}
	payload := &PaymentPayload{}
	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, invalidf(ErrBadFieldType, "payment: %v", err)
	}
	return payload, nil
}

// validateInstrument enforces the tagged-variant rule: a known type
// and at most one typed payload, matching the declared type.
func validateInstrument(instrument map[string]any) error {
	if len(instrument) == 0 {
		return nil
	}
	rawType, _ := instrument["type"].(string)
	instType := paymentdomain.InstrumentType(strings.ToUpper(rawType))
	if _, ok := paymentdomain.KnownInstrumentTypes[instType]; !ok {
		return invalid(fmt.Errorf("%w: %q", paymentdomain.ErrInvalidInstrumentType, rawType))
	}

	var present []string
	for _, key := range instrumentPayloadKeys {
		if _, ok := instrument[key]; ok {
			present = append(present, key)
		}
	}
	if len(present) > 1 {
		return invalid(fmt.Errorf("%w: %s", paymentdomain.ErrAmbiguousInstrument, strings.Join(present, ",")))
	}
	if len(present) == 1 && present[0] != instrumentPayloadKeys[instType] {
		return invalid(fmt.Errorf("%w: type %s with %s payload", paymentdomain.ErrInstrumentTypeMismatch, instType, present[0]))
	}
	return nil
}
