package event

import (
	"encoding/json"
	"time"
)

// envelopeKeys are consumed by Decode itself. Everything else in the
// body belongs to the payload of the kind, or is an unknown field that
// must survive into metadata verbatim.
var envelopeKeys = map[string]struct{}{
	"event_id":        {},
	"event_type":      {},
	"schema_version":  {},
	"order_id":        {},
	"emitted_at":      {},
	"emitter_service": {},
	"idempotency_key": {},
	"meta":            {},
}

// payloadKeys lists the top-level fields each kind's parser consumes.
var payloadKeys = map[Kind]map[string]struct{}{
	KindPricingUpdated: {
		"vertical": {}, "components": {}, "totals": {},
		"detail_context": {}, "detail_contexts": {},
	},
	KindPaymentLifecycle: {
		"payment": {}, "status": {}, "payment_id": {}, "pg_reference_id": {},
		"payment_method": {}, "currency": {}, "authorized_amount": {},
		"authorized_at": {}, "captured_amount": {}, "captured_amount_total": {},
		"captured_at": {}, "instrument": {}, "bnpl_plan": {},
	},
	KindSupplierLifecycle: {
		"order_detail_id": {}, "supplier": {}, "parties": {},
	},
	KindRefundIssued: {
		"refund_id": {}, "components": {},
	},
	KindRefundLifecycle: {
		"refund_id": {}, "status": {}, "refund_amount": {},
		"currency": {}, "refund_reason": {},
	},
	KindPartnerAdjustment: {
		"order_detail_id": {}, "supplier_reference_id": {},
		"fulfillment_instance_id": {}, "party": {}, "line": {},
		"party_type": {}, "party_id": {}, "party_name": {},
		"obligation_type": {}, "amount": {}, "currency": {},
		"amount_effect": {}, "calculation": {}, "description": {},
	},
}

// Envelope is one decoded inbound event. The body is kept so payload
// parsers and metadata preservation both read from the same bytes.
type Envelope struct {
	EventID        string
	RawType        string
	Kind           Kind
	SchemaVersion  string
	OrderID        string
	EmittedAt      time.Time
	EmitterService string
	IdempotencyKey string
	Meta           map[string]any

	raw  []byte
	body map[string]json.RawMessage
}

// timestampLayouts accepted for emitted_at. Producers emit RFC3339 or
// a bare ISO-8601 local form without zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// Decode parses the envelope fields and resolves event_type aliases.
// Payload shape is not validated here; call the kind's parser next.
func Decode(raw []byte) (*Envelope, error) {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, invalidf(ErrMalformedJSON, "%v", err)
	}

	env := &Envelope{raw: raw, body: body}
	for key, dst := range map[string]*string{
		"event_id":        &env.EventID,
		"event_type":      &env.RawType,
		"schema_version":  &env.SchemaVersion,
		"order_id":        &env.OrderID,
		"emitter_service": &env.EmitterService,
		"idempotency_key": &env.IdempotencyKey,
	} {
		if msg, ok := body[key]; ok {
			if err := json.Unmarshal(msg, dst); err != nil {
				return nil, invalidf(ErrBadFieldType, "%s must be a string", key)
			}
		}
	}

	if env.RawType == "" {
		return nil, invalid(ErrMissingEventType)
	}
	kind, ok := kindByType[env.RawType]
	if !ok {
		return nil, invalidf(ErrUnknownEventType, "%s", env.RawType)
	}
	env.Kind = kind

	if env.SchemaVersion == "" {
		return nil, invalid(ErrMissingSchemaVersion)
	}
	if _, ok := schemasByKind[kind][env.SchemaVersion]; !ok {
		return nil, invalidf(ErrSchemaVersionMismatch, "%s does not accept %s", env.RawType, env.SchemaVersion)
	}

	if env.OrderID == "" {
		return nil, invalid(ErrMissingOrderID)
	}

	if msg, ok := body["emitted_at"]; ok {
		var stamp string
		if err := json.Unmarshal(msg, &stamp); err != nil {
			return nil, invalidf(ErrBadTimestamp, "emitted_at must be a string")
		}
		parsed, err := parseTimestamp(stamp)
		if err != nil {
			return nil, invalidf(ErrBadTimestamp, "%s", stamp)
		}
		env.EmittedAt = parsed
	}

	if msg, ok := body["meta"]; ok {
		if err := json.Unmarshal(msg, &env.Meta); err != nil {
			return nil, invalidf(ErrBadFieldType, "meta must be an object")
		}
	}

	return env, nil
}

func parseTimestamp(stamp string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, stamp)
		if err == nil {
			return parsed.UTC(), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// Raw returns the verbatim inbound bytes, used for DLQ replay.
func (e *Envelope) Raw() []byte { return e.raw }

// Has reports whether the body carries the key at all, so parsers can
// tell an absent array from an explicitly empty one.
func (e *Envelope) Has(key string) bool {
	_, ok := e.body[key]
	return ok
}

// Metadata merges meta with any top-level field neither the envelope
// nor the kind's payload consumes, preserved verbatim.
func (e *Envelope) Metadata() map[string]any {
	out := map[string]any{}
	for k, v := range e.Meta {
		out[k] = v
	}
	known := payloadKeys[e.Kind]
	for key, msg := range e.body {
		if _, ok := envelopeKeys[key]; ok {
			continue
		}
		if _, ok := known[key]; ok {
			continue
		}
		var value any
		if err := json.Unmarshal(msg, &value); err != nil {
			value = string(msg)
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (e *Envelope) field(key string, dst any) (bool, error) {
	msg, ok := e.body[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(msg, dst); err != nil {
		return true, invalidf(ErrBadFieldType, "%s: %v", key, err)
	}
	return true, nil
}
