// Package identity derives the dual component identity of pricing
// components: a semantic ID that is stable across repricing and refund
// lineage, and an instance ID unique to one snapshot occurrence.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ErrIdentity wraps every identity derivation failure so callers can
// route it to the dead letter queue with errors.Is.
var ErrIdentity = errors.New("identity_error")

var (
	ErrMissingComponentType = fmt.Errorf("%w: missing component_type", ErrIdentity)
	ErrMissingOrderID       = fmt.Errorf("%w: missing order_id", ErrIdentity)
	ErrNonScalarDimension   = fmt.Errorf("%w: non-scalar dimension value", ErrIdentity)
)

const instanceDigestLen = 16

// SemanticID builds the deterministic identity of a pricing component.
// Dimensions are canonicalized by sorting keys lexicographically and
// joining key-value pairs; empty and null values are dropped, so
// insertion order never changes the result. Refund components carry
// the refund ID so their identity differs from the original's while
// the lineage pointer links them back.
func SemanticID(orderID, refundID string, dimensions map[string]any, componentType string) (string, error) {
	if strings.TrimSpace(orderID) == "" {
		return "", ErrMissingOrderID
	}
	if strings.TrimSpace(componentType) == "" {
		return "", ErrMissingComponentType
	}

	parts := []string{"cs", orderID}
	if refundID != "" {
		parts = append(parts, refundID)
	}

	canonical, err := CanonicalDimensions(dimensions)
	if err != nil {
		return "", err
	}
	for _, kv := range canonical {
		parts = append(parts, kv.Key, kv.Value)
	}

	parts = append(parts, componentType)
	return strings.Join(parts, "-"), nil
}

// InstanceID derives the snapshot-unique identity of one component
// occurrence: a truncated SHA-256 digest over the semantic ID and the
// pricing snapshot ID separated by a NUL byte.
func InstanceID(semanticID, pricingSnapshotID string) string {
	sum := sha256.Sum256([]byte(semanticID + "\x00" + pricingSnapshotID))
	return hex.EncodeToString(sum[:])[:instanceDigestLen]
}

// DimensionPair is one canonicalized dimension entry.
type DimensionPair struct {
	Key   string
	Value string
}

// CanonicalDimensions sorts dimension keys lexicographically, renders
// each scalar value to its canonical string form and drops empty or
// null entries. Non-scalar values are rejected.
func CanonicalDimensions(dimensions map[string]any) ([]DimensionPair, error) {
	if len(dimensions) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(dimensions))
	for k := range dimensions {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]DimensionPair, 0, len(keys))
	for _, k := range keys {
		value, ok, err := scalarString(dimensions[k])
		if err != nil {
			return nil, fmt.Errorf("%w (key %q)", err, k)
		}
		if !ok {
			continue
		}
		pairs = append(pairs, DimensionPair{Key: k, Value: value})
	}
	return pairs, nil
}

func scalarString(v any) (string, bool, error) {
	switch value := v.(type) {
	case nil:
		return "", false, nil
	case string:
		if value == "" {
			return "", false, nil
		}
		return value, true, nil
	case bool:
		return strconv.FormatBool(value), true, nil
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true, nil
	case float32:
		return strconv.FormatFloat(float64(value), 'f', -1, 32), true, nil
	case int:
		return strconv.Itoa(value), true, nil
	case int32:
		return strconv.FormatInt(int64(value), 10), true, nil
	case int64:
		return strconv.FormatInt(value, 10), true, nil
	default:
		return "", false, ErrNonScalarDimension
	}
}
