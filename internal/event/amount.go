package event

import (
	"encoding/json"
	"math"
	"strconv"
)

// Amount is a minor-unit money value. Producers occasionally emit
// decimals ("amount_due": 180.00); those are rounded to the nearest
// minor unit instead of rejected.
type Amount int64

func (a *Amount) UnmarshalJSON(data []byte) error {
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	if i, err := num.Int64(); err == nil {
		*a = Amount(i)
		return nil
	}
	f, err := strconv.ParseFloat(num.String(), 64)
	if err != nil {
		return err
	}
	*a = Amount(math.Round(f))
	return nil
}

func (a Amount) Int64() int64 { return int64(a) }

func (a *Amount) Int64Ptr() *int64 {
	if a == nil {
		return nil
	}
	v := int64(*a)
	return &v
}
