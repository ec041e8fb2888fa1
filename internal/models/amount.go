package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"

	"github.com/garyjia/faktura/internal/format"
)

// Amount is a numeric form field. It always marshals as a JSON number and unmarshals from a
// number or a numeric string with either decimal separator; anything else reads as 0.
type Amount float64

// Float64 returns the amount as float64
func (a Amount) Float64() float64 {
	return float64(a)
}

// MarshalJSON implements json.Marshaler
func (a Amount) MarshalJSON() ([]byte, error) {
	v := float64(a)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	return []byte(strconv.FormatFloat(v, 'g', -1, 64)), nil
}

// UnmarshalJSON implements json.Unmarshaler
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			*a = 0
			return nil
		}
		*a = Amount(format.ParseLenient(s))
		return nil
	}

	*a = Amount(format.ParseLenient(string(data)))
	return nil
}
