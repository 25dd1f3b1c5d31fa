package run

import (
	"bytes"
	"math"
	"strconv"
)

// Float is a metric value that may be undefined. NaN and infinities encode as JSON
// null and print as "n/a".
type Float float64

// NA is the undefined value
var NA = Float(math.NaN())

// Defined reports whether f is a finite number
func (f Float) Defined() bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}

// Format renders f with the given number of decimals, or "n/a"
func (f Float) Format(decimals int) string {
	if !f.Defined() {
		return "n/a"
	}
	return strconv.FormatFloat(float64(f), 'f', decimals, 64)
}

func (f Float) String() string { return f.Format(4) }

func (f Float) MarshalJSON() ([]byte, error) {
	if !f.Defined() {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, float64(f), 'g', -1, 64), nil
}

func (f *Float) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*f = NA
		return nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Ptr returns nil for undefined values, for nullable SQL columns
func (f Float) Ptr() *float64 {
	if !f.Defined() {
		return nil
	}
	v := float64(f)
	return &v
}
