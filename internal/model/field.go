package model

import (
	"math"
	"strconv"
	"strings"
)

// FieldState tells which variant a Field holds.
type FieldState int

const (
	FieldEmpty   FieldState = iota // Nothing entered yet
	FieldNumber                    // A parsed, non-negative number
	FieldInvalid                   // Text that could not be parsed
)

func (s FieldState) String() string {
	switch s {
	case FieldNumber:
		return "Number"
	case FieldInvalid:
		return "Invalid"
	default:
		return "Empty"
	}
}

// Field is a numeric form value: Empty, a non-negative Number, or Invalid.
// The zero value is Empty.
type Field struct {
	state FieldState
	value float64
	raw   string
}

// EmptyField returns the Empty variant.
func EmptyField() Field {
	return Field{}
}

// NumberField returns a Number variant holding n clamped to a minimum of 0.
func NumberField(n float64) Field {
	if n < 0 {
		n = 0
	}
	return Field{state: FieldNumber, value: n, raw: strconv.FormatFloat(n, 'f', -1, 64)}
}

// ParseField converts raw form text into a Field. Blank text is Empty;
// parsable text is clamped to >= 0 and, when integral is set, truncated
// toward zero; anything else (including NaN and Inf) is Invalid.
func ParseField(raw string, integral bool) Field {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Field{}
	}
	n, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return Field{state: FieldInvalid, raw: raw}
	}
	if n < 0 {
		n = 0
	}
	if integral {
		n = math.Trunc(n)
	}
	return Field{state: FieldNumber, value: n, raw: raw}
}

// State returns the variant.
func (f Field) State() FieldState { return f.state }

// IsEmpty reports whether nothing has been entered.
func (f Field) IsEmpty() bool { return f.state == FieldEmpty }

// IsInvalid reports whether the entered text could not be parsed.
func (f Field) IsInvalid() bool { return f.state == FieldInvalid }

// Value returns the number and true for the Number variant, or 0 and false.
func (f Field) Value() (float64, bool) {
	if f.state != FieldNumber {
		return 0, false
	}
	return f.value, true
}

// Positive reports whether the field holds a number greater than zero.
func (f Field) Positive() bool {
	return f.state == FieldNumber && f.value > 0
}

// Float coerces the field to a number; Empty and Invalid become 0.
func (f Field) Float() float64 {
	if f.state != FieldNumber {
		return 0
	}
	return f.value
}

// Raw returns the text the field was parsed from.
func (f Field) Raw() string { return f.raw }

func (f Field) String() string {
	switch f.state {
	case FieldNumber:
		return strconv.FormatFloat(f.value, 'f', -1, 64)
	case FieldInvalid:
		return "invalid(" + strconv.Quote(f.raw) + ")"
	default:
		return ""
	}
}
