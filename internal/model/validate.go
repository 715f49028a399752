package model

import "math"

// Diagnostics reported when a collection pair cannot be submitted.
const (
	MsgNeedValidSlab  = "need at least one valid slab"
	MsgNeedValidPiece = "need at least one valid piece"
)

// ValidationError is returned when the inputs do not allow a request.
// It is resolved locally; nothing is sent to the optimization service.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsValidStock reports whether a stock row has a positive width and length.
func IsValidStock(s StockUnit) bool {
	return s.Width.Positive() && s.Length.Positive()
}

// MaxQuantity is the largest quantity a piece row may carry. Every whole
// number up to it is exact as a float64 and fits an int.
const MaxQuantity = 1 << 53

// IsValidPiece reports whether a piece row has a positive width, length
// and whole-number quantity no larger than MaxQuantity.
func IsValidPiece(p CutPiece) bool {
	if !p.Width.Positive() || !p.Length.Positive() || !p.Quantity.Positive() {
		return false
	}
	q, _ := p.Quantity.Value()
	return q <= MaxQuantity && q == math.Trunc(q)
}

// ValidStock returns the valid stock rows, keeping their order.
func ValidStock(rows []StockUnit) []StockUnit {
	var out []StockUnit
	for _, s := range rows {
		if IsValidStock(s) {
			out = append(out, s)
		}
	}
	return out
}

// ValidPieces returns the valid piece rows, keeping their order.
func ValidPieces(rows []CutPiece) []CutPiece {
	var out []CutPiece
	for _, p := range rows {
		if IsValidPiece(p) {
			out = append(out, p)
		}
	}
	return out
}

// CanSubmit checks that at least one stock row and one piece row are valid.
// The stock check runs first, so with nothing valid at all the slab
// diagnostic is the one reported.
func CanSubmit(inventory []StockUnit, pieces []CutPiece) error {
	if len(ValidStock(inventory)) == 0 {
		return &ValidationError{Message: MsgNeedValidSlab}
	}
	if len(ValidPieces(pieces)) == 0 {
		return &ValidationError{Message: MsgNeedValidPiece}
	}
	return nil
}
