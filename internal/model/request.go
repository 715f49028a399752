package model

import "math"

// PieceSpec is a coerced, valid piece as sent to the optimization service.
type PieceSpec struct {
	ID       string  `json:"id"`
	Width    float64 `json:"width"`  // mm
	Length   float64 `json:"length"` // mm
	Quantity int     `json:"qty"`
}

// StockSpec is a coerced, valid stock unit as sent to the optimization service.
type StockSpec struct {
	ID     string  `json:"id"`
	Width  float64 `json:"width"`  // mm
	Length float64 `json:"length"` // mm
}

// OptimizationRequest is the JSON body of the single outbound call.
type OptimizationRequest struct {
	Pieces    []PieceSpec `json:"pieces"`
	Inventory []StockSpec `json:"inventory"`
}

// BuildRequest filters both collections to their valid rows and coerces
// every field to a number. It fails with a *ValidationError when either
// side has no valid row; invalid rows are otherwise dropped silently.
func BuildRequest(inventory []StockUnit, pieces []CutPiece) (OptimizationRequest, error) {
	if err := CanSubmit(inventory, pieces); err != nil {
		return OptimizationRequest{}, err
	}

	req := OptimizationRequest{
		Pieces:    []PieceSpec{},
		Inventory: []StockSpec{},
	}
	for _, p := range ValidPieces(pieces) {
		req.Pieces = append(req.Pieces, PieceSpec{
			ID:       p.ID,
			Width:    p.Width.Float(),
			Length:   p.Length.Float(),
			Quantity: int(p.Quantity.Float()),
		})
	}
	for _, s := range ValidStock(inventory) {
		req.Inventory = append(req.Inventory, StockSpec{
			ID:     s.ID,
			Width:  s.Width.Float(),
			Length: s.Length.Float(),
		})
	}
	return req, nil
}

// TotalPieces returns the number of piece instances requested, quantities
// expanded. The sum saturates at math.MaxInt and ignores non-positive
// quantities, so it never goes negative.
func (r OptimizationRequest) TotalPieces() int {
	total := 0
	for _, p := range r.Pieces {
		if p.Quantity <= 0 {
			continue
		}
		if p.Quantity > math.MaxInt-total {
			return math.MaxInt
		}
		total += p.Quantity
	}
	return total
}

// FindPiece returns the requested piece with the given id.
func (r OptimizationRequest) FindPiece(id string) (PieceSpec, bool) {
	for _, p := range r.Pieces {
		if p.ID == id {
			return p, true
		}
	}
	return PieceSpec{}, false
}
