package model

// Reasons shown when a result carries no layout images.
const (
	ReasonAllUnfit  = "all requested pieces were unfit"
	ReasonNoLayouts = "no layouts generated yet"
)

// OptimizationResult is the parsed body of a successful optimization call.
// Fields missing from the response stay at their zero value.
type OptimizationResult struct {
	SlabUsed        int      `json:"slabUsed"`
	UnfittedPieceID []string `json:"unfittedPieceId"`
	Images          []string `json:"image"` // Opaque layout references, one per used slab
}

// UnfitCount returns how many pieces the service could not place.
func (r OptimizationResult) UnfitCount() int {
	return len(r.UnfittedPieceID)
}

// HasLayouts reports whether any layout image came back.
func (r OptimizationResult) HasLayouts() bool {
	return len(r.Images) > 0
}

// AllFit reports whether layouts exist and every piece was placed.
func (r OptimizationResult) AllFit() bool {
	return r.HasLayouts() && r.UnfitCount() == 0
}

// NoLayoutsReason explains an empty layout list.
func (r OptimizationResult) NoLayoutsReason() string {
	if r.UnfitCount() > 0 && !r.HasLayouts() {
		return ReasonAllUnfit
	}
	return ReasonNoLayouts
}
