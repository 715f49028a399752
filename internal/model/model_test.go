package model

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// ─── Field Tests ───────────────────────────────────────────

func TestParseField(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		integral bool
		state    FieldState
		value    float64
	}{
		{"empty", "", false, FieldEmpty, 0},
		{"whitespace only", "   ", false, FieldEmpty, 0},
		{"integer", "50", false, FieldNumber, 50},
		{"decimal", "12.5", false, FieldNumber, 12.5},
		{"surrounding spaces", " 7 ", false, FieldNumber, 7},
		{"negative clamps to zero", "-3", false, FieldNumber, 0},
		{"integral truncates", "2.9", true, FieldNumber, 2},
		{"integral negative clamps", "-1.5", true, FieldNumber, 0},
		{"letters", "abc", false, FieldInvalid, 0},
		{"trailing junk", "12mm", false, FieldInvalid, 0},
		{"NaN", "NaN", false, FieldInvalid, 0},
		{"infinity", "Inf", false, FieldInvalid, 0},
		{"two dots", "1.2.3", true, FieldInvalid, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := ParseField(tt.raw, tt.integral)
			if f.State() != tt.state {
				t.Fatalf("ParseField(%q) state = %v, want %v", tt.raw, f.State(), tt.state)
			}
			if got := f.Float(); got != tt.value {
				t.Errorf("ParseField(%q) value = %v, want %v", tt.raw, got, tt.value)
			}
		})
	}
}

func TestFieldPositive(t *testing.T) {
	if EmptyField().Positive() {
		t.Error("empty field should not be positive")
	}
	if NumberField(0).Positive() {
		t.Error("zero should not be positive")
	}
	if !NumberField(0.1).Positive() {
		t.Error("0.1 should be positive")
	}
	if ParseField("x", false).Positive() {
		t.Error("invalid field should not be positive")
	}
}

func TestNumberFieldClamps(t *testing.T) {
	v, ok := NumberField(-10).Value()
	if !ok || v != 0 {
		t.Errorf("expected clamped 0, got %v (ok=%v)", v, ok)
	}
}

// ─── Collection Tests ──────────────────────────────────────

func TestNewCollectionHasOneBlankRow(t *testing.T) {
	c := NewStockCollection()
	if c.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", c.Len())
	}
	row, _ := c.Row(0)
	if row.ID != "S1" {
		t.Errorf("expected first label S1, got %s", row.ID)
	}
	if !c.IsBlank(0) {
		t.Error("first row should be blank")
	}
}

func TestCollectionAddLabels(t *testing.T) {
	c := NewPieceCollection()
	c.Add()
	id := c.Add()
	if id != "P3" {
		t.Errorf("expected P3, got %s", id)
	}
}

func TestCollectionRemoveLastRowRejected(t *testing.T) {
	c := NewStockCollection()
	if err := c.Remove(0); !errors.Is(err, ErrLastRow) {
		t.Fatalf("expected ErrLastRow, got %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("expected length 1, got %d", c.Len())
	}
}

func TestCollectionRemovePreservesOrder(t *testing.T) {
	c := NewPieceCollection()
	c.Add()
	c.Add()
	if err := c.Remove(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows := c.Rows()
	if len(rows) != 2 || rows[0].ID != "P1" || rows[1].ID != "P3" {
		t.Errorf("expected [P1 P3], got %+v", rows)
	}
}

func TestCollectionRemoveOutOfRange(t *testing.T) {
	c := NewPieceCollection()
	c.Add()
	if err := c.Remove(5); !errors.Is(err, ErrRowIndex) {
		t.Errorf("expected ErrRowIndex, got %v", err)
	}
	if c.Len() != 2 {
		t.Errorf("collection changed on bad index: %d rows", c.Len())
	}
}

func TestCollectionLabelsNeverReused(t *testing.T) {
	c := NewStockCollection()
	c.Add() // S2
	if err := c.Remove(0); err != nil {
		t.Fatal(err)
	}
	id := c.Add()
	if id == "S2" {
		t.Fatal("label S2 was reissued after a removal")
	}
	if id != "S3" {
		t.Errorf("expected S3, got %s", id)
	}
}

func TestCollectionNeverBelowOne(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	c := NewPieceCollection()
	seen := map[string]bool{"P1": true}

	for i := 0; i < 2000; i++ {
		if rng.Intn(2) == 0 {
			id := c.Add()
			if seen[id] {
				t.Fatalf("label %s issued twice", id)
			}
			seen[id] = true
		} else {
			_ = c.Remove(rng.Intn(c.Len() + 1))
		}
		if c.Len() < 1 {
			t.Fatalf("collection fell below one row after step %d", i)
		}
	}
}

func TestCollectionUpdate(t *testing.T) {
	c := NewPieceCollection()

	if err := c.Update(0, FieldWidth, "600"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Update(0, FieldQuantity, "2.7"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row, _ := c.Row(0)
	if row.Width.Float() != 600 {
		t.Errorf("expected width 600, got %v", row.Width.Float())
	}
	if row.Quantity.Float() != 2 {
		t.Errorf("expected quantity truncated to 2, got %v", row.Quantity.Float())
	}

	if err := c.Update(0, FieldWidth, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	row, _ = c.Row(0)
	if !row.Width.IsEmpty() {
		t.Errorf("expected empty width after clearing, got %v", row.Width)
	}
}

func TestCollectionUpdateMalformedText(t *testing.T) {
	c := NewStockCollection()
	_ = c.Update(0, FieldLength, "1220")

	if err := c.Update(0, FieldWidth, "twelve"); err != nil {
		t.Fatalf("malformed text should not be an error: %v", err)
	}
	row, _ := c.Row(0)
	if !row.Width.IsInvalid() {
		t.Errorf("expected invalid width, got %v", row.Width.State())
	}
	if row.Length.Float() != 1220 {
		t.Errorf("other fields changed: length=%v", row.Length.Float())
	}
	if c.Len() != 1 {
		t.Errorf("collection length changed: %d", c.Len())
	}
}

func TestCollectionUpdateRejectsUnknownField(t *testing.T) {
	c := NewStockCollection()
	if err := c.Update(0, FieldQuantity, "3"); !errors.Is(err, ErrUnknownField) {
		t.Errorf("stock rows have no quantity; expected ErrUnknownField, got %v", err)
	}
	if err := c.Update(3, FieldWidth, "3"); !errors.Is(err, ErrRowIndex) {
		t.Errorf("expected ErrRowIndex, got %v", err)
	}
}

func TestCollectionRowsIsACopy(t *testing.T) {
	c := NewStockCollection()
	rows := c.Rows()
	rows[0].ID = "changed"
	row, _ := c.Row(0)
	if row.ID != "S1" {
		t.Error("mutating Rows() result changed the collection")
	}
}

func TestCollectionReset(t *testing.T) {
	c := NewStockCollection()
	c.Add()
	_ = c.Update(0, FieldWidth, "10")
	c.Reset()

	if c.Len() != 1 || !c.IsBlank(0) {
		t.Fatalf("expected one blank row after reset, got %d rows", c.Len())
	}
	row, _ := c.Row(0)
	if row.ID != "S3" {
		t.Errorf("expected labels to keep counting (S3), got %s", row.ID)
	}
}

func TestCollectionFillRawReusesBlankRow(t *testing.T) {
	c := NewPieceCollection()
	errs := c.FillRaw([]map[string]string{
		{FieldWidth: "600", FieldLength: "300", FieldQuantity: "2"},
		{FieldWidth: "400", FieldLength: "x", FieldQuantity: "1"},
	})
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if c.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", c.Len())
	}
	second, _ := c.Row(1)
	if !second.Length.IsInvalid() {
		t.Errorf("expected invalid length on second row, got %v", second.Length.State())
	}
}

func TestCollectionFillRawAppendsAfterData(t *testing.T) {
	c := NewStockCollection()
	_ = c.Update(0, FieldWidth, "2440")
	errs := c.FillRaw([]map[string]string{{FieldWidth: "1220", "grain": "h"}})

	if len(errs) != 1 || !errors.Is(errs[0], ErrUnknownField) {
		t.Errorf("expected one unknown field error, got %v", errs)
	}
	if c.Len() != 2 {
		t.Errorf("expected 2 rows, got %d", c.Len())
	}
}

// ─── Validator Tests ───────────────────────────────────────

func stock(id string, w, l float64) StockUnit {
	return StockUnit{ID: id, Width: NumberField(w), Length: NumberField(l)}
}

func piece(id string, w, l, q float64) CutPiece {
	return CutPiece{ID: id, Width: NumberField(w), Length: NumberField(l), Quantity: NumberField(q)}
}

func TestIsValidStock(t *testing.T) {
	if !IsValidStock(stock("S1", 2440, 1220)) {
		t.Error("expected valid stock")
	}
	if IsValidStock(stock("S1", 0, 1220)) {
		t.Error("zero width should be invalid")
	}
	if IsValidStock(StockUnit{ID: "S1", Width: NumberField(10), Length: ParseField("?", false)}) {
		t.Error("invalid length should make the row invalid")
	}
}

func TestIsValidPiece(t *testing.T) {
	if !IsValidPiece(piece("P1", 10, 10, 2)) {
		t.Error("expected valid piece")
	}
	if IsValidPiece(piece("P1", 10, 10, 0)) {
		t.Error("zero quantity should be invalid")
	}
	if IsValidPiece(piece("P1", 10, 10, 1.5)) {
		t.Error("fractional quantity should be invalid")
	}
	if IsValidPiece(CutPiece{ID: "P1", Width: NumberField(10), Length: NumberField(10)}) {
		t.Error("empty quantity should be invalid")
	}
	if !IsValidPiece(piece("P1", 10, 10, MaxQuantity)) {
		t.Error("MaxQuantity should be valid")
	}
	if IsValidPiece(piece("P1", 10, 10, 9e18)) {
		t.Error("quantity above MaxQuantity should be invalid")
	}
}

func TestBuildRequestDropsHugeQuantity(t *testing.T) {
	inventory := []StockUnit{stock("S1", 2000, 1000)}
	pieces := []CutPiece{
		piece("P1", 100, 100, 9e18),
		piece("P2", 100, 100, 9e18),
	}
	_, err := BuildRequest(inventory, pieces)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != MsgNeedValidPiece {
		t.Errorf("expected piece diagnostic, got %v", err)
	}
}

func TestTotalPiecesSaturates(t *testing.T) {
	req := OptimizationRequest{Pieces: []PieceSpec{
		{ID: "P1", Width: 1, Length: 1, Quantity: math.MaxInt - 1},
		{ID: "P2", Width: 1, Length: 1, Quantity: 2},
		{ID: "P3", Width: 1, Length: 1, Quantity: -5},
	}}
	if got := req.TotalPieces(); got != math.MaxInt {
		t.Errorf("expected TotalPieces to saturate at math.MaxInt, got %d", got)
	}

	small := OptimizationRequest{Pieces: []PieceSpec{{ID: "P1", Quantity: 2}, {ID: "P2", Quantity: -1}}}
	if got := small.TotalPieces(); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
}

func TestCanSubmit(t *testing.T) {
	validStock := []StockUnit{stock("S1", 50, 50)}
	validPieces := []CutPiece{piece("P1", 10, 10, 2)}
	badStock := []StockUnit{stock("S1", 0, 50)}
	badPieces := []CutPiece{piece("P1", 10, 0, 1)}

	tests := []struct {
		name    string
		stock   []StockUnit
		pieces  []CutPiece
		wantMsg string
	}{
		{"both valid", validStock, validPieces, ""},
		{"no stock rows", nil, validPieces, MsgNeedValidSlab},
		{"no piece rows", validStock, nil, MsgNeedValidPiece},
		{"invalid stock", badStock, validPieces, MsgNeedValidSlab},
		{"invalid pieces", validStock, badPieces, MsgNeedValidPiece},
		{"nothing valid reports slab first", badStock, badPieces, MsgNeedValidSlab},
		{"nothing at all reports slab first", nil, nil, MsgNeedValidSlab},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanSubmit(tt.stock, tt.pieces)
			if tt.wantMsg == "" {
				if err != nil {
					t.Fatalf("expected submit to be allowed, got %v", err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Message != tt.wantMsg {
				t.Errorf("expected %q, got %q", tt.wantMsg, verr.Message)
			}
		})
	}
}

// ─── Request Tests ─────────────────────────────────────────

func TestBuildRequestFiltersAndCoerces(t *testing.T) {
	inventory := []StockUnit{
		stock("S1", 2440, 1220),
		{ID: "S2", Width: ParseField("abc", false), Length: NumberField(100)},
		NewStockUnit("S3"),
	}
	pieces := []CutPiece{
		piece("P1", 600, 300, 2),
		piece("P2", 0, 300, 1),
		{ID: "P3", Width: ParseField("400", false), Length: ParseField("200", false), Quantity: ParseField("3.9", true)},
	}

	req, err := BuildRequest(inventory, pieces)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(req.Inventory) != 1 || req.Inventory[0].ID != "S1" {
		t.Errorf("expected only S1 in inventory, got %+v", req.Inventory)
	}
	if len(req.Pieces) != 2 {
		t.Fatalf("expected 2 pieces, got %+v", req.Pieces)
	}
	if req.Pieces[1].ID != "P3" || req.Pieces[1].Quantity != 3 {
		t.Errorf("expected P3 with qty 3, got %+v", req.Pieces[1])
	}
	if req.TotalPieces() != 5 {
		t.Errorf("expected 5 piece instances, got %d", req.TotalPieces())
	}
}

func TestBuildRequestRejectsWhenNothingValid(t *testing.T) {
	_, err := BuildRequest([]StockUnit{NewStockUnit("S1")}, []CutPiece{piece("P1", 1, 1, 1)})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != MsgNeedValidSlab {
		t.Errorf("expected slab diagnostic, got %v", err)
	}
}

func TestFindPiece(t *testing.T) {
	req := OptimizationRequest{Pieces: []PieceSpec{{ID: "P1", Width: 1, Length: 2, Quantity: 1}}}
	if _, ok := req.FindPiece("P1"); !ok {
		t.Error("expected to find P1")
	}
	if _, ok := req.FindPiece("P9"); ok {
		t.Error("did not expect to find P9")
	}
}

// ─── Result Tests ──────────────────────────────────────────

func TestResultAllFit(t *testing.T) {
	r := OptimizationResult{SlabUsed: 1, UnfittedPieceID: []string{}, Images: []string{"ref1"}}
	if !r.AllFit() {
		t.Error("expected AllFit")
	}
	if r.UnfitCount() != 0 {
		t.Errorf("expected 0 unfit, got %d", r.UnfitCount())
	}
}

func TestResultAllUnfit(t *testing.T) {
	r := OptimizationResult{UnfittedPieceID: []string{"P1"}, Images: []string{}}
	if r.HasLayouts() {
		t.Error("expected no layouts")
	}
	if r.UnfitCount() != 1 {
		t.Errorf("expected 1 unfit, got %d", r.UnfitCount())
	}
	if r.NoLayoutsReason() != ReasonAllUnfit {
		t.Errorf("expected %q, got %q", ReasonAllUnfit, r.NoLayoutsReason())
	}
	if r.AllFit() {
		t.Error("AllFit should be false without layouts")
	}
}

func TestResultPartialFit(t *testing.T) {
	r := OptimizationResult{SlabUsed: 2, UnfittedPieceID: []string{"P4"}, Images: []string{"a", "b"}}
	if r.AllFit() {
		t.Error("AllFit should be false when a piece is unfit")
	}
	if r.NoLayoutsReason() != ReasonNoLayouts {
		t.Errorf("expected %q, got %q", ReasonNoLayouts, r.NoLayoutsReason())
	}
}

func TestResultZeroValue(t *testing.T) {
	var r OptimizationResult
	if r.HasLayouts() || r.AllFit() || r.UnfitCount() != 0 {
		t.Error("zero result should have no layouts and no unfit pieces")
	}
	if r.NoLayoutsReason() != ReasonNoLayouts {
		t.Errorf("expected %q, got %q", ReasonNoLayouts, r.NoLayoutsReason())
	}
}
