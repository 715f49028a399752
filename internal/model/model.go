package model

// Field names accepted by Collection.Update.
const (
	FieldWidth    = "width"
	FieldLength   = "length"
	FieldQuantity = "quantity"
)

// StockUnit represents an available slab of material to cut from.
type StockUnit struct {
	ID     string
	Width  Field // mm
	Length Field // mm
}

// NewStockUnit returns a stock row with the given label and empty dimensions.
func NewStockUnit(id string) StockUnit {
	return StockUnit{ID: id}
}

// CutPiece represents a requested piece and how many of it are needed.
type CutPiece struct {
	ID       string
	Width    Field // mm
	Length   Field // mm
	Quantity Field // integral
}

// NewCutPiece returns a piece row with the given label and empty fields.
func NewCutPiece(id string) CutPiece {
	return CutPiece{ID: id}
}

// StockSchema describes StockUnit rows for a Collection. Labels are S1, S2, ...
var StockSchema = Schema[StockUnit]{
	Prefix: "S",
	New:    NewStockUnit,
	Fields: map[string]FieldSpec[StockUnit]{
		FieldWidth: {
			Get: func(r StockUnit) Field { return r.Width },
			Set: func(r *StockUnit, f Field) { r.Width = f },
		},
		FieldLength: {
			Get: func(r StockUnit) Field { return r.Length },
			Set: func(r *StockUnit, f Field) { r.Length = f },
		},
	},
}

// PieceSchema describes CutPiece rows for a Collection. Labels are P1, P2, ...
var PieceSchema = Schema[CutPiece]{
	Prefix: "P",
	New:    NewCutPiece,
	Fields: map[string]FieldSpec[CutPiece]{
		FieldWidth: {
			Get: func(r CutPiece) Field { return r.Width },
			Set: func(r *CutPiece, f Field) { r.Width = f },
		},
		FieldLength: {
			Get: func(r CutPiece) Field { return r.Length },
			Set: func(r *CutPiece, f Field) { r.Length = f },
		},
		FieldQuantity: {
			Integral: true,
			Get:      func(r CutPiece) Field { return r.Quantity },
			Set:      func(r *CutPiece, f Field) { r.Quantity = f },
		},
	},
}

// NewStockCollection returns a stock collection holding one blank row.
func NewStockCollection() *Collection[StockUnit] {
	return NewCollection(StockSchema)
}

// NewPieceCollection returns a piece collection holding one blank row.
func NewPieceCollection() *Collection[CutPiece] {
	return NewCollection(PieceSchema)
}
