// Package importer fills stock and piece collections from CSV, Excel and DXF
// files. Cell text is passed through untouched so numeric coercion happens in
// one place, when a value is written into a collection.
package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/piwi3910/slabcut-remote/internal/model"
)

// Record is one imported row as raw cell text.
type Record struct {
	Line     int // source line or row number, 0 for DXF shapes
	Width    string
	Length   string
	Quantity string
}

// ImportResult holds the results of an import operation.
type ImportResult struct {
	Records  []Record
	Errors   []string
	Warnings []string
}

// ColumnMapping maps semantic column roles to their indices in the data.
type ColumnMapping struct {
	Label    int
	Width    int
	Length   int
	Quantity int
}

// headerAliases maps canonical column names to their accepted aliases (all lowercase).
var headerAliases = map[string][]string{
	"label":    {"label", "id", "name", "part", "part name", "description", "desc", "piece", "item", "slab"},
	"width":    {"width", "w", "x"},
	"length":   {"length", "len", "l", "height", "h", "depth", "d", "y"},
	"quantity": {"quantity", "qty", "count", "num", "amount", "pcs", "pieces"},
}

// DetectCSVDelimiter reads the file content and determines the most likely CSV delimiter.
// It tries comma, semicolon, tab, and pipe. The delimiter that produces the most
// consistent (non-one) column count across lines wins.
func DetectCSVDelimiter(data []byte) rune {
	candidates := []rune{',', ';', '\t', '|'}
	bestDelimiter := ','
	bestScore := 0

	for _, delim := range candidates {
		records, err := newCSVReader(bytes.NewReader(data), delim).ReadAll()
		if err != nil || len(records) < 1 {
			continue
		}

		firstCols := len(records[0])
		if firstCols < 2 {
			continue
		}

		score := 0
		for _, row := range records {
			if len(row) == firstCols {
				score++
			}
		}

		// consistency first, then column count
		weighted := score*10 + firstCols
		if weighted > bestScore {
			bestScore = weighted
			bestDelimiter = delim
		}
	}

	return bestDelimiter
}

func newCSVReader(r io.Reader, delim rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = delim
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	return reader
}

// DetectColumns examines a header row and returns a ColumnMapping.
// Matching is case-insensitive against known aliases. The boolean is false
// when the row is not a header; the mapping is then positional.
func DetectColumns(row []string) (ColumnMapping, bool) {
	mapping := ColumnMapping{Label: -1, Width: -1, Length: -1, Quantity: -1}

	isHeader := false
	for i, cell := range row {
		normalized := strings.ToLower(strings.TrimSpace(cell))
		for role, aliases := range headerAliases {
			for _, alias := range aliases {
				if normalized != alias {
					continue
				}
				isHeader = true
				switch role {
				case "label":
					if mapping.Label == -1 {
						mapping.Label = i
					}
				case "width":
					if mapping.Width == -1 {
						mapping.Width = i
					}
				case "length":
					if mapping.Length == -1 {
						mapping.Length = i
					}
				case "quantity":
					if mapping.Quantity == -1 {
						mapping.Quantity = i
					}
				}
			}
		}
	}

	if !isHeader {
		return positionalMapping(row), false
	}
	return mapping, true
}

// positionalMapping reads width, length, quantity in that order, after a
// leading label column when a row starts with text followed by a number.
func positionalMapping(row []string) ColumnMapping {
	if len(row) >= 4 && !isNumber(row[0]) && isNumber(row[1]) {
		return ColumnMapping{Label: 0, Width: 1, Length: 2, Quantity: 3}
	}
	return ColumnMapping{Label: -1, Width: 0, Length: 1, Quantity: 2}
}

func isNumber(s string) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil
}

// getCell safely retrieves a cell value from a row by column index.
// Returns empty string if the index is out of range or negative.
func getCell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// isEmptyRow returns true if the row has no meaningful content.
func isEmptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ImportCSV imports rows from a CSV file, detecting the delimiter and
// mapping columns by header names.
func ImportCSV(path string) ImportResult {
	result := ImportResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open file: %v", err))
		return result
	}

	if len(bytes.TrimSpace(data)) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	delimiter := DetectCSVDelimiter(data)
	var warnings []string
	if delimiter != ',' {
		delimName := map[rune]string{';': "semicolon", '\t': "tab", '|': "pipe"}[delimiter]
		warnings = append(warnings, fmt.Sprintf("Detected %s delimiter", delimName))
	}

	records, err := newCSVReader(bytes.NewReader(data), delimiter).ReadAll()
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read CSV: %v", err))
		return result
	}

	return importFromRows(records, "Line", warnings)
}

// ImportCSVFromReader imports rows from a CSV reader with a known delimiter.
func ImportCSVFromReader(reader io.Reader, delimiter rune) ImportResult {
	records, err := newCSVReader(reader, delimiter).ReadAll()
	if err != nil {
		return ImportResult{Errors: []string{fmt.Sprintf("Cannot read CSV: %v", err)}}
	}
	return importFromRows(records, "Line", nil)
}

// ImportExcel imports rows from the first sheet of an Excel workbook.
func ImportExcel(path string) ImportResult {
	result := ImportResult{}

	f, err := excelize.OpenFile(path)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot open Excel file: %v", err))
		return result
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		result.Errors = append(result.Errors, "Excel file has no sheets")
		return result
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("Cannot read Excel data: %v", err))
		return result
	}

	return importFromRows(rows, "Row", nil)
}

// importFromRows is the shared import logic for both CSV and Excel data.
func importFromRows(rows [][]string, rowPrefix string, warnings []string) ImportResult {
	result := ImportResult{Warnings: warnings}

	if len(rows) == 0 {
		result.Errors = append(result.Errors, "File is empty")
		return result
	}

	mapping, hasHeader := DetectColumns(rows[0])
	startRow := 0
	if hasHeader {
		startRow = 1
		result.Warnings = append(result.Warnings, "Detected header row, skipping")

		missing := []string{}
		if mapping.Width == -1 {
			missing = append(missing, "Width")
		}
		if mapping.Length == -1 {
			missing = append(missing, "Length")
		}
		if len(missing) > 0 {
			result.Errors = append(result.Errors, fmt.Sprintf("Required columns not found in header: %s", strings.Join(missing, ", ")))
			return result
		}
	} else if len(rows[0]) > mapping.Width && !isNumber(rows[0][mapping.Width]) {
		// unrecognised header, keep the positional mapping
		startRow = 1
		result.Warnings = append(result.Warnings, "Detected header row, skipping")
	}

	if mapping.Label != -1 {
		result.Warnings = append(result.Warnings, "Label column ignored; imported rows get new labels")
	}

	for i := startRow; i < len(rows); i++ {
		row := rows[i]
		if isEmptyRow(row) {
			continue
		}

		lineNum := i + 1
		rec := Record{
			Line:     lineNum,
			Width:    getCell(row, mapping.Width),
			Length:   getCell(row, mapping.Length),
			Quantity: getCell(row, mapping.Quantity),
		}
		if rec.Width == "" && rec.Length == "" {
			result.Errors = append(result.Errors, fmt.Sprintf("%s %d: Missing width and length", rowPrefix, lineNum))
			continue
		}
		for _, c := range []struct{ name, value string }{
			{"width", rec.Width}, {"length", rec.Length}, {"quantity", rec.Quantity},
		} {
			if c.value != "" && !isNumber(c.value) {
				result.Warnings = append(result.Warnings, fmt.Sprintf("%s %d: %s '%s' is not a number", rowPrefix, lineNum, c.name, c.value))
			}
		}
		result.Records = append(result.Records, rec)
	}

	if len(result.Records) == 0 && len(result.Errors) == 0 {
		result.Errors = append(result.Errors, "No data rows found")
	}
	return result
}

// Import picks an importer by file extension.
func Import(path string) ImportResult {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm", ".xls":
		return ImportExcel(path)
	case ".dxf":
		return ImportDXF(path)
	default:
		return ImportCSV(path)
	}
}

// ApplyPieces writes the records into a piece collection. A blank quantity
// becomes 1.
func ApplyPieces(c *model.Collection[model.CutPiece], result ImportResult) []error {
	raw := make([]map[string]string, 0, len(result.Records))
	for _, rec := range result.Records {
		qty := rec.Quantity
		if qty == "" {
			qty = "1"
		}
		raw = append(raw, map[string]string{
			model.FieldWidth:    rec.Width,
			model.FieldLength:   rec.Length,
			model.FieldQuantity: qty,
		})
	}
	return c.FillRaw(raw)
}

// maxStockRepeat caps how many stock rows one record can expand into.
const maxStockRepeat = 1000

// ApplyStock writes the records into a stock collection. Stock units have no
// quantity field, so a record with a whole-number quantity above one is
// repeated that many times.
func ApplyStock(c *model.Collection[model.StockUnit], result ImportResult) []error {
	var raw []map[string]string
	for _, rec := range result.Records {
		n := 1
		if q := model.ParseField(rec.Quantity, true); q.Positive() {
			n = maxStockRepeat
			if q.Float() < maxStockRepeat {
				n = int(q.Float())
			}
		}
		for i := 0; i < n; i++ {
			raw = append(raw, map[string]string{
				model.FieldWidth:  rec.Width,
				model.FieldLength: rec.Length,
			})
		}
	}
	return c.FillRaw(raw)
}
