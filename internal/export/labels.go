// Package export turns a successful optimization into printable files: a PDF
// report with the returned layouts and a sheet of QR-coded piece labels.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/piwi3910/slabcut-remote/internal/model"
)

var (
	// ErrNoLabels is returned when no placed piece is left to label.
	ErrNoLabels = errors.New("no placed pieces to generate labels for")
	// ErrTooManyLabels is returned when the placed quantities add up to more
	// than MaxLabels. Nothing is expanded or written in that case.
	ErrTooManyLabels = errors.New("too many labels")
)

// LabelInfo holds the data encoded into each piece label's QR code.
type LabelInfo struct {
	PieceID string  `json:"id"`
	Width   float64 `json:"width_mm"`
	Length  float64 `json:"length_mm"`
	Copy    int     `json:"copy"`
	Of      int     `json:"of"`
}

// Label layout constants for Avery 5160-compatible labels (3 columns, 10 rows per page).
// Each label cell is approximately 66.7mm x 25.4mm on US Letter paper.
const (
	labelMarginTop  = 12.7 // mm
	labelMarginLeft = 4.8  // mm
	labelWidth      = 66.7 // mm per label
	labelHeight     = 25.4 // mm per label
	labelCols       = 3
	labelRows       = 10
	labelsPerPage   = labelCols * labelRows
	qrSize          = 20.0 // mm
	labelPadding    = 2.0  // mm
)

// MaxLabels caps one label export at 100 sheets.
const MaxLabels = 100 * labelsPerPage

// CollectLabelInfos expands every requested piece by its quantity, skipping
// pieces the service reported as unfit. It returns ErrTooManyLabels before
// allocating anything when the placed instances exceed MaxLabels.
func CollectLabelInfos(req model.OptimizationRequest, result model.OptimizationResult) ([]LabelInfo, error) {
	unfit := make(map[string]bool, len(result.UnfittedPieceID))
	for _, id := range result.UnfittedPieceID {
		unfit[id] = true
	}

	var placed []model.PieceSpec
	total := 0
	for _, p := range req.Pieces {
		if unfit[p.ID] || p.Quantity <= 0 {
			continue
		}
		if p.Quantity > MaxLabels-total {
			return nil, fmt.Errorf("%w: piece %s brings the count past %d", ErrTooManyLabels, p.ID, MaxLabels)
		}
		total += p.Quantity
		placed = append(placed, p)
	}

	labels := make([]LabelInfo, 0, total)
	for _, p := range placed {
		for i := 1; i <= p.Quantity; i++ {
			labels = append(labels, LabelInfo{
				PieceID: p.ID,
				Width:   p.Width,
				Length:  p.Length,
				Copy:    i,
				Of:      p.Quantity,
			})
		}
	}
	return labels, nil
}

// ExportLabels writes a PDF of QR-coded labels, one per placed piece
// instance, on Avery 5160 sheets (3 columns x 10 rows on US Letter).
func ExportLabels(path string, req model.OptimizationRequest, result model.OptimizationResult) error {
	labels, err := CollectLabelInfos(req, result)
	if err != nil {
		return err
	}
	if len(labels) == 0 {
		return ErrNoLabels
	}

	pdf := fpdf.New("P", "mm", "Letter", "")
	pdf.SetAutoPageBreak(false, 0)

	for i, label := range labels {
		if i%labelsPerPage == 0 {
			pdf.AddPage()
		}

		posOnPage := i % labelsPerPage
		x := labelMarginLeft + float64(posOnPage%labelCols)*labelWidth
		y := labelMarginTop + float64(posOnPage/labelCols)*labelHeight

		if err := renderLabel(pdf, x, y, label); err != nil {
			return fmt.Errorf("render label for %s: %w", label.PieceID, err)
		}
	}

	return pdf.OutputFileAndClose(path)
}

// renderLabel draws a single label at the given position.
func renderLabel(pdf *fpdf.Fpdf, x, y float64, info LabelInfo) error {
	// cutting guide
	pdf.SetDrawColor(200, 200, 200)
	pdf.SetLineWidth(0.1)
	pdf.Rect(x, y, labelWidth, labelHeight, "D")

	qrData, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal label info: %w", err)
	}
	qrPNG, err := qrcode.Encode(string(qrData), qrcode.Medium, 256)
	if err != nil {
		return fmt.Errorf("generate QR code: %w", err)
	}

	imgName := fmt.Sprintf("qr_%s_%d", info.PieceID, info.Copy)
	pdf.RegisterImageOptionsReader(imgName, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(qrPNG))

	qrX := x + labelWidth - qrSize - labelPadding
	qrY := y + (labelHeight-qrSize)/2
	pdf.ImageOptions(imgName, qrX, qrY, qrSize, qrSize, false, fpdf.ImageOptions{ImageType: "PNG"}, 0, "")

	textX := x + labelPadding
	textW := labelWidth - qrSize - 3*labelPadding

	pdf.SetFont("Helvetica", "B", 11)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(textX, y+labelPadding)
	pdf.CellFormat(textW, 5, info.PieceID, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetXY(textX, y+labelPadding+6)
	pdf.CellFormat(textW, 3.5, fmt.Sprintf("%s x %s mm", formatMM(info.Width), formatMM(info.Length)), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 6)
	pdf.SetTextColor(100, 100, 100)
	pdf.SetXY(textX, y+labelPadding+10.5)
	pdf.CellFormat(textW, 3, fmt.Sprintf("%d of %d", info.Copy, info.Of), "", 1, "L", false, 0, "")

	pdf.SetTextColor(0, 0, 0)
	return pdf.Error()
}
