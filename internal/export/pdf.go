package export

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder for DecodeConfig
	_ "image/jpeg" // register JPEG decoder for DecodeConfig
	_ "image/png"  // register PNG decoder for DecodeConfig
	"math"
	"strconv"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/piwi3910/slabcut-remote/internal/model"
	"github.com/piwi3910/slabcut-remote/internal/solver"
)

// Page layout constants (A4 landscape in mm).
const (
	pageWidth    = 297.0
	pageHeight   = 210.0
	marginLeft   = 15.0
	marginRight  = 15.0
	marginTop    = 15.0
	marginBottom = 15.0
	headerHeight = 12.0
	rowHeight    = 6.0
	contentWidth = pageWidth - marginLeft - marginRight
)

// fpdfImageTypes maps decoder names from image.DecodeConfig to fpdf image types.
var fpdfImageTypes = map[string]string{
	"png":  "PNG",
	"jpeg": "JPG",
	"gif":  "GIF",
}

// skippedLayout is a layout reference that could not be embedded.
type skippedLayout struct {
	ref    string
	reason string
}

// ExportReport writes an A4 landscape PDF: a summary page with the request
// and result figures, then one page per layout image. Layouts that are
// missing from layouts, or are not PNG, JPEG or GIF, are listed by reference
// on the summary page instead.
func ExportReport(path string, req model.OptimizationRequest, result model.OptimizationResult, layouts []solver.Layout) error {
	byRef := make(map[string]solver.Layout, len(layouts))
	for _, l := range layouts {
		byRef[l.Ref] = l
	}

	type embeddable struct {
		ref     string
		imgType string
		w, h    int
		data    []byte
	}
	var pages []embeddable
	var skipped []skippedLayout
	for _, ref := range result.Images {
		l, ok := byRef[ref]
		if !ok || len(l.Data) == 0 {
			skipped = append(skipped, skippedLayout{ref: ref, reason: "not downloaded"})
			continue
		}
		cfg, format, err := image.DecodeConfig(bytes.NewReader(l.Data))
		imgType, supported := fpdfImageTypes[format]
		if err != nil || !supported || cfg.Width == 0 || cfg.Height == 0 {
			skipped = append(skipped, skippedLayout{ref: ref, reason: "unsupported image format"})
			continue
		}
		pages = append(pages, embeddable{ref: ref, imgType: imgType, w: cfg.Width, h: cfg.Height, data: l.Data})
	}

	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, marginBottom)

	pdf.AddPage()
	renderSummaryPage(pdf, req, result, skipped)

	for i, p := range pages {
		pdf.AddPage()
		name := "layout_" + strconv.Itoa(i)
		opts := fpdf.ImageOptions{ImageType: p.imgType}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(p.data))
		renderLayoutPage(pdf, name, opts, p.ref, p.w, p.h, i+1, len(result.Images))
	}

	return pdf.OutputFileAndClose(path)
}

// renderLayoutPage draws one layout image scaled to fit below a title.
func renderLayoutPage(pdf *fpdf.Fpdf, name string, opts fpdf.ImageOptions, ref string, w, h, num, total int) {
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(0, 0, 0)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(contentWidth, headerHeight, fmt.Sprintf("Layout %d of %d", num, total), "", 0, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 8)
	pdf.SetTextColor(100, 100, 100)
	pdf.SetXY(marginLeft, marginTop+headerHeight)
	pdf.CellFormat(contentWidth, 4, truncateRef(pdf, ref, contentWidth), "", 0, "L", false, 0, "")
	pdf.SetTextColor(0, 0, 0)

	top := marginTop + headerHeight + 8
	drawW := contentWidth
	drawH := pageHeight - top - marginBottom
	scale := math.Min(drawW/float64(w), drawH/float64(h))
	imgW := float64(w) * scale
	imgH := float64(h) * scale

	x := marginLeft + (drawW-imgW)/2
	pdf.ImageOptions(name, x, top, imgW, imgH, false, opts, 0, "")

	pdf.SetDrawColor(100, 100, 100)
	pdf.SetLineWidth(0.3)
	pdf.Rect(x, top, imgW, imgH, "D")
}

// renderSummaryPage draws the result figures and the request tables,
// continuing on new pages when a table runs past the bottom margin.
func renderSummaryPage(pdf *fpdf.Fpdf, req model.OptimizationRequest, result model.OptimizationResult, skipped []skippedLayout) {
	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetXY(marginLeft, marginTop)
	pdf.CellFormat(contentWidth, 10, "Slab Cut Optimization Report", "", 0, "L", false, 0, "")

	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(marginLeft, marginTop+12, pageWidth-marginRight, marginTop+12)

	y := marginTop + 18

	summaryItems := []struct {
		label string
		value string
	}{
		{"Slabs Used", strconv.Itoa(result.SlabUsed)},
		{"Layouts Returned", strconv.Itoa(len(result.Images))},
		{"Pieces Requested", strconv.Itoa(req.TotalPieces())},
		{"Unfit Pieces", strconv.Itoa(result.UnfitCount())},
		{"Stock Units Offered", strconv.Itoa(len(req.Inventory))},
	}

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range summaryItems {
		pdf.SetXY(marginLeft+5, y)
		pdf.CellFormat(60, 6, item.label+":", "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "B", 10)
		pdf.CellFormat(40, 6, item.value, "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 10)
		y += 7
	}

	y += 2
	pdf.SetXY(marginLeft+5, y)
	switch {
	case result.AllFit():
		pdf.SetTextColor(0, 130, 0)
		pdf.CellFormat(contentWidth, 6, "All pieces fit.", "", 0, "L", false, 0, "")
	case !result.HasLayouts():
		pdf.SetTextColor(200, 0, 0)
		pdf.CellFormat(contentWidth, 6, capitalize(result.NoLayoutsReason())+".", "", 0, "L", false, 0, "")
	default:
		pdf.SetTextColor(200, 100, 0)
		pdf.CellFormat(contentWidth, 6, fmt.Sprintf("%d piece(s) could not be placed.", result.UnfitCount()), "", 0, "L", false, 0, "")
	}
	pdf.SetTextColor(0, 0, 0)
	y += 12

	unfit := make(map[string]bool, len(result.UnfittedPieceID))
	for _, id := range result.UnfittedPieceID {
		unfit[id] = true
	}

	pieceRows := make([][]string, 0, len(req.Pieces))
	for _, p := range req.Pieces {
		status := "Placed"
		if unfit[p.ID] {
			status = "Unfit"
		}
		pieceRows = append(pieceRows, []string{p.ID, formatMM(p.Width), formatMM(p.Length), strconv.Itoa(p.Quantity), status})
	}
	y = drawTable(pdf, y, "Pieces",
		[]string{"ID", "Width (mm)", "Length (mm)", "Qty", "Status"},
		[]float64{30, 40, 40, 25, 30}, pieceRows)

	stockRows := make([][]string, 0, len(req.Inventory))
	for _, s := range req.Inventory {
		stockRows = append(stockRows, []string{s.ID, formatMM(s.Width), formatMM(s.Length)})
	}
	y = drawTable(pdf, y+6, "Inventory",
		[]string{"ID", "Width (mm)", "Length (mm)"},
		[]float64{30, 40, 40}, stockRows)

	if len(skipped) > 0 {
		rows := make([][]string, 0, len(skipped))
		for _, s := range skipped {
			rows = append(rows, []string{truncateRef(pdf, s.ref, 180), s.reason})
		}
		drawTable(pdf, y+6, "Layouts Not Embedded", []string{"Reference", "Reason"}, []float64{190, 60}, rows)
	}

	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(120, 120, 120)
	pdf.SetXY(marginLeft, pageHeight-marginBottom)
	pdf.CellFormat(contentWidth, 4, "Generated by SlabCut Remote", "", 0, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
}

// drawTable draws a titled table starting at y and returns the y below it.
func drawTable(pdf *fpdf.Fpdf, y float64, title string, headers []string, widths []float64, rows [][]string) float64 {
	bottom := pageHeight - marginBottom - rowHeight

	if y+9+2*rowHeight > bottom {
		pdf.AddPage()
		y = marginTop
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.SetXY(marginLeft, y)
	pdf.CellFormat(100, 7, title, "", 0, "L", false, 0, "")
	y += 9

	header := func() {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		x := marginLeft
		for i, h := range headers {
			pdf.SetXY(x, y)
			pdf.CellFormat(widths[i], rowHeight, h, "1", 0, "C", true, 0, "")
			x += widths[i]
		}
		y += rowHeight
		pdf.SetFont("Helvetica", "", 9)
	}
	header()

	for i, row := range rows {
		if y > bottom {
			pdf.AddPage()
			y = marginTop
			header()
		}
		if i%2 == 0 {
			pdf.SetFillColor(245, 245, 245)
		} else {
			pdf.SetFillColor(255, 255, 255)
		}
		x := marginLeft
		for j, cell := range row {
			pdf.SetXY(x, y)
			pdf.CellFormat(widths[j], rowHeight, cell, "1", 0, "C", true, 0, "")
			x += widths[j]
		}
		y += rowHeight
	}
	return y
}

// truncateRef shortens a reference to fit width, keeping its start.
func truncateRef(pdf *fpdf.Fpdf, ref string, width float64) string {
	if len(ref) > 512 {
		ref = ref[:512]
	}
	if pdf.GetStringWidth(ref) <= width {
		return ref
	}
	for len(ref) > 0 && pdf.GetStringWidth(ref+"...") > width {
		ref = ref[:len(ref)-1]
	}
	return ref + "..."
}

func formatMM(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
