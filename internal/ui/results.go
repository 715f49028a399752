package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/widget"

	"github.com/piwi3910/slabcut-remote/internal/export"
	"github.com/piwi3910/slabcut-remote/internal/model"
	"github.com/piwi3910/slabcut-remote/internal/session"
	"github.com/piwi3910/slabcut-remote/internal/solver"
)

// Messages shown in the results panel outside of a success.
const (
	msgEditing         = "No results yet. Fill in stock and pieces, then click Optimize."
	msgPending         = "Optimizing..."
	msgLoadingLayouts  = "Loading layouts..."
	msgNothingToExport = "Run the optimizer first before exporting."
)

// ─── Results Panel ─────────────────────────────────────────

func (a *App) buildResultsPanel() fyne.CanvasObject {
	a.resultContainer = container.NewStack(widget.NewLabel(msgEditing))
	return a.resultContainer
}

// renderState redraws the buttons and the results panel from st alone.
// It must run on the Fyne goroutine.
func (a *App) renderState(st session.State) {
	a.generation++
	a.layouts, a.layoutErrs = nil, nil

	pending := st.Phase == session.PhasePending
	if a.optimizeBtn != nil {
		setEnabled(a.optimizeBtn, !pending)
		setEnabled(a.clearBtn, !pending && st.Phase != session.PhaseEditing)
	}
	if a.optimizeItem != nil && a.optimizeItem.Disabled != pending {
		a.optimizeItem.Disabled = pending
		if menu := a.window.MainMenu(); menu != nil {
			menu.Refresh()
		}
	}
	if a.resultContainer == nil {
		return
	}

	var content fyne.CanvasObject
	switch st.Phase {
	case session.PhasePending:
		content = container.NewVBox(widget.NewLabel(msgPending), widget.NewProgressBarInfinite())
	case session.PhaseFailed:
		msg := widget.NewLabel(st.Message)
		msg.Importance = widget.DangerImportance
		msg.Wrapping = fyne.TextWrapWord
		content = container.NewVBox(
			widget.NewLabelWithStyle("Optimization failed", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			msg,
		)
	case session.PhaseSuccess:
		content = a.renderSuccess(*st.Result, a.generation)
	default:
		content = widget.NewLabel(msgEditing)
	}

	a.resultContainer.RemoveAll()
	a.resultContainer.Add(content)
	a.resultContainer.Refresh()
}

func setEnabled(b *widget.Button, enabled bool) {
	if enabled {
		b.Enable()
	} else {
		b.Disable()
	}
}

func (a *App) renderSuccess(result model.OptimizationResult, gen int) fyne.CanvasObject {
	summary := widget.NewCard("Summary", "", container.NewGridWithColumns(2,
		widget.NewLabel("Slabs used"), widget.NewLabel(fmt.Sprintf("%d", result.SlabUsed)),
		widget.NewLabel("Layouts"), widget.NewLabel(fmt.Sprintf("%d", len(result.Images))),
		widget.NewLabel("Unfit pieces"), widget.NewLabel(fmt.Sprintf("%d", result.UnfitCount())),
	))

	var status *widget.Label
	switch {
	case result.AllFit():
		status = widget.NewLabel("All pieces fit.")
		status.Importance = widget.SuccessImportance
	case result.UnfitCount() > 0:
		status = widget.NewLabel("Could not place: " + strings.Join(result.UnfittedPieceID, ", "))
		status.Importance = widget.WarningImportance
		status.Wrapping = fyne.TextWrapWord
	default:
		status = widget.NewLabel("")
	}

	var layouts fyne.CanvasObject
	if !result.HasLayouts() {
		layouts = widget.NewLabel(capitalizeFirst(result.NoLayoutsReason()) + ".")
	} else {
		box := container.NewVBox(widget.NewLabel(msgLoadingLayouts))
		layouts = box
		go a.fetchLayouts(gen, result.Images, box)
	}

	return container.NewBorder(
		container.NewVBox(summary, status),
		nil, nil, nil,
		container.NewVScroll(layouts),
	)
}

// fetchLayouts downloads every layout and fills box, unless a newer state
// has been rendered in the meantime.
func (a *App) fetchLayouts(gen int, refs []string, box *fyne.Container) {
	layouts, errs := a.service.FetchAll(context.Background(), refs)
	fyne.Do(func() {
		if gen != a.generation {
			return
		}
		a.layouts, a.layoutErrs = layouts, errs
		box.RemoveAll()
		for i, l := range layouts {
			box.Add(a.layoutCard(i, len(layouts), l, errs[i]))
		}
		box.Refresh()
	})
}

func (a *App) layoutCard(i, total int, l solver.Layout, err error) fyne.CanvasObject {
	title := fmt.Sprintf("Layout %d of %d", i+1, total)
	if err != nil {
		msg := widget.NewLabel(solver.Classify(err))
		msg.Importance = widget.DangerImportance
		return widget.NewCard(title, l.Ref, msg)
	}

	var view fyne.CanvasObject
	if strings.HasPrefix(l.ContentType, "image/") {
		img := canvas.NewImageFromResource(fyne.NewStaticResource(l.FileName(i), l.Data))
		img.FillMode = canvas.ImageFillContain
		img.SetMinSize(fyne.NewSize(480, 320))
		view = img
	} else {
		view = widget.NewLabel(fmt.Sprintf("%s, %d bytes", l.ContentType, len(l.Data)))
	}

	saveBtn := widget.NewButton("Save...", func() { a.saveLayout(i, l) })
	return widget.NewCard(title, l.Ref, container.NewBorder(nil, container.NewHBox(saveBtn), nil, nil, view))
}

func (a *App) saveLayout(i int, l solver.Layout) {
	d := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		defer writer.Close()
		if _, err := writer.Write(l.Data); err != nil {
			a.log.Error().Err(err).Str("path", writer.URI().Path()).Msg("saving layout failed")
			dialog.ShowError(err, a.window)
			return
		}
		a.log.Info().Str("path", writer.URI().Path()).Str("ref", l.Ref).Msg("layout saved")
	}, a.window)
	d.SetFileName(l.FileName(i))
	d.Show()
}

// ─── Export ────────────────────────────────────────────────

// successState returns the current result, or false after telling the user
// there is nothing to export.
func (a *App) successState() (session.State, bool) {
	st := a.ctrl.State()
	if st.Phase != session.PhaseSuccess || st.Result == nil || st.Request == nil {
		dialog.ShowInformation("No results", msgNothingToExport, a.window)
		return st, false
	}
	return st, true
}

func (a *App) exportReport() {
	st, ok := a.successState()
	if !ok {
		return
	}
	var layouts []solver.Layout
	for i, l := range a.layouts {
		if a.layoutErrs[i] == nil {
			layouts = append(layouts, l)
		}
	}
	a.exportPDF("cut-report.pdf", func(dest string) error {
		return export.ExportReport(dest, *st.Request, *st.Result, layouts)
	})
}

func (a *App) exportLabels() {
	st, ok := a.successState()
	if !ok {
		return
	}
	a.exportPDF("piece-labels.pdf", func(dest string) error {
		return export.ExportLabels(dest, *st.Request, *st.Result)
	})
}

// exportPDF asks for a destination, runs write on it and records it in the
// recent exports list.
func (a *App) exportPDF(defaultName string, write func(dest string) error) {
	d := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil || writer == nil {
			return
		}
		dest := writer.URI().Path()
		_ = writer.Close()

		if err := write(dest); err != nil {
			a.log.Error().Err(err).Str("path", dest).Msg("export failed")
			if errors.Is(err, export.ErrNoLabels) {
				dialog.ShowInformation("Nothing to export", "No placed pieces to label.", a.window)
				return
			}
			dialog.ShowError(err, a.window)
			return
		}
		a.config.AddRecentExport(dest)
		a.saveConfig()
		a.log.Info().Str("path", dest).Msg("export complete")
		dialog.ShowInformation("Export Complete", fmt.Sprintf("Saved to %s", dest), a.window)
	}, a.window)
	d.SetFileName(defaultName)
	d.Show()
}

func capitalizeFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
