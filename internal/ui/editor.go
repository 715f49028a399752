package ui

import (
	"errors"
	"fmt"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/piwi3910/slabcut-remote/internal/model"
)

var errNotNumber = errors.New("not a number")

// column is one editable field shown in a row editor.
type column struct {
	field       string
	header      string
	placeholder string
}

// rowEditor shows a collection as a grid of entries, one row per item,
// with add and remove buttons. Every keystroke goes through
// Collection.Update so the collection holds the raw text.
type rowEditor[R any] struct {
	title   string
	addText string
	coll    *model.Collection[R]
	columns []column
	rowID   func(R) string

	window fyne.Window
	log    zerolog.Logger
	list   *fyne.Container
}

func newRowEditor[R any](title, addText string, coll *model.Collection[R], columns []column, rowID func(R) string, window fyne.Window, log zerolog.Logger) *rowEditor[R] {
	return &rowEditor[R]{
		title:   title,
		addText: addText,
		coll:    coll,
		columns: columns,
		rowID:   rowID,
		window:  window,
		log:     log,
	}
}

func (e *rowEditor[R]) build() fyne.CanvasObject {
	e.list = container.NewVBox()
	e.refresh()

	addBtn := widget.NewButtonWithIcon(e.addText, theme.ContentAddIcon(), func() {
		label := e.coll.Add()
		e.log.Debug().Str("row", label).Msg("row added")
		e.refresh()
	})

	return container.NewBorder(
		container.NewHBox(
			widget.NewLabelWithStyle(e.title, fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
			layout.NewSpacer(),
			addBtn,
		),
		nil, nil, nil,
		container.NewVScroll(e.list),
	)
}

// refresh rebuilds the grid from the collection.
func (e *rowEditor[R]) refresh() {
	if e.list == nil {
		return
	}
	e.list.RemoveAll()

	cols := len(e.columns) + 2
	header := []fyne.CanvasObject{
		widget.NewLabelWithStyle("Label", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
	}
	for _, c := range e.columns {
		header = append(header, widget.NewLabelWithStyle(c.header, fyne.TextAlignLeading, fyne.TextStyle{Bold: true}))
	}
	header = append(header, widget.NewLabel(""))
	e.list.Add(container.NewGridWithColumns(cols, header...))
	e.list.Add(widget.NewSeparator())

	for i, row := range e.coll.Rows() {
		idx := i
		cells := []fyne.CanvasObject{widget.NewLabel(e.rowID(row))}
		for _, c := range e.columns {
			cells = append(cells, e.fieldEntry(idx, c))
		}
		removeBtn := widget.NewButtonWithIcon("", theme.DeleteIcon(), func() {
			e.remove(idx)
		})
		if e.coll.Len() == 1 {
			removeBtn.Disable()
		}
		cells = append(cells, removeBtn)
		e.list.Add(container.NewGridWithColumns(cols, cells...))
	}
	e.list.Refresh()
}

func (e *rowEditor[R]) fieldEntry(idx int, c column) *widget.Entry {
	integral := e.coll.Schema().Fields[c.field].Integral

	entry := widget.NewEntry()
	entry.SetPlaceHolder(c.placeholder)
	if f, err := e.coll.Get(idx, c.field); err == nil {
		entry.SetText(f.Raw())
	}
	entry.Validator = func(text string) error {
		if model.ParseField(text, integral).IsInvalid() {
			return errNotNumber
		}
		return nil
	}
	entry.OnChanged = func(text string) {
		if err := e.coll.Update(idx, c.field, text); err != nil {
			e.log.Error().Err(err).Int("row", idx).Str("field", c.field).Msg("update failed")
		}
	}
	return entry
}

func (e *rowEditor[R]) remove(idx int) {
	err := e.coll.Remove(idx)
	switch {
	case errors.Is(err, model.ErrLastRow):
		dialog.ShowInformation("Cannot remove", fmt.Sprintf("%s must keep at least one row.", e.title), e.window)
		return
	case err != nil:
		dialog.ShowError(err, e.window)
		return
	}
	e.refresh()
}

// reset replaces the collection content with a single blank row.
func (e *rowEditor[R]) reset() {
	e.coll.Reset()
	e.refresh()
}
