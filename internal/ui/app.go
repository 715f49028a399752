package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/layout"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/piwi3910/slabcut-remote/internal/importer"
	"github.com/piwi3910/slabcut-remote/internal/metrics"
	"github.com/piwi3910/slabcut-remote/internal/model"
	"github.com/piwi3910/slabcut-remote/internal/project"
	"github.com/piwi3910/slabcut-remote/internal/session"
	"github.com/piwi3910/slabcut-remote/internal/solver"
)

// Version is shown in the About dialog.
const Version = "1.0.0"

// Service is the optimization service as the UI needs it.
type Service interface {
	session.Optimizer
	FetchAll(ctx context.Context, refs []string) ([]solver.Layout, []error)
}

// Options carries what the App needs from main.
type Options struct {
	Config     model.AppConfig
	ConfigPath string // where preference changes are saved; empty = not saved
	Service    Service
	Metrics    *metrics.Metrics
	Logger     *zerolog.Logger
}

// App holds the session controller and UI references.
type App struct {
	app     fyne.App
	window  fyne.Window
	config  model.AppConfig
	cfgPath string
	service Service
	ctrl    *session.Controller
	log     zerolog.Logger
	tabs    *container.AppTabs

	stockEditor *rowEditor[model.StockUnit]
	pieceEditor *rowEditor[model.CutPiece]

	optimizeBtn  *widget.Button
	clearBtn     *widget.Button
	optimizeItem *fyne.MenuItem

	// Results panel. Only touched on the Fyne goroutine.
	resultContainer *fyne.Container
	generation      int
	layouts         []solver.Layout
	layoutErrs      []error
}

// NewApp wires a session controller to the window. State changes reported
// by the controller are rendered on the Fyne goroutine.
func NewApp(application fyne.App, window fyne.Window, opts Options) *App {
	l := log.Logger.With().Str("component", "ui").Logger()
	if opts.Logger != nil {
		l = opts.Logger.With().Str("component", "ui").Logger()
	}

	a := &App{
		app:     application,
		window:  window,
		config:  opts.Config,
		cfgPath: opts.ConfigPath,
		service: opts.Service,
		log:     l,
	}

	ctrlOpts := []session.Option{
		session.WithMetrics(opts.Metrics),
		session.WithListener(a.onStateChange),
	}
	if opts.Logger != nil {
		ctrlOpts = append(ctrlOpts, session.WithLogger(opts.Logger.With().Str("component", "session").Logger()))
	}
	a.ctrl = session.New(opts.Service, ctrlOpts...)

	a.stockEditor = newRowEditor("Stock", "Add Slab", a.ctrl.Stock, []column{
		{field: model.FieldWidth, header: "Width (mm)", placeholder: "Width in mm"},
		{field: model.FieldLength, header: "Length (mm)", placeholder: "Length in mm"},
	}, func(s model.StockUnit) string { return s.ID }, window, l)

	a.pieceEditor = newRowEditor("Pieces", "Add Piece", a.ctrl.Pieces, []column{
		{field: model.FieldWidth, header: "Width (mm)", placeholder: "Width in mm"},
		{field: model.FieldLength, header: "Length (mm)", placeholder: "Length in mm"},
		{field: model.FieldQuantity, header: "Qty", placeholder: "1"},
	}, func(p model.CutPiece) string { return p.ID }, window, l)

	return a
}

// onStateChange is the controller listener. Notifications can arrive out
// of order, so the snapshot is ignored and the current state is rendered.
func (a *App) onStateChange(session.State) {
	fyne.Do(func() { a.renderState(a.ctrl.State()) })
}

// Controller returns the session controller driving the window.
func (a *App) Controller() *session.Controller {
	return a.ctrl
}

// SetupMenus creates the native menu bar for the application.
func (a *App) SetupMenus() {
	fileMenu := fyne.NewMenu("File",
		fyne.NewMenuItem("Import Stock...", func() {
			a.importFile(true)
		}),
		fyne.NewMenuItem("Import Pieces...", func() {
			a.importFile(false)
		}),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Export Report...", func() {
			a.exportReport()
		}),
		fyne.NewMenuItem("Export Labels...", func() {
			a.exportLabels()
		}),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Quit", func() {
			a.window.Close()
		}),
	)

	editMenu := fyne.NewMenu("Edit",
		fyne.NewMenuItem("Clear All Stock", func() {
			a.stockEditor.reset()
		}),
		fyne.NewMenuItem("Clear All Pieces", func() {
			a.pieceEditor.reset()
		}),
	)

	a.optimizeItem = fyne.NewMenuItem("Optimize", func() {
		a.runOptimize()
	})
	a.optimizeItem.Disabled = a.ctrl.Pending()

	toolsMenu := fyne.NewMenu("Tools",
		a.optimizeItem,
		fyne.NewMenuItem("Clear Result", func() {
			a.ctrl.Clear()
		}),
	)

	viewMenu := fyne.NewMenu("View",
		fyne.NewMenuItem("System Theme", func() { a.setTheme(ThemeSystem) }),
		fyne.NewMenuItem("Light Theme", func() { a.setTheme(ThemeLight) }),
		fyne.NewMenuItem("Dark Theme", func() { a.setTheme(ThemeDark) }),
	)

	helpMenu := fyne.NewMenu("Help",
		fyne.NewMenuItem("About", func() {
			a.showAboutDialog()
		}),
	)

	a.window.SetMainMenu(fyne.NewMainMenu(fileMenu, editMenu, toolsMenu, viewMenu, helpMenu))
}

func (a *App) showAboutDialog() {
	dialog.ShowInformation(
		"About SlabCut Remote",
		"SlabCut Remote, a slab cut list client.\n\n"+
			"Collects stock slabs and pieces, sends them to an\n"+
			"optimization service and shows the layouts it returns.\n\n"+
			"Service: "+a.config.Endpoint+"\n"+
			"Version "+Version,
		a.window,
	)
}

// Build constructs the full UI and returns the root container.
func (a *App) Build() fyne.CanvasObject {
	a.optimizeBtn = widget.NewButtonWithIcon("Optimize", theme.MediaPlayIcon(), a.runOptimize)
	a.optimizeBtn.Importance = widget.HighImportance
	a.clearBtn = widget.NewButtonWithIcon("Clear", theme.ContentClearIcon(), func() {
		a.ctrl.Clear()
	})

	inputs := container.NewVSplit(a.stockEditor.build(), a.pieceEditor.build())
	inputs.SetOffset(0.4)

	inputTab := container.NewTabItem("Input", container.NewBorder(
		nil,
		container.NewHBox(layout.NewSpacer(), a.clearBtn, a.optimizeBtn),
		nil, nil,
		inputs,
	))
	resultsTab := container.NewTabItem("Results", a.buildResultsPanel())

	a.tabs = container.NewAppTabs(inputTab, resultsTab)
	a.tabs.SetTabLocation(container.TabLocationTop)

	a.renderState(a.ctrl.State())
	return a.tabs
}

// ─── Actions ───────────────────────────────────────────────

// runOptimize snapshots both collections and submits them off the UI
// goroutine. The controller reports progress through the listener.
func (a *App) runOptimize() {
	stock, pieces := a.ctrl.Stock.Rows(), a.ctrl.Pieces.Rows()
	if a.tabs != nil {
		a.tabs.SelectIndex(1)
	}
	go func() {
		if _, err := a.ctrl.Submit(context.Background(), stock, pieces); errors.Is(err, session.ErrPending) {
			a.log.Debug().Msg("optimize ignored, request pending")
		}
	}()
}

func (a *App) setTheme(name string) {
	a.app.Settings().SetTheme(ThemeFromName(name))
	a.config.Theme = name
	a.saveConfig()
}

func (a *App) saveConfig() {
	if a.cfgPath == "" {
		return
	}
	if err := project.SaveAppConfig(a.cfgPath, a.config); err != nil {
		a.log.Error().Err(err).Str("path", a.cfgPath).Msg("saving preferences failed")
	}
}

// ─── Import ────────────────────────────────────────────────

func (a *App) importFile(stock bool) {
	d := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil || reader == nil {
			return
		}
		path := reader.URI().Path()
		_ = reader.Close()

		result := importer.Import(path)
		a.handleImportResult(path, result, stock)
	}, a.window)
	d.Show()
}

func (a *App) handleImportResult(path string, result importer.ImportResult, stock bool) {
	if len(result.Errors) > 0 {
		errorMsg := "Errors encountered during import:\n\n" + strings.Join(result.Errors, "\n")
		dialog.ShowError(errors.New(errorMsg), a.window)
	}
	for _, w := range result.Warnings {
		a.log.Warn().Str("file", path).Msg(w)
	}
	if len(result.Records) == 0 {
		return
	}

	var applyErrs []error
	var what string
	if stock {
		applyErrs = importer.ApplyStock(a.ctrl.Stock, result)
		a.stockEditor.refresh()
		what = "slab records"
	} else {
		applyErrs = importer.ApplyPieces(a.ctrl.Pieces, result)
		a.pieceEditor.refresh()
		what = "pieces"
	}
	for _, err := range applyErrs {
		a.log.Error().Err(err).Str("file", path).Msg("import record not applied")
	}

	a.log.Info().Str("file", path).Int("records", len(result.Records)).Bool("stock", stock).Msg("import complete")
	msg := fmt.Sprintf("Successfully imported %d %s.", len(result.Records), what)
	if len(result.Errors) > 0 {
		msg += fmt.Sprintf("\n\nHowever, %d rows had errors and were skipped.", len(result.Errors))
	}
	if len(result.Warnings) > 0 {
		msg += "\n\n" + strings.Join(result.Warnings, "\n")
	}
	dialog.ShowInformation("Import Complete", msg, a.window)
}
