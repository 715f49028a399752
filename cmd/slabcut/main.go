// SlabCut Remote: slab cut list client
//
// A desktop front end that collects stock slabs and pieces, sends them to a
// remote optimization service and shows the layouts it returns.
//
// Build:
//   go build -o slabcut ./cmd/slabcut
//
// Cross-compile:
//   GOOS=windows GOARCH=amd64 go build -o slabcut.exe ./cmd/slabcut
//   GOOS=darwin  GOARCH=amd64 go build -o slabcut-darwin ./cmd/slabcut
//
// Configuration is read from ~/.slabcut/config.json (or $SLABCUT_CONFIG)
// and overridden by SLABCUT_* environment variables.

package main

import (
	"errors"
	"net/http"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"github.com/rs/zerolog/log"

	"github.com/piwi3910/slabcut-remote/internal/logger"
	"github.com/piwi3910/slabcut-remote/internal/metrics"
	"github.com/piwi3910/slabcut-remote/internal/model"
	"github.com/piwi3910/slabcut-remote/internal/project"
	"github.com/piwi3910/slabcut-remote/internal/solver"
	"github.com/piwi3910/slabcut-remote/internal/ui"
)

func main() {
	cfgPath := project.DefaultConfigPath()
	cfg, loadErr := project.Load(cfgPath)
	if loadErr != nil {
		cfg = project.ApplyEnv(model.DefaultAppConfig())
	}
	logger.Init(cfg.LogLevel, cfg.LogPretty)
	if loadErr != nil {
		log.Warn().Err(loadErr).Str("path", cfgPath).Msg("could not load config, using defaults")
	}

	m := metrics.New()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, m)
	}

	appLog := logger.Logger()
	client, err := solver.New(solver.ConfigFromApp(cfg),
		solver.WithLogger(logger.Component("solver")),
		solver.WithMetrics(m),
	)
	if err != nil {
		log.Fatal().Err(err).Str("endpoint", cfg.Endpoint).Msg("invalid optimization service endpoint")
	}

	application := app.NewWithID("com.piwi3910.slabcut-remote")
	application.Settings().SetTheme(ui.ThemeFromName(cfg.Theme))

	window := application.NewWindow("SlabCut Remote")

	appUI := ui.NewApp(application, window, ui.Options{
		Config:     cfg,
		ConfigPath: cfgPath,
		Service:    client,
		Metrics:    m,
		Logger:     &appLog,
	})
	appUI.SetupMenus()
	window.SetContent(appUI.Build())
	window.Resize(fyne.NewSize(1200, 800))
	window.CenterOnScreen()

	log.Info().Str("endpoint", client.Endpoint()).Msg("slabcut remote started")
	window.ShowAndRun()
}

func serveMetrics(addr string, m *metrics.Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:           addr,
		Handler:        mux,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}
	log.Info().Str("addr", addr).Msg("serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Str("addr", addr).Msg("metrics server stopped")
	}
}
