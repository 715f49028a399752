// Command slabcut-cli submits one stock file and one piece file to the
// optimization service and writes the results.
//
// Usage:
//
//	slabcut-cli -stock slabs.csv -pieces parts.xlsx [-report out.pdf] [-labels labels.pdf] [-layouts dir]
//
// Exit status is 0 on success, 1 when the optimization failed and 2 for
// usage or input errors.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/piwi3910/slabcut-remote/internal/export"
	"github.com/piwi3910/slabcut-remote/internal/importer"
	"github.com/piwi3910/slabcut-remote/internal/logger"
	"github.com/piwi3910/slabcut-remote/internal/model"
	"github.com/piwi3910/slabcut-remote/internal/project"
	"github.com/piwi3910/slabcut-remote/internal/session"
	"github.com/piwi3910/slabcut-remote/internal/solver"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath string
	endpoint   string
	stock      string
	pieces     string
	report     string
	labels     string
	layoutsDir string
	logLevel   string
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options
	fs := flag.NewFlagSet("slabcut-cli", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", project.DefaultConfigPath(), "config file")
	fs.StringVar(&opts.endpoint, "endpoint", "", "optimization service URL (overrides config)")
	fs.StringVar(&opts.stock, "stock", "", "stock file (CSV, Excel or DXF)")
	fs.StringVar(&opts.pieces, "pieces", "", "piece file (CSV, Excel or DXF)")
	fs.StringVar(&opts.report, "report", "", "write a PDF report to this path")
	fs.StringVar(&opts.labels, "labels", "", "write PDF piece labels to this path")
	fs.StringVar(&opts.layoutsDir, "layouts", "", "save layout files into this directory")
	fs.StringVar(&opts.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.stock == "" || opts.pieces == "" {
		fs.Usage()
		return opts, errors.New("both -stock and -pieces are required")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, err)
		}
		return exitUsage
	}

	cfg, err := project.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitUsage
	}
	if opts.endpoint != "" {
		cfg.Endpoint = opts.endpoint
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}

	l := logger.New(stderr, cfg.LogPretty).Level(logger.ParseLevel(cfg.LogLevel))
	client, err := solver.New(solver.ConfigFromApp(cfg), solver.WithLogger(l.With().Str("component", "solver").Logger()))
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitUsage
	}
	ctrl := session.New(client, session.WithLogger(l.With().Str("component", "session").Logger()))

	if !importInto(stderr, opts.stock, func(res importer.ImportResult) []error {
		return importer.ApplyStock(ctrl.Stock, res)
	}) {
		return exitUsage
	}
	if !importInto(stderr, opts.pieces, func(res importer.ImportResult) []error {
		return importer.ApplyPieces(ctrl.Pieces, res)
	}) {
		return exitUsage
	}

	st, err := ctrl.SubmitCurrent(ctx)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return exitFailed
	}
	if st.Phase != session.PhaseSuccess {
		fmt.Fprintf(stderr, "optimization failed: %s\n", st.Message)
		return exitFailed
	}

	printSummary(stdout, *st.Result)

	if opts.report == "" && opts.layoutsDir == "" && opts.labels == "" {
		return exitOK
	}
	return writeOutputs(ctx, stdout, stderr, opts, client, *st.Request, *st.Result)
}

// importInto reads path and applies its records. It reports false when the
// file yielded no records.
func importInto(stderr io.Writer, path string, apply func(importer.ImportResult) []error) bool {
	res := importer.Import(path)
	for _, e := range res.Errors {
		fmt.Fprintf(stderr, "%s: %s\n", path, e)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(stderr, "%s: warning: %s\n", path, w)
	}
	if len(res.Records) == 0 {
		fmt.Fprintf(stderr, "%s: no usable rows\n", path)
		return false
	}
	for _, err := range apply(res) {
		fmt.Fprintf(stderr, "%s: %v\n", path, err)
	}
	return true
}

func printSummary(w io.Writer, result model.OptimizationResult) {
	fmt.Fprintf(w, "Slabs used:   %d\n", result.SlabUsed)
	fmt.Fprintf(w, "Layouts:      %d\n", len(result.Images))
	fmt.Fprintf(w, "Unfit pieces: %d\n", result.UnfitCount())
	switch {
	case result.AllFit():
		fmt.Fprintln(w, "All pieces fit.")
	case result.UnfitCount() > 0:
		fmt.Fprintf(w, "Could not place: %s\n", strings.Join(result.UnfittedPieceID, ", "))
	}
	if !result.HasLayouts() {
		fmt.Fprintf(w, "No layouts: %s\n", result.NoLayoutsReason())
	}
}

func writeOutputs(ctx context.Context, stdout, stderr io.Writer, opts options, client *solver.Client, req model.OptimizationRequest, result model.OptimizationResult) int {
	code := exitOK

	var fetched []solver.Layout
	if (opts.report != "" || opts.layoutsDir != "") && result.HasLayouts() {
		layouts, errs := client.FetchAll(ctx, result.Images)
		for i, l := range layouts {
			if errs[i] != nil {
				fmt.Fprintf(stderr, "layout %s: %s\n", l.Ref, solver.Classify(errs[i]))
				continue
			}
			fetched = append(fetched, l)
		}
		if opts.layoutsDir != "" {
			if err := saveLayouts(opts.layoutsDir, layouts, errs); err != nil {
				fmt.Fprintln(stderr, err)
				code = exitFailed
			} else {
				fmt.Fprintf(stdout, "Layouts saved to %s\n", opts.layoutsDir)
			}
		}
	}

	if opts.report != "" {
		if err := export.ExportReport(opts.report, req, result, fetched); err != nil {
			fmt.Fprintf(stderr, "report: %v\n", err)
			code = exitFailed
		} else {
			fmt.Fprintf(stdout, "Report written to %s\n", opts.report)
		}
	}

	if opts.labels != "" {
		err := export.ExportLabels(opts.labels, req, result)
		switch {
		case errors.Is(err, export.ErrNoLabels):
			fmt.Fprintln(stderr, "labels: no placed pieces to label")
		case err != nil:
			fmt.Fprintf(stderr, "labels: %v\n", err)
			code = exitFailed
		default:
			fmt.Fprintf(stdout, "Labels written to %s\n", opts.labels)
		}
	}
	return code
}

// saveLayouts writes every fetched layout into dir. Names that collide get
// a number prepended, starting at the layout's position and counting up
// until the name is free.
func saveLayouts(dir string, layouts []solver.Layout, errs []error) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create layouts dir: %w", err)
	}
	used := make(map[string]bool)
	for i, l := range layouts {
		if errs[i] != nil {
			continue
		}
		base := l.FileName(i)
		name := base
		for n := i + 1; used[name]; n++ {
			name = fmt.Sprintf("%d-%s", n, base)
		}
		used[name] = true
		if err := os.WriteFile(filepath.Join(dir, name), l.Data, 0o644); err != nil {
			return fmt.Errorf("save layout %s: %w", l.Ref, err)
		}
	}
	return nil
}
