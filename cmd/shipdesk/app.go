package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/shipment-docs/internal/backend"
	"github.com/joseph-ayodele/shipment-docs/internal/common"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
	"github.com/joseph-ayodele/shipment-docs/internal/export"
	"github.com/joseph-ayodele/shipment-docs/internal/session"
	"github.com/joseph-ayodele/shipment-docs/internal/viewer"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg      *common.Config
	logger   *slog.Logger
	client   *backend.Client
	session  *session.Orchestrator
	exporter *export.Service

	out       *lockedWriter
	in        *bufio.Reader
	assumeYes bool
}

type rootFlags struct {
	backendURL string
	logLevel   string
	logFormat  string
}

func newRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	var flags rootFlags
	a := &app{out: &lockedWriter{w: out}, in: bufio.NewReader(in)}

	root := &cobra.Command{
		Use:           "shipdesk",
		Short:         "Upload shipment documents, review and correct their extracted data",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(flags, errOut)
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&flags.backendURL, "backend-url", "", "extraction backend base URL (overrides SHIPDESK_BACKEND_URL)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		listCmd(a),
		uploadCmd(a),
		showCmd(a),
		viewCmd(a),
		saveCmd(a),
		deleteCmd(a),
		exportCmd(a),
		shellCmd(a),
	)
	return root
}

func (a *app) init(flags rootFlags, errOut io.Writer) error {
	cfg := common.LoadConfig()
	if flags.backendURL != "" {
		cfg.Backend.BaseURL = flags.backendURL
	}
	if flags.logLevel != "" {
		cfg.Log.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		cfg.Log.Format = flags.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(errOut, cfg.Log)

	a.client = backend.NewClient(backend.Config{
		BaseURL:      cfg.Backend.BaseURL,
		Timeout:      cfg.Backend.Timeout,
		MaxIdleConns: cfg.Backend.MaxIdleConns,
	}, a.logger)
	v := viewer.New(viewer.NewTextEngine(a.client), a.client, viewer.NewExcelParser(a.logger), viewer.Options{
		Scale:        cfg.Viewer.PDFScale,
		FetchTimeout: cfg.Viewer.FetchTimeout,
		Logger:       a.logger,
	})
	a.session = session.New(session.Deps{
		Backend: a.client,
		Viewer:  v,
		Confirm: a,
		Notify:  a,
		Logger:  a.logger,
	})
	a.exporter = export.NewService(a.logger)
	return nil
}

// newLogger builds the process logger. Text output drops time and level so
// terminal lines stay short.
func newLogger(w io.Writer, cfg common.LogConfig) *slog.Logger {
	level, _ := common.ParseLogLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		opts.ReplaceAttr = func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		}
		h = slog.NewTextHandler(w, opts)
	}
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

// Confirm asks a yes/no question on the terminal.
func (a *app) Confirm(prompt string) bool {
	if a.assumeYes {
		return true
	}
	fmt.Fprintf(a.out, "%s [y/N] ", prompt)
	line, err := a.in.ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

// Notify shows a message to the user.
func (a *app) Notify(message string) {
	fmt.Fprintf(a.out, "! %s\n", message)
}

// loadAndSelect refreshes the list and selects id.
func (a *app) loadAndSelect(ctx context.Context, id string) (entity.Document, error) {
	if err := a.session.Refresh(ctx); err != nil {
		return entity.Document{}, err
	}
	if err := a.session.Select(entity.DocumentID(id)); err != nil {
		return entity.Document{}, err
	}
	return *a.session.State().Selected, nil
}

// lockedWriter serialises writes from the shell and the folder watcher.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
