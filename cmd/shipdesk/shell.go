package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/shipment-docs/internal/common"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
	"github.com/joseph-ayodele/shipment-docs/internal/render"
	"github.com/joseph-ayodele/shipment-docs/internal/upload"
)

const shellHelp = `Commands:
  list                      list documents (* marks the selection)
  select ID                 select a document
  add PATH...               queue files or directories for upload
  queue                     show the selected files
  clear                     empty the queue
  upload                    upload the queue as one batch
  files                     list the viewer files
  view [INDEX]              open the viewer and preview a file
  file INDEX                switch the open viewer to another file
  close                     close the viewer
  form                      show the form of the selected document
  set FIELD VALUE...        edit a field
  item add                  append a blank item
  item rm INDEX             remove an item
  item set INDEX FIELD VALUE...
                            edit an item cell
  save                      save the form
  revert                    drop unsaved form edits
  delete [ID]               delete a document (default: the selection)
  export PATH               export the form to an XLSX workbook
  help                      show this help
  quit                      leave the shell`

func shellCmd(a *app) *cobra.Command {
	var watchDir string
	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			if err := a.session.Mount(ctx); err != nil {
				a.logger.Warn("shell.mount_failed", "error", err)
			}
			if watchDir != "" {
				if err := a.watch(ctx, watchDir); err != nil {
					return err
				}
				fmt.Fprintf(a.out, "Watching %s for PDF and XLSX files.\n", watchDir)
			}
			s := a.session.State()
			render.Documents(a.out, s.Documents, s.SelectedID())
			return a.repl(ctx)
		},
	}
	cmd.Flags().StringVar(&watchDir, "watch", "", "queue PDF/XLSX files dropped into this directory")
	return cmd
}

// watch queues every file that lands in dir until ctx is done.
func (a *app) watch(ctx context.Context, dir string) error {
	events, errs, err := upload.StartWatcher(ctx, upload.WatchConfig{
		Roots:    []string{dir},
		Debounce: a.cfg.Upload.WatchDebounce,
		Logger:   a.logger,
	})
	if err != nil {
		return err
	}
	go func() {
		for {
			select {
			case p, ok := <-events:
				if !ok {
					return
				}
				f, err := upload.LoadFile(p)
				if err != nil {
					a.logger.Warn("shell.watch.load_failed", "path", p, "error", err)
					continue
				}
				q := a.session.AddFiles(f)
				fmt.Fprintf(a.out, "\nqueued %s (%d file(s) selected)\n", f.Name, len(q))
			case err, ok := <-errs:
				if !ok {
					return
				}
				a.logger.Warn("shell.watch.error", "error", err)
			}
		}
	}()
	return nil
}

func (a *app) repl(ctx context.Context) error {
	for {
		fmt.Fprint(a.out, "shipdesk> ")
		line, err := a.in.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" {
			// One id per shell line so every backend call it triggers shares it.
			cmdCtx := common.WithRequestID(ctx, uuid.NewString())
			quit, cmdErr := a.dispatch(cmdCtx, strings.Fields(line), line)
			if cmdErr != nil {
				fmt.Fprintf(a.out, "error: %v\n", cmdErr)
			}
			if quit {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(a.out)
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// dispatch runs one shell command. raw is the untokenised line, used for
// values that may contain spaces.
func (a *app) dispatch(ctx context.Context, args []string, raw string) (bool, error) {
	o := a.session
	switch args[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		fmt.Fprintln(a.out, shellHelp)
	case "list":
		if err := o.Refresh(ctx); err != nil {
			return false, err
		}
		s := o.State()
		render.Documents(a.out, s.Documents, s.SelectedID())
	case "select":
		if len(args) != 2 {
			return false, usage("select ID")
		}
		if err := o.Select(entity.DocumentID(args[1])); err != nil {
			return false, err
		}
		s := o.State()
		fmt.Fprintf(a.out, "Selected %s (%s)\n", s.Selected.ID, s.Selected.Filename)
		render.ViewerFiles(a.out, s.ViewerFiles, -1)
	case "add":
		if len(args) < 2 {
			return false, usage("add PATH...")
		}
		for _, p := range args[1:] {
			if err := a.addPath(ctx, p); err != nil {
				return false, err
			}
		}
		render.Queue(a.out, o.State().Queue, o.State().UploadStatus)
	case "queue":
		s := o.State()
		render.Queue(a.out, s.Queue, s.UploadStatus)
	case "clear":
		o.ClearQueue()
		fmt.Fprintln(a.out, "Queue cleared.")
	case "upload":
		res, err := o.Upload(ctx)
		if err != nil {
			return false, err
		}
		s := o.State()
		fmt.Fprintf(a.out, "Uploaded; %d new document(s).\n", len(res.DocIDs))
		render.Documents(a.out, s.Documents, s.SelectedID())
		render.ViewerFiles(a.out, s.ViewerFiles, -1)
	case "files":
		s := o.State()
		active := -1
		if s.ViewerOpen {
			active = s.ViewerIndex
		}
		render.ViewerFiles(a.out, s.ViewerFiles, active)
	case "view":
		idx := 0
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return false, usage("view [INDEX]")
			}
			idx = n
		}
		if err := o.OpenViewer(idx); err != nil {
			return false, err
		}
		render.Preview(a.out, o.Preview(ctx))
	case "file":
		if len(args) != 2 {
			return false, usage("file INDEX")
		}
		j, err := strconv.Atoi(args[1])
		if err != nil {
			return false, usage("file INDEX")
		}
		if err := o.SelectViewerFile(j); err != nil {
			return false, err
		}
		render.Preview(a.out, o.Preview(ctx))
	case "close":
		o.CloseViewer()
	case "form":
		if o.State().Selected == nil {
			return false, common.ErrNoSelection
		}
		render.Form(a.out, o.Form().Record())
	case "set":
		if len(args) < 2 {
			return false, usage("set FIELD VALUE...")
		}
		return false, o.Form().SetValue(args[1], restAfter(raw, 2))
	case "item":
		return false, a.itemCommand(args, raw)
	case "revert":
		return false, o.DiscardEdits()
	case "save":
		return false, o.Save(ctx)
	case "delete":
		var id entity.DocumentID
		switch {
		case len(args) > 1:
			id = entity.DocumentID(args[1])
		case o.State().Selected != nil:
			id = o.State().SelectedID()
		default:
			return false, common.ErrNoSelection
		}
		if err := o.Delete(ctx, id); err != nil {
			return false, err
		}
		s := o.State()
		render.Documents(a.out, s.Documents, s.SelectedID())
	case "export":
		if len(args) != 2 {
			return false, usage("export PATH")
		}
		s := o.State()
		if s.Selected == nil {
			return false, common.ErrNoSelection
		}
		b, err := a.exporter.ExportRecordXLSX(ctx, *s.Selected, o.Form().Record())
		if err != nil {
			return false, err
		}
		if err := os.WriteFile(args[1], b, 0o644); err != nil {
			return false, err
		}
		fmt.Fprintf(a.out, "Exported document %s to %s\n", s.Selected.ID, args[1])
	default:
		return false, fmt.Errorf("unknown command %q (try help)", args[0])
	}
	return false, nil
}

func (a *app) itemCommand(args []string, raw string) error {
	f := a.session.Form()
	if len(args) < 2 {
		return usage("item add | item rm INDEX | item set INDEX FIELD VALUE...")
	}
	switch args[1] {
	case "add":
		f.AddItem()
	case "rm":
		if len(args) != 3 {
			return usage("item rm INDEX")
		}
		idx, err := strconv.Atoi(args[2])
		if err != nil {
			return usage("item rm INDEX")
		}
		if err := f.RemoveItem(idx); err != nil {
			return err
		}
	case "set":
		if len(args) < 4 {
			return usage("item set INDEX FIELD VALUE...")
		}
		idx, err := strconv.Atoi(args[2])
		if err != nil {
			return usage("item set INDEX FIELD VALUE...")
		}
		if err := f.ChangeItem(idx, args[3], restAfter(raw, 4)); err != nil {
			return err
		}
	default:
		return usage("item add | item rm INDEX | item set INDEX FIELD VALUE...")
	}
	render.Items(a.out, f.Items())
	return nil
}

func (a *app) addPath(ctx context.Context, p string) error {
	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	if info.IsDir() {
		files, _, err := upload.LoadDirectory(ctx, p, true, a.logger)
		if err != nil {
			return err
		}
		a.session.AddFiles(files...)
		return nil
	}
	files, err := upload.LoadFiles(ctx, filepath.Clean(p))
	if err != nil {
		return err
	}
	a.session.AddFiles(files...)
	return nil
}

// restAfter returns raw with its first n whitespace-separated tokens removed.
func restAfter(raw string, n int) string {
	s := strings.TrimSpace(raw)
	for range n {
		i := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' })
		if i < 0 {
			return ""
		}
		s = strings.TrimSpace(s[i:])
	}
	return s
}

func usage(u string) error {
	return fmt.Errorf("usage: %s: %w", u, common.ErrInvalidInput)
}
