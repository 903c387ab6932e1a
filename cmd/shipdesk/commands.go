package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/shipment-docs/internal/entity"
	"github.com/joseph-ayodele/shipment-docs/internal/render"
	"github.com/joseph-ayodele/shipment-docs/internal/upload"
)

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List uploaded documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.session.Refresh(cmd.Context()); err != nil {
				return err
			}
			render.Documents(a.out, a.session.State().Documents, "")
			return nil
		},
	}
}

func uploadCmd(a *app) *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "upload [FILE...]",
		Short: "Upload PDF and XLSX files as one batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if len(args) == 0 && dir == "" {
				return fmt.Errorf("no files given")
			}
			files, err := upload.LoadFiles(ctx, args...)
			if err != nil {
				return err
			}
			if dir != "" {
				more, _, err := upload.LoadDirectory(ctx, dir, true, a.logger)
				if err != nil {
					return err
				}
				files = append(files, more...)
			}
			// the queue starts empty here, so the snapshot is the batch sent
			batch := a.session.AddFiles(files...)
			if skipped := len(files) - len(batch); skipped > 0 {
				fmt.Fprintf(a.out, "Skipped %d duplicate or unsupported file(s)\n", skipped)
			}
			res, err := a.session.Upload(ctx)
			if err != nil {
				return err
			}
			ids := make([]string, 0, len(res.DocIDs))
			for _, id := range res.DocIDs {
				ids = append(ids, id.String())
			}
			fmt.Fprintf(a.out, "Uploaded %d file(s); new document ids: %s\n", len(batch), strings.Join(ids, ", "))
			s := a.session.State()
			render.Documents(a.out, s.Documents, s.SelectedID())
			render.ViewerFiles(a.out, s.ViewerFiles, -1)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "also upload every PDF/XLSX file under this directory")
	return cmd
}

func showCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show the extracted (or edited) data of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.loadAndSelect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			source := "extracted"
			if doc.EditedData != nil {
				source = "edited"
			}
			fmt.Fprintf(a.out, "Document %s: %s (%s data)\n", doc.ID, doc.Filename, source)
			render.Form(a.out, a.session.Form().Record())
			return nil
		},
	}
}

func viewCmd(a *app) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "view ID",
		Short: "Preview the stored file of a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.loadAndSelect(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := a.session.OpenViewer(index); err != nil {
				return err
			}
			defer a.session.CloseViewer()
			render.Preview(a.out, a.session.Preview(cmd.Context()))
			return nil
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "viewer file index to open")
	return cmd
}

func saveCmd(a *app) *cobra.Command {
	var e edits
	cmd := &cobra.Command{
		Use:   "save ID",
		Short: "Edit a document's data and save it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := a.loadAndSelect(cmd.Context(), args[0]); err != nil {
				return err
			}
			if err := e.apply(a.session.Form()); err != nil {
				return err
			}
			if err := a.session.Save(cmd.Context()); err != nil {
				return err
			}
			render.Form(a.out, a.session.Form().Record())
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&e.sets, "set", nil, "set a field, FIELD=VALUE (repeatable)")
	cmd.Flags().StringArrayVar(&e.items, "item", nil, "set an item cell, INDEX.FIELD=VALUE (repeatable)")
	cmd.Flags().IntVar(&e.addItems, "add-item", 0, "append this many blank items")
	cmd.Flags().IntSliceVar(&e.removeItems, "remove-item", nil, "remove the item at INDEX (repeatable)")
	return cmd
}

func deleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.session.Refresh(ctx); err != nil {
				return err
			}
			before := len(a.session.State().Documents)
			if err := a.session.Delete(ctx, entity.DocumentID(args[0])); err != nil {
				return err
			}
			s := a.session.State()
			if len(s.Documents) < before {
				fmt.Fprintf(a.out, "Deleted document %s.\n", args[0])
			}
			render.Documents(a.out, s.Documents, s.SelectedID())
			return nil
		},
	}
	cmd.Flags().BoolVarP(&a.assumeYes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Export a document's data to an XLSX workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := a.loadAndSelect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.exportTo(cmd, doc, out)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output .xlsx path")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func (a *app) exportTo(cmd *cobra.Command, doc entity.Document, path string) error {
	b, err := a.exporter.ExportRecordXLSX(cmd.Context(), doc, a.session.Form().Record())
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Exported document %s to %s\n", doc.ID, path)
	return nil
}
