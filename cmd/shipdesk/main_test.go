package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/shipment-docs/internal/backend/backendtest"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
	"github.com/joseph-ayodele/shipment-docs/internal/viewer/viewertest"
)

func run(t *testing.T, srv *backendtest.Server, stdin string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(strings.NewReader(stdin), &out, &errOut)
	root.SetArgs(append([]string{"--backend-url", srv.URL, "--log-level", "error"}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func seeded(t *testing.T) *backendtest.Server {
	t.Helper()
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	book, err := viewertest.Workbook(
		viewertest.Sheet{Name: "Sheet1", Rows: [][]string{{"A", "B"}, {"1", "2"}}},
		viewertest.Sheet{Name: "Sheet2"},
	)
	if err != nil {
		t.Fatal(err)
	}
	srv.Seed("invoice.pdf", viewertest.PDF("Invoice"), entity.StructuredRecord{
		ShipmentID: "SHP-1",
		SenderName: "Acme",
		Items:      []entity.LineItem{{Description: "Pallet", Quantity: "2"}},
	})
	srv.Seed("manifest.xlsx", book, entity.StructuredRecord{ShipmentID: "SHP-2"})
	return srv
}

func TestListCommand(t *testing.T) {
	srv := seeded(t)
	out, err := run(t, srv, "", "list")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, want := range []string{"invoice.pdf", "manifest.xlsx"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestUploadCommand(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	dir := t.TempDir()
	pdf := filepath.Join(dir, "invoice.pdf")
	xlsx := filepath.Join(dir, "manifest.xlsx")
	if err := os.WriteFile(pdf, viewertest.PDF("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(xlsx, []byte("PK"), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, srv, "", "upload", pdf, xlsx, pdf, "--dir", dir)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if !strings.Contains(out, "Uploaded 2 file(s)") || !strings.Contains(out, "Skipped 3 duplicate or unsupported file(s)") {
		t.Errorf("unexpected output:\n%s", out)
	}
	if b := srv.Batches(); len(b) != 1 || len(b[0]) != 2 {
		t.Errorf("expected one batch of two files, got %v", len(b))
	}
}

func TestUploadCommandReportsServerDetail(t *testing.T) {
	srv := backendtest.New()
	t.Cleanup(srv.Close)
	pdf := filepath.Join(t.TempDir(), "invoice.pdf")
	if err := os.WriteFile(pdf, []byte("%PDF"), 0o644); err != nil {
		t.Fatal(err)
	}
	srv.FailWith(400, "Invalid file type: invoice.pdf")

	out, err := run(t, srv, "", "upload", pdf)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out, "! Error uploading files: Invalid file type: invoice.pdf") {
		t.Errorf("notification missing:\n%s", out)
	}
}

func TestShowAndSaveCommands(t *testing.T) {
	srv := seeded(t)
	out, err := run(t, srv, "", "show", "1")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if !strings.Contains(out, "SHP-1") || !strings.Contains(out, "extracted data") {
		t.Errorf("unexpected show output:\n%s", out)
	}

	out, err = run(t, srv, "", "save", "1",
		"--set", "sender_name=Acme Ltd",
		"--item", "0.weight=40",
		"--add-item", "1",
		"--item", "1.description=Crate")
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !strings.Contains(out, "! Changes saved!") {
		t.Errorf("save notification missing:\n%s", out)
	}
	saves := srv.Saves()
	if len(saves) != 1 {
		t.Fatalf("expected one save, got %d", len(saves))
	}
	rec := saves[0].Record
	if rec.SenderName != "Acme Ltd" || len(rec.Items) != 2 || rec.Items[0].Weight != "40" || rec.Items[1].Description != "Crate" {
		t.Errorf("unexpected saved record %+v", rec)
	}

	out, err = run(t, srv, "", "show", "1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "edited data") || !strings.Contains(out, "Acme Ltd") {
		t.Errorf("show should use edited data:\n%s", out)
	}
}

func TestSaveRejectsBadEdits(t *testing.T) {
	srv := seeded(t)
	if _, err := run(t, srv, "", "save", "1", "--set", "colour=red"); err == nil {
		t.Error("expected unknown field error")
	}
	if _, err := run(t, srv, "", "save", "1", "--item", "nope"); err == nil {
		t.Error("expected malformed item error")
	}
	if len(srv.Saves()) != 0 {
		t.Error("nothing should be saved")
	}
}

func TestDeleteCommandConfirmation(t *testing.T) {
	srv := seeded(t)
	out, err := run(t, srv, "n\n", "delete", "1")
	if err != nil {
		t.Fatalf("declined delete: %v", err)
	}
	if !strings.Contains(out, "Are you sure you want to delete this document?") {
		t.Errorf("prompt missing:\n%s", out)
	}
	if len(srv.Deletes()) != 0 {
		t.Fatal("declined delete sent a request")
	}

	if _, err := run(t, srv, "", "delete", "1", "--yes"); err != nil {
		t.Fatalf("delete --yes: %v", err)
	}
	if len(srv.Documents()) != 1 {
		t.Errorf("expected one document left, got %d", len(srv.Documents()))
	}
}

func TestViewSpreadsheet(t *testing.T) {
	srv := seeded(t)
	out, err := run(t, srv, "", "view", "2")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	i1, i2 := strings.Index(out, "Sheet: Sheet1"), strings.Index(out, "Sheet: Sheet2")
	if i1 < 0 || i2 < i1 {
		t.Errorf("sheets missing or out of order:\n%s", out)
	}
}

func TestViewPDF(t *testing.T) {
	srv := seeded(t)
	out, err := run(t, srv, "", "view", "1")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	if !strings.Contains(out, "page 1 of 1") {
		t.Errorf("page header missing:\n%s", out)
	}
}

func TestExportCommand(t *testing.T) {
	srv := seeded(t)
	path := filepath.Join(t.TempDir(), "out.xlsx")
	if _, err := run(t, srv, "", "export", "1", "--out", path); err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	v, err := f.GetCellValue("Shipment", "B5")
	if err != nil {
		t.Fatal(err)
	}
	if v != "SHP-1" {
		t.Errorf("Shipment ID cell = %q", v)
	}
}

func TestShellSession(t *testing.T) {
	srv := seeded(t)
	script := strings.Join([]string{
		"select 1",
		"set sender_address 1 Dock Road, Leeds",
		"item add",
		"item set 1 description Big box",
		"item rm 0",
		"save",
		"files",
		"bogus",
		"quit",
	}, "\n") + "\n"

	out, err := run(t, srv, script, "shell")
	if err != nil {
		t.Fatalf("shell: %v", err)
	}
	if !strings.Contains(out, "Changes saved!") {
		t.Errorf("save notification missing:\n%s", out)
	}
	if !strings.Contains(out, `unknown command "bogus"`) {
		t.Errorf("unknown command not reported:\n%s", out)
	}
	saves := srv.Saves()
	if len(saves) != 1 {
		t.Fatalf("expected one save, got %d", len(saves))
	}
	rec := saves[0].Record
	if rec.SenderAddress != "1 Dock Road, Leeds" {
		t.Errorf("sender_address = %q", rec.SenderAddress)
	}
	if len(rec.Items) != 1 || rec.Items[0].Description != "Big box" {
		t.Errorf("unexpected items %+v", rec.Items)
	}
}

func TestShellUploadAndDeleteSelected(t *testing.T) {
	srv := seeded(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "new.pdf"), viewertest.PDF("n"), 0o644); err != nil {
		t.Fatal(err)
	}
	script := strings.Join([]string{
		"add " + dir,
		"upload",
		"delete",
		"y",
		"quit",
	}, "\n") + "\n"

	out, err := run(t, srv, script, "shell")
	if err != nil {
		t.Fatalf("shell: %v", err)
	}
	if !strings.Contains(out, "Uploaded; 1 new document(s).") {
		t.Errorf("upload missing:\n%s", out)
	}
	deletes := srv.Deletes()
	if len(deletes) != 1 || deletes[0] != "3" {
		t.Errorf("expected the uploaded document to be deleted, got %v", deletes)
	}
}
