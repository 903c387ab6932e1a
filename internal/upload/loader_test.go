package upload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/joseph-ayodele/shipment-docs/constants"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "invoice.pdf")
	xlsx := filepath.Join(dir, "manifest.xlsx")
	writeFile(t, pdf, "%PDF-1.4")
	writeFile(t, xlsx, "PK")

	files, err := LoadFiles(context.Background(), pdf, xlsx)
	if err != nil {
		t.Fatalf("LoadFiles: %v", err)
	}
	if diff := cmp.Diff([]string{"invoice.pdf", "manifest.xlsx"}, names(files)); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	if files[0].Size != 8 || files[0].MimeType != constants.MimePDF {
		t.Errorf("unexpected pdf file %+v", files[0])
	}
	if files[1].MimeType != constants.MimeXLSX || string(files[1].Content) != "PK" {
		t.Errorf("unexpected xlsx file %+v", files[1])
	}
}

func TestLoadFilesRejectsUnsupported(t *testing.T) {
	dir := t.TempDir()
	txt := filepath.Join(dir, "notes.txt")
	writeFile(t, txt, "hi")
	if _, err := LoadFiles(context.Background(), txt); err == nil {
		t.Error("expected error for .txt")
	}
	if _, err := LoadFiles(context.Background(), filepath.Join(dir, "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.pdf"), "a")
	writeFile(t, filepath.Join(dir, "sub", "b.xlsx"), "bb")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	writeFile(t, filepath.Join(dir, ".hidden", "c.pdf"), "c")

	files, stats, err := LoadDirectory(context.Background(), dir, true, nil)
	if err != nil {
		t.Fatalf("LoadDirectory: %v", err)
	}
	if diff := cmp.Diff([]string{"a.pdf", "b.xlsx"}, names(files)); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	if stats.Matched != 2 || stats.Loaded != 2 || stats.Failed != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestStartWatcherEmitsNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "existing.pdf"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatalf("StartWatcher: %v", err)
	}

	expect := func(want string) {
		t.Helper()
		timeout := time.After(5 * time.Second)
		for {
			select {
			case p := <-events:
				if filepath.Base(p) == want {
					return
				}
			case <-timeout:
				t.Fatalf("timed out waiting for %s", want)
			}
		}
	}
	expect("existing.pdf")

	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "dropped.xlsx"), "PK")
	expect("dropped.xlsx")

	cancel()
	for range events {
	}
}

func TestStartWatcherRequiresRoots(t *testing.T) {
	if _, _, err := StartWatcher(context.Background(), WatchConfig{}); err == nil {
		t.Error("expected error without roots")
	}
}
