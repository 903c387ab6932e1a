package upload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/shipment-docs/constants"
	"github.com/joseph-ayodele/shipment-docs/internal/entity"
)

// maxParallelReads bounds concurrent file reads in LoadFiles.
const maxParallelReads = 8

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Loaded  uint32
	Failed  uint32
}

// LoadFile reads one file from disk into an UploadedFile. The MIME type is
// derived from the extension; unsupported extensions are an error.
func LoadFile(path string) (entity.UploadedFile, error) {
	mime := constants.MimeFromName(path)
	if mime == "" {
		return entity.UploadedFile{}, fmt.Errorf("%s: unsupported or missing extension %q", path, constants.NormalizeExt(filepath.Ext(path)))
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return entity.UploadedFile{}, err
	}
	return entity.UploadedFile{
		Name:     filepath.Base(path),
		Size:     int64(len(content)),
		Content:  content,
		MimeType: mime,
	}, nil
}

// LoadFiles reads paths concurrently and returns the files in argument order.
// The first failure cancels the rest.
func LoadFiles(ctx context.Context, paths ...string) ([]entity.UploadedFile, error) {
	out := make([]entity.UploadedFile, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, p := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := LoadFile(p)
			if err != nil {
				return err
			}
			out[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// LoadDirectory walks root and loads every PDF and XLSX file under it,
// skipping hidden entries when asked. Unreadable files are counted in the
// stats and skipped.
func LoadDirectory(ctx context.Context, root string, skipHidden bool, logger *slog.Logger) ([]entity.UploadedFile, DirStats, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var files []entity.UploadedFile
	var stats DirStats
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			logger.Warn("upload.scan.walk_error", "path", path, "error", walkErr)
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || constants.MimeFromName(path) == "" {
			return nil
		}
		stats.Matched++
		f, err := LoadFile(path)
		if err != nil {
			logger.Warn("upload.scan.read_error", "path", path, "error", err)
			stats.Failed++
			return nil
		}
		files = append(files, f)
		stats.Loaded++
		return nil
	})
	if err != nil {
		return files, stats, fmt.Errorf("walk: %w", err)
	}
	logger.Info("upload.scan.ok", "root", root, "scanned", stats.Scanned, "matched", stats.Matched, "loaded", stats.Loaded, "failed", stats.Failed)
	return files, stats, nil
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
