// Package export persists extraction results as JSON and Excel files.
package export

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/use-agent/rcvscrap/models"
)

// Writer persists one extraction result.
type Writer interface {
	// Write stores result, replacing any previous output.
	Write(result *models.ExtractionResult) error

	// Path is where the output lands.
	Path() string
}

// Columns returns the union of record keys in first-seen order.
func Columns(records []*models.Record) []string {
	seen := make(map[string]struct{})
	var cols []string
	for _, rec := range records {
		rec.Each(func(k, _ string) {
			if _, ok := seen[k]; ok {
				return
			}
			seen[k] = struct{}{}
			cols = append(cols, k)
		})
	}
	return cols
}

// WriteAll runs every writer and returns the first error after trying all.
func WriteAll(result *models.ExtractionResult, writers ...Writer) error {
	var first error
	for _, w := range writers {
		if err := w.Write(result); err != nil {
			slog.Error("could not save output", "path", w.Path(), "error", err)
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// writeFile writes through a temp file in the same directory and renames it
// over path, so readers never see a half-written file.
func writeFile(path string, encode func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("export: create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = encode(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("export: close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: rename to %s: %w", path, err)
	}
	return nil
}
