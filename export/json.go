package export

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/use-agent/rcvscrap/models"
)

// JSONWriter stores the whole result as indented UTF-8 JSON.
type JSONWriter struct {
	path string
}

// NewJSONWriter returns a writer targeting path.
func NewJSONWriter(path string) *JSONWriter {
	return &JSONWriter{path: path}
}

func (w *JSONWriter) Path() string { return w.path }

func (w *JSONWriter) Write(result *models.ExtractionResult) error {
	if err := writeFile(w.path, func(out io.Writer) error {
		return EncodeJSON(out, result)
	}); err != nil {
		return err
	}
	slog.Info("results saved", "format", "json", "path", w.path, "records", len(result.Records))
	return nil
}

// EncodeJSON writes result as indented JSON. Non-ASCII text is kept as is.
func EncodeJSON(out io.Writer, result *models.ExtractionResult) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("export: encode json: %w", err)
	}
	return nil
}
