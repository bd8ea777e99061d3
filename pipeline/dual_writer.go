package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-coins/models"
)

// JSONLSibling returns the JSONL path written next to a CSV output in dual
// mode: output/coins.csv becomes output/coins.jsonl.
func JSONLSibling(csvPath string) string {
	return strings.TrimSuffix(csvPath, filepath.Ext(csvPath)) + ".jsonl"
}

// DualWriter writes every batch to a CSV file and its JSONL sibling. A
// failing output does not keep the batch from the other one.
type DualWriter struct {
	mu      sync.Mutex
	outputs []output
}

type output struct {
	format string
	path   string
	writer OutputWriter
}

// NewDualWriter opens csvPath and JSONLSibling(csvPath).
func NewDualWriter(csvPath string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open csv output: %w", err)
	}

	jsonPath := JSONLSibling(csvPath)
	jsonWriter, err := NewJSONWriter(jsonPath)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("open json output: %w", err), csvWriter.Close())
	}

	return &DualWriter{outputs: []output{
		{format: "csv", path: csvPath, writer: csvWriter},
		{format: "json", path: jsonPath, writer: jsonWriter},
	}}, nil
}

// Paths lists the files the writer produces.
func (dw *DualWriter) Paths() []string {
	paths := make([]string, 0, len(dw.outputs))
	for _, o := range dw.outputs {
		paths = append(paths, o.path)
	}
	return paths
}

func (dw *DualWriter) Write(records []*models.ScrapeRecord) error {
	return dw.each("write", func(w OutputWriter) error { return w.Write(records) })
}

func (dw *DualWriter) Close() error {
	return dw.each("close", OutputWriter.Close)
}

func (dw *DualWriter) Validate() error {
	return dw.each("validate", OutputWriter.Validate)
}

func (dw *DualWriter) each(op string, fn func(OutputWriter) error) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	for _, o := range dw.outputs {
		if err := fn(o.writer); err != nil {
			errs = append(errs, fmt.Errorf("%s %s output %s: %w", op, o.format, o.path, err))
		}
	}
	return errors.Join(errs...)
}
