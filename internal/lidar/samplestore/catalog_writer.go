package samplestore

import (
	"context"
	"fmt"
)

// PathWriter is a sample writer that can report where a sample lives.
type PathWriter interface {
	WriteSample(ctx context.Context, index int, payload []byte) error
	Path(index int) string
}

// CatalogWriter writes through to next and records each sample that next
// accepted. A catalog failure is reported as a write failure so the driver
// retries the sample; the rewrite is idempotent.
type CatalogWriter struct {
	next    PathWriter
	catalog *Catalog
	runID   string
}

// NewCatalogWriter wraps next for the given run.
func NewCatalogWriter(next PathWriter, catalog *Catalog, runID string) *CatalogWriter {
	return &CatalogWriter{next: next, catalog: catalog, runID: runID}
}

// WriteSample writes payload and records it in the catalog.
func (w *CatalogWriter) WriteSample(ctx context.Context, index int, payload []byte) error {
	if err := w.next.WriteSample(ctx, index, payload); err != nil {
		return err
	}
	if err := w.catalog.RecordSample(ctx, w.runID, index, w.next.Path(index), payload); err != nil {
		return fmt.Errorf("sample %d written but not catalogued: %w", index, err)
	}
	return nil
}

// Path delegates to the wrapped writer.
func (w *CatalogWriter) Path(index int) string { return w.next.Path(index) }

// RunID returns the run the writer records into.
func (w *CatalogWriter) RunID() string { return w.runID }
