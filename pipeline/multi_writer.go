// Package pipeline validates scraped batches and hands them to the output sinks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-movies/models"
)

// MultiWriter fans a batch out to several writers. Every writer is attempted
// even when an earlier one fails; the failures are joined.
type MultiWriter struct {
	writers []namedWriter
	mu      sync.Mutex
}

type namedWriter struct {
	name   string
	writer OutputWriter
}

// NewMultiWriter creates an empty fan-out writer.
func NewMultiWriter() *MultiWriter {
	return &MultiWriter{}
}

// Add registers a writer under a name used in error messages.
func (mw *MultiWriter) Add(name string, w OutputWriter) *MultiWriter {
	mw.writers = append(mw.writers, namedWriter{name: name, writer: w})
	return mw
}

// Len returns the number of registered writers.
func (mw *MultiWriter) Len() int {
	return len(mw.writers)
}

// Write writes the batch to every registered writer.
func (mw *MultiWriter) Write(ctx context.Context, batch *models.GenreBatch) error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for _, w := range mw.writers {
		if err := w.writer.Write(ctx, batch); err != nil {
			errs = append(errs, fmt.Errorf("%s write failed: %w", w.name, err))
		}
	}
	return errors.Join(errs...)
}

// Close closes all writers
func (mw *MultiWriter) Close() error {
	mw.mu.Lock()
	defer mw.mu.Unlock()

	var errs []error
	for _, w := range mw.writers {
		if err := w.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close failed: %w", w.name, err))
		}
	}
	return errors.Join(errs...)
}

// Validate validates all outputs
func (mw *MultiWriter) Validate() error {
	var errs []error
	for _, w := range mw.writers {
		if err := w.writer.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s validation failed: %w", w.name, err))
		}
	}
	return errors.Join(errs...)
}
