package logging

import (
	"context"
	"errors"

	"llm_compare/internal/models"
)

// BatchWriter persists a batch of round records
type BatchWriter interface {
	WriteBatch(ctx context.Context, records []*models.RoundRecord) error
}

// MultiWriter sends every batch to several history destinations.
// Every writer is attempted; the errors are joined.
type MultiWriter struct {
	writers []BatchWriter
}

func NewMultiWriter(writers ...BatchWriter) *MultiWriter {
	return &MultiWriter{writers: writers}
}

func (m *MultiWriter) WriteBatch(ctx context.Context, records []*models.RoundRecord) error {
	var errs []error
	for _, w := range m.writers {
		if err := w.WriteBatch(ctx, records); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of destinations
func (m *MultiWriter) Len() int {
	return len(m.writers)
}

// NoopWriter discards history
type NoopWriter struct{}

func NewNoopWriter() *NoopWriter {
	return &NoopWriter{}
}

func (NoopWriter) WriteBatch(ctx context.Context, records []*models.RoundRecord) error {
	return nil
}
