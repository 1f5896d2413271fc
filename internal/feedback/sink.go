// Package feedback persists user feedback documents on a best-effort basis.
//
// The store connection is attempted once at startup. Without one, every
// submission fails with ErrStoreUnavailable and no I/O is attempted.
package feedback

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"newsrec/internal/domain"
	"newsrec/internal/logging"
	"newsrec/internal/metrics"
)

var (
	ErrStoreUnavailable = errors.New("feedback store unavailable")
	ErrStoreWrite       = errors.New("feedback store write failed")
	ErrInvalidRecord    = errors.New("feedback record must be a JSON object")
)

// Sink fronts an optional FeedbackStore.
type Sink struct {
	store domain.FeedbackStore
	log   zerolog.Logger
}

// NewSink wraps store. A nil store yields a sink that is permanently unavailable.
func NewSink(store domain.FeedbackStore) *Sink {
	metrics.SetFeedbackStoreUp(store != nil)
	return &Sink{store: store, log: logging.With("feedback")}
}

// Available reports whether a store connection exists.
func (s *Sink) Available() bool { return s.store != nil }

// Backend names the underlying store, or "none".
func (s *Sink) Backend() string {
	if s.store == nil {
		return "none"
	}
	return s.store.Name()
}

// Store appends record verbatim.
func (s *Sink) Store(ctx context.Context, record domain.FeedbackRecord) error {
	if s.store == nil {
		metrics.RecordFeedback("none", "unavailable")
		return ErrStoreUnavailable
	}
	if err := ValidateRecord(record); err != nil {
		return err
	}
	if err := s.store.Insert(ctx, record); err != nil {
		metrics.RecordFeedback(s.store.Name(), "error")
		s.log.Debug().Err(err).Str("store", s.store.Name()).Msg("feedback insert failed")
		return fmt.Errorf("%w: %w", ErrStoreWrite, err)
	}
	metrics.RecordFeedback(s.store.Name(), "stored")
	return nil
}

// Close releases the store connection, if any.
func (s *Sink) Close(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	if err := s.store.Close(ctx); err != nil {
		s.log.Warn().Err(err).Str("store", s.store.Name()).Msg("closing feedback store")
		return err
	}
	return nil
}

// ValidateRecord accepts any well-formed JSON object.
func ValidateRecord(record domain.FeedbackRecord) error {
	trimmed := bytes.TrimSpace(record)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return ErrInvalidRecord
	}
	return nil
}
