package service

import (
	"errors"
	"fmt"

	"admindash/internal/record"
	"admindash/internal/storage"
)

// InputError is a malformed request parameter. It maps to a 4xx response.
type InputError struct {
	Param  string
	Value  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Param, e.Value, e.Reason)
}

// NotFoundError reports a missing primary record. Its message is safe to
// show to clients.
type NotFoundError struct {
	Entity string
}

func (e *NotFoundError) Error() string {
	return e.Entity + " not found"
}

func (e *NotFoundError) Unwrap() error {
	return storage.ErrNotFound
}

func notFound(entity string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{Entity: entity}
	}
	return err
}

// corrupt records a stored document that failed normalization and passes
// the error on unchanged.
func (s *Service) corrupt(entity string, err error) error {
	var ve *record.ValidationError
	if errors.As(err, &ve) {
		if s.opts.Metrics != nil {
			s.opts.Metrics.InvalidRecords.WithLabelValues(entity).Inc()
		}
		s.log.Error().Err(err).Str("entity", entity).Msg("stored document failed normalization")
	}
	return err
}
