package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// MultiStorageBackend combines several metadata backends. Reads fall back
// through the backends in order; writes go to every available backend.
type MultiStorageBackend struct {
	backends []interfaces.MetadataBackend
	log      *slog.Logger
}

func NewMultiStorageBackend(backends []interfaces.MetadataBackend, logger *slog.Logger) *MultiStorageBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &MultiStorageBackend{
		backends: backends,
		log:      logger,
	}
}

// Fetch returns the document from the first available backend that has it.
// If every backend misses, the result wraps ErrContentNotFound; other
// failures are aggregated.
func (m *MultiStorageBackend) Fetch(ctx context.Context, codeHash interfaces.CodeHash) ([]byte, error) {
	start := time.Now()
	var errs *multierror.Error

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable",
				slog.String("backend_name", backend.Name()),
				slog.String("code_hash", codeHash.String()))
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", backend.Name(), interfaces.ErrBackendUnavailable))
			continue
		}

		data, err := backend.Fetch(ctx, codeHash)
		if err == nil {
			m.log.Debug("Fetched metadata",
				slog.String("backend_name", backend.Name()),
				slog.String("code_hash", codeHash.String()),
				slog.Duration("duration", time.Since(start)))
			return data, nil
		}

		errs = multierror.Append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
		m.log.Debug("Failed to fetch from backend",
			slog.String("backend_name", backend.Name()),
			slog.String("code_hash", codeHash.String()),
			"err", err)
	}

	if errs == nil {
		return nil, fmt.Errorf("%w: no metadata backends configured", interfaces.ErrBackendUnavailable)
	}

	m.log.Warn("All backends failed to fetch metadata",
		slog.String("code_hash", codeHash.String()),
		slog.Int("failed_backends", errs.Len()),
		slog.Duration("duration", time.Since(start)))

	if allNotFound(errs) {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrContentNotFound, codeHash)
	}
	return nil, errs.ErrorOrNil()
}

// Store writes to all available backends and succeeds if at least one write
// succeeded.
func (m *MultiStorageBackend) Store(ctx context.Context, codeHash interfaces.CodeHash, data []byte) error {
	var errs *multierror.Error
	stored := 0

	for _, backend := range m.backends {
		if !backend.Available(ctx) {
			m.log.Debug("Backend unavailable", slog.String("backend_name", backend.Name()))
			continue
		}

		if err := backend.Store(ctx, codeHash, data); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", backend.Name(), err))
			m.log.Debug("Failed to store to backend",
				slog.String("backend_name", backend.Name()),
				"err", err)
			continue
		}
		stored++
	}

	if stored == 0 {
		if errs == nil {
			return fmt.Errorf("%w: no metadata backend available", interfaces.ErrBackendUnavailable)
		}
		return fmt.Errorf("all backends failed to store metadata: %w", errs)
	}
	if errs != nil {
		m.log.Warn("Metadata stored in some backends only",
			slog.Int("stored", stored),
			"err", errs)
	}
	return nil
}

// Available reports whether any backend is available.
func (m *MultiStorageBackend) Available(ctx context.Context) bool {
	for _, backend := range m.backends {
		if backend.Available(ctx) {
			return true
		}
	}
	return false
}

func (m *MultiStorageBackend) Name() string {
	return "multi-storage"
}

func (m *MultiStorageBackend) LocationURI() string {
	locations := make([]string, 0, len(m.backends))
	for _, backend := range m.backends {
		locations = append(locations, backend.LocationURI())
	}
	return "multi:[" + strings.Join(locations, ",") + "]"
}

func allNotFound(errs *multierror.Error) bool {
	for _, err := range errs.Errors {
		if !errors.Is(err, interfaces.ErrContentNotFound) {
			return false
		}
	}
	return true
}
