package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/tee-confidential-query/common"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// Store loads contract metadata from a backend keyed by code hash. Parsed
// documents are cached; a code hash always describes the same code.
type Store struct {
	backend interfaces.MetadataBackend
	log     *slog.Logger

	mu    sync.RWMutex
	cache map[interfaces.CodeHash]*Metadata
}

func NewStore(backend interfaces.MetadataBackend, log *slog.Logger) (*Store, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil metadata backend", interfaces.ErrConfiguration)
	}
	if log == nil {
		log = common.DiscardLogger()
	}
	return &Store{
		backend: backend,
		log:     log,
		cache:   make(map[interfaces.CodeHash]*Metadata),
	}, nil
}

// Load fetches and parses the metadata for codeHash. A document declaring a
// different source hash is rejected.
func (s *Store) Load(ctx context.Context, codeHash interfaces.CodeHash) (*Metadata, error) {
	s.mu.RLock()
	md, ok := s.cache[codeHash]
	s.mu.RUnlock()
	if ok {
		return md, nil
	}

	data, err := s.backend.Fetch(ctx, codeHash)
	if err != nil {
		return nil, fmt.Errorf("fetching metadata for %s from %s: %w", codeHash, s.backend.Name(), err)
	}
	md, err = parseFor(codeHash, data)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[codeHash] = md
	s.mu.Unlock()

	s.log.Debug("loaded contract metadata",
		slog.String("code_hash", codeHash.String()),
		slog.String("contract", md.Name),
		slog.Int("messages", md.Messages.Len()))
	return md, nil
}

// Publish validates data and stores it under codeHash.
func (s *Store) Publish(ctx context.Context, codeHash interfaces.CodeHash, data []byte) (*Metadata, error) {
	md, err := parseFor(codeHash, data)
	if err != nil {
		return nil, err
	}
	if err := s.backend.Store(ctx, codeHash, data); err != nil {
		return nil, fmt.Errorf("storing metadata for %s: %w", codeHash, err)
	}

	s.mu.Lock()
	s.cache[codeHash] = md
	s.mu.Unlock()
	return md, nil
}

func parseFor(codeHash interfaces.CodeHash, data []byte) (*Metadata, error) {
	md, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if md.SourceHash != (interfaces.CodeHash{}) && md.SourceHash != codeHash {
		return nil, fmt.Errorf("%w: document describes %s, requested %s", ErrInvalidMetadata, md.SourceHash, codeHash)
	}
	return md, nil
}
