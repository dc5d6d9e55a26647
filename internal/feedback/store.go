// Package feedback keeps agent corrections and standing overrides, and turns
// them into rules that outrank knowledge-base content on later requests.
package feedback

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"salescomposer/internal/domain"
)

// Dataset is the full persisted state, inactive rows included.
type Dataset struct {
	FeedbackEntries []domain.FeedbackEntry  `json:"feedback_entries"`
	GlobalOverrides []domain.GlobalOverride `json:"global_overrides"`
}

func (d Dataset) clone() Dataset {
	out := Dataset{
		FeedbackEntries: make([]domain.FeedbackEntry, len(d.FeedbackEntries)),
		GlobalOverrides: make([]domain.GlobalOverride, len(d.GlobalOverrides)),
	}
	for i, e := range d.FeedbackEntries {
		e.AppliedRules = slices.Clone(e.AppliedRules)
		e.AppliesToScenarios = slices.Clone(e.AppliesToScenarios)
		e.ScenarioContext.Materials = slices.Clone(e.ScenarioContext.Materials)
		e.ScenarioContext.Options = slices.Clone(e.ScenarioContext.Options)
		e.ScenarioContext.DetectedScenarios = slices.Clone(e.ScenarioContext.DetectedScenarios)
		out.FeedbackEntries[i] = e
	}
	copy(out.GlobalOverrides, d.GlobalOverrides)
	return out
}

// Backend persists a Dataset. Write replaces everything previously stored.
type Backend interface {
	Read(ctx context.Context) (Dataset, error)
	Write(ctx context.Context, data Dataset) error
}

// Store memoizes the backend contents. Writers hold the lock across the write
// and the reload that follows, so readers see either the old or the new
// dataset, never a mix.
type Store struct {
	backend Backend

	mu     sync.RWMutex
	loaded bool
	data   Dataset
}

func NewStore(backend Backend) *Store {
	return &Store{backend: backend}
}

// Load reads the backend once. Later calls are no-ops until a write forces a
// reload. A failed read leaves the store unloaded so the next call retries.
func (s *Store) Load(ctx context.Context) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return nil
	}
	return s.reloadLocked(ctx)
}

func (s *Store) reloadLocked(ctx context.Context) error {
	data, err := s.backend.Read(ctx)
	if err != nil {
		s.loaded = false
		return fmt.Errorf("loading feedback: %w", err)
	}
	s.data = data
	s.loaded = true
	return nil
}

// Active returns a copy of the active feedback entries in stored order.
func (s *Store) Active() []domain.FeedbackEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.FeedbackEntry, 0, len(s.data.FeedbackEntries))
	for _, e := range s.data.clone().FeedbackEntries {
		if e.Active {
			out = append(out, e)
		}
	}
	return out
}

// Overrides returns the active global overrides in stored order.
func (s *Store) Overrides() []domain.GlobalOverride {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.GlobalOverride, 0, len(s.data.GlobalOverrides))
	for _, o := range s.data.GlobalOverrides {
		if o.Active {
			out = append(out, o)
		}
	}
	return out
}

// Snapshot returns the whole dataset, inactive rows included.
func (s *Store) Snapshot() Dataset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.clone()
}

// Save replaces the persisted dataset and reloads it.
func (s *Store) Save(ctx context.Context, entries []domain.FeedbackEntry, overrides []domain.GlobalOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(ctx, Dataset{FeedbackEntries: entries, GlobalOverrides: overrides}.clone())
}

// Update runs fn against a copy of the current dataset and persists the result.
// If fn returns an error nothing is written.
func (s *Store) Update(ctx context.Context, fn func(*Dataset) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		if err := s.reloadLocked(ctx); err != nil {
			return err
		}
	}
	next := s.data.clone()
	if err := fn(&next); err != nil {
		return err
	}
	return s.writeLocked(ctx, next)
}

func (s *Store) writeLocked(ctx context.Context, data Dataset) error {
	if err := s.backend.Write(ctx, data); err != nil {
		return fmt.Errorf("saving feedback: %w", err)
	}
	return s.reloadLocked(ctx)
}
