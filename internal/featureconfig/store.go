// Package featureconfig keeps an in-memory view of the remote feature
// configuration and answers typed lookups against it.
package featureconfig

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"socialcore/internal/domain"
)

// Status describes the last refresh.
type Status struct {
	Loading       bool
	Err           error
	LastFetchedAt *time.Time
}

// Store is safe for concurrent use. Values are replaced wholesale by
// Refresh; repository writes made elsewhere are not reflected until the
// caller sets the value or refreshes.
type Store struct {
	repo   domain.FeatureConfigRepository
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.RWMutex
	values map[string]domain.ConfigValue
	status Status
}

type Option func(*Store)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) { s.logger = logger.With().Str("component", "featureconfig").Logger() }
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func NewStore(repo domain.FeatureConfigRepository, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		logger: zerolog.Nop(),
		now:    time.Now,
		values: map[string]domain.ConfigValue{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh loads every entry and replaces the in-memory values. On failure
// the previous values are kept and the error is recorded in Status.
func (s *Store) Refresh(ctx context.Context) error {
	s.mu.Lock()
	s.status.Loading = true
	s.mu.Unlock()

	entries, err := s.repo.All(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Loading = false
	if err != nil {
		s.status.Err = err
		s.logger.Warn().Err(err).Msg("feature config refresh failed")
		return err
	}
	values := make(map[string]domain.ConfigValue, len(entries))
	for _, e := range entries {
		values[e.Key] = e.Value
	}
	s.values = values
	now := s.now()
	s.status.Err = nil
	s.status.LastFetchedAt = &now
	s.logger.Debug().Int("entries", len(values)).Msg("feature config refreshed")
	return nil
}

func (s *Store) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) Value(key string) (domain.ConfigValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Values returns a copy of every loaded value.
func (s *Store) Values() map[string]domain.ConfigValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// SetValue changes the in-memory value only.
func (s *Store) SetValue(key string, v domain.ConfigValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = v
}

// Save writes the entry to the backend and then updates the in-memory
// value. Well-known keys get their default description when none is given.
func (s *Store) Save(ctx context.Context, key string, v domain.ConfigValue, description *string) (domain.FeatureConfigEntry, error) {
	if description == nil {
		if d, ok := domain.ConfigDescriptions[key]; ok {
			description = &d
		}
	}
	entry, err := s.repo.Upsert(ctx, key, v, description)
	if err != nil {
		return domain.FeatureConfigEntry{}, err
	}
	s.SetValue(entry.Key, entry.Value)
	return entry, nil
}

// Remove deletes the entry from the backend and then from memory.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
	return nil
}

// Reset drops all values and the refresh status.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = map[string]domain.ConfigValue{}
	s.status = Status{}
}

// StringList parses key as a list of single-word terms.
func (s *Store) StringList(key string) []string {
	v, _ := s.Value(key)
	return domain.ParseStringArrayConfig(v)
}

// Text returns the trimmed string value of key, if it has one.
func (s *Store) Text(key string) (string, bool) {
	v, _ := s.Value(key)
	return domain.ParseStringConfig(v)
}

func (s *Store) BlockedTerms() []string {
	return s.StringList(domain.ConfigKeyBlockedTerms)
}

// ReviewTerms falls back to the built-in list when none are configured.
func (s *Store) ReviewTerms() []string {
	if terms := s.StringList(domain.ConfigKeyReviewTerms); len(terms) > 0 {
		return terms
	}
	return append([]string(nil), domain.DefaultReviewTerms...)
}

// Moderate evaluates text against the configured term lists.
func (s *Store) Moderate(text string) domain.ModerationResult {
	return domain.EvaluateText(text, s.BlockedTerms(), s.ReviewTerms())
}

func (s *Store) TermsVersion() (string, bool) {
	return s.Text(domain.ConfigKeyTermsVersion)
}

func (s *Store) TermsURL() (string, bool) {
	return s.Text(domain.ConfigKeyTermsURL)
}
