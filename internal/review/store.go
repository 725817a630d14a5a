package review

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/storage"
)

// ResultsKey is the storage key of the review results document
const ResultsKey = "review-results.json"

// Store persists review results as one JSON array, one result per file.
// Every mutation reads the whole document and rewrites it. I/O failures are
// logged and reported as false or empty values, never as errors.
type Store struct {
	mu      sync.Mutex
	backend storage.Backend
	roots   []string
	now     func() time.Time
	logger  *loggy.Logger
}

// Option configures a Store
type Option func(*Store)

// WithWorkspaceRoots sets the roots used to relativize paths when resolving re-review feedback
func WithWorkspaceRoots(roots ...string) Option {
	return func(s *Store) { s.roots = roots }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger used for swallowed errors
func WithLogger(l *loggy.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore creates a store on backend
func NewStore(backend storage.Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		now:     time.Now,
		logger:  loggy.GetGlobalLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) load(ctx context.Context) ([]ReviewResult, error) {
	var results []ReviewResult
	if _, err := storage.LoadJSON(ctx, s.backend, ResultsKey, &results); err != nil {
		return nil, err
	}
	if results == nil {
		results = []ReviewResult{}
	}
	return results, nil
}

func (s *Store) write(ctx context.Context, results []ReviewResult) error {
	return storage.SaveJSON(ctx, s.backend, ResultsKey, results)
}

// Save stores r, replacing any result whose file is exactly r.File. The
// replacement goes to the end of the stored order.
func (s *Store) Save(ctx context.Context, r *ReviewResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(ctx, r)
}

func (s *Store) saveLocked(ctx context.Context, r *ReviewResult) bool {
	results, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("failed to load review results before save", "file", r.File, "error", err)
		return false
	}

	kept := results[:0]
	for _, existing := range results {
		if existing.File != r.File {
			kept = append(kept, existing)
		}
	}
	kept = append(kept, *r)

	if err := s.write(ctx, kept); err != nil {
		s.logger.Warn("failed to save review result", "id", r.ID, "file", r.File, "error", err)
		return false
	}
	return true
}

// LoadAll returns every stored result in stored order
func (s *Store) LoadAll(ctx context.Context) []ReviewResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("failed to load review results", "error", err)
		return []ReviewResult{}
	}
	return results
}

// LoadByID returns the result with id, or nil
func (s *Store) LoadByID(ctx context.Context, id string) *ReviewResult {
	for _, r := range s.LoadAll(ctx) {
		if r.ID == id {
			return &r
		}
	}
	return nil
}

// LoadByFile returns the result saved under exactly file, or nil
func (s *Store) LoadByFile(ctx context.Context, file string) *ReviewResult {
	for _, r := range s.LoadAll(ctx) {
		if r.File == file {
			return &r
		}
	}
	return nil
}

// Delete removes the result with id. It reports false when there was none.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("failed to load review results before delete", "id", id, "error", err)
		return false
	}

	kept := make([]ReviewResult, 0, len(results))
	for _, r := range results {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(results) {
		return false
	}
	if err := s.write(ctx, kept); err != nil {
		s.logger.Warn("failed to delete review result", "id", id, "error", err)
		return false
	}
	return true
}

// ClearAll removes the whole document. Clearing an empty store succeeds.
func (s *Store) ClearAll(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, ResultsKey); err != nil {
		s.logger.Warn("failed to clear review results", "error", err)
		return false
	}
	return true
}

// UpdateViolationStatus records a decision on the violation at index.
// Only approved and rejected are valid targets, and a violation that already
// has a decision can only be set to the same one again (updating the note).
func (s *Store) UpdateViolationStatus(ctx context.Context, reviewID string, index int, status ViolationStatus, note string) error {
	if status != StatusApproved && status != StatusRejected {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	results, err := s.load(ctx)
	if err != nil {
		return fmt.Errorf("loading review results: %w", err)
	}

	var target *ReviewResult
	for i := range results {
		if results[i].ID == reviewID {
			target = &results[i]
			break
		}
	}
	if target == nil {
		return fmt.Errorf("%w: %s", ErrReviewNotFound, reviewID)
	}
	if index < 0 || index >= len(target.Violations) {
		return fmt.Errorf("%w: %d (result has %d)", ErrIndexOutOfRange, index, len(target.Violations))
	}

	v := target.Violations[index]
	if v.Status != StatusPending && v.Status != "" && v.Status != status {
		return fmt.Errorf("%w: violation is already %s", ErrInvalidStatus, v.Status)
	}
	v.Status = status
	v.ReviewNote = note
	target.Violations[index] = v

	ts := s.now().UnixMilli()
	target.LastReviewTimestamp = &ts

	updated := *target
	if !s.saveLocked(ctx, &updated) {
		return fmt.Errorf("saving review result %s", reviewID)
	}
	return nil
}

// SetViolationStatus is UpdateViolationStatus reporting success as a bool
func (s *Store) SetViolationStatus(ctx context.Context, reviewID string, index int, status ViolationStatus, note string) bool {
	if err := s.UpdateViolationStatus(ctx, reviewID, index, status, note); err != nil {
		s.logger.Warn("failed to update violation status",
			"review_id", reviewID,
			"index", index,
			"status", status,
			"error", err)
		return false
	}
	return true
}

// GetViolationsForReReview returns the approved and rejected violations of
// the stored result that best matches file. No match gives empty lists.
func (s *Store) GetViolationsForReReview(ctx context.Context, file string) ReReviewFeedback {
	results := s.LoadAll(ctx)
	return partition(resolveFileIdentity(results, file, s.roots))
}
