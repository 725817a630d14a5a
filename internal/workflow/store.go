package workflow

import (
	"context"
	"sort"
	"sync"

	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/storage"
)

const (
	// RunsKey is the storage key of the workflow run log
	RunsKey = "workflow-runs.json"
	// DefaultMaxRuns is how many runs are retained by default
	DefaultMaxRuns = 50
)

// RunStore persists workflow runs as one JSON array, keeping the newest
type RunStore struct {
	mu      sync.Mutex
	backend storage.Backend
	maxRuns int
	logger  *loggy.Logger
}

// NewRunStore creates a run store on backend; maxRuns <= 0 uses the default
func NewRunStore(backend storage.Backend, maxRuns int, logger *loggy.Logger) *RunStore {
	if maxRuns <= 0 {
		maxRuns = DefaultMaxRuns
	}
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	return &RunStore{backend: backend, maxRuns: maxRuns, logger: logger}
}

func (s *RunStore) load(ctx context.Context) ([]Run, error) {
	var runs []Run
	if _, err := storage.LoadJSON(ctx, s.backend, RunsKey, &runs); err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []Run{}
	}
	return runs, nil
}

// Save records run, replacing an earlier copy with the same id, and drops
// the oldest runs beyond the cap
func (s *RunStore) Save(ctx context.Context, run *Run) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("failed to load workflow runs before save", "run_id", run.ID, "error", err)
		return false
	}

	replaced := false
	for i := range runs {
		if runs[i].ID == run.ID {
			runs[i] = *run
			replaced = true
			break
		}
	}
	if !replaced {
		runs = append(runs, *run)
	}

	if over := len(runs) - s.maxRuns; over > 0 {
		sort.SliceStable(runs, func(i, j int) bool {
			return runs[i].StartedAt < runs[j].StartedAt
		})
		runs = runs[over:]
	}

	if err := storage.SaveJSON(ctx, s.backend, RunsKey, runs); err != nil {
		s.logger.Warn("failed to save workflow run", "run_id", run.ID, "error", err)
		return false
	}
	return true
}

// LoadAll returns the stored runs, newest first
func (s *RunStore) LoadAll(ctx context.Context) []Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	runs, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("failed to load workflow runs", "error", err)
		return []Run{}
	}
	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].StartedAt > runs[j].StartedAt
	})
	return runs
}

// LoadByID returns the run with id, or nil
func (s *RunStore) LoadByID(ctx context.Context, id string) *Run {
	for _, r := range s.LoadAll(ctx) {
		if r.ID == id {
			return &r
		}
	}
	return nil
}

// ClearAll removes every stored run
func (s *RunStore) ClearAll(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Delete(ctx, RunsKey); err != nil {
		s.logger.Warn("failed to clear workflow runs", "error", err)
		return false
	}
	return true
}
