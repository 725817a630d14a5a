package review

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/extractor"
	"github.com/tildaslashalef/critiq/internal/language"
	"github.com/tildaslashalef/critiq/internal/llm"
	"github.com/tildaslashalef/critiq/internal/loggy"
)

// ErrFileTooLarge is returned for files above the configured size limit
var ErrFileTooLarge = errors.New("file too large to review")

// ParseFailureSummary is the summary of a failed review pass
const ParseFailureSummary = "failed to parse review results from AI response"

// Service runs files through the LLM and records the results
type Service struct {
	store     *Store
	client    llm.Client
	extractor *extractor.JSONExtractor
	detector  *language.Detector
	config    config.ReviewConfig
	logger    *loggy.Logger
	now       func() time.Time
}

// NewService creates a review service
func NewService(store *Store, client llm.Client, cfg config.ReviewConfig, logger *loggy.Logger) *Service {
	if logger == nil {
		logger = loggy.GetGlobalLogger()
	}
	return &Service{
		store:     store,
		client:    client,
		extractor: extractor.NewJSONExtractor(logger),
		detector:  language.NewDetector(logger),
		config:    cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// Store returns the result store the service writes to
func (s *Service) Store() *Store {
	return s.store
}

// ReviewFile reviews the file at path
func (s *Service) ReviewFile(ctx context.Context, path string) (*ReviewResult, error) {
	content, err := s.readFile(path)
	if err != nil {
		return nil, err
	}
	return s.review(ctx, path, content, ReReviewFeedback{})
}

// ReReviewFile reviews path again, telling the model which earlier findings
// were approved or rejected
func (s *Service) ReReviewFile(ctx context.Context, path string) (*ReviewResult, error) {
	content, err := s.readFile(path)
	if err != nil {
		return nil, err
	}
	feedback := s.store.GetViolationsForReReview(ctx, path)
	s.logger.Debug("re-review feedback",
		"file", path,
		"approved", len(feedback.Approved),
		"rejected", len(feedback.Rejected))
	return s.review(ctx, path, content, feedback)
}

// ReviewContent reviews content as if it were the file at path
func (s *Service) ReviewContent(ctx context.Context, path, content string) (*ReviewResult, error) {
	return s.review(ctx, path, content, ReReviewFeedback{})
}

// FileOutcome is the result of one file in ReviewFiles
type FileOutcome struct {
	Path   string
	Result *ReviewResult
	Err    error
}

// ReviewFiles reviews paths with at most concurrency requests in flight.
// Outcomes are returned in the order of paths.
func (s *Service) ReviewFiles(ctx context.Context, paths []string, concurrency int) []FileOutcome {
	if concurrency <= 0 {
		concurrency = 1
	}
	outcomes := make([]FileOutcome, len(paths))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, p := range paths {
		wg.Add(1)
		go func(i int, p string) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				outcomes[i] = FileOutcome{Path: p, Err: ctx.Err()}
				return
			}
			r, err := s.ReviewFile(ctx, p)
			if err != nil {
				s.logger.Warn("error reviewing file", "file", p, "error", err)
			}
			outcomes[i] = FileOutcome{Path: p, Result: r, Err: err}
		}(i, p)
	}
	wg.Wait()
	return outcomes
}

func (s *Service) readFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("accessing file: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", path)
	}
	if s.config.MaxFileBytes > 0 && info.Size() > s.config.MaxFileBytes {
		return "", fmt.Errorf("%w: %s is %d bytes (limit %d)", ErrFileTooLarge, path, info.Size(), s.config.MaxFileBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading file: %w", err)
	}
	return string(data), nil
}

func (s *Service) review(ctx context.Context, path, content string, feedback ReReviewFeedback) (*ReviewResult, error) {
	lang := s.detector.Detect(path, []byte(content))
	messages, err := BuildMessages(PromptInput{
		Path:     path,
		Language: lang,
		Content:  content,
		Feedback: feedback,
	})
	if err != nil {
		return nil, fmt.Errorf("building review prompt: %w", err)
	}

	logger := s.logger.With("file", path, "language", lang)
	logger.Info("requesting review")

	resp, err := llm.Complete(ctx, s.client, llm.ChatRequest{Messages: messages, JSONOutput: true})
	if err != nil {
		return nil, fmt.Errorf("generating review: %w", err)
	}

	result := NewResult(path, s.now())
	out, err := s.extractor.ExtractReview(resp.Content)
	if err != nil {
		logger.Warn("failed to extract review from response",
			"error", err,
			"model", resp.Model,
			"response_length", len(resp.Content))
		// Not saved: Save replaces by file and would drop the decisions
		// recorded on the previous result.
		result.Status = ResultFailed
		result.Summary = ParseFailureSummary
		return result, fmt.Errorf("%s: %w", ParseFailureSummary, err)
	}

	result.Violations = FromFindings(out.Violations)
	result.Summary = out.Summary
	if !s.store.Save(ctx, result) {
		logger.Warn("review result could not be saved", "id", result.ID)
	}
	logger.Info("review completed", "id", result.ID, "violations", len(result.Violations))
	return result, nil
}
