package review

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/critiq/internal/config"
	"github.com/tildaslashalef/critiq/internal/extractor"
	"github.com/tildaslashalef/critiq/internal/llm"
	"github.com/tildaslashalef/critiq/internal/loggy"
)

// fakeLLM answers every request with reply and records the requests
type fakeLLM struct {
	reply    string
	err      error
	requests []llm.ChatRequest
}

func (f *fakeLLM) GenerateChat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{Content: f.reply, Model: "fake", Completed: true}, nil
}

func (f *fakeLLM) GenerateChatStream(context.Context, llm.ChatRequest) (<-chan llm.ChatResponse, error) {
	return nil, errors.New("not used")
}

func newTestService(t *testing.T, client llm.Client, cfg config.ReviewConfig) *Service {
	t.Helper()
	svc := NewService(newTestStore(t), client, cfg, loggy.NewNoopLogger())
	svc.now = func() time.Time { return testNow }
	return svc
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const goodReply = "Here is the review:\n```json\n" +
	`{violations: [{line: 3, severity: 'critical', message: 'bad', originalCode: 'x := 1', suggestion: 'x := 2'}, {line: 1, severity: 'nit', message: 'style'}], summary: 'ok'}` +
	"\n```\nSyntaxError: unexpected token"

func TestReviewFile(t *testing.T) {
	client := &fakeLLM{reply: goodReply}
	svc := newTestService(t, client, config.ReviewConfig{})
	path := writeFile(t, "main.go", "package main\n\nfunc main() {}\n")

	r, err := svc.ReviewFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, r.Status)
	assert.Equal(t, "ok", r.Summary)
	assert.Equal(t, path, r.File)
	assert.Equal(t, testNow.UnixMilli(), r.Timestamp)
	require.Len(t, r.Violations, 2)
	assert.Equal(t, Violation{Line: 3, Severity: SeverityHigh, Message: "bad", OriginalCode: "x := 1", Suggestion: "x := 2", Status: StatusPending}, r.Violations[0])
	assert.Equal(t, SeverityLow, r.Violations[1].Severity)

	stored := svc.Store().LoadByID(context.Background(), r.ID)
	require.NotNil(t, stored)
	assert.Equal(t, *r, *stored)

	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.True(t, req.JSONOutput)
	require.Len(t, req.Messages, 2)
	assert.Contains(t, req.Messages[0].Content, "analyzing Go code")
	assert.Contains(t, req.Messages[1].Content, "3 | func main() {}")
}

func TestReviewFileExtractionFailure(t *testing.T) {
	svc := newTestService(t, &fakeLLM{reply: "I cannot review this file."}, config.ReviewConfig{})
	path := writeFile(t, "main.go", "package main\n")

	r, err := svc.ReviewFile(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, extractor.ErrExtractionFailed)
	assert.Contains(t, err.Error(), ParseFailureSummary)

	require.NotNil(t, r)
	assert.Equal(t, ResultFailed, r.Status)
	assert.Equal(t, ParseFailureSummary, r.Summary)
	assert.Empty(t, r.Violations)

	assert.Empty(t, svc.Store().LoadAll(context.Background()))
}

func TestReReviewFailureKeepsDecisions(t *testing.T) {
	ctx := context.Background()
	client := &fakeLLM{reply: goodReply}
	svc := newTestService(t, client, config.ReviewConfig{})
	path := writeFile(t, "a.go", "package a\n")

	first, err := svc.ReviewFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, svc.Store().UpdateViolationStatus(ctx, first.ID, 0, StatusApproved, "real bug"))
	require.NoError(t, svc.Store().UpdateViolationStatus(ctx, first.ID, 1, StatusRejected, ""))

	client.reply = "Sorry, the file is too confusing to review."
	_, err = svc.ReReviewFile(ctx, path)
	require.ErrorIs(t, err, extractor.ErrExtractionFailed)

	stored := svc.Store().LoadByFile(ctx, path)
	require.NotNil(t, stored)
	assert.Equal(t, first.ID, stored.ID)
	assert.Equal(t, ResultCompleted, stored.Status)

	feedback := svc.Store().GetViolationsForReReview(ctx, path)
	assert.Len(t, feedback.Approved, 1)
	assert.Len(t, feedback.Rejected, 1)
}

func TestReviewFileBareJSONReply(t *testing.T) {
	reply := `{"violations":[{"line":1,"message":"a"},{"line":2,"message":"b"}],"summary":"two"}`
	svc := newTestService(t, &fakeLLM{reply: reply}, config.ReviewConfig{})
	path := writeFile(t, "main.go", "package main\n\nfunc main() {}\n")

	r, err := svc.ReviewFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, ResultCompleted, r.Status)
	assert.Equal(t, "two", r.Summary)
	require.Len(t, r.Violations, 2)
	assert.Equal(t, "a", r.Violations[0].Message)
	assert.Equal(t, 2, r.Violations[1].Line)
}

func TestReviewFileErrors(t *testing.T) {
	t.Run("llm error is returned and nothing is stored", func(t *testing.T) {
		svc := newTestService(t, &fakeLLM{err: errors.New("connection refused")}, config.ReviewConfig{})
		path := writeFile(t, "main.go", "package main\n")

		_, err := svc.ReviewFile(context.Background(), path)
		assert.ErrorContains(t, err, "connection refused")
		assert.Empty(t, svc.Store().LoadAll(context.Background()))
	})

	t.Run("missing file", func(t *testing.T) {
		svc := newTestService(t, &fakeLLM{reply: goodReply}, config.ReviewConfig{})
		_, err := svc.ReviewFile(context.Background(), filepath.Join(t.TempDir(), "nope.go"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("file too large", func(t *testing.T) {
		svc := newTestService(t, &fakeLLM{reply: goodReply}, config.ReviewConfig{MaxFileBytes: 4})
		path := writeFile(t, "main.go", "package main\n")
		_, err := svc.ReviewFile(context.Background(), path)
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})
}

func TestReReviewFileIncludesFeedback(t *testing.T) {
	ctx := context.Background()
	client := &fakeLLM{reply: goodReply}
	svc := newTestService(t, client, config.ReviewConfig{})
	path := writeFile(t, "a.go", "package a\n")

	first, err := svc.ReviewFile(ctx, path)
	require.NoError(t, err)
	require.NoError(t, svc.Store().UpdateViolationStatus(ctx, first.ID, 0, StatusApproved, "real bug"))
	require.NoError(t, svc.Store().UpdateViolationStatus(ctx, first.ID, 1, StatusRejected, ""))

	second, err := svc.ReReviewFile(ctx, path)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	require.Len(t, client.requests, 2)
	user := client.requests[1].Messages[1].Content
	assert.Contains(t, user, "- line 3 [high] bad (reviewer note: real bug)")
	assert.Contains(t, user, "- line 1 [low] style")

	// the re-review replaces the earlier result for the same file
	all := svc.Store().LoadAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, second.ID, all[0].ID)
}

func TestReviewFiles(t *testing.T) {
	svc := newTestService(t, &fakeLLM{reply: goodReply}, config.ReviewConfig{})
	dir := t.TempDir()
	var paths []string
	for _, name := range []string{"a.go", "b.go", "c.go"} {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte("package x\n"), 0o644))
		paths = append(paths, p)
	}
	paths = append(paths, filepath.Join(dir, "missing.go"))

	outcomes := svc.ReviewFiles(context.Background(), paths, 1)
	require.Len(t, outcomes, 4)
	for i, o := range outcomes[:3] {
		assert.Equal(t, paths[i], o.Path)
		assert.NoError(t, o.Err)
		assert.NotNil(t, o.Result)
	}
	assert.Error(t, outcomes[3].Err)
	assert.Len(t, svc.Store().LoadAll(context.Background()), 3)
}
