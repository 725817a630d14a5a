package review

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/critiq/internal/loggy"
	"github.com/tildaslashalef/critiq/internal/storage"
)

var errDisk = errors.New("disk full")

// failingBackend wraps a backend and fails the selected operations
type failingBackend struct {
	storage.Backend
	failRead, failWrite, failDelete bool
}

func (b *failingBackend) ReadText(ctx context.Context, key string) (string, error) {
	if b.failRead {
		return "", errDisk
	}
	return b.Backend.ReadText(ctx, key)
}

func (b *failingBackend) WriteText(ctx context.Context, key, text string) error {
	if b.failWrite {
		return errDisk
	}
	return b.Backend.WriteText(ctx, key, text)
}

func (b *failingBackend) Delete(ctx context.Context, key string) error {
	if b.failDelete {
		return errDisk
	}
	return b.Backend.Delete(ctx, key)
}

var testNow = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow }), WithLogger(loggy.NewNoopLogger())}, opts...)
	return NewStore(storage.NewMemoryBackend(), opts...)
}

func sampleResult(file string, violations ...Violation) *ReviewResult {
	r := NewResult(file, testNow)
	if violations != nil {
		r.Violations = violations
	}
	r.Summary = "summary of " + file
	return r
}

func pending(line int, msg string) Violation {
	return Violation{Line: line, Severity: SeverityMedium, Message: msg, Status: StatusPending}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := sampleResult("src/a.go", pending(3, "bad"), Violation{
		Line:         7,
		Severity:     SeverityHigh,
		Message:      "nil deref",
		OriginalCode: "x.y",
		Suggestion:   "if x != nil { x.y }",
		Status:       StatusPending,
	})
	require.True(t, s.Save(ctx, r))

	got := s.LoadByID(ctx, r.ID)
	require.NotNil(t, got)
	assert.Equal(t, *r, *got)

	assert.Nil(t, s.LoadByID(ctx, "rev-missing"))
	assert.Equal(t, r.ID, s.LoadByFile(ctx, "src/a.go").ID)
	assert.Nil(t, s.LoadByFile(ctx, "a.go"))
}

func TestStoreEmpty(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	all := s.LoadAll(ctx)
	assert.NotNil(t, all)
	assert.Empty(t, all)
	assert.False(t, s.Delete(ctx, "rev-nothing"))
}

func TestSaveReplacesByFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	first := sampleResult("src/a.go", pending(1, "first"))
	other := sampleResult("src/b.go")
	second := sampleResult("src/a.go", pending(2, "second"))
	require.NotEqual(t, first.ID, second.ID)

	require.True(t, s.Save(ctx, first))
	require.True(t, s.Save(ctx, other))
	require.True(t, s.Save(ctx, second))

	all := s.LoadAll(ctx)
	require.Len(t, all, 2)
	assert.Equal(t, other.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)
	assert.Nil(t, s.LoadByID(ctx, first.ID))

	// exact string equality only
	require.True(t, s.Save(ctx, sampleResult("./src/a.go")))
	assert.Len(t, s.LoadAll(ctx), 3)
}

func TestViolationOrderPreserved(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := sampleResult("main.go", pending(40, "c"), pending(2, "a"), pending(17, "b"))
	require.True(t, s.Save(ctx, r))

	all := s.LoadAll(ctx)
	require.Len(t, all, 1)
	var lines []int
	for _, v := range all[0].Violations {
		lines = append(lines, v.Line)
	}
	assert.Equal(t, []int{40, 2, 17}, lines)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := sampleResult("a.go")
	b := sampleResult("b.go")
	require.True(t, s.Save(ctx, a))
	require.True(t, s.Save(ctx, b))

	assert.True(t, s.Delete(ctx, a.ID))
	assert.False(t, s.Delete(ctx, a.ID))
	all := s.LoadAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, b.ID, all[0].ID)
}

func TestClearAllIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	assert.True(t, s.ClearAll(ctx))
	assert.Empty(t, s.LoadAll(ctx))

	require.True(t, s.Save(ctx, sampleResult("a.go")))
	assert.True(t, s.ClearAll(ctx))
	assert.True(t, s.ClearAll(ctx))
	assert.Empty(t, s.LoadAll(ctx))
}

func TestUpdateViolationStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := sampleResult("a.go", pending(1, "one"), pending(2, "two"))
	require.True(t, s.Save(ctx, r))

	require.NoError(t, s.UpdateViolationStatus(ctx, r.ID, 1, StatusApproved, "good catch"))
	once := s.LoadByID(ctx, r.ID)
	require.NotNil(t, once)

	require.NoError(t, s.UpdateViolationStatus(ctx, r.ID, 1, StatusApproved, "good catch"))
	twice := s.LoadByID(ctx, r.ID)
	assert.Equal(t, once, twice)

	assert.Equal(t, StatusPending, twice.Violations[0].Status)
	assert.Equal(t, StatusApproved, twice.Violations[1].Status)
	assert.Equal(t, "good catch", twice.Violations[1].ReviewNote)
	require.NotNil(t, twice.LastReviewTimestamp)
	assert.Equal(t, testNow.UnixMilli(), *twice.LastReviewTimestamp)
}

func TestUpdateViolationStatusNote(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := sampleResult("a.go", pending(1, "one"))
	require.True(t, s.Save(ctx, r))

	require.NoError(t, s.UpdateViolationStatus(ctx, r.ID, 0, StatusRejected, "false positive"))
	require.NoError(t, s.UpdateViolationStatus(ctx, r.ID, 0, StatusRejected, "still wrong"))
	got := s.LoadByID(ctx, r.ID)
	assert.Equal(t, "still wrong", got.Violations[0].ReviewNote)
	assert.Equal(t, StatusRejected, got.Violations[0].Status)
}

func TestUpdateViolationStatusErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	r := sampleResult("a.go", pending(1, "one"))
	require.True(t, s.Save(ctx, r))
	before := s.LoadAll(ctx)

	tests := []struct {
		name   string
		id     string
		index  int
		status ViolationStatus
		err    error
	}{
		{name: "unknown review", id: "rev-unknown", index: 0, status: StatusApproved, err: ErrReviewNotFound},
		{name: "index past end", id: r.ID, index: 1, status: StatusApproved, err: ErrIndexOutOfRange},
		{name: "negative index", id: r.ID, index: -1, status: StatusRejected, err: ErrIndexOutOfRange},
		{name: "pending is not a target", id: r.ID, index: 0, status: StatusPending, err: ErrInvalidStatus},
		{name: "unknown status", id: r.ID, index: 0, status: "maybe", err: ErrInvalidStatus},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := s.UpdateViolationStatus(ctx, tt.id, tt.index, tt.status, "")
			assert.ErrorIs(t, err, tt.err)
			assert.False(t, s.SetViolationStatus(ctx, tt.id, tt.index, tt.status, ""))
			assert.Equal(t, before, s.LoadAll(ctx))
		})
	}

	t.Run("decided violations keep their decision", func(t *testing.T) {
		require.True(t, s.SetViolationStatus(ctx, r.ID, 0, StatusApproved, ""))
		err := s.UpdateViolationStatus(ctx, r.ID, 0, StatusRejected, "")
		assert.ErrorIs(t, err, ErrInvalidStatus)
		assert.Equal(t, StatusApproved, s.LoadByID(ctx, r.ID).Violations[0].Status)
	})
}

func TestStoreSwallowsIOErrors(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{Backend: storage.NewMemoryBackend()}
	s := NewStore(backend, WithLogger(loggy.NewNoopLogger()))

	existing := sampleResult("a.go", pending(1, "one"))
	require.True(t, s.Save(ctx, existing))

	backend.failWrite = true
	assert.False(t, s.Save(ctx, sampleResult("b.go")))
	assert.False(t, s.Delete(ctx, existing.ID))
	assert.False(t, s.SetViolationStatus(ctx, existing.ID, 0, StatusApproved, ""))

	backend.failWrite = false
	all := s.LoadAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, StatusPending, all[0].Violations[0].Status)

	backend.failRead = true
	assert.Empty(t, s.LoadAll(ctx))
	assert.Nil(t, s.LoadByID(ctx, existing.ID))
	assert.False(t, s.Save(ctx, sampleResult("c.go")))
	assert.Equal(t, ReReviewFeedback{Approved: []Violation{}, Rejected: []Violation{}}, s.GetViolationsForReReview(ctx, "a.go"))

	backend.failRead = false
	backend.failDelete = true
	assert.False(t, s.ClearAll(ctx))
	assert.Len(t, s.LoadAll(ctx), 1)
}

func TestStoreCorruptDocument(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	require.NoError(t, backend.WriteText(ctx, ResultsKey, "{not json"))
	s := NewStore(backend, WithLogger(loggy.NewNoopLogger()))

	assert.Empty(t, s.LoadAll(ctx))
	assert.False(t, s.Save(ctx, sampleResult("a.go")))

	text, err := backend.ReadText(ctx, ResultsKey)
	require.NoError(t, err)
	assert.Equal(t, "{not json", text)

	assert.True(t, s.ClearAll(ctx))
	assert.True(t, s.Save(ctx, sampleResult("a.go")))
}

func TestStoreDocumentFormat(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	s := NewStore(backend, WithLogger(loggy.NewNoopLogger()))

	r := sampleResult("a.go", pending(1, "one"))
	r.ID = "rev-01JPCZ4N3F0000000000000000"
	require.True(t, s.Save(ctx, r))

	text, err := backend.ReadText(ctx, ResultsKey)
	require.NoError(t, err)
	assert.Contains(t, text, "[\n  {\n    \"id\": \"rev-01JPCZ4N3F0000000000000000\",")
	assert.Contains(t, text, "\"status\": \"pending\"")
	assert.NotContains(t, text, "lastReviewTimestamp")
	assert.NotContains(t, text, "originalCode")
}

func TestGetViolationsForReReview(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	approved := Violation{Line: 3, Severity: SeverityHigh, Message: "sql injection", Status: StatusApproved, ReviewNote: "fix it"}
	rejected := Violation{Line: 9, Severity: SeverityLow, Message: "naming", Status: StatusRejected}
	require.True(t, s.Save(ctx, sampleResult(`C:\proj\src\a.ts`, approved, pending(5, "todo"), rejected)))
	require.True(t, s.Save(ctx, sampleResult("a.ts")))

	fb := s.GetViolationsForReReview(ctx, "src/a.ts")
	assert.Equal(t, []Violation{approved}, fb.Approved)
	assert.Equal(t, []Violation{rejected}, fb.Rejected)

	none := s.GetViolationsForReReview(ctx, "src/zzz.ts")
	assert.NotNil(t, none.Approved)
	assert.NotNil(t, none.Rejected)
	assert.True(t, none.Empty())
}

func TestConcurrentSavesKeepEveryFile(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	done := make(chan bool)
	for i := 0; i < 20; i++ {
		go func(i int) {
			done <- s.Save(ctx, sampleResult(string(rune('a'+i))+".go"))
		}(i)
	}
	for i := 0; i < 20; i++ {
		assert.True(t, <-done)
	}
	assert.Len(t, s.LoadAll(ctx), 20)
}
