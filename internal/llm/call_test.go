package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		// response cache janitors stop on finalization
		goleak.IgnoreAnyFunction("github.com/patrickmn/go-cache.(*janitor).Run"),
	)
}

func TestCallStreaming(t *testing.T) {
	m := new(mockClient)
	m.On("GenerateChatStream", mock.Anything, mock.Anything).Return(chunks(
		ChatResponse{Content: "Hel"},
		ChatResponse{Content: ""},
		ChatResponse{Content: "lo", Completed: true},
		ChatResponse{Content: "ignored"},
	), nil)

	var got []string
	text, err := CallStreaming(context.Background(), m, "p", func(s string) error {
		got = append(got, s)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
	assert.Equal(t, []string{"Hel", "lo"}, got)
}

func TestCallStreamingErrors(t *testing.T) {
	t.Run("request error", func(t *testing.T) {
		m := new(mockClient)
		m.On("GenerateChatStream", mock.Anything, mock.Anything).Return(nil, errors.New("refused"))
		_, err := CallStreaming(context.Background(), m, "p", nil)
		assert.EqualError(t, err, "refused")
	})

	t.Run("error chunk", func(t *testing.T) {
		m := new(mockClient)
		m.On("GenerateChatStream", mock.Anything, mock.Anything).Return(chunks(
			ChatResponse{Content: "part"},
			ChatResponse{Error: "overloaded"},
		), nil)
		text, err := CallStreaming(context.Background(), m, "p", nil)
		assert.EqualError(t, err, "overloaded")
		assert.Equal(t, "part", text)
	})

	t.Run("callback stops stream", func(t *testing.T) {
		stop := errors.New("stop")
		m := new(mockClient)
		m.On("GenerateChatStream", mock.Anything, mock.Anything).Return(chunks(
			ChatResponse{Content: "a"},
			ChatResponse{Content: "b"},
		), nil)
		calls := 0
		_, err := CallStreaming(context.Background(), m, "p", func(string) error {
			calls++
			return stop
		})
		assert.ErrorIs(t, err, stop)
		assert.Equal(t, 1, calls)
	})
}

// blockingStream emits one chunk and then waits for ctx, like a slow provider
func blockingStream(ctx context.Context) <-chan ChatResponse {
	out := make(chan ChatResponse)
	go func() {
		defer close(out)
		select {
		case out <- ChatResponse{Content: "first"}:
		case <-ctx.Done():
			return
		}
		<-ctx.Done()
	}()
	return out
}

func TestCallStreamingCancellation(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var text string
	var err error
	go func() {
		defer close(done)
		text, err = CallStreaming(ctx, slowClient{}, "p", func(string) error {
			cancel()
			return nil
		})
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("CallStreaming did not return after cancellation")
	}
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, "first", text)
}

// slowClient streams one chunk and then blocks until its context ends
type slowClient struct{}

func (slowClient) GenerateChat(context.Context, ChatRequest) (*ChatResponse, error) {
	return nil, errors.New("not supported")
}

func (slowClient) GenerateChatStream(ctx context.Context, _ ChatRequest) (<-chan ChatResponse, error) {
	return blockingStream(ctx), nil
}
