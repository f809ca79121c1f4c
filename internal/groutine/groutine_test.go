package groutine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGo_NameVisibleInContext(t *testing.T) {
	names := make(chan string, 1)
	w := Go(context.Background(), "worker-42", func(ctx context.Context) {
		names <- GetName(ctx)
	})

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("worker did not finish")
	}
	assert.Equal(t, "worker-42", <-names)
	assert.Equal(t, "worker-42", w.Name())
}

func TestWorker_StopCancelsContext(t *testing.T) {
	started := make(chan struct{})
	w := Go(nil, "blocking", func(ctx context.Context) { //nolint:staticcheck // nil parent is supported
		close(started)
		<-ctx.Done()
	})
	<-started

	w.Stop()
	w.Stop()

	select {
	case <-w.Done():
	default:
		require.Fail(t, "Stop MUST wait for the goroutine to return")
	}
}

func TestWorker_ParentCancel(t *testing.T) {
	parent, cancel := context.WithCancel(context.Background())
	w := Go(parent, "child", func(ctx context.Context) { <-ctx.Done() })
	cancel()

	select {
	case <-w.Done():
	case <-time.After(time.Second):
		t.Fatal("parent cancellation MUST stop the worker")
	}
}

func TestGetName_Empty(t *testing.T) {
	assert.Empty(t, GetName(context.Background()))
	assert.Empty(t, GetName(nil)) //nolint:staticcheck // nil context is tolerated
}
