package async_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagesense/internal/pkg/async"
)

func TestPoolExecutesAllTasks(t *testing.T) {
	var ran atomic.Int64
	failure := errors.New("task failed")

	var tasks []async.Task
	for i := 0; i < 10; i++ {
		i := i
		tasks = append(tasks, async.Task{
			Name: fmt.Sprintf("task-%d", i),
			Execute: func() error {
				ran.Add(1)
				if i == 3 {
					return failure
				}
				return nil
			},
		})
	}

	results := async.NewPool(4).Execute(context.Background(), tasks)

	require.Len(t, results, 10)
	assert.EqualValues(t, 10, ran.Load())
	assert.ErrorIs(t, results["task-3"].Err, failure)
	assert.NoError(t, results["task-0"].Err)
}

func TestPoolReturnsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	release := make(chan struct{})

	tasks := []async.Task{
		{Name: "blocked", Execute: func() error {
			close(started)
			<-release
			return nil
		}},
		{Name: "queued", Execute: func() error { return nil }},
	}

	done := make(chan map[string]async.Result, 1)
	go func() { done <- async.NewPool(1).Execute(ctx, tasks) }()

	<-started
	cancel()
	// The worker finishes its task after the collector has gone away; it
	// must drop the result and exit rather than block on the send.
	close(release)

	select {
	case results := <-done:
		assert.LessOrEqual(t, len(results), len(tasks))
	case <-time.After(2 * time.Second):
		t.Fatal("Execute did not return after cancellation")
	}
}
