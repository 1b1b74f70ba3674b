package taskq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgriffin/udisp/internal/task"
)

func TestEnqueueTailPreservesArrivalOrder(t *testing.T) {
	q := New()
	q.EnqueueTail(task.Task{Timestamp: 1, Type: task.Get})
	q.EnqueueTail(task.Task{Timestamp: 2, Type: task.Put})
	q.EnqueueTail(task.Task{Timestamp: 3, Type: task.Scan})

	require.Equal(t, 3, q.Len())

	first, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, int64(1), first.Timestamp)

	second, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, int64(2), second.Timestamp)
}

func TestEnqueueHeadReinsertsBeforeYoungerArrivals(t *testing.T) {
	q := New()
	q.EnqueueTail(task.Task{Timestamp: 10})
	q.EnqueueHead(task.Task{Timestamp: 5}) // preempted task, older intent

	ts, ok := q.PeekHeadTimestamp()
	require.True(t, ok)
	assert.Equal(t, int64(5), ts, "reinserted task must be retried before the newer arrival")

	first, _ := q.Dequeue()
	assert.Equal(t, int64(5), first.Timestamp)
	second, _ := q.Dequeue()
	assert.Equal(t, int64(10), second.Timestamp)
	assert.True(t, q.Empty())
}

func TestDequeueEmpty(t *testing.T) {
	q := New()
	_, ok := q.Dequeue()
	assert.False(t, ok)
	_, ok = q.PeekHeadTimestamp()
	assert.False(t, ok)
}

func TestHeadReinsertionDoesNotDropTailPointer(t *testing.T) {
	q := New()
	q.EnqueueHead(task.Task{Timestamp: 1})
	q.EnqueueTail(task.Task{Timestamp: 2})
	require.Equal(t, 2, q.Len())

	first, _ := q.Dequeue()
	assert.Equal(t, int64(1), first.Timestamp)
	second, _ := q.Dequeue()
	assert.Equal(t, int64(2), second.Timestamp)
}
