package slot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgriffin/udisp/internal/task"
)

type fakeRunnable struct{ id uint64 }

func (f fakeRunnable) ID() uint64 { return f.id }

func TestRequestPublishObserveRoundTrip(t *testing.T) {
	var r Request
	require.True(t, r.IsWaiting())

	in := task.Task{
		Payload:   []byte("abc"),
		Type:      task.Put,
		Category:  task.Packet,
		Class:     2,
		Timestamp: 42,
		Cookie:    7,
	}
	r.PublishRequest(in)
	require.False(t, r.IsWaiting())

	out, err := r.ObserveRequest(0)
	require.NoError(t, err)
	assert.Equal(t, in.Payload, out.Payload)
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, in.Class, out.Class)
	assert.Equal(t, in.Timestamp, out.Timestamp)
	assert.Equal(t, in.Cookie, out.Cookie)

	// Slot must alternate back to Waiting so the dispatcher can reuse it.
	assert.True(t, r.IsWaiting())
}

func TestResponseStartsProcessed(t *testing.T) {
	resp := NewResponse()
	_, _, ok, err := resp.ReclaimResponse(0)
	require.NoError(t, err)
	assert.False(t, ok, "a fresh response slot has nothing to reclaim")
}

func TestResponsePublishFinishedThenReclaim(t *testing.T) {
	resp := NewResponse()
	rn := fakeRunnable{id: 99}
	resp.PublishResponse(task.Task{Runnable: rn, Cookie: 5, Class: 1}, Finished)

	out, flag, ok, err := resp.ReclaimResponse(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Finished, flag)
	assert.Equal(t, task.Context, out.Category)
	assert.Equal(t, uint64(5), out.Cookie)

	// Reclaiming resets to Processed; a second reclaim finds nothing.
	_, _, ok, err = resp.ReclaimResponse(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestResponsePublishPreemptedCarriesContinuation(t *testing.T) {
	resp := NewResponse()
	rn := fakeRunnable{id: 3}
	resp.PublishResponse(task.Task{Runnable: rn}, Preempted)

	out, flag, ok, err := resp.ReclaimResponse(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Preempted, flag)
	assert.Equal(t, rn, out.Runnable)
}

func TestResponsePublishDroppedIsReclaimable(t *testing.T) {
	resp := NewResponse()
	resp.PublishResponse(task.Task{Cookie: 9}, Dropped)

	_, flag, ok, err := resp.ReclaimResponse(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Dropped, flag)
}

func TestResponsePublishRejectsNonTerminalFlag(t *testing.T) {
	resp := NewResponse()
	assert.Panics(t, func() {
		resp.PublishResponse(task.Task{}, Running)
	})
}

func TestResponseMarkRunningIsNotReclaimable(t *testing.T) {
	resp := NewResponse()
	resp.MarkRunning()
	_, flag, ok, err := resp.ReclaimResponse(0)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, Running, flag)
}

func TestNewPairInitialState(t *testing.T) {
	p := NewPair()
	assert.True(t, p.Request.IsWaiting())
	_, _, ok, err := p.Response.ReclaimResponse(0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFlagStringers(t *testing.T) {
	assert.Equal(t, "WAITING", Waiting.String())
	assert.Equal(t, "ACTIVE", Active.String())
	assert.Equal(t, "RUNNING", Running.String())
	assert.Equal(t, "FINISHED", Finished.String())
	assert.Equal(t, "PREEMPTED", Preempted.String())
	assert.Equal(t, "PROCESSED", Processed.String())
	assert.Equal(t, "DROPPED", Dropped.String())
}
