package dispatch

import (
	stdcontext "context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgriffin/udisp/internal/netsim"
	"github.com/kgriffin/udisp/internal/policy"
	"github.com/kgriffin/udisp/internal/preempt"
	"github.com/kgriffin/udisp/internal/slot"
	"github.com/kgriffin/udisp/internal/task"
	"github.com/kgriffin/udisp/internal/transmit"
	"github.com/kgriffin/udisp/internal/work"
)

func TestIngestClassifiesPacketsIntoClassQueues(t *testing.T) {
	src := netsim.NewSource(8)
	d := New(Config{NumWorkers: 1, NumClasses: 2, Policy: policy.FIFO{}, Source: src})

	src.Submit(netsim.Packet{Type: task.Get, Class: 1, Cookie: 5})
	progressed := d.ingest()
	assert.True(t, progressed)
	assert.Equal(t, 1, d.queues[1].Len())
	assert.Equal(t, 0, d.queues[0].Len())
}

func TestIngestFallsBackToClassZeroForOutOfRangeClass(t *testing.T) {
	src := netsim.NewSource(8)
	d := New(Config{NumWorkers: 1, NumClasses: 1, Policy: policy.FIFO{}, Source: src})
	src.Submit(netsim.Packet{Class: 99})
	d.ingest()
	assert.Equal(t, 1, d.queues[0].Len())
}

func TestIngestDropsUnregisteredTypeBeforeEnqueueing(t *testing.T) {
	src := netsim.NewSource(8)
	reg := work.NewRegistry()
	reg.Register(task.Get, nil)
	d := New(Config{NumWorkers: 1, NumClasses: 1, Policy: policy.FIFO{}, Source: src, Registry: reg})

	src.Submit(netsim.Packet{Type: task.Get, Class: 0, Cookie: 1})
	src.Submit(netsim.Packet{Type: task.Put, Class: 0, Cookie: 2})
	d.ingest()

	require.Equal(t, 1, d.queues[0].Len())
	head, ok := d.queues[0].Dequeue()
	require.True(t, ok)
	assert.Equal(t, uint64(1), head.Cookie, "only the registered type's packet is enqueued")
}

func TestDrainCompletionsReclaimsDroppedWithoutForwardingToSender(t *testing.T) {
	sender := transmit.NewRecordingSender()
	d := New(Config{NumWorkers: 1, NumClasses: 1, Policy: policy.FIFO{}, Sender: sender})
	d.runningClass[0] = 0

	d.Pair(0).Response.PublishResponse(task.Task{Cookie: 42}, slot.Dropped)
	progressed := d.drainCompletions()

	require.True(t, progressed)
	assert.Empty(t, sender.Sent(), "a dropped packet must never produce a response datagram")
	assert.Equal(t, -1, d.runningClass[0])
}

func TestRunStopsAfterConfiguredPacketCount(t *testing.T) {
	src := netsim.NewSource(32)
	for i := 0; i < 10; i++ {
		src.Submit(netsim.Packet{Type: task.Get, Class: 0, Cookie: uint64(i)})
	}
	d := New(Config{
		NumWorkers:       1,
		NumClasses:       1,
		Policy:           policy.FIFO{},
		Source:           src,
		IdlePoll:         time.Millisecond,
		StopAfterPackets: 10,
	})

	err := d.Run(stdcontext.Background())
	require.Error(t, err)
	assert.True(t, d.finished)
	assert.Equal(t, uint64(10), d.packetsIngested)
}

func TestAssignFillsIdleWorkerFromHeadOfSelectedClass(t *testing.T) {
	d := New(Config{NumWorkers: 1, NumClasses: 1, Policy: policy.FIFO{}})
	d.queues[0].EnqueueTail(task.Task{Cookie: 1, Class: 0})

	assigned := d.assign()
	assert.True(t, assigned)
	assert.Equal(t, 0, d.runningClass[0])
	assert.False(t, d.Pair(0).Request.IsWaiting())
}

func TestAssignSkipsBusyWorker(t *testing.T) {
	d := New(Config{NumWorkers: 1, NumClasses: 1, Policy: policy.FIFO{}})
	d.queues[0].EnqueueTail(task.Task{Cookie: 1})
	d.queues[0].EnqueueTail(task.Task{Cookie: 2})
	d.assign()
	assigned := d.assign()
	assert.False(t, assigned, "a worker already running must not receive a second task")
	assert.Equal(t, 1, d.queues[0].Len())
}

func TestDrainCompletionsForwardsFinishedToSender(t *testing.T) {
	sender := transmit.NewRecordingSender()
	d := New(Config{NumWorkers: 1, NumClasses: 1, Policy: policy.FIFO{}, Sender: sender})
	d.runningClass[0] = 0

	d.Pair(0).Response.PublishResponse(task.Task{Cookie: 42, Payload: []byte("x")}, slot.Finished)
	progressed := d.drainCompletions()

	require.True(t, progressed)
	sent := sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, uint64(42), sent[0].Cookie)
	assert.Equal(t, -1, d.runningClass[0])
}

func TestDrainCompletionsReenqueuesPreemptedAtHead(t *testing.T) {
	d := New(Config{NumWorkers: 1, NumClasses: 1, Policy: policy.FIFO{}})
	d.runningClass[0] = 0
	d.queues[0].EnqueueTail(task.Task{Cookie: 2, Timestamp: 20})

	d.Pair(0).Response.PublishResponse(task.Task{Cookie: 1, Timestamp: 10}, slot.Preempted)
	d.drainCompletions()

	require.Equal(t, 2, d.queues[0].Len())
	head, ok := d.queues[0].Dequeue()
	require.True(t, ok)
	assert.Equal(t, uint64(1), head.Cookie, "the preempted continuation must be retried before the younger arrival")
}

func TestCheckBudgetsFiresPreemptForOverrunWorker(t *testing.T) {
	d := New(Config{
		NumWorkers:    1,
		NumClasses:    1,
		Policy:        policy.FIFO{},
		PreemptMode:   preempt.Cooperative,
		DefaultBudget: time.Nanosecond,
	})
	d.runningClass[0] = 0
	d.runningSince[0] = time.Now().Add(-time.Second).UnixNano()

	d.checkBudgets()
	assert.True(t, d.PreemptChannel(0).Armed())
}

func TestCheckBudgetsLeavesIdleWorkersAlone(t *testing.T) {
	d := New(Config{NumWorkers: 1, NumClasses: 1, Policy: policy.FIFO{}, PreemptMode: preempt.Cooperative})
	d.checkBudgets()
	assert.False(t, d.PreemptChannel(0).Armed())
}

func TestRunRespectsContextCancellation(t *testing.T) {
	d := New(Config{NumWorkers: 1, NumClasses: 1, Policy: policy.FIFO{}, IdlePoll: time.Millisecond})
	cctx, cancel := stdcontext.WithTimeout(stdcontext.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.Run(cctx)
	assert.ErrorIs(t, err, stdcontext.DeadlineExceeded)
}
