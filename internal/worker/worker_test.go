package worker

import (
	stdcontext "context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgriffin/udisp/internal/ctxpool"
	"github.com/kgriffin/udisp/internal/preempt"
	"github.com/kgriffin/udisp/internal/slot"
	"github.com/kgriffin/udisp/internal/task"
	"github.com/kgriffin/udisp/internal/work"
)

func newTestWorker() (*Worker, *slot.Pair) {
	pair := slot.NewPair()
	pc := preempt.New(preempt.None, nil)
	pool := ctxpool.NewPool(4)
	reg := work.NewRegistry()
	reg.Register(task.Put, func(y ctxpool.Yielder, t task.Task) ([]byte, error) {
		return []byte("put-ok"), nil
	})
	w := NewWorker(1, pair, pc, pool, reg, nil)
	return w, pair
}

func TestWorkerCompletesFreshPacketAndPublishesFinished(t *testing.T) {
	w, pair := newTestWorker()
	cctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	defer cancel()

	go func() { _ = w.Run(cctx) }()

	pair.Request.PublishRequest(task.Task{Type: task.Put, Cookie: 1, Category: task.Packet})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("response never reclaimed")
		default:
		}
		out, flag, ok, err := pair.Response.ReclaimResponse(1)
		require.NoError(t, err)
		if ok {
			assert.Equal(t, slot.Finished, flag)
			assert.Equal(t, []byte("put-ok"), out.Payload)
			return
		}
		time.Sleep(time.Millisecond)
	}
}

func TestWorkerUnregisteredTypeReturnsFatalError(t *testing.T) {
	// The dispatcher's classify step is expected to keep an unregistered
	// type from ever reaching a request slot; a worker that sees one
	// anyway treats it as a fatal protocol violation rather than
	// fabricating a completion for it.
	pair := slot.NewPair()
	pc := preempt.New(preempt.None, nil)
	pool := ctxpool.NewPool(4)
	reg := work.NewRegistry()
	w := NewWorker(2, pair, pc, pool, reg, nil)

	cctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Run(cctx) }()

	pair.Request.PublishRequest(task.Task{Type: task.Get, Cookie: 9, Category: task.Packet})

	select {
	case err := <-errCh:
		var unreg *work.ErrUnregistered
		require.ErrorAs(t, err, &unreg)
		assert.Equal(t, task.Get, unreg.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("Run never returned for an unregistered type")
	}
}

func TestWorkerDropsFreshPacketWhenPoolExhausted(t *testing.T) {
	pair := slot.NewPair()
	pc := preempt.New(preempt.None, nil)
	pool := ctxpool.NewPool(0) // zero capacity: every TryAcquire fails
	reg := work.NewRegistry()
	reg.Register(task.Put, func(y ctxpool.Yielder, t task.Task) ([]byte, error) {
		return []byte("put-ok"), nil
	})
	w := NewWorker(3, pair, pc, pool, reg, nil)

	cctx, cancel := stdcontext.WithCancel(stdcontext.Background())
	defer cancel()
	go func() { _ = w.Run(cctx) }()

	pair.Request.PublishRequest(task.Task{Type: task.Put, Cookie: 5, Category: task.Packet})

	deadline := time.After(2 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("response never reclaimed")
		default:
		}
		out, flag, ok, err := pair.Response.ReclaimResponse(3)
		require.NoError(t, err)
		if ok {
			assert.Equal(t, slot.Dropped, flag)
			assert.Equal(t, uint64(5), out.Cookie)
			return
		}
		time.Sleep(time.Millisecond)
	}
}
