package work

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kgriffin/udisp/internal/ctxpool"
	"github.com/kgriffin/udisp/internal/task"
)

type noopYielder struct{}

func (noopYielder) Checkpoint(shouldYield func() bool) {}

func TestRegistryLookupMissReportsFalse(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup(task.Get)
	assert.False(t, ok)
}

func TestRegistryRegisterThenLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(task.Put, func(y ctxpool.Yielder, t task.Task) ([]byte, error) {
		return []byte("ok"), nil
	})
	fn, ok := r.Lookup(task.Put)
	require.True(t, ok)
	out, err := fn(noopYielder{}, task.Task{})
	require.NoError(t, err)
	assert.Equal(t, []byte("ok"), out)
}

func TestDefaultRegistryBindsAllFiveCanonicalTypes(t *testing.T) {
	r := NewDefaultRegistry(func() bool { return false })
	for _, typ := range []task.Type{task.Get, task.Scan, task.Put, task.Delete, task.Seek} {
		_, ok := r.Lookup(typ)
		assert.True(t, ok, "expected default registry to bind %s", typ)
	}
}

func TestDefaultGetEchoesPayload(t *testing.T) {
	r := NewDefaultRegistry(func() bool { return false })
	fn, _ := r.Lookup(task.Get)
	out, err := fn(noopYielder{}, task.Task{Payload: []byte("value")})
	require.NoError(t, err)
	assert.Equal(t, []byte("value"), out)
}

func TestErrUnregisteredMessageNamesType(t *testing.T) {
	err := &ErrUnregistered{Type: task.Seek}
	assert.Contains(t, err.Error(), "SEEK")
}
