package transmit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordingSenderPreservesOrder(t *testing.T) {
	s := NewRecordingSender()
	require.NoError(t, s.Send(Response{Cookie: 1}))
	require.NoError(t, s.Send(Response{Cookie: 2}))

	sent := s.Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, uint64(1), sent[0].Cookie)
	assert.Equal(t, uint64(2), sent[1].Cookie)
}

func TestRecordingSenderSentReturnsCopy(t *testing.T) {
	s := NewRecordingSender()
	require.NoError(t, s.Send(Response{Cookie: 1}))
	sent := s.Sent()
	sent[0].Cookie = 99
	assert.Equal(t, uint64(1), s.Sent()[0].Cookie)
}

func TestUDPSenderAlwaysFails(t *testing.T) {
	s := &UDPSender{Addr: "127.0.0.1:9999"}
	err := s.Send(Response{})
	assert.Error(t, err)
}
