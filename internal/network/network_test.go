package network

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServerValidates(t *testing.T) {
	_, err := NewServer(0, 8, nil)
	assert.Error(t, err)

	_, err = NewServer(70000, 8, nil)
	assert.Error(t, err)

	_, err = NewServer(32890, 0, nil)
	assert.Error(t, err)

	s, err := NewServer(32890, 8, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, s.PeerCount())
}

func TestServerRequiresStart(t *testing.T) {
	s, err := NewServer(32890, 8, nil)
	require.NoError(t, err)

	_, err = s.Service(time.Millisecond)
	assert.Error(t, err)

	assert.Error(t, s.Broadcast([]byte{1}, true))
	assert.Error(t, s.SendPacket(nil, []byte{1}, true))

	// no-ops without a host or peer
	s.Stop()
	s.DisconnectPeerWithReason(nil, true, 0)
}
