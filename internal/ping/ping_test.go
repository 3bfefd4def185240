package ping

import (
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(t *testing.T, addr net.Addr, msg string) []byte {
	t.Helper()
	conn, err := net.Dial("udp", addr.String())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte(msg))
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	return buf[:n]
}

func TestHandlerAnswersProbes(t *testing.T) {
	h := NewHandler("127.0.0.1:0", ServerInfo{Name: "preview", MaxClients: 8, Port: 32890, Version: "0.1.0"}, nil)
	require.NoError(t, h.Start())
	defer h.Stop()

	assert.Equal(t, Reply, string(probe(t, h.Addr(), ProbePing)))

	h.UpdateClients(3)
	var info ServerInfo
	require.NoError(t, json.Unmarshal(probe(t, h.Addr(), ProbeLAN), &info))
	assert.Equal(t, "preview", info.Name)
	assert.Equal(t, 3, info.Clients)
	assert.Equal(t, 8, info.MaxClients)
	assert.Equal(t, 32890, info.Port)
}

func TestHandlerStopIsIdempotent(t *testing.T) {
	h := NewHandler("127.0.0.1:0", ServerInfo{}, nil)
	require.NoError(t, h.Start())
	h.Stop()
	h.Stop()
}
