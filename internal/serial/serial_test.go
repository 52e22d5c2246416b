package serial

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stm8flash/internal/termio"
)

func openPTYPorts(t *testing.T, replyMode bool) (local, remote *Port) {
	t.Helper()
	cfg := termio.Config{Baud: 115200, TimeoutMS: 200, DataBits: 8, StopBits: 1}
	master, slave, err := termio.OpenPTY(cfg)
	if err != nil {
		t.Skipf("pty unavailable in this environment: %v", err)
	}
	opts := DefaultOptions()
	opts.ReplyMode = replyMode
	return &Port{dev: master, opts: opts}, &Port{dev: slave, opts: opts}
}

func TestReceive_ReplyModeEchoesEveryByte(t *testing.T) {
	local, remote := openPTYPorts(t, true)
	defer local.Close()
	defer remote.Close()

	payload := []byte{0x79}
	go func() { _, _ = remote.dev.Write(payload) }()

	out := make([]byte, 1)
	n, err := local.Receive(out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, payload, out)

	echoBack := make([]byte, 1)
	m, _ := remote.dev.Read(echoBack)
	assert.Equal(t, 1, m)
	assert.Equal(t, payload[0], echoBack[0])
}

func TestSend_PurgesBeforeWrite(t *testing.T) {
	local, remote := openPTYPorts(t, false)
	defer local.Close()
	defer remote.Close()

	// Prime the RX buffer with stale bytes that Send must purge before
	// writing, so they never reach a subsequent Receive.
	_, _ = remote.dev.Write([]byte{0xAA, 0xBB})
	n, err := local.Send([]byte{0x7F})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	stale := make([]byte, 2)
	got, err := local.Receive(stale)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}
