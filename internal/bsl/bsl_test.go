package bsl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stm8flash/internal/bslerr"
)

// fakeTransport scripts a sequence of full-duplex exchanges: each call to
// Send appends to sent, and Receive pops bytes off a pre-loaded queue of
// replies (one slice per expected Receive call).
type fakeTransport struct {
	sent    [][]byte
	replies [][]byte
	calls   int
}

func (f *fakeTransport) Send(data []byte) (int, error) {
	cp := append([]byte(nil), data...)
	f.sent = append(f.sent, cp)
	return len(data), nil
}

func (f *fakeTransport) Receive(out []byte) (int, error) {
	if f.calls >= len(f.replies) {
		return 0, nil
	}
	reply := f.replies[f.calls]
	f.calls++
	n := copy(out, reply)
	return n, nil
}

func TestSync_FirstAttemptACK(t *testing.T) {
	ft := &fakeTransport{replies: [][]byte{{ack}}}
	c := NewClient(ft)
	require.NoError(t, c.Sync())
	assert.Len(t, ft.sent, 1)
	assert.Equal(t, []byte{syncByte}, ft.sent[0])
}

func TestSync_AlreadySynced_NACK(t *testing.T) {
	ft := &fakeTransport{replies: [][]byte{{nack}}}
	c := NewClient(ft)
	require.NoError(t, c.Sync())
}

func TestSync_Timeout(t *testing.T) {
	ft := &fakeTransport{} // never replies
	c := NewClient(ft)
	err := c.Sync()
	var st *bslerr.SyncTimeout
	require.ErrorAs(t, err, &st)
	assert.Equal(t, syncAttempts, st.Attempts)
	assert.Equal(t, syncAttempts, len(ft.sent))
}

func TestRead_SliceCorrectness(t *testing.T) {
	// read(0x8000, 300, out): two exchanges, N=256 then N=44.
	replies := [][]byte{
		{ack},                              // cmd ack
		{ack},                              // address ack
		append([]byte{ack}, make([]byte, 256)...), // data
		{ack},
		{ack},
		append([]byte{ack}, make([]byte, 44)...),
	}
	ft := &fakeTransport{replies: replies}
	c := NewClient(ft)
	out := make([]byte, 300)
	require.NoError(t, c.Read(0x8000, 300, out))

	// frame 1: [READ, ~READ]
	assert.Equal(t, []byte{cmdRead, cmdRead ^ 0xFF}, ft.sent[0])
	// frame 2: address 0x00008000 + xor
	assert.Equal(t, addrFrame(0x8000)[:], ft.sent[1])
	// frame 3: N-1=255
	assert.Equal(t, []byte{255, 255 ^ 0xFF}, ft.sent[2])

	assert.Equal(t, addrFrame(0x8100)[:], ft.sent[4])
	assert.Equal(t, []byte{43, 43 ^ 0xFF}, ft.sent[5])
}

func TestMemCheck_AddressNACK_ReturnsFalse(t *testing.T) {
	ft := &fakeTransport{replies: [][]byte{{ack}, {nack}}}
	c := NewClient(ft)
	ok, err := c.MemCheck(0x1234)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemCheck_Success(t *testing.T) {
	ft := &fakeTransport{replies: [][]byte{{ack}, {ack}, {ack, 0x42}}}
	c := NewClient(ft)
	ok, err := c.MemCheck(0x1234)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMassErase(t *testing.T) {
	ft := &fakeTransport{replies: [][]byte{{ack}, {ack}}}
	c := NewClient(ft)
	require.NoError(t, c.MassErase())
	assert.Equal(t, []byte{cmdErase, cmdErase ^ 0xFF}, ft.sent[0])
	assert.Equal(t, []byte{0xFF, 0x00}, ft.sent[1])
}

func TestWrite_SparseZeroSliceElision(t *testing.T) {
	data := make([]byte, 256) // first 128 all-zero, second 128 non-zero
	for i := 128; i < 256; i++ {
		data[i] = byte(i)
	}
	ft := &fakeTransport{replies: [][]byte{{ack}, {ack}, {ack}}}
	c := NewClient(ft)
	c.SkipZeroSlices = true
	require.NoError(t, c.Write(0x8000, data))

	// Only the second slice's exchange should appear: cmd, addr, payload.
	assert.Len(t, ft.sent, 3)
	assert.Equal(t, []byte{cmdWrite, cmdWrite ^ 0xFF}, ft.sent[0])
	assert.Equal(t, addrFrame(0x8080)[:], ft.sent[1])
}

func TestWrite_NoElisionWhenDisabled(t *testing.T) {
	data := make([]byte, 128)
	ft := &fakeTransport{replies: [][]byte{{ack}, {ack}, {ack}}}
	c := NewClient(ft)
	c.SkipZeroSlices = false
	require.NoError(t, c.Write(0x8000, data))
	assert.Len(t, ft.sent, 3)
}

func TestJump(t *testing.T) {
	ft := &fakeTransport{replies: [][]byte{{ack}, {ack}}}
	c := NewClient(ft)
	require.NoError(t, c.Jump(0x8000))
	assert.Equal(t, []byte{cmdGo, cmdGo ^ 0xFF}, ft.sent[0])
	assert.Equal(t, addrFrame(0x8000)[:], ft.sent[1])
}

func TestAddrFrame_BigEndianWithXOR(t *testing.T) {
	f := addrFrame(0x12345678)
	assert.Equal(t, [5]byte{0x12, 0x34, 0x56, 0x78, 0x12 ^ 0x34 ^ 0x56 ^ 0x78}, f)
}

func TestSliceBounds(t *testing.T) {
	assert.Equal(t, []int{256, 44}, sliceBounds(300, 256))
	assert.Equal(t, []int(nil), sliceBounds(0, 128))
	assert.Equal(t, []int{128, 128}, sliceBounds(256, 128))
}
