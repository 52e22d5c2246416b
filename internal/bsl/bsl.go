// Package bsl implements the STM8 ROM bootloader's UART reply-mode
// protocol: sync, read, mem_check, mass_erase, write, and jump, each a
// synchronous, ACK/NACK-framed, XOR-checksummed exchange over a Transport.
package bsl

import (
	"time"

	"stm8flash/internal/bslerr"
)

const (
	cmdRead  = 0x11
	cmdErase = 0x43
	cmdWrite = 0x31
	cmdGo    = 0x21

	syncByte = 0x7F
	ack      = 0x79
	nack     = 0x1F
	busy     = 0xAA // defined, observed, never acted upon — see the original design notes

	readSliceMax  = 256
	writeSliceMax = 128

	syncAttempts = 15
	syncDelay    = 10 * time.Millisecond
)

// Transport is the half-duplex byte channel a Client drives. serial.Port
// satisfies it; tests substitute a scripted fake.
type Transport interface {
	Send(data []byte) (int, error)
	Receive(out []byte) (int, error)
}

// ProgressFunc, if set on a Client, is invoked after each read/write slice
// with the running byte count and the operation's total.
type ProgressFunc func(written, total int)

// Client drives the BSL protocol. It is stateless across calls; the device
// implicitly transitions UNSYNCED -> SYNCED after a successful Sync, and a
// failed Sync is terminal for the session.
type Client struct {
	t Transport

	// SkipZeroSlices elides any all-zero 128-byte write slice entirely,
	// matching upstream images that already fill unwritten gaps with 0x00.
	// Default true for backwards compatibility with the original tool;
	// make this false when erased flash's actual reset value must be
	// written explicitly.
	SkipZeroSlices bool

	Progress ProgressFunc
}

// NewClient wraps t with default options (SkipZeroSlices enabled).
func NewClient(t Transport) *Client {
	return &Client{t: t, SkipZeroSlices: true}
}

func xor(bs ...byte) byte {
	var v byte
	for _, b := range bs {
		v ^= b
	}
	return v
}

// sendCommand emits a 2-byte [cmd, cmd^0xFF] frame and expects a single ACK.
func (c *Client) sendCommand(step string, cmd byte) error {
	if _, err := c.t.Send([]byte{cmd, cmd ^ 0xFF}); err != nil {
		return &bslerr.ProtocolError{Detail: step + ": send command: " + err.Error()}
	}
	reply := make([]byte, 1)
	n, err := c.t.Receive(reply)
	if err != nil {
		return &bslerr.ProtocolError{Detail: step + ": receive: " + err.Error()}
	}
	if n != 1 {
		return &bslerr.ProtocolError{Detail: step + ": no reply"}
	}
	if reply[0] != ack {
		return &bslerr.UnexpectedReply{Step: step, Byte: reply[0]}
	}
	return nil
}

// addrFrame encodes addr as 4 big-endian bytes plus its XOR checksum,
// regardless of the device's actual address width — the device ignores
// leading zero bytes.
func addrFrame(addr uint32) [5]byte {
	b0 := byte(addr >> 24)
	b1 := byte(addr >> 16)
	b2 := byte(addr >> 8)
	b3 := byte(addr)
	return [5]byte{b0, b1, b2, b3, xor(b0, b1, b2, b3)}
}

// sendAddress emits the address frame and returns the single reply byte;
// each caller decides whether it is acceptable (MemCheck tolerates a NACK).
func (c *Client) sendAddress(step string, addr uint32) (byte, error) {
	frame := addrFrame(addr)
	if _, err := c.t.Send(frame[:]); err != nil {
		return 0, &bslerr.ProtocolError{Detail: step + ": send address: " + err.Error()}
	}
	reply := make([]byte, 1)
	n, err := c.t.Receive(reply)
	if err != nil {
		return 0, &bslerr.ProtocolError{Detail: step + ": receive: " + err.Error()}
	}
	if n != 1 {
		return 0, &bslerr.ProtocolError{Detail: step + ": no reply to address"}
	}
	return reply[0], nil
}

// Sync sends the synchronisation byte and retries until ACK or NACK, up to
// syncAttempts times with a syncDelay pause between attempts. NACK means
// "already synchronised" and is success, same as ACK. Only an empty reply
// is retried: any other reply byte aborts at once with UnexpectedReply.
func (c *Client) Sync() error {
	reply := make([]byte, 1)
	for attempt := 0; attempt < syncAttempts; attempt++ {
		if _, err := c.t.Send([]byte{syncByte}); err != nil {
			return &bslerr.ProtocolError{Detail: "sync: send: " + err.Error()}
		}
		n, _ := c.t.Receive(reply)
		if n == 1 && (reply[0] == ack || reply[0] == nack) {
			return nil
		}
		if n == 1 && reply[0] != ack && reply[0] != nack {
			return &bslerr.UnexpectedReply{Step: "sync", Byte: reply[0]}
		}
		time.Sleep(syncDelay)
	}
	return &bslerr.SyncTimeout{Attempts: syncAttempts}
}

func sliceBounds(total, max int) []int {
	if total == 0 {
		return nil
	}
	var bounds []int
	for off := 0; off < total; off += max {
		n := max
		if off+n > total {
			n = total - off
		}
		bounds = append(bounds, n)
	}
	return bounds
}

func (c *Client) reportProgress(done, total int) {
	if c.Progress != nil {
		c.Progress(done, total)
	}
}
