// Package serial is the byte-level transport the BSL protocol client drives.
// It wraps internal/termio with the half-duplex reply-mode echo that STM8
// UART mode 2 requires: every byte read back from the device is written
// back to it before the next read, mirroring the single-wire turnaround.
package serial

import (
	"time"

	"stm8flash/internal/termio"
)

// Options configures a Port at Open time and can be re-applied with
// SetBaud/SetTimeout afterwards.
type Options struct {
	Baud        int
	TimeoutMS   int
	DataBits    int
	Parity      termio.Parity
	StopBits    int
	RTS         bool
	DTR         bool
	FlowControl bool

	// ReplyMode, when true, makes Receive echo every byte it reads back to
	// the device via Send. This is a property of the transport/device
	// pairing (STM8 UART mode 2), not of the BSL protocol itself — tests
	// against a plain full-duplex loopback set this false.
	ReplyMode bool
}

func DefaultOptions() Options {
	return Options{
		Baud:      9600,
		TimeoutMS: 1000,
		DataBits:  8,
		Parity:    termio.ParityNone,
		StopBits:  1,
		ReplyMode: true,
	}
}

// Port is an opened serial device plus its reply-mode behavior. Exactly one
// logical owner; not safe for concurrent use.
type Port struct {
	dev  *termio.Device
	opts Options
}

// Open opens the named device exclusively and configures it per opts.
func Open(name string, opts Options) (*Port, error) {
	dev, err := termio.Open(name, termio.Config{
		Baud:        opts.Baud,
		TimeoutMS:   opts.TimeoutMS,
		DataBits:    opts.DataBits,
		Parity:      opts.Parity,
		StopBits:    opts.StopBits,
		RTS:         opts.RTS,
		DTR:         opts.DTR,
		FlowControl: opts.FlowControl,
	})
	if err != nil {
		return nil, err
	}
	return &Port{dev: dev, opts: opts}, nil
}

// Close releases the underlying device; idempotent on an already-closed Port.
func (p *Port) Close() error {
	return p.dev.Close()
}

// SetBaud reconfigures the line speed in place.
func (p *Port) SetBaud(baud int) error {
	p.opts.Baud = baud
	return p.dev.SetBaud(baud)
}

// SetTimeout reconfigures the total read timeout.
func (p *Port) SetTimeout(ms int) {
	p.opts.TimeoutMS = ms
	p.dev.SetTimeout(time.Duration(ms) * time.Millisecond)
}

// Flush discards all pending RX and TX bytes.
func (p *Port) Flush() error {
	return p.dev.Flush()
}

// Send purges RX and TX before writing — load-bearing under reply mode,
// where stale echoes from a prior exchange would otherwise contaminate the
// next read.
func (p *Port) Send(data []byte) (int, error) {
	if err := p.dev.Flush(); err != nil {
		return 0, err
	}
	return p.dev.Write(data)
}

// Receive reads up to len(out) bytes, bounded by the configured timeout,
// stopping early on timeout. In reply mode, each byte read is echoed back to
// the device via a single-byte Write before the next read — this must
// happen after the byte is read and before the next Receive call so the
// device's turnaround timing lines up.
func (p *Port) Receive(out []byte) (int, error) {
	got := 0
	buf := make([]byte, 1)
	for got < len(out) {
		n, _ := p.dev.Read(buf)
		if n == 0 {
			return got, nil
		}
		out[got] = buf[0]
		got++
		if p.opts.ReplyMode {
			if _, werr := p.dev.Write(buf[:1]); werr != nil {
				return got, werr
			}
		}
	}
	return got, nil
}
