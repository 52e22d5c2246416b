// Package termio wraps the Linux termios2/ioctl surface needed to drive a
// tty as an STM8 BSL transport: open, raw-mode configuration, baud switch,
// RX/TX flush, and a timeout-bounded blocking read.
package termio

import (
	"fmt"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"github.com/daedaluz/fdev/poll"
	ioctl "github.com/daedaluz/goioctl"
)

var ErrClosed = fmt.Errorf("termio: device already closed")

// Parity selects the line's parity scheme.
type Parity int

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// Config is the full set of line parameters the BSL transport needs at
// open time; it mirrors spec's open(port_name, baud, timeout_ms, bits,
// parity, stop, rts, dtr).
type Config struct {
	Baud        int
	TimeoutMS   int
	DataBits    int // 5..8
	Parity      Parity
	StopBits    int // 1 or 2
	RTS         bool
	DTR         bool
	FlowControl bool // CRTSCTS hardware flow control
}

type Device struct {
	fd      int
	closed  atomic.Bool
	timeout time.Duration
}

// Open opens name exclusively for read/write and applies cfg as a raw tty.
func Open(name string, cfg Config) (*Device, error) {
	fd, err := syscall.Open(name, syscall.O_RDWR|syscall.O_NOCTTY, 0)
	if err != nil {
		return nil, err
	}
	if err := ioctl.Ioctl(uintptr(fd), uintptr(syscall.TIOCEXCL), 0); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	d := &Device{fd: fd}
	if err := d.apply(cfg); err != nil {
		syscall.Close(fd)
		return nil, err
	}
	return d, nil
}

func (d *Device) apply(cfg Config) error {
	attrs := &Termios2{}
	if err := ioctl.Ioctl(uintptr(d.fd), tcgets2, uintptr(unsafe.Pointer(attrs))); err != nil {
		return err
	}
	attrs.MakeRaw()

	switch cfg.DataBits {
	case 5:
		attrs.Cflag = (attrs.Cflag &^ CSIZE) | CS5
	case 6:
		attrs.Cflag = (attrs.Cflag &^ CSIZE) | CS6
	case 7:
		attrs.Cflag = (attrs.Cflag &^ CSIZE) | CS7
	default:
		attrs.Cflag = (attrs.Cflag &^ CSIZE) | CS8
	}

	switch cfg.Parity {
	case ParityOdd:
		attrs.Cflag |= PARENB | PARODD
	case ParityEven:
		attrs.Cflag |= PARENB
		attrs.Cflag &^= PARODD
	}

	if cfg.StopBits == 2 {
		attrs.Cflag |= CSTOPB
	}
	if cfg.FlowControl {
		attrs.Cflag |= CRTSCTS
	}
	attrs.Cflag |= CREAD | CLOCAL

	if speed, ok := fixedBaud[cfg.Baud]; ok {
		attrs.SetSpeed(speed)
	} else {
		attrs.SetCustomSpeed(uint32(cfg.Baud))
	}

	if err := ioctl.Ioctl(uintptr(d.fd), tcsets2, uintptr(unsafe.Pointer(attrs))); err != nil {
		return err
	}
	d.SetTimeout(time.Duration(cfg.TimeoutMS) * time.Millisecond)

	var line ModemLine
	if cfg.RTS {
		line |= TIOCM_RTS
	}
	if cfg.DTR {
		line |= TIOCM_DTR
	}
	if line != 0 {
		return d.EnableModemLines(line)
	}
	return nil
}

// SetBaud reconfigures the line speed in place without touching other
// attributes.
func (d *Device) SetBaud(baud int) error {
	if d.closed.Load() {
		return ErrClosed
	}
	attrs := &Termios2{}
	if err := ioctl.Ioctl(uintptr(d.fd), tcgets2, uintptr(unsafe.Pointer(attrs))); err != nil {
		return err
	}
	if speed, ok := fixedBaud[baud]; ok {
		attrs.SetSpeed(speed)
	} else {
		attrs.SetCustomSpeed(uint32(baud))
	}
	return ioctl.Ioctl(uintptr(d.fd), tcsets2, uintptr(unsafe.Pointer(attrs)))
}

// SetTimeout sets the total read timeout; zero means "poll, return whatever
// is buffered immediately" per spec's timeout semantics.
func (d *Device) SetTimeout(timeout time.Duration) {
	d.timeout = timeout
}

// Flush discards both pending RX and TX bytes.
func (d *Device) Flush() error {
	if d.closed.Load() {
		return ErrClosed
	}
	return ioctl.Ioctl(uintptr(d.fd), tcflsh, uintptr(TCIOFLUSH))
}

// EnableModemLines sets the indicated modem bits (e.g. RTS, DTR).
func (d *Device) EnableModemLines(line ModemLine) error {
	return ioctl.Ioctl(uintptr(d.fd), tiocmbis, uintptr(unsafe.Pointer(&line)))
}

// DisableModemLines clears the indicated modem bits.
func (d *Device) DisableModemLines(line ModemLine) error {
	return ioctl.Ioctl(uintptr(d.fd), tiocmbic, uintptr(unsafe.Pointer(&line)))
}

// Write is a synchronous OS write; the caller (the serial transport layer)
// is responsible for purging buffers first.
func (d *Device) Write(data []byte) (int, error) {
	if d.closed.Load() {
		return 0, ErrClosed
	}
	return syscall.Write(d.fd, data)
}

// Read blocks for at most the configured timeout, waiting for input via
// poll before issuing the read so a zero-timeout truly polls rather than
// blocking on an empty buffer.
func (d *Device) Read(data []byte) (int, error) {
	if d.closed.Load() {
		return 0, ErrClosed
	}
	if err := poll.WaitInput(d.fd, d.timeout); err != nil {
		return 0, err
	}
	return syscall.Read(d.fd, data)
}

// Close releases the fd; idempotent on an already-closed device.
func (d *Device) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	fd := d.fd
	d.fd = -1
	return syscall.Close(fd)
}
