// Package session orchestrates a complete flash operation: open the port,
// wake the device with the reset trigger, switch to the session baud,
// synchronise with the BSL, upload the RAM routine, optionally mass-erase,
// program the input image, optionally verify by read-back, patch the option
// byte, and jump to the application.
package session

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"stm8flash/internal/bsl"
	"stm8flash/internal/bslerr"
	"stm8flash/internal/config"
	"stm8flash/internal/hexfile"
	"stm8flash/internal/serial"
	"stm8flash/internal/termio"
)

const (
	pflashStart = 0x8000

	resetTrigger   = "##reset##"
	resetByteDelay = 10 * time.Millisecond
	baudSettleWait = 20 * time.Millisecond
)

// port is the subset of *serial.Port a Driver drives. Tests substitute a
// scripted fake; bsl.NewClient only needs the Send/Receive half of it.
type port interface {
	Send(data []byte) (int, error)
	Receive(out []byte) (int, error)
	Close() error
	Flush() error
	SetBaud(baud int) error
}

// openPort is overridden in tests to avoid touching a real tty.
var openPort = func(name string, opts serial.Options) (port, error) {
	return serial.Open(name, opts)
}

// Driver holds the state of one flash operation: {port, baud, image, ram
// routine, flags}, constructed once per operation and discarded on success
// or first fatal error.
type Driver struct {
	cfg config.Config
	log *logrus.Entry

	port port
}

// New constructs a Driver for cfg. The caller must call Run once.
func New(cfg config.Config, log *logrus.Entry) *Driver {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Driver{cfg: cfg, log: log}
}

// Run executes the full 11-step sequence. Any failure aborts the session
// and propagates the underlying protocol error; no further protocol traffic
// is issued after a failure, and the port is always closed.
func (d *Driver) Run() (err error) {
	step := "open port"
	d.log.WithField("step", step).Info("starting")

	p, err := openPort(d.cfg.Port, serial.Options{
		Baud:      d.cfg.BootstrapBaud,
		TimeoutMS: 1000,
		DataBits:  8,
		Parity:    termio.ParityNone,
		StopBits:  1,
		ReplyMode: true,
	})
	if err != nil {
		return &bslerr.PortOpenError{Port: d.cfg.Port, Err: err}
	}
	d.port = p
	defer func() {
		if cerr := d.port.Close(); cerr != nil && err == nil {
			err = &bslerr.PortConfigError{Op: "close", Err: cerr}
		}
	}()

	if err := d.wake(); err != nil {
		return err
	}
	if err := d.switchBaud(); err != nil {
		return err
	}

	client := bsl.NewClient(d.port)
	client.SkipZeroSlices = d.cfg.SkipZeroSlices
	client.Progress = func(done, total int) {
		d.log.WithFields(logrus.Fields{"done": done, "total": total}).Debug("progress")
	}

	d.log.WithField("step", "sync").Info("starting")
	if err := client.Sync(); err != nil {
		return err
	}

	if len(d.cfg.Profile.RAMRoutine) > 0 {
		d.log.WithField("step", "ram-routine").Info("starting")
		ramImage, err := hexfile.Parse(d.cfg.Profile.RAMRoutine)
		if err != nil {
			return err
		}
		if ramImage.Length() > 0 {
			if err := client.Write(ramImage.Base, ramImage.Bytes); err != nil {
				return err
			}
		}
	}

	if d.cfg.Erase {
		d.log.WithField("step", "mass-erase").Info("starting")
		if err := client.MassErase(); err != nil {
			return err
		}
	}

	if d.cfg.HexFile != "" {
		text, rerr := readHexFile(d.cfg.HexFile)
		if rerr != nil {
			return rerr
		}
		img, perr := hexfile.Parse(text)
		if perr != nil {
			return perr
		}

		if img.Length() > 0 {
			d.log.WithField("step", "program").Info("starting")
			if err := client.Write(img.Base, img.Bytes); err != nil {
				return err
			}

			if d.cfg.Verify {
				d.log.WithField("step", "verify").Info("starting")
				readback := make([]byte, img.Length())
				if err := client.Read(img.Base, img.Length(), readback); err != nil {
					return err
				}
				for i, b := range img.Bytes {
					if readback[i] != b {
						return &bslerr.VerifyMismatch{
							Addr:     img.Base + uint32(i),
							Expected: b,
							Actual:   readback[i],
						}
					}
				}
			}
		}

		// Runs whenever a hex file was given, even if it decoded to zero
		// bytes: a zero-length option-byte write is a harmless no-op in
		// bsl.Client.Write, matching the original tool's unconditional patch.
		d.log.WithField("step", "option-byte").Info("starting")
		if err := client.Write(d.cfg.Profile.OptionByteAddr, d.cfg.Profile.OptionByteValue); err != nil {
			return err
		}
	}

	d.log.WithField("step", "jump").Info("starting")
	if err := client.Jump(pflashStart); err != nil {
		return err
	}

	return nil
}

// wake emits the nine-byte reset trigger one byte at a time with a 10ms gap,
// matching the on-target firmware's pacing requirement.
func (d *Driver) wake() error {
	trigger := []byte(resetTrigger)
	for _, b := range trigger {
		if _, err := d.port.Send([]byte{b}); err != nil {
			return &bslerr.PortConfigError{Op: "wake", Err: err}
		}
		time.Sleep(resetByteDelay)
	}
	return nil
}

// switchBaud moves the port to the session baud, waits for the BSL to
// settle, then flushes — the original's "required to make flush work, for
// some reason" pre-flush settling delay.
func (d *Driver) switchBaud() error {
	if err := d.port.SetBaud(d.cfg.Baud); err != nil {
		return &bslerr.PortConfigError{Op: "set-baud", Err: err}
	}
	time.Sleep(baudSettleWait)
	if err := d.port.Flush(); err != nil {
		return &bslerr.PortConfigError{Op: "flush", Err: err}
	}
	return nil
}

func readHexFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read hex file: %w", err)
	}
	return string(data), nil
}
