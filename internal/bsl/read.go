package bsl

import (
	"fmt"

	"stm8flash/internal/bslerr"
)

// Read reads n bytes from device memory starting at addr into out, in
// slices of at most 256 bytes. Any non-ACK at the command or address step,
// or a short data read, is fatal.
func (c *Client) Read(addr uint32, n int, out []byte) error {
	if len(out) < n {
		return &bslerr.ReadError{Addr: addr, Detail: "output buffer too small"}
	}
	done := 0
	for _, sliceLen := range sliceBounds(n, readSliceMax) {
		sliceAddr := addr + uint32(done)

		if err := c.sendCommand("read", cmdRead); err != nil {
			return &bslerr.ReadError{Addr: sliceAddr, Detail: err.Error()}
		}

		reply, err := c.sendAddress("read", sliceAddr)
		if err != nil {
			return &bslerr.ReadError{Addr: sliceAddr, Detail: err.Error()}
		}
		if reply != ack {
			return &bslerr.ReadError{Addr: sliceAddr, Detail: "address not acknowledged"}
		}

		nb := byte(sliceLen - 1)
		if _, err := c.t.Send([]byte{nb, nb ^ 0xFF}); err != nil {
			return &bslerr.ReadError{Addr: sliceAddr, Detail: "send count: " + err.Error()}
		}

		resp := make([]byte, 1+sliceLen)
		got, err := c.t.Receive(resp)
		if err != nil || got != len(resp) {
			return &bslerr.ReadError{Addr: sliceAddr, Detail: "short data read"}
		}
		if resp[0] != ack {
			return &bslerr.ReadError{Addr: sliceAddr, Detail: "data not acknowledged"}
		}
		copy(out[done:done+sliceLen], resp[1:])
		done += sliceLen
		c.reportProgress(done, n)
	}
	return nil
}

// MemCheck probes whether addr is addressable on the device by reading a
// single byte from it. It returns true on full success, false specifically
// when the address step is NACK'd (the usual "this address doesn't exist on
// this device variant" signal used to identify the STM8 family), and a
// ProtocolError for any other anomaly.
func (c *Client) MemCheck(addr uint32) (bool, error) {
	if err := c.sendCommand("mem_check", cmdRead); err != nil {
		if ur, ok := err.(*bslerr.UnexpectedReply); ok {
			return false, &bslerr.ProtocolError{Detail: fmt.Sprintf("mem_check: command not acknowledged (reply 0x%02x)", ur.Byte)}
		}
		return false, err
	}

	reply, err := c.sendAddress("mem_check", addr)
	if err != nil {
		return false, err
	}
	if reply == nack {
		return false, nil
	}
	if reply != ack {
		return false, &bslerr.ProtocolError{Detail: "mem_check: unexpected address reply"}
	}

	nb := byte(0) // 1 byte, encoded as N-1
	if _, err := c.t.Send([]byte{nb, nb ^ 0xFF}); err != nil {
		return false, &bslerr.ProtocolError{Detail: "mem_check: send count: " + err.Error()}
	}
	resp := make([]byte, 2)
	got, err := c.t.Receive(resp)
	if err != nil || got != len(resp) {
		return false, &bslerr.ProtocolError{Detail: "mem_check: short data read"}
	}
	if resp[0] != ack {
		return false, &bslerr.ProtocolError{Detail: "mem_check: data not acknowledged"}
	}
	return true, nil
}

// FamilyProbe is one candidate device family and the address used to test
// for its presence.
type FamilyProbe struct {
	Name string
	Addr uint32
}

// DetectFamily probes each candidate in order and returns the name of the
// first family whose probe address reads back successfully.
func (c *Client) DetectFamily(candidates []FamilyProbe) (string, error) {
	for _, probe := range candidates {
		ok, err := c.MemCheck(probe.Addr)
		if err != nil {
			return "", err
		}
		if ok {
			return probe.Name, nil
		}
	}
	return "", &bslerr.ProtocolError{Detail: "no known device family matched any probe address"}
}
