package bsl

import "stm8flash/internal/bslerr"

// Jump sends GO at addr; after the second ACK the device transfers control
// and further traffic from it is undefined.
func (c *Client) Jump(addr uint32) error {
	if err := c.sendCommand("jump", cmdGo); err != nil {
		return &bslerr.JumpError{Addr: addr, Detail: err.Error()}
	}
	reply, err := c.sendAddress("jump", addr)
	if err != nil {
		return &bslerr.JumpError{Addr: addr, Detail: err.Error()}
	}
	if reply != ack {
		return &bslerr.JumpError{Addr: addr, Detail: "address not acknowledged"}
	}
	return nil
}
