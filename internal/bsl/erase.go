package bsl

import "stm8flash/internal/bslerr"

// MassErase erases both P-flash and D-flash/EEPROM. Send [ERASE, ~ERASE],
// expect ACK; send [0xFF, 0x00] (erase-all marker), expect ACK.
func (c *Client) MassErase() error {
	if err := c.sendCommand("mass_erase", cmdErase); err != nil {
		return &bslerr.EraseError{Detail: err.Error()}
	}
	if _, err := c.t.Send([]byte{0xFF, 0x00}); err != nil {
		return &bslerr.EraseError{Detail: "send erase-all marker: " + err.Error()}
	}
	resp := make([]byte, 1)
	n, err := c.t.Receive(resp)
	if err != nil || n != 1 {
		return &bslerr.EraseError{Detail: "no reply to erase-all marker"}
	}
	if resp[0] != ack {
		return &bslerr.EraseError{Detail: "erase-all marker not acknowledged"}
	}
	return nil
}
