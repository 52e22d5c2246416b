package bsl

import "stm8flash/internal/bslerr"

func allZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}

// Write writes data to device memory starting at addr, in slices of at most
// 128 bytes. When c.SkipZeroSlices is set, a slice whose bytes are all 0x00
// is elided entirely — neither command nor address frame is sent for it —
// since upstream images already fill unspecified gaps with 0x00 and a prior
// mass_erase makes that the device's existing content anyway.
func (c *Client) Write(addr uint32, data []byte) error {
	done := 0
	total := len(data)
	for _, sliceLen := range sliceBounds(total, writeSliceMax) {
		sliceAddr := addr + uint32(done)
		slice := data[done : done+sliceLen]
		done += sliceLen

		if c.SkipZeroSlices && allZero(slice) {
			c.reportProgress(done, total)
			continue
		}

		if err := c.sendCommand("write", cmdWrite); err != nil {
			return &bslerr.WriteError{Addr: sliceAddr, Detail: err.Error()}
		}

		reply, err := c.sendAddress("write", sliceAddr)
		if err != nil {
			return &bslerr.WriteError{Addr: sliceAddr, Detail: err.Error()}
		}
		if reply != ack {
			return &bslerr.WriteError{Addr: sliceAddr, Detail: "address not acknowledged"}
		}

		frame := make([]byte, 0, 2+len(slice))
		frame = append(frame, byte(len(slice)-1))
		frame = append(frame, slice...)
		chk := frame[0]
		for _, b := range slice {
			chk ^= b
		}
		frame = append(frame, chk)

		if _, err := c.t.Send(frame); err != nil {
			return &bslerr.WriteError{Addr: sliceAddr, Detail: "send payload: " + err.Error()}
		}
		resp := make([]byte, 1)
		n, err := c.t.Receive(resp)
		if err != nil || n != 1 {
			return &bslerr.WriteError{Addr: sliceAddr, Detail: "no reply to payload"}
		}
		if resp[0] != ack {
			return &bslerr.WriteError{Addr: sliceAddr, Detail: "payload not acknowledged"}
		}

		c.reportProgress(done, total)
	}
	return nil
}
