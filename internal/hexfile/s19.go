package hexfile

import (
	"stm8flash/internal/bslerr"
)

// ParseS19 decodes a Motorola S-record text image. Record types 1/2/3 carry
// data with a 2/3/4-byte address respectively; 0/8/9 are metadata and
// skipped; any other type is tolerated (skipped, not an error) per the
// format's forward-compatibility convention.
func ParseS19(text string) (Image, error) {
	lines := splitLines(text)

	var records []record
	for i, line := range lines {
		lineNo := i + 1
		if len(line) < 2 || line[0] != 'S' {
			return Image{}, &bslerr.HexSyntaxError{Line: lineNo, Detail: "line does not start with 'S'"}
		}
		if line[1] < '0' || line[1] > '9' {
			return Image{}, &bslerr.HexSyntaxError{Line: lineNo, Detail: "bad record type digit"}
		}
		recType := int(line[1] - '0')
		if recType == 0 || recType == 8 || recType == 9 {
			continue
		}
		if recType != 1 && recType != 2 && recType != 3 {
			// Currently-unsupported-but-tolerated record type: skip.
			continue
		}

		addrWidth := recType + 1 // S1=2, S2=3, S3=4

		length, err := hexByte(line[2:4], lineNo, "length")
		if err != nil {
			return Image{}, err
		}
		if len(line) < int(4+2*length) {
			return Image{}, &bslerr.HexSyntaxError{Line: lineNo, Detail: "line shorter than declared length"}
		}

		chkCalc := int(length)
		idx := 4
		var addr uint32
		for i := 0; i < addrWidth; i++ {
			b, err := hexByte(line[idx:idx+2], lineNo, "address")
			if err != nil {
				return Image{}, err
			}
			addr = addr<<8 | uint32(b)
			chkCalc += int(b)
			idx += 2
		}

		dataLen := int(length) - 1 - addrWidth
		if dataLen < 0 {
			return Image{}, &bslerr.HexSyntaxError{Line: lineNo, Detail: "length field too small for address width"}
		}
		data := make([]byte, dataLen)
		for i := 0; i < dataLen; i++ {
			b, err := hexByte(line[idx:idx+2], lineNo, "data")
			if err != nil {
				return Image{}, err
			}
			data[i] = b
			chkCalc += int(b)
			idx += 2
		}

		chkRead, err := hexByte(line[idx:idx+2], lineNo, "checksum")
		if err != nil {
			return Image{}, err
		}
		chkCalc = (0xFF ^ chkCalc) & 0xFF
		if byte(chkCalc) != chkRead {
			return Image{}, &bslerr.ChecksumError{Line: lineNo, Expected: byte(chkCalc), Actual: chkRead}
		}

		records = append(records, record{line: lineNo, addr: addr, data: data})
	}

	return assemble(records), nil
}
