package hexfile

import "stm8flash/internal/bslerr"

const (
	ihexData                  = 0
	ihexEOF                   = 1
	ihexExtSegmentAddr        = 2
	ihexStartSegmentAddr      = 3
	ihexExtLinearAddr         = 4
	ihexStartLinearAddr       = 5
)

// ParseIHex decodes an Intel HEX text image. Type 0 carries data, type 1
// stops the scan, type 3/5 are consumed but ignored, type 4 sets the upper
// 16 bits of the address for subsequent data records. Any other type is a
// FormatError.
func ParseIHex(text string) (Image, error) {
	lines := splitLines(text)

	var records []record
	var extUpper uint32
	for i, line := range lines {
		lineNo := i + 1
		if len(line) < 1 || line[0] != ':' {
			return Image{}, &bslerr.HexSyntaxError{Line: lineNo, Detail: "line does not start with ':'"}
		}
		if len(line) < 11 {
			return Image{}, &bslerr.HexSyntaxError{Line: lineNo, Detail: "line too short"}
		}

		length, err := hexByte(line[1:3], lineNo, "length")
		if err != nil {
			return Image{}, err
		}
		addrHi, err := hexByte(line[3:5], lineNo, "address")
		if err != nil {
			return Image{}, err
		}
		addrLo, err := hexByte(line[5:7], lineNo, "address")
		if err != nil {
			return Image{}, err
		}
		recType, err := hexByte(line[7:9], lineNo, "type")
		if err != nil {
			return Image{}, err
		}

		if len(line) < int(9+2*length+2) {
			return Image{}, &bslerr.HexSyntaxError{Line: lineNo, Detail: "line shorter than declared length"}
		}

		chkCalc := int(length) + int(addrHi) + int(addrLo) + int(recType)
		idx := 9
		data := make([]byte, length)
		for i := 0; i < int(length); i++ {
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
		chkCalc = (0x100 - (chkCalc & 0xFF)) & 0xFF
		if byte(chkCalc) != chkRead {
			return Image{}, &bslerr.ChecksumError{Line: lineNo, Expected: byte(chkCalc), Actual: chkRead}
		}

		switch recType {
		case ihexData:
			addr := extUpper | uint32(addrHi)<<8 | uint32(addrLo)
			records = append(records, record{line: lineNo, addr: addr, data: data})
		case ihexEOF:
			return assemble(records), nil
		case ihexStartSegmentAddr:
			// ignored, 80x86-segment start address
		case ihexExtLinearAddr:
			if length != 2 {
				return Image{}, &bslerr.HexSyntaxError{Line: lineNo, Detail: "extended linear address record must carry 2 bytes"}
			}
			extUpper = (uint32(data[0])<<8 | uint32(data[1])) << 16
		case ihexStartLinearAddr:
			// consumed, not used by this programmer
		default:
			return Image{}, &bslerr.FormatError{Line: lineNo, Type: int(recType)}
		}
	}

	return assemble(records), nil
}
