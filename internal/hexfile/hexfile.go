// Package hexfile decodes Motorola S-record (S19) and Intel HEX text into a
// dense in-memory Image. Both formats are parsed in two passes over the
// records collected from the text in pass one: pass one validates checksums
// and finds the address span, pass two copies bytes into the image.
package hexfile

import (
	"fmt"
	"strconv"
	"strings"

	"stm8flash/internal/bslerr"
)

// Image is a dense, zero-filled memory image spanning [Base, Base+len(Bytes)).
type Image struct {
	Base  uint32
	Bytes []byte
}

func (img Image) Length() int { return len(img.Bytes) }

// record is a parsed line, independent of source format.
type record struct {
	line int
	addr uint32
	data []byte
}

// splitLines strips CR/LF line terminators (either order, either alone) and
// drops every blank line, wherever it occurs, so line numbers reported in
// errors count non-blank lines only. This mirrors the original get_line/line-terminator
// handling without re-scanning a shared text buffer on the second pass.
func splitLines(text string) []string {
	raw := strings.FieldsFunc(text, func(r rune) bool { return r == '\n' || r == '\r' })
	lines := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	return lines
}

func hexByte(s string, line int, what string) (byte, error) {
	if len(s) != 2 {
		return 0, &bslerr.HexSyntaxError{Line: line, Detail: fmt.Sprintf("bad %s field %q", what, s)}
	}
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return 0, &bslerr.HexSyntaxError{Line: line, Detail: fmt.Sprintf("bad hex digit in %s field %q", what, s)}
	}
	return byte(v), nil
}

// assemble builds the dense Image from records collected in pass one,
// zero-filling gaps and letting later records overwrite earlier ones at the
// same address (file order), per the overlap rule.
func assemble(records []record) Image {
	if len(records) == 0 {
		return Image{}
	}
	minAddr := ^uint32(0)
	maxAddr := uint32(0)
	for _, r := range records {
		if r.addr < minAddr {
			minAddr = r.addr
		}
		end := r.addr + uint32(len(r.data)) - 1
		if end > maxAddr {
			maxAddr = end
		}
	}
	length := maxAddr - minAddr + 1
	bytes := make([]byte, length)
	for _, r := range records {
		copy(bytes[r.addr-minAddr:], r.data)
	}
	return Image{Base: minAddr, Bytes: bytes}
}

// Parse auto-detects S19 vs Intel HEX by peeking at the first non-blank
// record's leading character.
func Parse(text string) (Image, error) {
	lines := splitLines(text)
	if len(lines) == 0 {
		return Image{}, nil
	}
	switch lines[0][0] {
	case 'S':
		return ParseS19(text)
	case ':':
		return ParseIHex(text)
	default:
		return Image{}, &bslerr.HexSyntaxError{Line: 1, Detail: fmt.Sprintf("unrecognised format, line starts with %q", lines[0][:1])}
	}
}
