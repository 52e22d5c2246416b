package hexfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stm8flash/internal/bslerr"
)

func TestParseIHex_Basic(t *testing.T) {
	text := ihexDataLine(0x0000, []byte{0x00, 0x11, 0x22, 0x33}) + "\n:00000001FF\n"

	img, err := ParseIHex(text)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), img.Base)
	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33}, img.Bytes)
}

func ihexDataLine(addr uint16, data []byte) string {
	length := byte(len(data))
	chk := int(length) + int(addr>>8) + int(addr&0xFF)
	for _, b := range data {
		chk += int(b)
	}
	chk = (0x100 - (chk & 0xFF)) & 0xFF
	line := ":" + hex2(length) + hex4(addr) + "00"
	for _, b := range data {
		line += hex2(b)
	}
	line += hex2(byte(chk))
	return line
}

func hex2(b byte) string {
	const digits = "0123456789ABCDEF"
	return string([]byte{digits[b>>4], digits[b&0xF]})
}
func hex4(v uint16) string { return hex2(byte(v >> 8)) + hex2(byte(v)) }

func TestParseIHex_ExtendedLinearAddress(t *testing.T) {
	text := ihexExtLine(0x0001) + "\n" + ihexDataLine(0x0010, []byte{0xAA}) + "\n:00000001FF\n"
	img, err := ParseIHex(text)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x00010010), img.Base)
	assert.Equal(t, []byte{0xAA}, img.Bytes)
}

func ihexExtLine(upper uint16) string {
	data := []byte{byte(upper >> 8), byte(upper)}
	chk := 2 + 0 + 0 + 4
	for _, b := range data {
		chk += int(b)
	}
	chk = (0x100 - (chk & 0xFF)) & 0xFF
	return ":02000004" + hex2(data[0]) + hex2(data[1]) + hex2(byte(chk))
}

func TestParseIHex_ChecksumMismatch(t *testing.T) {
	line := ihexDataLine(0x0000, []byte{0x01})
	// Corrupt the checksum byte.
	corrupted := line[:len(line)-1] + "00"
	_, err := ParseIHex(corrupted + "\n")
	var ce *bslerr.ChecksumError
	require.ErrorAs(t, err, &ce)
}

// s19DataLine builds a syntactically and arithmetically correct S1 record
// (16-bit address, type 1) for the given address/data.
func s19DataLine(addr uint16, data []byte) string {
	length := byte(1 + 2 + len(data)) // checksum + address + data
	chk := int(length) + int(addr>>8) + int(addr&0xFF)
	for _, b := range data {
		chk += int(b)
	}
	chk = (0xFF ^ chk) & 0xFF
	line := "S1" + hex2(length) + hex4(addr)
	for _, b := range data {
		line += hex2(b)
	}
	line += hex2(byte(chk))
	return line
}

func TestParseS19_Basic(t *testing.T) {
	data := []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88, 0x99, 0xAA, 0xBB, 0xCC, 0xDD, 0xEE}
	text := s19DataLine(0x0000, data) + "\nS9030000FC\n"
	img, err := ParseS19(text)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), img.Base)
	assert.Equal(t, data, img.Bytes)
}

func TestParseS19_ChecksumError_ReportsLine(t *testing.T) {
	line := s19DataLine(0x0000, []byte{0x01, 0x02, 0x03})
	corrupted := line[:len(line)-1] + "00"
	_, err := ParseS19(corrupted + "\n")
	var ce *bslerr.ChecksumError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Line)
}

func TestParseS19_SkipsMetadataRecords(t *testing.T) {
	text := "S0030000FC\nS1070050DEADBEEF70\nS9030000FC\n"
	img, err := ParseS19(text)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x0050), img.Base)
	assert.Equal(t, []byte{0xDE, 0xAD, 0xBE, 0xEF}, img.Bytes)
}

func TestRoundTrip_S19_RecordOrderDoesNotMatter(t *testing.T) {
	a := "S1070050DEADBEEF70\nS1070054AA55AA55A6\nS9030000FC\n"
	b := "S1070054AA55AA55A6\nS1070050DEADBEEF70\nS9030000FC\n"
	imgA, err := ParseS19(a)
	require.NoError(t, err)
	imgB, err := ParseS19(b)
	require.NoError(t, err)
	assert.Equal(t, imgA, imgB)
}

func TestParse_EmptyInput(t *testing.T) {
	img, err := Parse("")
	require.NoError(t, err)
	assert.Equal(t, 0, img.Length())
}

func TestParse_AutoDetect(t *testing.T) {
	s19, err := Parse("S1070050DEADBEEF70\nS9030000FC\n")
	require.NoError(t, err)
	assert.Equal(t, 4, s19.Length())

	ihex, err := Parse(ihexDataLine(0, []byte{0x01, 0x02}) + "\n:00000001FF\n")
	require.NoError(t, err)
	assert.Equal(t, 2, ihex.Length())
}
