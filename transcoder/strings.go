package transcoder

import (
	"encoding/binary"

	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/wasm-canon/errors"
)

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

func encodeUTF16(s string) ([]byte, error) {
	return utf16le.NewEncoder().Bytes([]byte(s))
}

// decodeUTF16 rejects unpaired surrogates before decoding; the x/text
// decoder would silently replace them.
func decodeUTF16(data []byte) (string, error) {
	for i := 0; i+1 < len(data); i += 2 {
		u := binary.LittleEndian.Uint16(data[i:])
		switch {
		case u >= 0xD800 && u <= 0xDBFF:
			if i+3 >= len(data) {
				return "", errors.InvalidData(errors.PhaseLift, nil, "unpaired high surrogate")
			}
			lo := binary.LittleEndian.Uint16(data[i+2:])
			if lo < 0xDC00 || lo > 0xDFFF {
				return "", errors.InvalidData(errors.PhaseLift, nil, "unpaired high surrogate")
			}
			i += 2
		case u >= 0xDC00 && u <= 0xDFFF:
			return "", errors.InvalidData(errors.PhaseLift, nil, "unpaired low surrogate")
		}
	}
	out, err := utf16le.NewDecoder().Bytes(data)
	if err != nil {
		return "", errors.Wrap(errors.PhaseLift, errors.KindInvalidData, err, "utf-16 decode")
	}
	return string(out), nil
}
