package filing

import (
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// DecodeText returns b as a UTF-8 string. Older archive documents are
// Windows-1252; anything that is not valid UTF-8 is decoded as such.
func DecodeText(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
