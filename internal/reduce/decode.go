package reduce

import (
	"fmt"
	"unicode/utf8"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"
)

// DecodeString reads one string field from a record payload. Anything that
// is not a msgpack str (nil and bin included) or not valid UTF-8 is
// corruption.
func DecodeString(dec *msgpack.Decoder, field string) (string, error) {
	c, err := dec.PeekCode()
	if err != nil {
		return "", Corruption("missing "+field, err)
	}
	if !msgpcode.IsString(c) {
		return "", Corruption(fmt.Sprintf("%s has msgpack code 0x%02x, want str", field, c), nil)
	}
	s, err := dec.DecodeString()
	if err != nil {
		return "", Corruption("read "+field, err)
	}
	if !utf8.ValidString(s) {
		return "", Corruption(field+" is not valid UTF-8", nil)
	}
	return s, nil
}
