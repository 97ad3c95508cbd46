package dotfiles

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
	"github.com/vmihailenco/msgpack/v5/msgpcode"

	"github.com/roach88/histsync/internal/reduce"
)

// Record discriminants on the wire.
const (
	opCreate uint8 = 0
	opDelete uint8 = 1
)

// encodeTagged writes the discriminant, an array header and the fields.
func encodeTagged(op uint8, fields ...any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)

	if err := enc.EncodeUint8(op); err != nil {
		return nil, err
	}
	if err := enc.EncodeArrayLen(len(fields)); err != nil {
		return nil, err
	}
	for _, f := range fields {
		var err error
		switch v := f.(type) {
		case string:
			err = enc.EncodeString(v)
		case bool:
			err = enc.EncodeBool(v)
		default:
			err = fmt.Errorf("unsupported field type %T", f)
		}
		if err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// taggedDecoder reads one discriminated record and refuses trailing bytes.
type taggedDecoder struct {
	r   *bytes.Reader
	dec *msgpack.Decoder
}

func newTaggedDecoder(data []byte) *taggedDecoder {
	r := bytes.NewReader(data)
	return &taggedDecoder{r: r, dec: msgpack.NewDecoder(r)}
}

// header reads the discriminant and array length.
func (d *taggedDecoder) header() (uint8, int, error) {
	c, err := d.dec.PeekCode()
	if err != nil {
		return 0, 0, reduce.Corruption("missing discriminant", err)
	}
	if c != msgpcode.Uint8 {
		return 0, 0, reduce.Corruption(fmt.Sprintf("discriminant has msgpack code 0x%02x, want uint8", c), nil)
	}
	op, err := d.dec.DecodeUint8()
	if err != nil {
		return 0, 0, reduce.Corruption("read discriminant", err)
	}
	n, err := d.dec.DecodeArrayLen()
	if err != nil {
		return 0, 0, reduce.Corruption("read array header", err)
	}
	return op, n, nil
}

func (d *taggedDecoder) str(field string) (string, error) {
	return reduce.DecodeString(d.dec, field)
}

func (d *taggedDecoder) boolean(field string) (bool, error) {
	b, err := d.dec.DecodeBool()
	if err != nil {
		return false, reduce.Corruption("read "+field, err)
	}
	return b, nil
}

func (d *taggedDecoder) done() error {
	if n := d.r.Len(); n != 0 {
		return reduce.Corruption(fmt.Sprintf("%d trailing bytes", n), nil)
	}
	return nil
}

func expectLen(op uint8, got, want int) error {
	if got != want {
		return reduce.Corruption(fmt.Sprintf("record kind %d has %d fields, want %d", op, got, want), nil)
	}
	return nil
}
