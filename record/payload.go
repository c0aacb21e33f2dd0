package record

import (
	"bytes"
	"fmt"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"

	"github.com/justapithecus/rawzeo/frame"
)

// payloadReader reads fixed-width fields from a payload in the table's byte
// order.
type payloadReader struct {
	s     *kaitai.Stream
	order frame.Endian
	size  int
}

func newPayloadReader(p []byte, order frame.Endian) *payloadReader {
	return &payloadReader{
		s:     kaitai.NewStream(bytes.NewReader(p)),
		order: order,
		size:  len(p),
	}
}

func (r *payloadReader) u8() (uint8, error) {
	v, err := r.s.ReadU1()
	return v, short(err)
}

func (r *payloadReader) u16() (uint16, error) {
	var (
		v   uint16
		err error
	)
	if r.order == frame.LittleEndian {
		v, err = r.s.ReadU2le()
	} else {
		v, err = r.s.ReadU2be()
	}
	return v, short(err)
}

func (r *payloadReader) s16() (int16, error) {
	var (
		v   int16
		err error
	)
	if r.order == frame.LittleEndian {
		v, err = r.s.ReadS2le()
	} else {
		v, err = r.s.ReadS2be()
	}
	return v, short(err)
}

func (r *payloadReader) u32() (uint32, error) {
	var (
		v   uint32
		err error
	)
	if r.order == frame.LittleEndian {
		v, err = r.s.ReadU4le()
	} else {
		v, err = r.s.ReadU4be()
	}
	return v, short(err)
}

// uint reads an n-byte unsigned integer, n in 1..4.
func (r *payloadReader) uint(n int) (uint32, error) {
	switch n {
	case 1:
		v, err := r.u8()
		return uint32(v), err
	case 2:
		v, err := r.u16()
		return uint32(v), err
	case 3:
		lo, err := r.u16()
		if err != nil {
			return 0, err
		}
		hi, err := r.u8()
		if err != nil {
			return 0, err
		}
		if r.order == frame.LittleEndian {
			return uint32(lo) | uint32(hi)<<16, nil
		}
		// Big endian: the 16-bit read holds the two high bytes.
		return uint32(lo)<<8 | uint32(hi), nil
	case 4:
		return r.u32()
	}
	return 0, fmt.Errorf("%w: %d-byte integer", ErrMalformed, n)
}

// done fails when unread bytes remain.
func (r *payloadReader) done() error {
	eof, err := r.s.EOF()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !eof {
		pos, _ := r.s.Pos()
		return fmt.Errorf("%w: %d trailing bytes", ErrMalformed, int64(r.size)-pos)
	}
	return nil
}

func short(err error) error {
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}

// payloadWriter is the encoding counterpart of payloadReader.
type payloadWriter struct {
	buf   []byte
	order frame.Endian
}

func (w *payloadWriter) uint(n int, v uint32) {
	b := make([]byte, n)
	if n == 3 {
		if w.order == frame.LittleEndian {
			b[0], b[1], b[2] = byte(v), byte(v>>8), byte(v>>16)
		} else {
			b[0], b[1], b[2] = byte(v>>16), byte(v>>8), byte(v)
		}
	} else {
		w.order.PutUint(b, v)
	}
	w.buf = append(w.buf, b...)
}
