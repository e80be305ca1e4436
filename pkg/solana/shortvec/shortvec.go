// Package shortvec implements the compact-u16 length prefix used by the
// transaction wire format.
package shortvec

import (
	"io"
	"math"

	"github.com/pkg/errors"
)

// MaxEncodedLen is the largest number of bytes a compact-u16 value occupies.
const MaxEncodedLen = 3

var (
	ErrLenOverflow     = errors.New("shortvec: length exceeds u16")
	ErrNonCanonicalLen = errors.New("shortvec: non-canonical length encoding")
)

// EncodeLen writes n as a compact-u16 into w, seven bits per byte with the
// high bit set on every byte but the last.
func EncodeLen(w io.ByteWriter, n int) (written int, err error) {
	if n < 0 || n > math.MaxUint16 {
		return 0, ErrLenOverflow
	}

	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			b |= 0x80
		}

		if err := w.WriteByte(b); err != nil {
			return written, err
		}
		written++

		if n == 0 {
			return written, nil
		}
	}
}

// DecodeLen reads a compact-u16 from r. Encodings longer than necessary, or
// values that do not fit in a u16, are rejected.
func DecodeLen(r io.ByteReader) (int, error) {
	var val int
	for i := 0; i < MaxEncodedLen; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}

		// The third byte only carries the top two bits of a u16.
		if i == MaxEncodedLen-1 && b > 0x03 {
			return 0, ErrLenOverflow
		}

		val |= int(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			if b == 0 && i > 0 {
				return 0, ErrNonCanonicalLen
			}
			return val, nil
		}
	}

	return 0, ErrLenOverflow
}
