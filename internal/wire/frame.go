package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/clawnet/clawnet/internal/clawerr"
)

// MaxFrameSize is the largest permitted frame body, per spec.md §4.3(a).
const MaxFrameSize = 1 << 20 // 1 MiB

// WriteFrame writes a 4-byte big-endian length prefix followed by body.
func WriteFrame(w io.Writer, body []byte) error {
	if len(body) > MaxFrameSize {
		return clawerr.Wrap(clawerr.KindProtocolError, fmt.Errorf("%w: %d bytes", clawerr.ErrFrameTooLarge, len(body)))
	}
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("write frame body: %w", err)
	}
	return nil
}

// ReadFrame reads a 4-byte big-endian length prefix and exactly that many
// bytes of body. A declared length over MaxFrameSize fails with
// ErrFrameTooLarge without allocating or reading the body.
func ReadFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("read frame length: %w", err)
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n > MaxFrameSize {
		return nil, clawerr.Wrap(clawerr.KindProtocolError, fmt.Errorf("%w: declared %d bytes", clawerr.ErrFrameTooLarge, n))
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("read frame body: %w", err)
	}
	return body, nil
}
