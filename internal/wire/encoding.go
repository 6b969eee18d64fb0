// Package wire implements ClawNet's three coexisting wire formats:
// length-prefixed direct-stream frames, the versioned WireMessage
// envelope carried inside them, and the unversioned GossipMessage
// variants carried on the gossip topic. UDP discovery replies reuse the
// same compact binary Encoder for their fields. See spec.md §4.3.
package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/clawnet/clawnet/internal/clawerr"
)

// Encoder builds a compact binary payload: fixed-width big-endian
// integers and length-prefixed strings/slices/maps, with no padding or
// self-describing type tags beyond what callers add explicitly.
type Encoder struct {
	buf bytes.Buffer
}

// NewEncoder returns an empty Encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Bytes returns the encoded payload built so far.
func (e *Encoder) Bytes() []byte {
	return e.buf.Bytes()
}

// PutByte appends a single byte.
func (e *Encoder) PutByte(b byte) {
	e.buf.WriteByte(b)
}

// PutUint16 appends v as 2 big-endian bytes.
func (e *Encoder) PutUint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	e.buf.Write(b[:])
}

// PutUint32 appends v as 4 big-endian bytes.
func (e *Encoder) PutUint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	e.buf.Write(b[:])
}

// PutUint64 appends v as 8 big-endian bytes.
func (e *Encoder) PutUint64(v uint64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	e.buf.Write(b[:])
}

// PutString appends a uint32 length prefix followed by s's bytes.
func (e *Encoder) PutString(s string) {
	e.PutUint32(uint32(len(s)))
	e.buf.WriteString(s)
}

// PutOptionalString appends a presence byte, then the string if present.
func (e *Encoder) PutOptionalString(s *string) {
	if s == nil {
		e.PutByte(0)
		return
	}
	e.PutByte(1)
	e.PutString(*s)
}

// PutStringSlice appends a uint32 element count followed by each
// length-prefixed string in order.
func (e *Encoder) PutStringSlice(ss []string) {
	e.PutUint32(uint32(len(ss)))
	for _, s := range ss {
		e.PutString(s)
	}
}

// PutStringMap appends a uint32 entry count followed by each
// length-prefixed key/value pair. Key order is not stable.
func (e *Encoder) PutStringMap(m map[string]string) {
	e.PutUint32(uint32(len(m)))
	for k, v := range m {
		e.PutString(k)
		e.PutString(v)
	}
}

// Decoder reads the compact binary payload produced by Encoder.
type Decoder struct {
	data []byte
	pos  int
}

// NewDecoder returns a Decoder over data.
func NewDecoder(data []byte) *Decoder {
	return &Decoder{data: data}
}

// Remaining returns the bytes not yet consumed.
func (d *Decoder) Remaining() []byte {
	return d.data[d.pos:]
}

func (d *Decoder) need(n int) error {
	if len(d.data)-d.pos < n {
		return clawerr.Wrap(clawerr.KindProtocolError, fmt.Errorf("%w: truncated payload, need %d more bytes", clawerr.ErrUnexpectedVariant, n))
	}
	return nil
}

// Byte reads a single byte.
func (d *Decoder) Byte() (byte, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	b := d.data[d.pos]
	d.pos++
	return b, nil
}

// Uint16 reads 2 big-endian bytes.
func (d *Decoder) Uint16() (uint16, error) {
	if err := d.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(d.data[d.pos:])
	d.pos += 2
	return v, nil
}

// Uint32 reads 4 big-endian bytes.
func (d *Decoder) Uint32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(d.data[d.pos:])
	d.pos += 4
	return v, nil
}

// Uint64 reads 8 big-endian bytes.
func (d *Decoder) Uint64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(d.data[d.pos:])
	d.pos += 8
	return v, nil
}

// String reads a uint32-length-prefixed string.
func (d *Decoder) String() (string, error) {
	n, err := d.Uint32()
	if err != nil {
		return "", err
	}
	if err := d.need(int(n)); err != nil {
		return "", err
	}
	s := string(d.data[d.pos : d.pos+int(n)])
	d.pos += int(n)
	return s, nil
}

// OptionalString reads a presence byte, then a string if present.
func (d *Decoder) OptionalString() (*string, error) {
	present, err := d.Byte()
	if err != nil {
		return nil, err
	}
	if present == 0 {
		return nil, nil
	}
	s, err := d.String()
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// StringSlice reads a uint32 count followed by that many strings.
func (d *Decoder) StringSlice() ([]string, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for i := uint32(0); i < n; i++ {
		s, err := d.String()
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// StringMap reads a uint32 count followed by that many key/value pairs.
func (d *Decoder) StringMap() (map[string]string, error) {
	n, err := d.Uint32()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := d.String()
		if err != nil {
			return nil, err
		}
		v, err := d.String()
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
