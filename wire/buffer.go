package wire

import "fmt"

// BufferExhausted is returned when a Buffer must grow to satisfy a write,
// but growth has been disallowed by the caller.
type BufferExhausted struct {
	Requested int
	Capacity  int
}

func (e BufferExhausted) Error() string {
	return fmt.Sprintf("buffer exhausted: need %d bytes, capacity is %d and growth is disabled", e.Requested, e.Capacity)
}

// TruncatedMessage is returned when a read runs past the buffer's limit.
type TruncatedMessage struct {
	Requested int
	Available int
}

func (e TruncatedMessage) Error() string {
	return fmt.Sprintf("truncated message: need %d bytes, only %d available", e.Requested, e.Available)
}

// BadAlignment is returned when a read encounters non-zero padding bytes
// where DBus requires them to be zero.
type BadAlignment struct {
	Offset int
	Want   int
}

func (e BadAlignment) Error() string {
	return fmt.Sprintf("non-zero padding byte at offset %d (expected alignment to %d)", e.Offset, e.Want)
}

// A Buffer is a contiguous, growable byte region with NIO-style
// position/limit cursor semantics, used as the shared scratch space for
// marshalling and unmarshalling DBus messages.
//
// A fresh Buffer is in write mode: Append grows the buffer and advances
// the cursor. Flip switches to read mode, fixing the limit at the
// current cursor and resetting the cursor to zero. Clear returns to
// write mode, with the limit restored to the full capacity and the
// cursor reset to zero.
//
// Origin is the message-relative zero point for alignment: [Buffer.Align]
// measures padding from Origin, not from the start of the backing array,
// so a Buffer can be sliced or reused mid-message without losing track of
// the alignment grid.
type Buffer struct {
	data     []byte
	pos      int
	limit    int
	Origin   int
	growable bool
}

// NewBuffer returns an empty, growable Buffer with the given initial
// capacity.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		data:     make([]byte, 0, capacity),
		growable: true,
	}
}

// NewFixedBuffer wraps an existing byte slice as a read-mode Buffer that
// cannot grow. Used to decode a body that has already been read in full
// off the wire.
func NewFixedBuffer(data []byte) *Buffer {
	return &Buffer{
		data:  data,
		pos:   0,
		limit: len(data),
	}
}

// Reset clears the buffer to an empty write-mode state, discarding its
// contents but keeping the backing array (and its capacity) for reuse.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
	b.pos = 0
	b.limit = 0
	b.Origin = 0
}

// Clear returns the Buffer to write mode: cursor to zero, limit to the
// full backing capacity.
func (b *Buffer) Clear() {
	b.pos = 0
	b.limit = cap(b.data)
	b.data = b.data[:0]
}

// Flip switches the Buffer from write mode to read mode: the limit
// becomes the current cursor (the end of written data) and the cursor
// resets to zero.
func (b *Buffer) Flip() {
	b.limit = b.pos
	b.pos = 0
}

// Position returns the current cursor offset.
func (b *Buffer) Position() int { return b.pos }

// SetPosition moves the cursor to an absolute offset within the buffer.
func (b *Buffer) SetPosition(p int) { b.pos = p }

// Limit returns the read limit (in read mode). In write mode it is the
// end of the written data for a fresh or Reset buffer, and the backing
// capacity right after Clear.
func (b *Buffer) Limit() int { return b.limit }

// Len returns the number of bytes currently held by the buffer.
func (b *Buffer) Len() int { return len(b.data) }

// Remaining reports how many bytes are available to read before the
// limit.
func (b *Buffer) Remaining() int { return b.limit - b.pos }

// Bytes returns the full backing slice, ignoring cursor/limit.
func (b *Buffer) Bytes() []byte { return b.data }

// Slice returns the bytes between the cursor and the limit, without
// advancing the cursor.
func (b *Buffer) Slice() []byte {
	return b.data[b.pos:b.limit]
}

// Grow ensures the buffer can hold at least n more bytes, reallocating
// and copying the contents (preserving Origin-relative offsets) if
// needed. Grow doubles the capacity until it suffices.
func (b *Buffer) Grow(n int) error {
	need := len(b.data) + n
	if need <= cap(b.data) {
		return nil
	}
	if !b.growable {
		return BufferExhausted{Requested: n, Capacity: cap(b.data)}
	}
	newCap := max(cap(b.data)*2, 64)
	for newCap < need {
		newCap *= 2
	}
	fresh := make([]byte, len(b.data), newCap)
	copy(fresh, b.data)
	b.data = fresh
	return nil
}

// Append writes bs to the buffer at the cursor, growing as needed, and
// advances the cursor past the written bytes. It performs no alignment;
// callers needing alignment must call Align first.
func (b *Buffer) Append(bs []byte) error {
	if err := b.Grow(len(bs)); err != nil {
		return err
	}
	b.data = append(b.data, bs...)
	b.pos += len(bs)
	if b.pos > b.limit {
		b.limit = b.pos
	}
	return nil
}

// AppendByte writes a single byte.
func (b *Buffer) AppendByte(v byte) error {
	return b.Append([]byte{v})
}

// Read consumes exactly n bytes from the cursor and returns them. It
// performs no alignment.
func (b *Buffer) Read(n int) ([]byte, error) {
	if b.pos+n > b.limit {
		return nil, TruncatedMessage{Requested: n, Available: b.limit - b.pos}
	}
	ret := b.data[b.pos : b.pos+n]
	b.pos += n
	return ret, nil
}

// ReadByte consumes a single byte.
func (b *Buffer) ReadByte() (byte, error) {
	bs, err := b.Read(1)
	if err != nil {
		return 0, err
	}
	return bs[0], nil
}

// Align is the core DBus padding primitive. It measures
// (Position - Origin) mod A and, in write mode, appends zero bytes until
// the distance-from-origin is a multiple of A; in read mode, it skips
// (and validates as zero) padding bytes to the same effect.
//
// write selects which mode to run in: true pads with zeroes, false
// consumes and validates padding already present in the buffer.
func (b *Buffer) Align(a int, write bool) error {
	extra := (b.pos - b.Origin) % a
	if extra < 0 {
		extra += a
	}
	if extra == 0 {
		return nil
	}
	skip := a - extra
	if write {
		var zero [8]byte
		return b.Append(zero[:skip])
	}
	bs, err := b.Read(skip)
	if err != nil {
		return err
	}
	for i, c := range bs {
		if c != 0 {
			return BadAlignment{Offset: b.pos - skip + i, Want: a}
		}
	}
	return nil
}
