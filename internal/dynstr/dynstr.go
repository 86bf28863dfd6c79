// Package dynstr implements the server's dynamic string: a binary-safe byte
// buffer with explicit used/capacity tracking and geometric growth, modeled
// after the tiered small/medium/large header scheme classic Redis uses for
// its SDS type.
package dynstr

import "bytes"

// Band identifies which header tier backs a DynStr, selected by capacity.
type Band int

const (
	// BandSmall covers capacities up to 255 bytes.
	BandSmall Band = iota
	// BandMedium covers capacities up to 65535 bytes.
	BandMedium
	// BandLarge covers capacities up to 2^31-1 bytes.
	BandLarge
)

const (
	smallMax  = 255
	mediumMax = 65535

	// growthCap is the greedy-growth ceiling: below it capacity doubles,
	// above it capacity grows by fixed 1 MiB increments.
	growthCap = 1 << 20
)

// bandFor returns the header band for a requested capacity.
func bandFor(capacity int) Band {
	switch {
	case capacity <= smallMax:
		return BandSmall
	case capacity <= mediumMax:
		return BandMedium
	default:
		return BandLarge
	}
}

// DynStr is a binary-safe byte buffer. The zero value is an empty string
// with zero capacity; use New or NewFromString to pre-size a buffer.
//
// DynStr is a value type: Append may return a new DynStr sharing no storage
// with the receiver, or (when capacity already sufficed) one that reuses the
// receiver's backing array. Callers MUST assign the return value — never
// assume the receiver itself was mutated.
type DynStr struct {
	buf  []byte // len(buf) == used, cap(buf) == capacity
	band Band
}

// New constructs a DynStr from a byte slice, copying its contents into a
// freshly allocated buffer sized exactly to the input (capacity == used).
func New(b []byte) DynStr {
	buf := make([]byte, len(b))
	copy(buf, b)
	return DynStr{buf: buf, band: bandFor(len(buf))}
}

// NewFromString is a convenience wrapper around New for string literals and
// values already assembled as Go strings.
func NewFromString(s string) DynStr {
	return New([]byte(s))
}

// WithCapacity constructs an empty DynStr pre-allocated to hold at least
// capacity bytes without reallocation.
func WithCapacity(capacity int) DynStr {
	if capacity < 0 {
		capacity = 0
	}
	return DynStr{buf: make([]byte, 0, capacity), band: bandFor(capacity)}
}

// Len returns the used length in bytes. O(1).
func (d DynStr) Len() int { return len(d.buf) }

// Capacity returns the allocated capacity in bytes. O(1).
func (d DynStr) Capacity() int { return cap(d.buf) }

// Band reports which header tier currently backs the buffer.
func (d DynStr) Band() Band { return d.band }

// Bytes returns a read-only view of the buffer's valid bytes. Callers must
// not mutate the returned slice; use Duplicate or Append to produce new
// content instead.
func (d DynStr) Bytes() []byte {
	if d.buf == nil {
		return nil
	}
	return d.buf[:len(d.buf):len(d.buf)]
}

// String returns the valid bytes converted to a Go string (a copy).
func (d DynStr) String() string { return string(d.buf) }

// Duplicate returns a deep copy of d with capacity trimmed to the used
// length, analogous to the project's sdsdup.
func (d DynStr) Duplicate() DynStr { return New(d.Bytes()) }

// Clear resets used length to zero without releasing the backing array, so
// a subsequent Append can reuse the existing allocation.
func (d DynStr) Clear() DynStr {
	d.buf = d.buf[:0]
	return d
}

// Compare performs a lexicographic byte comparison, matching bytes.Compare.
func (d DynStr) Compare(other DynStr) int {
	return bytes.Compare(d.buf, other.buf)
}

// Equal reports whether two DynStr values hold identical bytes.
func (d DynStr) Equal(other DynStr) bool {
	return bytes.Equal(d.buf, other.buf)
}

// growCapacity implements the greedy growth policy: double up to growthCap,
// then grow in fixed growthCap increments once the buffer crosses it.
func growCapacity(current, needed int) int {
	if current <= 0 {
		current = 1
	}
	next := current
	for next < needed {
		if next < growthCap {
			next *= 2
		} else {
			next += growthCap
		}
	}
	return next
}

// Append appends payload to d, returning the resulting DynStr. When the
// existing capacity can hold the new content the same backing array is
// reused (in-place append, same identity); otherwise a new, larger buffer is
// allocated per the greedy growth policy, the existing bytes are copied
// across, and the header band is upgraded if the new capacity crosses a
// band boundary. The receiver is never mutated through a stale alias: the
// caller must always adopt the returned value.
func (d DynStr) Append(payload []byte) DynStr {
	if len(payload) == 0 {
		return d
	}
	needed := len(d.buf) + len(payload)
	if needed <= cap(d.buf) {
		out := append(d.buf, payload...)
		return DynStr{buf: out, band: bandFor(cap(out))}
	}

	newCap := growCapacity(cap(d.buf), needed)
	newBuf := make([]byte, needed, newCap)
	copy(newBuf, d.buf)
	copy(newBuf[len(d.buf):], payload)
	return DynStr{buf: newBuf, band: bandFor(newCap)}
}

// AppendString is a convenience wrapper around Append for string payloads.
func (d DynStr) AppendString(s string) DynStr {
	return d.Append([]byte(s))
}

// Range extracts a byte range using Redis GETRANGE semantics: negative
// indices count from the end, indices are clamped to [0, len], and an empty
// slice is returned when start > end after clamping.
func (d DynStr) Range(start, end int) []byte {
	n := len(d.buf)
	if n == 0 {
		return nil
	}
	start = clampIndex(start, n)
	end = clampIndex(end, n)
	if start > end {
		return nil
	}
	// clampIndex returns an inclusive bound in [0,n-1] for non-empty ranges;
	// Range's end is inclusive per GETRANGE semantics.
	if end >= n {
		end = n - 1
	}
	return d.buf[start : end+1]
}

// clampIndex maps a possibly-negative Redis-style index onto [0, n-1] (or
// n for an index meant to sit one-past-the-end), following
// start = max(0, min(len+start_neg, len)).
func clampIndex(idx, n int) int {
	if idx < 0 {
		idx = n + idx
		if idx < 0 {
			idx = 0
		}
	}
	if idx > n {
		idx = n
	}
	return idx
}
