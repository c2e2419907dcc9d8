package dom

import (
	"fmt"
	"math/bits"
)

// MaxBits is the largest number of dirty bits one scope can hold.
const MaxBits = 256

// Width is the integer type of a scope's dirty field.
type Width int

const (
	U8 Width = iota
	U16
	U32
	U64
	U128
	U256
)

// WidthFor returns the narrowest width holding n bits.
func WidthFor(n int) (Width, error) {
	switch {
	case n <= 8:
		return U8, nil
	case n <= 16:
		return U16, nil
	case n <= 32:
		return U32, nil
	case n <= 64:
		return U64, nil
	case n <= 128:
		return U128, nil
	case n <= MaxBits:
		return U256, nil
	}
	return 0, fmt.Errorf("dom: %d independently updated expressions in one scope, at most %d are supported", n, MaxBits)
}

// Bits returns the capacity of w.
func (w Width) Bits() int { return 8 << w }

// GoType returns the Go type of a dirty field of width w. 64 bits are kept
// as two 32-bit words so that the field is handled the same way on every
// platform.
func (w Width) GoType() string {
	switch w {
	case U8:
		return "uint8"
	case U16:
		return "uint16"
	case U32:
		return "uint32"
	case U64:
		return "[2]uint32"
	case U128:
		return "[2]uint64"
	}
	return "[4]uint64"
}

func (w Width) String() string {
	return fmt.Sprintf("u%d", w.Bits())
}

// Mask is a set of dirty bits.
type Mask [MaxBits / 64]uint64

// Set marks bit.
func (m *Mask) Set(bit int) { m[bit/64] |= 1 << (bit % 64) }

// Clear unmarks bit.
func (m *Mask) Clear(bit int) { m[bit/64] &^= 1 << (bit % 64) }

// Reset unmarks every bit.
func (m *Mask) Reset() { *m = Mask{} }

// Has reports whether bit is marked.
func (m Mask) Has(bit int) bool { return m[bit/64]&(1<<(bit%64)) != 0 }

// IsZero reports whether no bit is marked.
func (m Mask) IsZero() bool { return m == Mask{} }

// Or returns the union of m and o.
func (m Mask) Or(o Mask) Mask {
	for i := range m {
		m[i] |= o[i]
	}
	return m
}

// Count returns the number of marked bits.
func (m Mask) Count() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}
