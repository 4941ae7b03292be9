// Package code holds the binary stimulation code shared by every cell:
// parsing from bit strings, maximal-length sequence generation and the
// derived epoch duration.
package code

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
)

// DefaultPattern is the 31-bit m-sequence (5-bit register) used when no
// pattern or register size is configured.
const DefaultPattern = "0111110011010010000101011101100"

// ErrInvalidCode is returned for codes that cannot drive a stimulation.
var ErrInvalidCode = errors.New("invalid code")

// Code is an immutable binary sequence.
type Code struct {
	bits []bool
}

// Parse builds a Code from a string of '0' and '1' characters.
func Parse(s string) (Code, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Code{}, fmt.Errorf("%w: length %d, need at least 2", ErrInvalidCode, len(s))
	}
	bits := make([]bool, len(s))
	for i, r := range s {
		switch r {
		case '0':
		case '1':
			bits[i] = true
		default:
			return Code{}, fmt.Errorf("%w: unexpected symbol %q at position %d", ErrInvalidCode, r, i)
		}
	}
	return Code{bits: bits}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Code {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// FromBits builds a Code from a 0/1 slice.
func FromBits(bits []int) (Code, error) {
	var b strings.Builder
	for i, v := range bits {
		switch v {
		case 0:
			b.WriteByte('0')
		case 1:
			b.WriteByte('1')
		default:
			return Code{}, fmt.Errorf("%w: value %d at position %d", ErrInvalidCode, v, i)
		}
	}
	return Parse(b.String())
}

// Len returns the code length.
func (c Code) Len() int { return len(c.bits) }

// On reports whether position i is a 1.
func (c Code) On(i int) bool { return c.bits[i] }

// String returns the code as a bit string.
func (c Code) String() string {
	var b strings.Builder
	b.Grow(len(c.bits))
	for _, on := range c.bits {
		if on {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Ones counts the 1 symbols.
func (c Code) Ones() int {
	n := 0
	for _, on := range c.bits {
		if on {
			n++
		}
	}
	return n
}

// EpochLength returns the duration in seconds of one full code cycle at the
// given refresh rate, rounded to milliseconds.
func EpochLength(length int, rate float64) float64 {
	if rate <= 0 {
		return 0
	}
	return math.Round(float64(length)/rate*1000) / 1000
}

// RandomState draws a register state for MaxLenSeq from seed. The state is
// never all zeros.
func RandomState(nbits int, seed uint64) []int {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	state := make([]int, nbits)
	for {
		zero := true
		for i := range state {
			state[i] = rng.IntN(2)
			if state[i] == 1 {
				zero = false
			}
		}
		if !zero {
			return state
		}
	}
}
