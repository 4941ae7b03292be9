package code

import "fmt"

// mlsTaps are feedback taps producing maximal-length sequences, per register size.
var mlsTaps = map[int][]int{
	2: {1}, 3: {2}, 4: {3}, 5: {3}, 6: {5}, 7: {6}, 8: {7, 6, 1},
	9: {5}, 10: {7}, 11: {9}, 12: {11, 10, 4}, 13: {12, 11, 8},
	14: {13, 12, 2}, 15: {14}, 16: {15, 13, 4}, 17: {14}, 18: {11},
	19: {18, 17, 14}, 20: {17}, 21: {19}, 22: {21}, 23: {18},
	24: {23, 22, 17}, 25: {22}, 26: {25, 24, 20}, 27: {26, 25, 22},
	28: {25}, 29: {27}, 30: {29, 28, 7}, 31: {28}, 32: {31, 30, 10},
}

// maxGenerateBits bounds generation to codes that can be displayed in practice.
const maxGenerateBits = 20

// MaxLenSeq generates the maximal-length sequence of 2^nbits-1 symbols from a
// linear feedback shift register seeded with state. A nil state means all ones.
func MaxLenSeq(nbits int, state []int) (Code, error) {
	taps, ok := mlsTaps[nbits]
	if !ok || nbits > maxGenerateBits {
		return Code{}, fmt.Errorf("%w: unsupported register size %d (valid: 2-%d)", ErrInvalidCode, nbits, maxGenerateBits)
	}

	reg := make([]int, nbits)
	if state == nil {
		for i := range reg {
			reg[i] = 1
		}
	} else {
		if len(state) != nbits {
			return Code{}, fmt.Errorf("%w: state has %d bits, want %d", ErrInvalidCode, len(state), nbits)
		}
		zero := true
		for i, v := range state {
			if v != 0 {
				reg[i] = 1
				zero = false
			}
		}
		if zero {
			return Code{}, fmt.Errorf("%w: register state must not be all zeros", ErrInvalidCode)
		}
	}

	length := (1 << nbits) - 1
	seq := make([]int, length)
	idx := 0
	for i := 0; i < length; i++ {
		feedback := reg[idx]
		seq[i] = feedback
		for _, tap := range taps {
			feedback ^= reg[(tap+idx)%nbits]
		}
		reg[idx] = feedback
		idx = (idx + 1) % nbits
	}

	return FromBits(seq)
}
