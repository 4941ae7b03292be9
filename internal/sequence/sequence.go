// Package sequence provides the cyclic index generator that walks a stimulation
// code from a fixed start offset and counts completed traversals.
package sequence

import "fmt"

// Sequence is a cyclic index over a code of fixed length.
// It is not safe for concurrent use; callers serialize access.
type Sequence struct {
	length int
	start  int
	index  int
	cycle  int
}

// New creates a sequence of the given length positioned at start.
func New(length, start int) (*Sequence, error) {
	if length < 1 {
		return nil, fmt.Errorf("sequence length must be positive, got %d", length)
	}
	if start < 0 || start >= length {
		return nil, fmt.Errorf("sequence start %d out of range [0, %d)", start, length)
	}
	return &Sequence{length: length, start: start, index: start}, nil
}

// Next advances the index by one position, wrapping at the end of the code.
// Returning to the start position completes a cycle.
func (s *Sequence) Next() int {
	s.index++
	if s.index == s.length {
		s.index = 0
	}
	if s.index == s.start {
		s.cycle++
	}
	return s.index
}

// Prev moves the index back by one position, wrapping to length-1.
// Returning to the start position also completes a cycle.
func (s *Sequence) Prev() int {
	s.index--
	if s.index == -1 {
		s.index = s.length - 1
	}
	if s.index == s.start {
		s.cycle++
	}
	return s.index
}

// Reset rewinds to the start offset and clears the cycle count.
func (s *Sequence) Reset() {
	s.index = s.start
	s.cycle = 0
}

// Index returns the current position.
func (s *Sequence) Index() int { return s.index }

// Cycle returns the number of full traversals since the last reset.
func (s *Sequence) Cycle() int { return s.cycle }

// Start returns the start offset.
func (s *Sequence) Start() int { return s.start }

// Len returns the code length.
func (s *Sequence) Len() int { return s.length }
