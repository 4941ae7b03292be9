package speller

import (
	"fmt"
	"math/rand/v2"
	"strconv"
	"strings"
)

// DrawTargets returns count training targets drawn without replacement from
// the cells [0, cells). The pool is reshuffled and drawn again once
// exhausted, so every cell appears before any appears twice.
func DrawTargets(count, cells int, seed uint64) ([]int, error) {
	if count <= 0 {
		return nil, ErrNoTargets
	}
	if cells <= 0 {
		return nil, fmt.Errorf("%w: no cells to draw from", ErrInvalidTarget)
	}

	rng := rand.New(rand.NewPCG(seed, seed>>1|1))
	targets := make([]int, 0, count)
	var pool []int
	for len(targets) < count {
		if len(pool) == 0 {
			pool = rng.Perm(cells)
		}
		targets = append(targets, pool[0])
		pool = pool[1:]
	}
	return targets, nil
}

// TargetsFromSymbols maps each character of selection to its cell in symbols.
func TargetsFromSymbols(symbols, selection string) ([]int, error) {
	if selection == "" {
		return nil, ErrNoTargets
	}
	index := []rune(symbols)
	targets := make([]int, 0, len(selection))
	for _, r := range selection {
		i := indexRune(index, r)
		if i < 0 {
			return nil, fmt.Errorf("%w: symbol %q not in %q", ErrInvalidTarget, r, symbols)
		}
		targets = append(targets, i)
	}
	return targets, nil
}

// Symbol returns the label of a cell, or "" if it has none.
func Symbol(symbols string, cell int) string {
	r := []rune(symbols)
	if cell < 0 || cell >= len(r) {
		return ""
	}
	return string(r[cell])
}

func indexRune(runes []rune, r rune) int {
	for i, c := range runes {
		if c == r {
			return i
		}
	}
	return -1
}

// ResolveTargets reads selection as a count of targets to draw with seed, or
// else as a string of symbols to train in order.
func ResolveTargets(selection, symbols string, seed uint64) ([]int, error) {
	selection = strings.TrimSpace(selection)
	if n, err := strconv.Atoi(selection); err == nil {
		return DrawTargets(n, len([]rune(symbols)), seed)
	}
	return TargetsFromSymbols(symbols, selection)
}
