package game

import (
	"fmt"
	"strings"
)

// CodeLength is the number of pegs in a trial or secret code.
const CodeLength = 4

// Trial is an ordered four-color guess. The secret code is also a Trial.
type Trial [CodeLength]Color

// NewTrial builds a trial from four colors.
func NewTrial(c1, c2, c3, c4 Color) Trial {
	return Trial{c1, c2, c3, c4}
}

// ParseTrial parses exactly four single-letter color fields.
func ParseTrial(fields []string) (Trial, error) {
	var t Trial
	if len(fields) != CodeLength {
		return t, fmt.Errorf("trial needs %d colors, got %d", CodeLength, len(fields))
	}
	for i, f := range fields {
		c, ok := ParseColor(f)
		if !ok {
			return Trial{}, fmt.Errorf("invalid color %q at position %d", f, i+1)
		}
		t[i] = c
	}
	return t, nil
}

// Valid reports whether every position holds a recognised color.
func (t Trial) Valid() bool {
	for _, c := range t {
		if !c.Valid() {
			return false
		}
	}
	return true
}

// String renders the trial as space-separated colors, the wire form.
func (t Trial) String() string {
	parts := make([]string, CodeLength)
	for i, c := range t {
		parts[i] = c.String()
	}
	return strings.Join(parts, " ")
}

// Compact renders the trial without separators.
func (t Trial) Compact() string {
	var b strings.Builder
	for _, c := range t {
		b.WriteString(c.String())
	}
	return b.String()
}

// MarshalText implements encoding.TextMarshaler using the compact form.
func (t Trial) MarshalText() ([]byte, error) {
	return []byte(t.Compact()), nil
}

// Pegs is the score of a guess against a code.
type Pegs struct {
	Black int `json:"black"`
	White int `json:"white"`
}

// Exact reports whether all pegs are black.
func (p Pegs) Exact() bool {
	return p.Black == CodeLength
}

// Score compares guess against code. Black pegs are counted first and their
// slots removed from both sides; whites are the multiset intersection of the
// remaining colors.
func Score(guess, code Trial) Pegs {
	var p Pegs
	var spareGuess, spareCode [256]int

	for i := 0; i < CodeLength; i++ {
		if guess[i] == code[i] {
			p.Black++
			continue
		}
		spareGuess[guess[i]]++
		spareCode[code[i]]++
	}

	for _, c := range Colors {
		p.White += min(spareGuess[c], spareCode[c])
	}
	return p
}
