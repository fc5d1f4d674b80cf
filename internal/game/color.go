// Package game implements the rules of the code-guessing game: colors,
// trials, peg scoring and the per-player session state machine.
package game

import "strings"

// Color is one peg color. The zero value is not a valid color.
type Color byte

const (
	Red    Color = 'R'
	Green  Color = 'G'
	Blue   Color = 'B'
	Yellow Color = 'Y'
	Orange Color = 'O'
	Purple Color = 'P'
)

// Colors lists the alphabet in canonical order.
var Colors = []Color{Red, Green, Blue, Yellow, Orange, Purple}

// Valid reports whether c belongs to the alphabet.
func (c Color) Valid() bool {
	switch c {
	case Red, Green, Blue, Yellow, Orange, Purple:
		return true
	}
	return false
}

// Name returns the human-readable color name.
func (c Color) Name() string {
	switch c {
	case Red:
		return "Red"
	case Green:
		return "Green"
	case Blue:
		return "Blue"
	case Yellow:
		return "Yellow"
	case Orange:
		return "Orange"
	case Purple:
		return "Purple"
	default:
		return "Unknown"
	}
}

func (c Color) String() string {
	if !c.Valid() {
		return "?"
	}
	return string(rune(c))
}

// ParseColor accepts exactly one upper-case letter of the alphabet.
func ParseColor(s string) (Color, bool) {
	if len(s) != 1 {
		return 0, false
	}
	c := Color(s[0])
	return c, c.Valid()
}

// ParseColorFold is ParseColor for user input, ignoring case.
func ParseColorFold(s string) (Color, bool) {
	return ParseColor(strings.ToUpper(s))
}
