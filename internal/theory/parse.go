package theory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// ErrInvalidNote is returned by ParseNote for malformed input.
var ErrInvalidNote = errors.New("invalid note")

// ParseNote parses scientific pitch notation such as "C4", "F#3", "Bb3",
// "E♭4" or "Cs5". The clef is implied by the octave.
func ParseNote(s string) (Note, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Note{}, fmt.Errorf("parse %q: %w", s, ErrInvalidNote)
	}

	var l Letter
	switch strings.ToUpper(s[:1]) {
	case "C":
		l = C
	case "D":
		l = D
	case "E":
		l = E
	case "F":
		l = F
	case "G":
		l = G
	case "A":
		l = A
	case "B":
		l = B
	default:
		return Note{}, fmt.Errorf("parse %q: unknown letter: %w", s, ErrInvalidNote)
	}
	rest := s[1:]

	acc := Natural
	if r, size := utf8.DecodeRuneInString(rest); size > 0 {
		switch r {
		case '#', '♯', 's', 'S':
			acc = Sharp
			rest = rest[size:]
		case 'b', '♭':
			acc = Flat
			rest = rest[size:]
		case '♮':
			rest = rest[size:]
		}
	}

	octave, err := strconv.Atoi(rest)
	if err != nil {
		return Note{}, fmt.Errorf("parse %q: bad octave: %w", s, ErrInvalidNote)
	}
	return New(l, octave, acc), nil
}
