package theory

// Key is one key of the on-screen keyboard.
type Key struct {
	Note  Note   `json:"-"`
	Name  string `json:"name"`
	MIDI  int    `json:"midi"`
	Black bool   `json:"black"`

	// Position is the white-key slot the key is drawn at. Black keys sit on
	// the boundary to the right of their slot.
	Position int `json:"position"`
}

// blackLetters are the letters whose sharp is a black key.
var blackLetters = []Letter{C, D, F, G, A}

// Keyboard returns the trainer's key layout: white keys from B2 to C5 and the
// black keys of octaves 3 and 4. White keys come first, in pitch order.
func Keyboard() []Key {
	keys := make([]Key, 0, 26)

	white := []Note{New(B, 2, Natural)}
	for octave := 3; octave <= 4; octave++ {
		for _, l := range Letters {
			white = append(white, New(l, octave, Natural))
		}
	}
	white = append(white, New(C, 5, Natural))

	for i, n := range white {
		keys = append(keys, newKey(n, false, i))
	}

	for octave := 3; octave <= 4; octave++ {
		for _, l := range blackLetters {
			n := New(l, octave, Sharp)
			// B2 occupies slot 0, so octave 3 starts at slot 1.
			pos := int(l) + (octave-3)*7 + 1
			keys = append(keys, newKey(n, true, pos))
		}
	}
	return keys
}

func newKey(n Note, black bool, pos int) Key {
	return Key{
		Note:     n,
		Name:     n.String(),
		MIDI:     n.MIDIPitch(),
		Black:    black,
		Position: pos,
	}
}
