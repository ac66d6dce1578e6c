package theory

import "encoding/json"

// noteJSON is the wire form of a Note, carrying the derived coordinates a
// staff renderer needs.
type noteJSON struct {
	Name        string `json:"name"`
	Letter      string `json:"letter"`
	Octave      int    `json:"octave"`
	Accidental  string `json:"accidental"`
	Clef        string `json:"clef"`
	Duration    string `json:"duration"`
	MIDI        int    `json:"midi"`
	StaffOffset int    `json:"staff_offset"`
	StaffStep   int    `json:"staff_step"`
	LedgerLines int    `json:"ledger_lines"`
}

func (n Note) MarshalJSON() ([]byte, error) {
	acc := "natural"
	switch n.Accidental {
	case Sharp:
		acc = "sharp"
	case Flat:
		acc = "flat"
	}
	return json.Marshal(noteJSON{
		Name:        n.String(),
		Letter:      n.Letter.String(),
		Octave:      n.Octave,
		Accidental:  acc,
		Clef:        n.Clef.String(),
		Duration:    n.Duration.String(),
		MIDI:        n.MIDIPitch(),
		StaffOffset: n.StaffOffset(),
		StaffStep:   n.StaffStep(),
		LedgerLines: n.LedgerLines(),
	})
}
