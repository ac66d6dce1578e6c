package theory

// Staff offsets of the middle line of each staff.
const (
	TrebleMiddleLine = 6  // B4
	BassMiddleLine   = -6 // D3
)

// MiddleLine returns the staff offset of the clef's middle line.
func (c Clef) MiddleLine() int {
	if c == Bass {
		return BassMiddleLine
	}
	return TrebleMiddleLine
}

// StaffStep returns the note's distance in diatonic steps from the middle
// line of its own clef. Positive values are higher on the staff; each step is
// half a line spacing. The five staff lines sit at -4, -2, 0, 2 and 4.
func (n Note) StaffStep() int {
	return n.StaffOffset() - n.Clef.MiddleLine()
}

// LedgerLines returns how many ledger lines the note needs: positive above
// the staff, negative below, zero when the note sits on or within the staff.
func (n Note) LedgerLines() int {
	step := n.StaffStep()
	switch {
	case step >= 6:
		return (step - 4) / 2
	case step <= -6:
		return -((-step - 4) / 2)
	}
	return 0
}
