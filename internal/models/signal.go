package models

// Signal is a strategy decision for the next entry.
type Signal string

const (
	SignalNone  Signal = ""
	SignalLong  Signal = "LONG"
	SignalShort Signal = "SHORT"
)

// Side converts an actionable signal into a position side.
// Only valid for SignalLong / SignalShort.
func (s Signal) Side() Side {
	if s == SignalShort {
		return SideShort
	}
	return SideLong
}
