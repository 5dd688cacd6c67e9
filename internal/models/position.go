package models

// Side of an open futures position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// OrderSide maps a position side to the order side that opens it.
func (s Side) OrderSide() string {
	if s == SideShort {
		return "SELL"
	}
	return "BUY"
}

// CloseOrderSide maps a position side to the order side that closes it.
func (s Side) CloseOrderSide() string {
	if s == SideShort {
		return "BUY"
	}
	return "SELL"
}

// Position is the single open futures position. It is a value: replaced
// wholesale on reconciliation, never mutated field by field.
type Position struct {
	Symbol     string
	Side       Side
	Quantity   float64
	EntryPrice float64
	EntryTime  int64 // epoch ms
}
