package domain

// PriceTick is one live market observation for a monitored token.
// Ticks for a given mint arrive with monotonically non-decreasing
// timestamps and are processed strictly in arrival order.
type PriceTick struct {
	Mint        string
	Price       float64
	TimestampMs int64
	// Volatility is the feed's recent volatility measure, 0..1. Widens
	// the dynamic trail when elevated.
	Volatility float64
	// SellVolumeSurge is set when the feed observes a sudden spike in
	// sell-side volume; forces an immediate partial exit.
	SellVolumeSurge bool
}
