package types

// Venue identifies an exchange where positions are held.
type Venue string

const (
	// VenueSynthetix is the on-chain perpetuals venue on Base.
	VenueSynthetix Venue = "Synthetix"
	// VenueBinance is the centralized perpetuals venue.
	VenueBinance Venue = "Binance"
)

// Side is the direction of a position.
type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// SignedSize applies the side convention to a raw size: positive for
// long, negative for short.
func SignedSize(size float64, side Side) float64 {
	if side == SideShort {
		return -size
	}
	return size
}
