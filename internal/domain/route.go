package domain

// RouteQuery describes a swap to be quoted by the routing venue.
type RouteQuery struct {
	InputMint      string
	OutputMint     string
	Amount         uint64
	SlippageBps    uint16
	PlatformFeeBps uint16
}

// Route is a priced swap path returned by the venue. Quote carries the
// venue's raw quote response and is handed back verbatim when building
// the swap transaction.
type Route struct {
	InAmount  uint64
	OutAmount uint64
	Quote     []byte
}

// SwapParams carries the signer-specific inputs for building the swap
// transaction from a route.
type SwapParams struct {
	UserPublicKey string
	FeeAccount    string
	TipLamports   uint64
}
