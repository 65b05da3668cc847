package risk

// Scoring weights, exposed as tunable constants rather than buried in
// function bodies.
const (
	WeightMintAuthorityRevoked   = 20
	WeightFreezeAuthorityRevoked = 15
	WeightLPLocked               = 25
	WeightLPLockDurationBonus    = 5
	WeightLiquidityFull          = 10
	WeightHoneypotPassed         = 15
	WeightStandardSPL            = 10
	WeightToken2022Benign        = 15

	// MaxTopHolderPenalty caps the top-holder-overrun penalty at -20.
	MaxTopHolderPenalty = -20

	// LiquidityFullThresholdSOL is the quote-vault balance at and above
	// which the liquidity factor scores its full weight.
	LiquidityFullThresholdSOL = 10.0

	// sellSimTestTokenAmount is the nominal test amount for the sell
	// simulation: 1 000 tokens scaled by the standard 6-decimal convention.
	sellSimTestTokenAmount = 1000 * 1_000_000

	// stableToSOLRatio is the crude, fixed SOL-per-stablecoin-dollar ratio
	// used only to get a liquidity order-of-magnitude right when the quote
	// side is a stablecoin rather than wrapped SOL; it is not a price feed.
	stableToSOLRatio = 150.0
)
