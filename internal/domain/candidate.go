package domain

// AuditFlags carries the contract-audit findings for a candidate token,
// as reported by the security-audit oracle.
type AuditFlags struct {
	Honeypot         bool // buys succeed, sells revert
	Blacklisted      bool // token or deployer on a known scam list
	TransferPausable bool // owner can pause transfers
	Mintable         bool // supply can be inflated after launch
	HiddenOwner      bool // ownership obscured behind proxy/backdoor
	OwnershipRecall  bool // renounced ownership can be taken back
	BalanceMutation  bool // owner can rewrite holder balances
	ExternalCall     bool // transfer path calls out to arbitrary contracts
}

// CandidateSnapshot is an immutable capture of a newly-listed token's
// market and audit state at a single point in time. Produced by the feed
// adapter; never mutated after capture.
type CandidateSnapshot struct {
	Mint       string // token mint address (base58)
	Pool       string // pool address, empty if unresolved
	CapturedAt int64  // Unix timestamp in milliseconds

	Price          float64
	LiquidityDepth float64 // pool depth in quote units
	Volume24h      float64
	Volatility     float64 // recent price volatility, 0..1

	HolderCount        int
	Top10Concentration float64 // fraction of supply held by top 10 holders
	LPLockedPct        float64 // fraction of LP tokens locked

	Audit AuditFlags

	// TradeSizes holds recent trade sizes in quote units, used for
	// distribution-based wash-trading detection. May be empty.
	TradeSizes []float64

	// UniqueTraders is the distinct address count behind TradeSizes.
	UniqueTraders int
}
