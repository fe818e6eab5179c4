package feed

import (
	"encoding/json"
	"fmt"

	"token-sniper/internal/domain"
)

// ParseCandidate decodes a wire-format candidate snapshot. Shared by the
// websocket client and the offline assessment CLI.
func ParseCandidate(data []byte) (domain.CandidateSnapshot, error) {
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return domain.CandidateSnapshot{}, fmt.Errorf("parse candidate: %w", err)
	}
	return p.toDomain(), nil
}

// candidatePayload is the wire form of a candidate notification.
type candidatePayload struct {
	Mint       string `json:"mint"`
	Pool       string `json:"pool"`
	CapturedAt int64  `json:"captured_at"`

	Price          float64 `json:"price"`
	LiquidityDepth float64 `json:"liquidity_depth"`
	Volume24h      float64 `json:"volume_24h"`
	Volatility     float64 `json:"volatility"`

	HolderCount        int     `json:"holder_count"`
	Top10Concentration float64 `json:"top10_concentration"`
	LPLockedPct        float64 `json:"lp_locked_pct"`

	Audit struct {
		Honeypot         bool `json:"honeypot"`
		Blacklisted      bool `json:"blacklisted"`
		TransferPausable bool `json:"transfer_pausable"`
		Mintable         bool `json:"mintable"`
		HiddenOwner      bool `json:"hidden_owner"`
		OwnershipRecall  bool `json:"ownership_recall"`
		BalanceMutation  bool `json:"balance_mutation"`
		ExternalCall     bool `json:"external_call"`
	} `json:"audit"`

	TradeSizes    []float64 `json:"trade_sizes"`
	UniqueTraders int       `json:"unique_traders"`
}

func (p candidatePayload) toDomain() domain.CandidateSnapshot {
	return domain.CandidateSnapshot{
		Mint:           p.Mint,
		Pool:           p.Pool,
		CapturedAt:     p.CapturedAt,
		Price:          p.Price,
		LiquidityDepth: p.LiquidityDepth,
		Volume24h:      p.Volume24h,
		Volatility:     p.Volatility,

		HolderCount:        p.HolderCount,
		Top10Concentration: p.Top10Concentration,
		LPLockedPct:        p.LPLockedPct,

		Audit: domain.AuditFlags{
			Honeypot:         p.Audit.Honeypot,
			Blacklisted:      p.Audit.Blacklisted,
			TransferPausable: p.Audit.TransferPausable,
			Mintable:         p.Audit.Mintable,
			HiddenOwner:      p.Audit.HiddenOwner,
			OwnershipRecall:  p.Audit.OwnershipRecall,
			BalanceMutation:  p.Audit.BalanceMutation,
			ExternalCall:     p.Audit.ExternalCall,
		},

		TradeSizes:    p.TradeSizes,
		UniqueTraders: p.UniqueTraders,
	}
}

// tickPayload is the wire form of a tick notification. The mint is
// implied by the subscription and filled in at dispatch.
type tickPayload struct {
	Price           float64 `json:"price"`
	TimestampMs     int64   `json:"ts"`
	Volatility      float64 `json:"volatility"`
	SellVolumeSurge bool    `json:"sell_volume_surge"`
}

func (p tickPayload) toDomain(mint string) domain.PriceTick {
	return domain.PriceTick{
		Mint:            mint,
		Price:           p.Price,
		TimestampMs:     p.TimestampMs,
		Volatility:      p.Volatility,
		SellVolumeSurge: p.SellVolumeSurge,
	}
}
