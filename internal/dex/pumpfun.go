package dex

import (
	"time"

	"solanaIndexer/internal/model"
)

// PumpfunNormalizer turns Pumpfun bonding-curve trade events into trade events.
// Other Pumpfun instructions are skipped.
type PumpfunNormalizer struct {
	layout Layout
}

func NewPumpfunNormalizer(layout Layout) *PumpfunNormalizer {
	return &PumpfunNormalizer{layout: layout}
}

func (n *PumpfunNormalizer) Normalize(raw model.RawDecodedEvent, indexedAt time.Time) (*model.CanonicalEvent, error) {
	trade, ok := raw.Instruction.(model.PumpfunTrade)
	if !ok {
		// Ignored, not an error.
		return nil, nil
	}

	if err := validSolanaSignature(raw.Signature); err != nil {
		return nil, err
	}

	mint := account(raw, n.layout.TokenAMint)
	if !trade.Mint.IsZero() {
		mint = trade.Mint.String()
	}
	trader := account(raw, n.layout.Trader)
	if !trade.User.IsZero() {
		trader = trade.User.String()
	}

	sol, tokens := fromUint64(trade.SolAmount), fromUint64(trade.TokenAmount)
	indexedAt = indexedAt.UTC()
	timestamp := trade.Timestamp
	if timestamp <= 0 {
		timestamp = eventTimestamp(raw.BlockTime, indexedAt.Unix())
	}

	return &model.CanonicalEvent{
		EventType: model.EventTypeTrade,
		Chain:     chainOrDefault(raw.Chain, "solana"),
		Dex:       n.layout.Dex,
		Data: model.TradeData{
			Signature:            raw.Signature,
			Slot:                 raw.Slot,
			Timestamp:            timestamp,
			BondingCurve:         account(raw, n.layout.PoolID),
			Mint:                 mint,
			SolAmount:            sol.String(),
			TokenAmount:          tokens.String(),
			IsBuy:                trade.IsBuy,
			Trader:               trader,
			FeeAmount:            n.layout.feeAmount(sol),
			Price:                ratio(sol, tokens),
			VirtualSolReserves:   fromUint64(trade.VirtualSolReserves).String(),
			VirtualTokenReserves: fromUint64(trade.VirtualTokenReserves).String(),
		},
		IndexedAt: indexedAt,
	}, nil
}
