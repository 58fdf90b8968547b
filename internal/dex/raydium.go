package dex

import (
	"time"

	"solanaIndexer/internal/model"
)

// RaydiumNormalizer turns Raydium AMM v4 swap instructions into swap events.
type RaydiumNormalizer struct {
	layout Layout
}

func NewRaydiumNormalizer(layout Layout) *RaydiumNormalizer {
	return &RaydiumNormalizer{layout: layout}
}

func (n *RaydiumNormalizer) Normalize(raw model.RawDecodedEvent, indexedAt time.Time) (*model.CanonicalEvent, error) {
	var amountIn, amountOut uint64
	switch ix := raw.Instruction.(type) {
	case model.RaydiumSwapBaseIn:
		amountIn, amountOut = ix.AmountIn, ix.MinimumAmountOut
	case model.RaydiumSwapBaseOut:
		amountIn, amountOut = ix.MaxAmountIn, ix.AmountOut
	default:
		// Ignored, not an error.
		return nil, nil
	}

	if err := validSolanaSignature(raw.Signature); err != nil {
		return nil, err
	}

	in, out := fromUint64(amountIn), fromUint64(amountOut)
	indexedAt = indexedAt.UTC()
	return &model.CanonicalEvent{
		EventType: model.EventTypeSwap,
		Chain:     chainOrDefault(raw.Chain, "solana"),
		Dex:       n.layout.Dex,
		Data: model.SwapData{
			Signature:      raw.Signature,
			Slot:           raw.Slot,
			Timestamp:      eventTimestamp(raw.BlockTime, indexedAt.Unix()),
			PoolID:         account(raw, n.layout.PoolID),
			TokenAMint:     account(raw, n.layout.TokenAMint),
			TokenBMint:     account(raw, n.layout.TokenBMint),
			AmountIn:       in.String(),
			AmountOut:      out.String(),
			IsTokenAToB:    true,
			Trader:         account(raw, n.layout.Trader),
			FeeAmount:      n.layout.feeAmount(in),
			Price:          swapPrice(in, out, true),
			PoolLiquidityA: "0",
			PoolLiquidityB: "0",
		},
		IndexedAt: indexedAt,
	}, nil
}

func chainOrDefault(chain, fallback string) string {
	if chain != "" {
		return chain
	}
	return fallback
}
