package dex

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"

	"solanaIndexer/internal/model"
)

// PairTokens are the token0 and token1 addresses of a Uniswap V2 pair.
type PairTokens struct {
	Token0 string `mapstructure:"token0"`
	Token1 string `mapstructure:"token1"`
}

// UniswapV2Normalizer turns Uniswap V2 pair Swap logs into swap events.
type UniswapV2Normalizer struct {
	layout Layout
	chain  string
	pairs  map[common.Address]PairTokens
}

func NewUniswapV2Normalizer(layout Layout, chain string, pairs map[string]PairTokens) (*UniswapV2Normalizer, error) {
	if chain == "" {
		chain = "ethereum"
	}
	normalized := make(map[common.Address]PairTokens, len(pairs))
	for pair, tokens := range pairs {
		for _, addr := range []string{pair, tokens.Token0, tokens.Token1} {
			if !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("invalid address in pair table: %s", addr)
			}
		}
		normalized[common.HexToAddress(pair)] = PairTokens{
			Token0: common.HexToAddress(tokens.Token0).Hex(),
			Token1: common.HexToAddress(tokens.Token1).Hex(),
		}
	}
	return &UniswapV2Normalizer{layout: layout, chain: chain, pairs: normalized}, nil
}

func (n *UniswapV2Normalizer) Normalize(raw model.RawDecodedEvent, indexedAt time.Time) (*model.CanonicalEvent, error) {
	swap, ok := raw.Instruction.(model.UniswapV2Swap)
	if !ok {
		// Ignored, not an error.
		return nil, nil
	}

	if err := validTxHash(raw.Signature); err != nil {
		return nil, err
	}
	if !common.IsHexAddress(swap.Pair) {
		return nil, malformed("invalid pair address: %q", swap.Pair)
	}
	pair := common.HexToAddress(swap.Pair)

	var trader string
	if swap.Sender != "" {
		if !common.IsHexAddress(swap.Sender) {
			return nil, malformed("invalid sender address: %q", swap.Sender)
		}
		trader = common.HexToAddress(swap.Sender).Hex()
	}

	amounts := make(map[string]decimal.Decimal, 4)
	for field, value := range map[string]string{
		"amount0_in":  swap.Amount0In,
		"amount1_in":  swap.Amount1In,
		"amount0_out": swap.Amount0Out,
		"amount1_out": swap.Amount1Out,
	} {
		if value == "" {
			value = "0"
		}
		d, err := parseAmount(field, value)
		if err != nil {
			return nil, err
		}
		amounts[field] = d
	}

	var (
		in, out decimal.Decimal
		aToB    bool
	)
	switch {
	case !amounts["amount0_in"].IsZero():
		in, out, aToB = amounts["amount0_in"], amounts["amount1_out"], true
	case !amounts["amount1_in"].IsZero():
		in, out, aToB = amounts["amount1_in"], amounts["amount0_out"], false
	default:
		return nil, malformed("swap has no input amount")
	}

	tokens := n.pairs[pair]
	indexedAt = indexedAt.UTC()
	return &model.CanonicalEvent{
		EventType: model.EventTypeSwap,
		Chain:     n.chain,
		Dex:       n.layout.Dex,
		Data: model.SwapData{
			Signature:      strings.ToLower(raw.Signature),
			Slot:           raw.Slot,
			Timestamp:      eventTimestamp(raw.BlockTime, indexedAt.Unix()),
			PoolID:         pair.Hex(),
			TokenAMint:     tokens.Token0,
			TokenBMint:     tokens.Token1,
			AmountIn:       in.String(),
			AmountOut:      out.String(),
			IsTokenAToB:    aToB,
			Trader:         trader,
			FeeAmount:      n.layout.feeAmount(in),
			Price:          swapPrice(in, out, aToB),
			PoolLiquidityA: "0",
			PoolLiquidityB: "0",
		},
		IndexedAt: indexedAt,
	}, nil
}

func validTxHash(hash string) error {
	b, err := hexutil.Decode(hash)
	if err != nil {
		return malformed("invalid tx hash %q: %v", hash, err)
	}
	if len(b) != common.HashLength {
		return malformed("invalid tx hash length %d", len(b))
	}
	return nil
}
