package dex

import (
	"fmt"

	"github.com/gagliardetto/solana-go"

	"solanaIndexer/internal/model"
)

// Supported venues.
const (
	VenueRaydiumAMMV4 = "raydium-amm-v4"
	VenuePumpfun      = "pumpfun"
	VenueUniswapV2    = "uniswap-v2"
)

// NoAccount disables an account-derived field.
const NoAccount = -1

// Layout fixes where a venue's instruction keeps each account and the fee
// fraction applied to amount_in. Index values depend on the program version.
type Layout struct {
	Dex            string `mapstructure:"dex"`
	PoolID         int    `mapstructure:"pool_id"`
	TokenAMint     int    `mapstructure:"token_a_mint"`
	TokenBMint     int    `mapstructure:"token_b_mint"`
	Trader         int    `mapstructure:"trader"`
	FeeNumerator   uint64 `mapstructure:"fee_numerator"`
	FeeDenominator uint64 `mapstructure:"fee_denominator"`
}

// DefaultLayouts returns the account orderings of the supported programs.
// The Raydium trader index is sampled from mainnet transactions and unverified.
func DefaultLayouts() map[string]Layout {
	return map[string]Layout{
		VenueRaydiumAMMV4: {
			Dex:            "raydium",
			PoolID:         1,
			TokenAMint:     8,
			TokenBMint:     9,
			Trader:         16,
			FeeNumerator:   25,
			FeeDenominator: 10000,
		},
		VenuePumpfun: {
			Dex:            "pumpfun",
			PoolID:         3,
			TokenAMint:     2,
			TokenBMint:     NoAccount,
			Trader:         6,
			FeeNumerator:   100,
			FeeDenominator: 10000,
		},
		VenueUniswapV2: {
			Dex:            "uniswap_v2",
			PoolID:         NoAccount,
			TokenAMint:     NoAccount,
			TokenBMint:     NoAccount,
			Trader:         NoAccount,
			FeeNumerator:   30,
			FeeDenominator: 10000,
		},
	}
}

func (l Layout) Validate() error {
	if l.Dex == "" {
		return fmt.Errorf("dex label is required")
	}
	if l.FeeDenominator == 0 {
		return fmt.Errorf("fee denominator must be > 0")
	}
	if l.FeeNumerator > l.FeeDenominator {
		return fmt.Errorf("fee numerator exceeds denominator")
	}
	for name, idx := range map[string]int{
		"pool_id":      l.PoolID,
		"token_a_mint": l.TokenAMint,
		"token_b_mint": l.TokenBMint,
		"trader":       l.Trader,
	} {
		if idx < NoAccount {
			return fmt.Errorf("%s index must be >= %d", name, NoAccount)
		}
	}
	return nil
}

// account returns the base58 account at idx, or "" when idx is disabled or past the end.
func account(raw model.RawDecodedEvent, idx int) string {
	if idx == NoAccount {
		return ""
	}
	key, ok := raw.Account(idx)
	if !ok {
		return ""
	}
	return key.String()
}

func validSolanaSignature(sig string) error {
	if sig == "" {
		return malformed("missing signature")
	}
	if _, err := solana.SignatureFromBase58(sig); err != nil {
		return malformed("invalid signature %q: %v", sig, err)
	}
	return nil
}

func eventTimestamp(blockTime int64, fallback int64) int64 {
	if blockTime > 0 {
		return blockTime
	}
	return fallback
}
