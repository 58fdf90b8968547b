package model

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Instruction tags as emitted by the decoding layer.
const (
	TagRaydiumSwapBaseIn  = "raydium.swap_base_in"
	TagRaydiumSwapBaseOut = "raydium.swap_base_out"
	TagPumpfunTrade       = "pumpfun.trade_event"
	TagUniswapV2Swap      = "uniswap_v2.swap"
)

// Instruction is the closed set of decoded instruction variants.
// Anything outside the set decodes to Unrecognized.
type Instruction interface {
	Tag() string
	isInstruction()
}

// RaydiumSwapBaseIn is an exact-input swap on a Raydium AMM v4 pool.
type RaydiumSwapBaseIn struct {
	AmountIn         uint64 `json:"amount_in"`
	MinimumAmountOut uint64 `json:"minimum_amount_out"`
}

// RaydiumSwapBaseOut is an exact-output swap on a Raydium AMM v4 pool.
type RaydiumSwapBaseOut struct {
	MaxAmountIn uint64 `json:"max_amount_in"`
	AmountOut   uint64 `json:"amount_out"`
}

// PumpfunTrade is the trade event emitted by the Pumpfun bonding curve program.
type PumpfunTrade struct {
	Mint                 solana.PublicKey `json:"mint"`
	SolAmount            uint64           `json:"sol_amount"`
	TokenAmount          uint64           `json:"token_amount"`
	IsBuy                bool             `json:"is_buy"`
	User                 solana.PublicKey `json:"user"`
	Timestamp            int64            `json:"timestamp"`
	VirtualSolReserves   uint64           `json:"virtual_sol_reserves"`
	VirtualTokenReserves uint64           `json:"virtual_token_reserves"`
}

// UniswapV2Swap is the Swap log of a Uniswap V2 pair. Amounts are uint256 decimal strings.
type UniswapV2Swap struct {
	Sender     string `json:"sender"`
	To         string `json:"to"`
	Pair       string `json:"pair"`
	Amount0In  string `json:"amount0_in"`
	Amount1In  string `json:"amount1_in"`
	Amount0Out string `json:"amount0_out"`
	Amount1Out string `json:"amount1_out"`
}

// Unrecognized is any instruction the indexer does not publish.
type Unrecognized struct {
	Name    string
	Payload json.RawMessage
}

func (RaydiumSwapBaseIn) Tag() string  { return TagRaydiumSwapBaseIn }
func (RaydiumSwapBaseOut) Tag() string { return TagRaydiumSwapBaseOut }
func (PumpfunTrade) Tag() string       { return TagPumpfunTrade }
func (UniswapV2Swap) Tag() string      { return TagUniswapV2Swap }
func (u Unrecognized) Tag() string     { return u.Name }

func (RaydiumSwapBaseIn) isInstruction()  {}
func (RaydiumSwapBaseOut) isInstruction() {}
func (PumpfunTrade) isInstruction()       {}
func (UniswapV2Swap) isInstruction()      {}
func (Unrecognized) isInstruction()       {}

func decodeInstruction(tag string, data json.RawMessage) (Instruction, error) {
	switch tag {
	case TagRaydiumSwapBaseIn:
		var ix RaydiumSwapBaseIn
		return ix, unmarshalPayload(tag, data, &ix)
	case TagRaydiumSwapBaseOut:
		var ix RaydiumSwapBaseOut
		return ix, unmarshalPayload(tag, data, &ix)
	case TagPumpfunTrade:
		var ix PumpfunTrade
		return ix, unmarshalPayload(tag, data, &ix)
	case TagUniswapV2Swap:
		var ix UniswapV2Swap
		return ix, unmarshalPayload(tag, data, &ix)
	default:
		return Unrecognized{Name: tag, Payload: data}, nil
	}
}

func unmarshalPayload(tag string, data json.RawMessage, target interface{}) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("decode %s payload: %w", tag, err)
	}
	return nil
}
