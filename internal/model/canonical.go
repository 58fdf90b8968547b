package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event types carried in the envelope.
const (
	EventTypeSwap  = "swap"
	EventTypeTrade = "trade"
)

// EventData is the variant-specific payload of a CanonicalEvent.
type EventData interface {
	EventSignature() string
	EventSlot() uint64
}

// CanonicalEvent is the broker-ready envelope. Field names are fixed for downstream consumers.
type CanonicalEvent struct {
	EventType string    `json:"event_type"`
	Chain     string    `json:"chain"`
	Dex       string    `json:"dex"`
	Data      EventData `json:"data"`
	IndexedAt time.Time `json:"indexed_at"`
	// MessageID, when set, is reused as the broker message id. Replayed events carry
	// the id of their ledger entry.
	MessageID string `json:"-"`
}

// SwapData is the payload of a swap event. Amounts are decimal strings.
type SwapData struct {
	Signature      string `json:"signature"`
	Slot           uint64 `json:"slot"`
	Timestamp      int64  `json:"timestamp"`
	PoolID         string `json:"pool_id"`
	TokenAMint     string `json:"token_a_mint"`
	TokenBMint     string `json:"token_b_mint"`
	AmountIn       string `json:"amount_in"`
	AmountOut      string `json:"amount_out"`
	IsTokenAToB    bool   `json:"is_token_a_to_b"`
	Trader         string `json:"trader"`
	FeeAmount      string `json:"fee_amount"`
	Price          string `json:"price"`
	PoolLiquidityA string `json:"pool_liquidity_a"`
	PoolLiquidityB string `json:"pool_liquidity_b"`
}

// TradeData is the payload of a trade against a bonding curve.
type TradeData struct {
	Signature            string `json:"signature"`
	Slot                 uint64 `json:"slot"`
	Timestamp            int64  `json:"timestamp"`
	BondingCurve         string `json:"bonding_curve"`
	Mint                 string `json:"mint"`
	SolAmount            string `json:"sol_amount"`
	TokenAmount          string `json:"token_amount"`
	IsBuy                bool   `json:"is_buy"`
	Trader               string `json:"trader"`
	FeeAmount            string `json:"fee_amount"`
	Price                string `json:"price"`
	VirtualSolReserves   string `json:"virtual_sol_reserves"`
	VirtualTokenReserves string `json:"virtual_token_reserves"`
}

func (d SwapData) EventSignature() string  { return d.Signature }
func (d SwapData) EventSlot() uint64       { return d.Slot }
func (d TradeData) EventSignature() string { return d.Signature }
func (d TradeData) EventSlot() uint64      { return d.Slot }

// Signature returns the originating transaction signature, or "" without data.
func (e CanonicalEvent) Signature() string {
	if e.Data == nil {
		return ""
	}
	return e.Data.EventSignature()
}

// UnmarshalJSON decodes the data payload according to event_type.
func (e *CanonicalEvent) UnmarshalJSON(data []byte) error {
	var wire struct {
		EventType string          `json:"event_type"`
		Chain     string          `json:"chain"`
		Dex       string          `json:"dex"`
		Data      json.RawMessage `json:"data"`
		IndexedAt time.Time       `json:"indexed_at"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	var payload EventData
	switch wire.EventType {
	case EventTypeSwap:
		var swap SwapData
		if err := json.Unmarshal(wire.Data, &swap); err != nil {
			return fmt.Errorf("decode swap data: %w", err)
		}
		payload = swap
	case EventTypeTrade:
		var trade TradeData
		if err := json.Unmarshal(wire.Data, &trade); err != nil {
			return fmt.Errorf("decode trade data: %w", err)
		}
		payload = trade
	default:
		return fmt.Errorf("unsupported event type: %q", wire.EventType)
	}

	*e = CanonicalEvent{
		EventType: wire.EventType,
		Chain:     wire.Chain,
		Dex:       wire.Dex,
		Data:      payload,
		IndexedAt: wire.IndexedAt,
	}
	return nil
}
