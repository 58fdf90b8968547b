package model

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/gagliardetto/solana-go"
)

func TestRawDecodedEventJSONRoundTrip(t *testing.T) {
	original := RawDecodedEvent{
		Chain:     "solana",
		Venue:     "raydium-amm-v4",
		Signature: "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW",
		Slot:      250000000,
		BlockTime: 1700000000,
		Accounts: []solana.PublicKey{
			solana.MustPublicKeyFromBase58("TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"),
			solana.MustPublicKeyFromBase58("675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8"),
		},
		Instruction: RaydiumSwapBaseIn{AmountIn: 1000, MinimumAmountOut: 990},
	}

	b, err := json.Marshal(original)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded RawDecodedEvent
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if !reflect.DeepEqual(original, decoded) {
		t.Fatalf("round-trip mismatch: %+v != %+v", original, decoded)
	}
}

func TestRawDecodedEventUnknownInstruction(t *testing.T) {
	line := []byte(`{"chain":"solana","venue":"raydium-amm-v4","signature":"x","slot":1,"instruction":"raydium.deposit","data":{"max_coin_amount":5}}`)

	var decoded RawDecodedEvent
	if err := json.Unmarshal(line, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	ix, ok := decoded.Instruction.(Unrecognized)
	if !ok {
		t.Fatalf("expected Unrecognized, got %T", decoded.Instruction)
	}
	if ix.Tag() != "raydium.deposit" {
		t.Fatalf("tag mismatch: %s", ix.Tag())
	}
}

func TestRawDecodedEventBadPayload(t *testing.T) {
	line := []byte(`{"venue":"pumpfun","instruction":"pumpfun.trade_event","data":{"sol_amount":"not-a-number"}}`)

	var decoded RawDecodedEvent
	if err := json.Unmarshal(line, &decoded); err == nil {
		t.Fatalf("expected payload decode error")
	}
}

func TestRawDecodedEventAccountOutOfRange(t *testing.T) {
	ev := RawDecodedEvent{Accounts: []solana.PublicKey{solana.SystemProgramID}}

	if _, ok := ev.Account(0); !ok {
		t.Fatalf("expected account 0")
	}
	if _, ok := ev.Account(16); ok {
		t.Fatalf("account 16 should be missing")
	}
	if _, ok := ev.Account(-1); ok {
		t.Fatalf("negative index should be missing")
	}
}
