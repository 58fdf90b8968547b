package model

import (
	"encoding/json"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// RawDecodedEvent is one decoded instruction with its transaction metadata.
type RawDecodedEvent struct {
	Chain       string
	Venue       string
	Signature   string
	Slot        uint64
	BlockTime   int64
	Accounts    []solana.PublicKey
	Instruction Instruction
}

type rawEventWire struct {
	Chain       string             `json:"chain"`
	Venue       string             `json:"venue"`
	Signature   string             `json:"signature"`
	Slot        uint64             `json:"slot"`
	BlockTime   int64              `json:"block_time"`
	Accounts    []solana.PublicKey `json:"accounts,omitempty"`
	Instruction string             `json:"instruction"`
	Data        json.RawMessage    `json:"data,omitempty"`
}

// MarshalJSON encodes the instruction as a tag plus its payload.
func (e RawDecodedEvent) MarshalJSON() ([]byte, error) {
	wire := rawEventWire{
		Chain:     e.Chain,
		Venue:     e.Venue,
		Signature: e.Signature,
		Slot:      e.Slot,
		BlockTime: e.BlockTime,
		Accounts:  e.Accounts,
	}
	if e.Instruction != nil {
		wire.Instruction = e.Instruction.Tag()
		if u, ok := e.Instruction.(Unrecognized); ok {
			wire.Data = u.Payload
		} else {
			data, err := json.Marshal(e.Instruction)
			if err != nil {
				return nil, fmt.Errorf("encode %s payload: %w", wire.Instruction, err)
			}
			wire.Data = data
		}
	}
	return json.Marshal(wire)
}

// UnmarshalJSON decodes a RawDecodedEvent, resolving the instruction tag to its variant.
func (e *RawDecodedEvent) UnmarshalJSON(data []byte) error {
	var wire rawEventWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	ix, err := decodeInstruction(wire.Instruction, wire.Data)
	if err != nil {
		return err
	}
	*e = RawDecodedEvent{
		Chain:       wire.Chain,
		Venue:       wire.Venue,
		Signature:   wire.Signature,
		Slot:        wire.Slot,
		BlockTime:   wire.BlockTime,
		Accounts:    wire.Accounts,
		Instruction: ix,
	}
	return nil
}

// Account returns the account at index, or the zero key when the list is too short.
func (e RawDecodedEvent) Account(index int) (solana.PublicKey, bool) {
	if index < 0 || index >= len(e.Accounts) {
		return solana.PublicKey{}, false
	}
	return e.Accounts[index], true
}
