// Package jsoncodec encodes canonical events for the broker, failure ledger lines, and
// health responses, and decodes source and ledger lines.
package jsoncodec

import (
	"io"

	"github.com/bytedance/sonic"
)

// std produces the same output as encoding/json.
var std = sonic.ConfigStd

func Marshal(v any) ([]byte, error) {
	return std.Marshal(v)
}

// Unmarshal honors json.Unmarshaler, which CanonicalEvent and RawDecodedEvent rely on.
func Unmarshal(data []byte, v any) error {
	return std.Unmarshal(data, v)
}

// Encode writes v followed by a newline.
func Encode(w io.Writer, v any) error {
	return std.NewEncoder(w).Encode(v)
}
