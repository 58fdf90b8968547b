package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"solanaIndexer/internal/dex"
)

// ParseVenues validates venue names against the supported set.
func ParseVenues(inputs []string, supported []string) ([]string, error) {
	known := make(map[string]struct{}, len(supported))
	for _, venue := range supported {
		known[venue] = struct{}{}
	}

	venues := make([]string, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))
	for _, input := range inputs {
		input = strings.ToLower(strings.TrimSpace(input))
		if input == "" {
			continue
		}
		if _, ok := known[input]; !ok {
			return nil, fmt.Errorf("unsupported venue: %s", input)
		}
		if _, dup := seen[input]; dup {
			continue
		}
		seen[input] = struct{}{}
		venues = append(venues, input)
	}
	return venues, nil
}

// ParsePairs converts "pair=token0:token1" entries into a Uniswap V2 pair table.
func ParsePairs(inputs []string) (map[string]dex.PairTokens, error) {
	pairs := make(map[string]dex.PairTokens, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		pair, tokens, ok := strings.Cut(input, "=")
		if !ok {
			return nil, fmt.Errorf("invalid pair entry: %s", input)
		}
		token0, token1, ok := strings.Cut(tokens, ":")
		if !ok {
			return nil, fmt.Errorf("invalid pair tokens: %s", input)
		}
		for _, addr := range []string{pair, token0, token1} {
			if !common.IsHexAddress(strings.TrimSpace(addr)) {
				return nil, fmt.Errorf("invalid address: %s", addr)
			}
		}
		pairs[common.HexToAddress(strings.TrimSpace(pair)).Hex()] = dex.PairTokens{
			Token0: common.HexToAddress(strings.TrimSpace(token0)).Hex(),
			Token1: common.HexToAddress(strings.TrimSpace(token1)).Hex(),
		}
	}
	return pairs, nil
}
