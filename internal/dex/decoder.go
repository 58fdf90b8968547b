package dex

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"solanaIndexer/internal/model"
)

var (
	// ErrMalformed marks a decoded event that cannot be normalized.
	ErrMalformed = errors.New("malformed event")
	// ErrUnknownVenue means no normalizer is registered for the event's venue.
	ErrUnknownVenue = errors.New("unknown venue")
)

// Normalizer maps a decoded instruction to a canonical event. A nil event with a nil
// error means the instruction is not of interest. Implementations do no I/O.
type Normalizer interface {
	Normalize(raw model.RawDecodedEvent, indexedAt time.Time) (*model.CanonicalEvent, error)
}

// Config selects account layouts and EVM settings for the registered normalizers.
type Config struct {
	Layouts  map[string]Layout
	EVMChain string
	// Pairs maps a Uniswap V2 pair address to its token0 and token1.
	Pairs map[string]PairTokens
}

// Registry dispatches events to the normalizer registered for their venue.
type Registry struct {
	byVenue map[string]Normalizer
}

// NewRegistry builds one normalizer per configured venue.
func NewRegistry(cfg Config) (*Registry, error) {
	layouts := cfg.Layouts
	if len(layouts) == 0 {
		layouts = DefaultLayouts()
	}

	r := &Registry{byVenue: make(map[string]Normalizer, len(layouts))}
	for venue, layout := range layouts {
		if err := layout.Validate(); err != nil {
			return nil, fmt.Errorf("venue %s: %w", venue, err)
		}
		switch venue {
		case VenueRaydiumAMMV4:
			r.byVenue[venue] = NewRaydiumNormalizer(layout)
		case VenuePumpfun:
			r.byVenue[venue] = NewPumpfunNormalizer(layout)
		case VenueUniswapV2:
			n, err := NewUniswapV2Normalizer(layout, cfg.EVMChain, cfg.Pairs)
			if err != nil {
				return nil, fmt.Errorf("venue %s: %w", venue, err)
			}
			r.byVenue[venue] = n
		default:
			return nil, fmt.Errorf("unsupported venue: %s", venue)
		}
	}
	return r, nil
}

// Normalize routes raw to its venue's normalizer.
func (r *Registry) Normalize(raw model.RawDecodedEvent, indexedAt time.Time) (*model.CanonicalEvent, error) {
	n, ok := r.byVenue[raw.Venue]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownVenue, raw.Venue)
	}
	return n.Normalize(raw, indexedAt)
}

// Venues lists the registered venues in sorted order.
func (r *Registry) Venues() []string {
	out := make([]string, 0, len(r.byVenue))
	for venue := range r.byVenue {
		out = append(out, venue)
	}
	sort.Strings(out)
	return out
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformed, fmt.Sprintf(format, args...))
}
