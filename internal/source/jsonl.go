// Package source reads decoded instructions produced by the external decoding layer.
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"solanaIndexer/internal/jsoncodec"
	"solanaIndexer/internal/model"
)

const maxLineBytes = 4 * 1024 * 1024

// Handler receives each decoded event. A non-nil error stops the source.
type Handler func(ctx context.Context, event model.RawDecodedEvent) error

// Result counts what a source run read.
type Result struct {
	Lines     int
	Decoded   int
	Malformed int
}

// JSONLSource streams RawDecodedEvent lines from a file, or stdin when path is "-".
type JSONLSource struct {
	path   string
	stdin  io.Reader
	logger *zap.Logger
}

func NewJSONLSource(path string, logger *zap.Logger) *JSONLSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JSONLSource{path: path, stdin: os.Stdin, logger: logger}
}

// Run reads until EOF, ctx cancellation, or a handler error. Lines that fail to
// decode are counted and skipped. Cancellation returns even while a read is blocked,
// and closes the reader when it can be closed.
func (s *JSONLSource) Run(ctx context.Context, handle Handler) (Result, error) {
	var result Result
	if s.path == "" {
		return result, fmt.Errorf("input path is required")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	reader := s.stdin
	if s.path != "-" {
		file, err := os.Open(s.path)
		if err != nil {
			return result, fmt.Errorf("open input: %w", err)
		}
		defer file.Close()
		reader = file
	}
	if closer, ok := reader.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { closer.Close() })
		defer stop()
	}

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(reader)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
		for scanner.Scan() {
			line := append([]byte(nil), scanner.Bytes()...)
			select {
			case lines <- line:
			case <-ctx.Done():
				scanErr <- ctx.Err()
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		var line []byte
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case next, ok := <-lines:
			if !ok {
				if err := <-scanErr; err != nil {
					if ctxErr := ctx.Err(); ctxErr != nil {
						return result, ctxErr
					}
					return result, fmt.Errorf("scan input: %w", err)
				}
				return result, nil
			}
			line = next
		}
		result.Lines++

		if len(line) == 0 {
			continue
		}

		var event model.RawDecodedEvent
		if err := jsoncodec.Unmarshal(line, &event); err != nil {
			result.Malformed++
			s.logger.Warn("skip undecodable input line", zap.Int("line", result.Lines), zap.Error(err))
			continue
		}
		result.Decoded++

		if err := handle(ctx, event); err != nil {
			return result, err
		}
	}
}
