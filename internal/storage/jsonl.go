package storage

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"solanaIndexer/internal/jsoncodec"
	"solanaIndexer/internal/model"
)

const maxLineBytes = 4 * 1024 * 1024

// JsonlFailureLog appends failed events to a JSONL file. Entries are keyed by message
// id; a later line for the same id replaces the earlier one.
type JsonlFailureLog struct {
	path string
	mu   sync.Mutex
}

func NewJsonlFailureLog(path string) *JsonlFailureLog {
	return &JsonlFailureLog{path: path}
}

// PutFailureBatch appends a batch of failures as JSON lines.
func (s *JsonlFailureLog) PutFailureBatch(_ context.Context, failures []model.FailedEvent) error {
	if len(failures) == 0 {
		return nil
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create failures dir: %w", err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open failures file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	for _, failure := range failures {
		line, err := jsoncodec.Marshal(failure)
		if err != nil {
			return fmt.Errorf("marshal failed event %s: %w", failure.MessageID, err)
		}
		if _, err := writer.Write(line); err != nil {
			return fmt.Errorf("write failed event: %w", err)
		}
		if err := writer.WriteByte('\n'); err != nil {
			return fmt.Errorf("write newline: %w", err)
		}
	}

	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush failures: %w", err)
	}
	return nil
}

// LoadFailures reads recorded failures in order of first appearance, keeping the
// latest line for each message id.
func (s *JsonlFailureLog) LoadFailures(ctx context.Context) ([]model.FailedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open failures file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var out []model.FailedEvent
	index := make(map[string]int)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var failure model.FailedEvent
		if err := jsoncodec.Unmarshal(line, &failure); err != nil {
			return nil, fmt.Errorf("decode failure line %d: %w", lineNo, err)
		}
		if i, ok := index[failure.MessageID]; ok {
			out[i] = failure
			continue
		}
		index[failure.MessageID] = len(out)
		out = append(out, failure)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan failures file: %w", err)
	}
	return out, nil
}

// PurgeFailures rewrites the file without the given message ids. Superseded lines
// are compacted away.
func (s *JsonlFailureLog) PurgeFailures(ctx context.Context, messageIDs []string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	failures, err := s.LoadFailures(ctx)
	if err != nil {
		return err
	}

	drop := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		drop[id] = struct{}{}
	}
	kept := failures[:0]
	for _, f := range failures {
		if _, ok := drop[f.MessageID]; !ok {
			kept = append(kept, f)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp := s.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("open temp failures file: %w", err)
	}
	writer := bufio.NewWriter(file)
	for _, f := range kept {
		if err := jsoncodec.Encode(writer, f); err != nil {
			file.Close()
			return fmt.Errorf("write failed event %s: %w", f.MessageID, err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush failures: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close temp failures file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace failures file: %w", err)
	}
	return nil
}
