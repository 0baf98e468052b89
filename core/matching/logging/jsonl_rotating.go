package logging

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// RotatingJSONLStore stores decisions in a JSONL file with automatic rotation.
type RotatingJSONLStore struct {
	mu     sync.Mutex
	logger *lumberjack.Logger
	path   string
}

// NewRotatingJSONLStore creates a store with rotation options in megabytes and days.
func NewRotatingJSONLStore(path string, maxSizeMB, maxBackups, maxAgeDays int) (*RotatingJSONLStore, error) {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
		MaxAge:     maxAgeDays,
		Compress:   false,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &RotatingJSONLStore{logger: lj, path: path}, nil
}

// Append writes the record and triggers rotation if needed.
func (s *RotatingJSONLStore) Append(_ context.Context, rec DecisionRecord) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.logger.Write(append(b, '\n'))
	return err
}

// Query reads all log files including rotated ones, oldest first.
func (s *RotatingJSONLStore) Query(_ context.Context, q Query) ([]DecisionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	files, err := filepath.Glob(s.path + "*")
	if err != nil {
		return nil, err
	}
	// backups carry a timestamp suffix; the active file sorts last
	sort.Slice(files, func(i, j int) bool {
		if files[i] == s.path || files[j] == s.path {
			return files[j] == s.path && files[i] != s.path
		}
		return files[i] < files[j]
	})
	var res []DecisionRecord
	for _, f := range files {
		file, err := os.Open(f)
		if err != nil {
			continue
		}
		res, err = scan(file, q, res)
		_ = file.Close()
		if err != nil {
			return nil, err
		}
	}
	return q.trim(res), nil
}

// Close closes the underlying writer.
func (s *RotatingJSONLStore) Close() error {
	return s.logger.Close()
}
