package journal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rustyeddy/tradeguard/risk"
)

const DefaultJSONPath = "pnl_log.json"

// JSONFile keeps the whole risk log in one indented JSON object keyed by
// date. Writes replace the file atomically via a temp file and rename.
type JSONFile struct {
	path string
	mu   sync.Mutex
}

func NewJSONFile(path string) *JSONFile {
	return &JSONFile{path: path}
}

func (j *JSONFile) Path() string { return j.path }

// ReadAll returns an empty log when the file does not exist yet.
func (j *JSONFile) ReadAll(_ context.Context) (risk.SnapshotLog, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return risk.SnapshotLog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", j.path, err)
	}

	out := risk.SnapshotLog{}
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", j.path, err)
	}
	return out, nil
}

func (j *JSONFile) WriteAll(_ context.Context, log risk.SnapshotLog) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	data, err := json.MarshalIndent(log, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal risk log: %w", err)
	}

	dir := filepath.Dir(j.path)
	tmp, err := os.CreateTemp(dir, ".pnl_log-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), j.path); err != nil {
		return fmt.Errorf("replace %s: %w", j.path, err)
	}
	return nil
}

func (j *JSONFile) Close() error { return nil }
