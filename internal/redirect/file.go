package redirect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ruleFile is the on-disk document read by the browser-side collaborator.
type ruleFile struct {
	Rules []Rule `json:"rules"`
}

// FilePrimitive publishes the active rule set as a JSON file. Each write
// goes to a temp file in the same directory and is renamed into place, so
// readers never see a partial document. Unchanged content is not rewritten.
type FilePrimitive struct {
	path string

	mu   sync.Mutex
	last []byte
}

// NewFilePrimitive returns a primitive writing to path.
func NewFilePrimitive(path string) *FilePrimitive {
	return &FilePrimitive{path: path}
}

// Path returns the rules file location.
func (f *FilePrimitive) Path() string {
	return f.path
}

func (f *FilePrimitive) Install(_ context.Context, rule Rule) error {
	return f.write(ruleFile{Rules: []Rule{rule}})
}

func (f *FilePrimitive) Remove(_ context.Context) error {
	return f.write(ruleFile{Rules: []Rule{}})
}

// Rules reads back the currently published rules.
func (f *FilePrimitive) Rules() ([]Rule, error) {
	b, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read rules: %w", err)
	}
	var doc ruleFile
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	return doc.Rules, nil
}

func (f *FilePrimitive) write(doc ruleFile) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode rules: %w", err)
	}
	data = append(data, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.last == nil {
		if cur, err := os.ReadFile(f.path); err == nil {
			f.last = cur
		}
	}
	if bytes.Equal(f.last, data) {
		return nil
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create rules dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".rules-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}

	f.last = data
	return nil
}
