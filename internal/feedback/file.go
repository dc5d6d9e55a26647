package feedback

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"salescomposer/internal/domain"
)

// FileBackend stores the dataset as one indented JSON document.
type FileBackend struct {
	path string
}

func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Read treats a missing file as an empty dataset.
func (b *FileBackend) Read(ctx context.Context) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}
	raw, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return Dataset{}, nil
	}
	if err != nil {
		return Dataset{}, fmt.Errorf("read %s: %w", b.path, err)
	}
	var data Dataset
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return Dataset{}, fmt.Errorf("parse %s: %w", b.path, err)
	}
	return data, nil
}

// Write goes through a temp file and rename so a crash never leaves a
// half-written document behind.
func (b *FileBackend) Write(ctx context.Context, data Dataset) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if data.FeedbackEntries == nil {
		data.FeedbackEntries = []domain.FeedbackEntry{}
	}
	if data.GlobalOverrides == nil {
		data.GlobalOverrides = []domain.GlobalOverride{}
	}
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".feedback-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), b.path)
}
