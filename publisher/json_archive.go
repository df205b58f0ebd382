package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// JSONArchive writes one indented JSON file per session into a directory.
type JSONArchive struct {
	dir string
}

func NewJSONArchive(dir string) (*JSONArchive, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("json archive: directory is required")
	}
	dir = filepath.Clean(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("json archive: %w", err)
	}
	return &JSONArchive{dir: dir}, nil
}

func (a *JSONArchive) path(id string) (string, error) {
	if id == "" || strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("json archive: invalid session id %q", id)
	}
	return filepath.Join(a.dir, id+".json"), nil
}

// Save replaces the session's file atomically.
func (a *JSONArchive) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := a.path(rec.SessionID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("json archive: encode: %w", err)
	}
	tmp, err := os.CreateTemp(a.dir, rec.SessionID+".*.tmp")
	if err != nil {
		return fmt.Errorf("json archive: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("json archive: write: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("json archive: write: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("json archive: %w", err)
	}
	return nil
}

func (a *JSONArchive) Load(ctx context.Context, sessionID string) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	path, err := a.path(sessionID)
	if err != nil {
		return Record{}, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if err != nil {
		return Record{}, fmt.Errorf("json archive: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("json archive: decode %s: %w", path, err)
	}
	return rec, nil
}

func (a *JSONArchive) Close() error { return nil }
