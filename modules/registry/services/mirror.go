package services

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/jacksonlee411/registry-console/modules/registry/domain/types"
)

// Mirror persists the all-records snapshot with its timestamp so the cache
// survives restarts.
type Mirror interface {
	Load() (records []types.Record, at time.Time, ok bool, err error)
	Save(records []types.Record, at time.Time) error
	Remove() error
}

type FileMirror struct {
	path string
}

func NewFileMirror(dir string, registry string) *FileMirror {
	return &FileMirror{path: filepath.Join(dir, registry+"_all.json")}
}

type mirrorFile struct {
	Timestamp time.Time      `json:"timestamp"`
	Data      []types.Record `json:"data"`
}

func (m *FileMirror) Load() ([]types.Record, time.Time, bool, error) {
	raw, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, time.Time{}, false, nil
	}
	if err != nil {
		return nil, time.Time{}, false, err
	}
	var f mirrorFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, time.Time{}, false, err
	}
	return f.Data, f.Timestamp, true, nil
}

func (m *FileMirror) Save(records []types.Record, at time.Time) error {
	raw, err := json.Marshal(mirrorFile{Timestamp: at, Data: records})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return err
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}

func (m *FileMirror) Remove() error {
	err := os.Remove(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
