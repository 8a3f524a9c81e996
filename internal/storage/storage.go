// Package storage writes run artifacts (raw endpoint data, summaries, reports) under
// the data directory.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"clubprogress/internal/components/telemetry"
)

const report_filestore_save = "filestore.save"

const (
	ExtJSON     = ".json"
	ExtMarkdown = ".md"
	ExtHTML     = ".html"
)

var ErrExtension = errors.New("unexpected file extension")

// PersistenceError is returned by every failed write, callers decide whether it is
// fatal for the artifact at hand.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

type FileStore struct {
	tel telemetry.API
}

func NewFileStore(tel telemetry.API) FileStore {
	return FileStore{tel: telemetry.NewScopedAPI("storage", tel)}
}

// EnsureDirs creates every directory in dirs.
func (s FileStore) EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			return &PersistenceError{Path: dir, Err: err}
		}
	}
	return nil
}

func (s FileStore) write(dir, name, ext string, contents []byte) (string, error) {
	path := filepath.Join(dir, name)
	if !strings.HasSuffix(name, ext) {
		err := &PersistenceError{Path: path, Err: fmt.Errorf("%w: want %s", ErrExtension, ext)}
		s.tel.ReportBroken(report_filestore_save, err)
		return "", err
	}
	err := os.MkdirAll(dir, 0755)
	if err == nil {
		err = os.WriteFile(path, contents, 0644)
	}
	if err != nil {
		perr := &PersistenceError{Path: path, Err: err}
		s.tel.ReportWarning(report_filestore_save, perr)
		return "", perr
	}
	s.tel.ReportDebug("saved file", path, len(contents))
	return path, nil
}

// SaveJSON writes v as indented JSON to dir/name, name must end in .json.
func (s FileStore) SaveJSON(dir, name string, v any) (string, error) {
	buff, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", &PersistenceError{Path: filepath.Join(dir, name), Err: err}
	}
	return s.write(dir, name, ExtJSON, buff)
}

// SaveText writes contents to dir/name, name must end in ext.
func (s FileStore) SaveText(dir, name, ext, contents string) (string, error) {
	return s.write(dir, name, ext, []byte(contents))
}

// LoadJSON reads dir/name into v.
func (s FileStore) LoadJSON(dir, name string, v any) error {
	path := filepath.Join(dir, name)
	buff, err := os.ReadFile(path)
	if err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	err = json.Unmarshal(buff, v)
	if err != nil {
		return &PersistenceError{Path: path, Err: err}
	}
	return nil
}
