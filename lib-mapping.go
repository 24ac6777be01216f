package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// ClassMapping accumulates class_id -> display_name over a run. A later Set
// for the same class id replaces the earlier name.
type ClassMapping struct {
	names map[string]string
}

func NewClassMapping() *ClassMapping {
	return &ClassMapping{names: make(map[string]string)}
}

// Set records name for id and returns the name it replaced, if any.
func (m *ClassMapping) Set(id, name string) (prev string, replaced bool) {
	prev, replaced = m.names[id]
	m.names[id] = name
	return prev, replaced
}

// Get returns the display name recorded for id.
func (m *ClassMapping) Get(id string) (string, bool) {
	name, ok := m.names[id]
	return name, ok
}

// Len returns the number of class ids.
func (m *ClassMapping) Len() int { return len(m.names) }

// WriteMapping writes m as indented UTF-8 JSON to path. Non-ASCII names are
// written as is. The file is replaced atomically so readers never see a
// partial mapping.
func WriteMapping(path string, m *ClassMapping) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m.names); err != nil {
		return errors.Wrap(err, "encoding class mapping")
	}
	return writeFileAtomic(path, buf.Bytes())
}

// ReadMapping loads a mapping written by WriteMapping.
func ReadMapping(path string) (*ClassMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading class mapping %s", path)
	}
	m := NewClassMapping()
	if err := json.Unmarshal(data, &m.names); err != nil {
		return nil, errors.Wrapf(err, "decoding class mapping %s", path)
	}
	if m.names == nil {
		m.names = make(map[string]string)
	}
	return m, nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return errors.Wrapf(err, "creating temporary file for %s", path)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return errors.Wrapf(err, "chmod %s", tmp.Name())
	}
	return errors.Wrapf(os.Rename(tmp.Name(), path), "renaming to %s", path)
}
