package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// SampleWriter persists a generated sample. A sample only counts towards its
// class once Write returned nil.
type SampleWriter interface {
	Write(s GeneratedSample) error
}

// DiskWriter writes samples to Root/{split}/{class_id}/{file_name}, encoding
// them in the format of the source file's extension.
type DiskWriter struct {
	Root string

	bytes uint64
	files int
}

// Path returns where s is written.
func (w *DiskWriter) Path(s GeneratedSample) string {
	return filepath.Join(w.Root, s.Split.String(), s.ClassID, s.FileName())
}

// Write implements SampleWriter.
func (w *DiskWriter) Write(s GeneratedSample) error {
	ext := strings.ToLower(filepath.Ext(s.SourceName))
	if !imageExtensions[ext] {
		return errors.Errorf("no encoder for %q", s.SourceName)
	}
	buf, err := EncodeImage(ext, s.Image)
	if err != nil {
		return err
	}

	path := w.Path(s)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", filepath.Dir(path))
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}

	w.bytes += uint64(len(buf))
	w.files++
	return nil
}

// BytesWritten returns the encoded size of all samples written so far.
func (w *DiskWriter) BytesWritten() uint64 { return w.bytes }

// FilesWritten returns the number of samples written so far.
func (w *DiskWriter) FilesWritten() int { return w.files }
