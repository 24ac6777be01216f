package main

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/janpfeifer/must"
	"github.com/rs/zerolog"
	"gocv.io/x/gocv"
)

func init() {
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// writeImage saves a w x h image filled with c at path, creating parents.
func writeImage(t *testing.T, path string, w, h int, c color.Color) {
	t.Helper()
	must.M(os.MkdirAll(filepath.Dir(path), 0o755))
	must.M(imaging.Save(imaging.New(w, h, c), path))
}

// writeGarbage writes a file with an image extension that cannot be decoded.
func writeGarbage(t *testing.T, path string) {
	t.Helper()
	must.M(os.MkdirAll(filepath.Dir(path), 0o755))
	must.M(os.WriteFile(path, []byte("definitely not an image"), 0o644))
}

// solidMat returns a rows x cols BGR Mat filled with the given gray level.
func solidMat(rows, cols int, gray float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(gray, gray, gray, 0), rows, cols, gocv.MatTypeCV8UC3)
}
