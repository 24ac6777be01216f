package main

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalkCorpus_MissingRoot(t *testing.T) {
	err := WalkCorpus(filepath.Join(t.TempDir(), "nope"), func(ArtifactFolder) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceRootMissing)
	assert.Contains(t, err.Error(), "nope")
}

func TestWalkCorpus_RootIsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	must.M(os.WriteFile(path, nil, 0o644))
	assert.ErrorIs(t, CheckSourceRoot(path), ErrSourceRootMissing)
}

func TestWalkCorpus(t *testing.T) {
	root := t.TempDir()
	gray := color.Gray{Y: 128}
	writeImage(t, filepath.Join(root, "bronze", "Shang_Ding_aa11", "b.png"), 8, 8, gray)
	writeImage(t, filepath.Join(root, "bronze", "Shang_Ding_aa11", "a.jpg"), 8, 8, gray)
	must.M(os.WriteFile(filepath.Join(root, "bronze", "Shang_Ding_aa11", "notes.txt"), []byte("x"), 0o644))
	must.M(os.WriteFile(filepath.Join(root, "bronze", "Shang_Ding_aa11", "UPPER.JPEG"), []byte("x"), 0o644))
	must.M(os.MkdirAll(filepath.Join(root, "bronze", "Shang_Ding_aa11", "nested.jpg"), 0o755))
	must.M(os.MkdirAll(filepath.Join(root, "bronze", "Zhou_Empty_bb22"), 0o755))
	writeImage(t, filepath.Join(root, "ceramic", "Tang_Horse_cc33", "h.jpeg"), 8, 8, gray)
	must.M(os.WriteFile(filepath.Join(root, "stray.jpg"), []byte("x"), 0o644))

	var got []ArtifactFolder
	require.NoError(t, WalkCorpus(root, func(f ArtifactFolder) error {
		got = append(got, f)
		return nil
	}))

	require.Len(t, got, 2)
	assert.Equal(t, "bronze", got[0].Category)
	assert.Equal(t, "Shang_Ding_aa11", got[0].Name)
	dir := filepath.Join(root, "bronze", "Shang_Ding_aa11")
	assert.Equal(t, []string{
		filepath.Join(dir, "UPPER.JPEG"),
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.png"),
	}, got[0].Images)
	assert.Equal(t, "ceramic", got[1].Category)
	assert.Equal(t, []string{filepath.Join(root, "ceramic", "Tang_Horse_cc33", "h.jpeg")}, got[1].Images)
}

func TestWalkCorpus_CallbackErrorStops(t *testing.T) {
	root := t.TempDir()
	writeImage(t, filepath.Join(root, "c", "A_B_1", "x.png"), 4, 4, color.White)
	writeImage(t, filepath.Join(root, "c", "A_B_2", "x.png"), 4, 4, color.White)

	calls := 0
	err := WalkCorpus(root, func(ArtifactFolder) error {
		calls++
		return os.ErrPermission
	})
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, 1, calls)
}
