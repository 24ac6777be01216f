package main

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *AppConfig {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Src = filepath.Join(dir, "raw")
	cfg.Dst = filepath.Join(dir, "processed")
	cfg.Mapping = filepath.Join(dir, "id_to_name.json")
	cfg.TargetCount = 5
	cfg.Seed = 1234
	return &cfg
}

// outputs lists the files written for a class, across both splits.
func outputs(t *testing.T, dst, classID string) []string {
	t.Helper()
	var files []string
	for _, split := range []string{"train", "val"} {
		dir := filepath.Join(dst, split, classID)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			continue
		}
		require.NoError(t, err)
		for _, e := range entries {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	return files
}

func TestProcess_EndToEnd(t *testing.T) {
	cfg := testConfig(t)
	horse := filepath.Join(cfg.Src, "ceramic", "Tang_CelestialHorse_89f8c3")
	writeImage(t, filepath.Join(horse, "front.jpg"), 320, 240, color.RGBA{R: 180, G: 120, B: 60, A: 255})
	writeImage(t, filepath.Join(horse, "side.PNG"), 200, 300, color.RGBA{R: 90, G: 120, B: 60, A: 255})
	writeImage(t, filepath.Join(cfg.Src, "ceramic", "Song_三彩马_7f00aa", "a.jpg"), 64, 64, color.Gray{Y: 200})
	writeGarbage(t, filepath.Join(cfg.Src, "bronze", "Shang_Broken_dead01", "x.jpg"))
	must.M(os.MkdirAll(filepath.Join(cfg.Src, "bronze", "Zhou_Empty_e0e0e0"), 0o755))

	// Stale output from an earlier run is removed.
	stale := filepath.Join(cfg.Dst, "train", "old", "stale.jpg")
	writeImage(t, stale, 4, 4, color.White)

	sum, err := Process(cfg, newRNG(cfg.Seed), EraNameIDResolver{})
	require.NoError(t, err)
	assert.NoFileExists(t, stale)

	files := outputs(t, cfg.Dst, "89f8c3")
	require.Len(t, files, 5)
	var orig, aug int
	for _, f := range files {
		img, err := imaging.Open(f)
		require.NoError(t, err, f)
		assert.Equal(t, 224, img.Bounds().Dx(), f)
		assert.Equal(t, 224, img.Bounds().Dy(), f)
		switch base := filepath.Base(f); {
		case strings.HasPrefix(base, "orig_"):
			orig++
		case strings.HasPrefix(base, "aug_"):
			aug++
		}
	}
	assert.Equal(t, 2, orig)
	assert.Equal(t, 3, aug)
	assert.Len(t, outputs(t, cfg.Dst, "7f00aa"), 5)
	assert.Empty(t, outputs(t, cfg.Dst, "dead01"))
	assert.Empty(t, outputs(t, cfg.Dst, "e0e0e0"))

	mapping, err := ReadMapping(cfg.Mapping)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"89f8c3": "CelestialHorse",
		"7f00aa": "三彩马",
		"dead01": "Broken",
	}, mapping.names, "folders without images get no entry")

	manifest, err := ReadManifest(cfg.ManifestPath())
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), manifest.Seed)
	assert.NotEmpty(t, manifest.RunID)
	require.Len(t, manifest.Classes, 3)
	byID := map[string]ClassResult{}
	for _, c := range manifest.Classes {
		byID[c.ClassID] = c
	}
	assert.True(t, byID["89f8c3"].Complete)
	assert.Equal(t, 2, byID["89f8c3"].Originals)
	assert.False(t, byID["dead01"].Complete)
	assert.Equal(t, 1, byID["dead01"].Dropped)
	assert.Zero(t, byID["dead01"].Generated)
	assert.Equal(t, StopPoolExhausted, byID["dead01"].StopReason)
	assert.Empty(t, byID["89f8c3"].StopReason)

	assert.Equal(t, 10, sum.Manifest.Samples())
	assert.Len(t, sum.Manifest.Incomplete(), 1)
	assert.Positive(t, sum.BytesWritten)
	assert.Equal(t, 10, sum.FilesWritten)
}

func TestProcess_MissingSourceRoot(t *testing.T) {
	cfg := testConfig(t)
	keep := filepath.Join(cfg.Dst, "train", "x", "keep.jpg")
	writeImage(t, keep, 4, 4, color.White)

	_, err := Process(cfg, newRNG(1), EraNameIDResolver{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceRootMissing)
	assert.NoFileExists(t, cfg.Mapping, "no partial mapping is written")
	assert.FileExists(t, keep, "existing output is left alone")
}

func TestProcess_ClassIDCollisionLastWins(t *testing.T) {
	cfg := testConfig(t)
	cfg.TargetCount = 1
	writeImage(t, filepath.Join(cfg.Src, "a_jade", "Han_Disc_abc123", "1.png"), 16, 16, color.Gray{Y: 10})
	writeImage(t, filepath.Join(cfg.Src, "b_bronze", "Zhou_Mirror_abc123", "1.png"), 16, 16, color.Gray{Y: 20})

	sum, err := Process(cfg, newRNG(2), EraNameIDResolver{})
	require.NoError(t, err)

	name, ok := sum.Mapping.Get("abc123")
	require.True(t, ok)
	assert.Equal(t, "Mirror", name)
	assert.Equal(t, 1, sum.Mapping.Len())

	mapping, err := ReadMapping(cfg.Mapping)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"abc123": "Mirror"}, mapping.names)
}

func TestProcess_SameSeedSameSplits(t *testing.T) {
	run := func() []string {
		cfg := testConfig(t)
		cfg.TargetCount = 12
		writeImage(t, filepath.Join(cfg.Src, "c", "A_B_id1", "x.png"), 40, 30, color.Gray{Y: 60})
		_, err := Process(cfg, newRNG(77), EraNameIDResolver{})
		require.NoError(t, err)
		var rel []string
		for _, f := range outputs(t, cfg.Dst, "id1") {
			rel = append(rel, must.M1(filepath.Rel(cfg.Dst, f)))
		}
		return rel
	}
	assert.Equal(t, run(), run())
}

// dashResolver reads folders named ID-Name.
type dashResolver struct{}

func (dashResolver) Resolve(folder string) ClassIdentity {
	id, name, _ := strings.Cut(folder, "-")
	return ClassIdentity{ID: id, DisplayName: name}
}

func TestProcess_CustomResolver(t *testing.T) {
	cfg := testConfig(t)
	cfg.TargetCount = 2
	writeImage(t, filepath.Join(cfg.Src, "bells", "x1-Bell", "a.png"), 20, 20, color.Gray{Y: 90})

	sum, err := Process(cfg, newRNG(3), dashResolver{})
	require.NoError(t, err)
	name, ok := sum.Mapping.Get("x1")
	require.True(t, ok)
	assert.Equal(t, "Bell", name)
	assert.Len(t, outputs(t, cfg.Dst, "x1"), 2)
	assert.Equal(t, 2, sum.FilesWritten)
}
