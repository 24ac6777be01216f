package main

import (
	"math/rand/v2"
	"os"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Summary is what a completed run produced.
type Summary struct {
	Mapping      *ClassMapping
	Manifest     *Manifest
	BytesWritten uint64
	FilesWritten int
}

// Process builds the processed dataset described by cfg: it walks cfg.Src,
// balances every artifact class into cfg.Dst and, once the whole tree is
// done, writes the class mapping and the manifest. Only a missing source root
// or a failure to persist the mapping or manifest is returned as an error;
// per-image problems are logged and recorded in the manifest.
func Process(cfg *AppConfig, rng *rand.Rand, resolver ClassResolver) (*Summary, error) {
	if err := CheckSourceRoot(cfg.Src); err != nil {
		return nil, err
	}
	if cfg.Clean {
		if err := os.RemoveAll(cfg.Dst); err != nil {
			return nil, errors.Wrapf(err, "cleaning %s", cfg.Dst)
		}
		log.Info().Str("dst", cfg.Dst).Msg("cleaned output directory")
	}

	writer := &DiskWriter{Root: cfg.Dst}
	gen := NewGenerator(cfg, rng, writer)
	mapping := NewClassMapping()
	manifest := &Manifest{
		RunID:       uuid.NewString(),
		Seed:        cfg.Seed,
		TargetCount: cfg.TargetCount,
		ValRatio:    cfg.ValRatio,
		Size:        cfg.Size,
	}

	err := WalkCorpus(cfg.Src, func(folder ArtifactFolder) error {
		id := resolver.Resolve(folder.Name)
		if prev, replaced := mapping.Set(id.ID, id.DisplayName); replaced {
			log.Warn().Str("class", id.ID).Str("previous", prev).Str("name", id.DisplayName).
				Str("folder", folder.Name).Msg("class id collision, later name wins")
		}
		log.Info().Str("class", id.ID).Str("name", id.DisplayName).
			Int("sources", len(folder.Images)).Msg(folder.Name)

		result := gen.Generate(ClassRecord{ClassIdentity: id, Folder: folder})
		manifest.Classes = append(manifest.Classes, result)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if err := WriteMapping(cfg.Mapping, mapping); err != nil {
		return nil, err
	}
	log.Info().Str("mapping", cfg.Mapping).Int("classes", mapping.Len()).Msg("mapping saved")

	if err := WriteManifest(cfg.ManifestPath(), manifest); err != nil {
		return nil, err
	}

	return &Summary{
		Mapping:      mapping,
		Manifest:     manifest,
		BytesWritten: writer.BytesWritten(),
		FilesWritten: writer.FilesWritten(),
	}, nil
}
