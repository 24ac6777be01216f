// Package main builds a balanced, augmented image classification dataset from
// a raw two-level folder tree of artifact photographs:
// Scan: walk raw/{category}/{Era_Name_ShortID}/*.{jpg,jpeg,png}.
// Resolve: derive the class id (ShortID) and display name (Name) of each folder.
// Clean: inpaint bright watermark text in the bottom-right corner of originals.
// Augment: fill the class up to the target count with randomly transformed copies.
// Split: route every sample to train or val.
// Persist: write processed/{train|val}/{class_id}/ and the id to name mapping.

package main

import (
	"flag"
	"math/rand/v2"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Read flags
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	configFilename := flag.String("config", "local.env.yaml", "Config File")
	srcPath := flag.String("src", "", "sets raw dataset directory")
	dstPath := flag.String("dst", "", "sets processed dataset directory")
	mappingPath := flag.String("mapping", "", "sets class id to name mapping path")
	seedFlag := flag.Uint64("seed", 0, "random seed, 0 derives one from the clock")
	debugFlag := flag.Bool("debug", false, "Debug logging level")
	flag.Parse()

	// Read config file
	cfg, err := LoadConfig(*configFilename)
	if err != nil {
		panic(err)
	}

	// Flags win over the config file
	if *srcPath != "" {
		cfg.Src = *srcPath
	}
	if *dstPath != "" {
		cfg.Dst = *dstPath
	}
	if *mappingPath != "" {
		cfg.Mapping = *mappingPath
	}
	if *seedFlag != 0 {
		cfg.Seed = *seedFlag
	}
	if *debugFlag {
		cfg.Debug = true
	}

	// Set log level
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	if cfg.Info {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
	if cfg.Human {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Str("config", *configFilename).Msg("invalid configuration")
	}

	// Start
	start := time.Now()
	seed := cfg.ResolveSeed()
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	log.Info().Uint64("seed", seed).Str("src", cfg.Src).Str("dst", cfg.Dst).
		Int("target", cfg.TargetCount).Float64("valRatio", cfg.ValRatio).Msg("starting")

	sum, err := Process(cfg, rng, EraNameIDResolver{})
	if errors.Is(err, ErrSourceRootMissing) {
		log.Fatal().Err(err).Str("src", cfg.Src).Msg("source directory not found")
	}
	if err != nil {
		log.Fatal().Err(err).Msg("processing failed")
	}

	// Done
	incomplete := sum.Manifest.Incomplete()
	for _, c := range incomplete {
		log.Warn().Str("class", c.ClassID).Int("generated", c.Generated).
			Int("target", sum.Manifest.TargetCount).Str("stopReason", c.StopReason).Msg("incomplete class")
	}
	log.Info().
		Int64("duration(ms)", (time.Since(start)).Milliseconds()).
		Int("classes", sum.Mapping.Len()).
		Int("samples", sum.Manifest.Samples()).
		Int("incomplete", len(incomplete)).
		Int("files", sum.FilesWritten).
		Str("written", humanize.Bytes(sum.BytesWritten)).
		Str("mapping", cfg.Mapping).
		Str("manifest", cfg.ManifestPath()).
		Msg("done")
}
