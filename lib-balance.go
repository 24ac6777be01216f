package main

import (
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"gocv.io/x/gocv"
)

// Provenance tells whether a sample is a cleaned original or a synthesized
// duplicate.
type Provenance int

const (
	Original Provenance = iota
	Augmented
)

func (p Provenance) String() string {
	if p == Augmented {
		return "augmented"
	}
	return "original"
}

// Prefix is the file name prefix of samples with this provenance.
func (p Provenance) Prefix() string {
	if p == Augmented {
		return "aug"
	}
	return "orig"
}

// ClassRecord ties a resolved class identity to the folder it came from.
type ClassRecord struct {
	ClassIdentity
	Folder ArtifactFolder
}

// GeneratedSample is one output image. It is handed to a SampleWriter and
// discarded right after.
type GeneratedSample struct {
	ClassID    string
	Provenance Provenance
	Split      Split
	Index      int      // 0-based position within the class
	SourceName string   // base name of the source file
	Image      gocv.Mat // owned by the Generator
}

// FileName returns {prefix}_{index}_{source name}.
func (s GeneratedSample) FileName() string {
	return fmt.Sprintf("%s_%d_%s", s.Provenance.Prefix(), s.Index, s.SourceName)
}

// ClassResult summarizes the generation of one class.
type ClassResult struct {
	ClassID        string `yaml:"classId"`
	DisplayName    string `yaml:"displayName"`
	Category       string `yaml:"category"`
	Folder         string `yaml:"folder"`
	Sources        int    `yaml:"sources"`
	Dropped        int    `yaml:"dropped"`
	Generated      int    `yaml:"generated"`
	Originals      int    `yaml:"originals"`
	Augmented      int    `yaml:"augmented"`
	Train          int    `yaml:"train"`
	Val            int    `yaml:"val"`
	NearDuplicates int    `yaml:"nearDuplicates"`
	Complete       bool   `yaml:"complete"`
	StopReason     string `yaml:"stopReason,omitempty"` // why an incomplete class ended
}

// Reasons for a class to end below the target count.
const (
	StopPoolExhausted = "pool-exhausted"
	StopAttemptBudget = "attempt-budget"
)

func (r *ClassResult) record(s GeneratedSample) {
	r.Generated++
	if s.Provenance == Original {
		r.Originals++
	} else {
		r.Augmented++
	}
	if s.Split == Val {
		r.Val++
	} else {
		r.Train++
	}
}

// Generator balances every class to TargetCount samples. The first pass
// writes each source once, in listing order, as a cleaned and resized
// original; the remaining slots are filled with augmented copies of sources
// drawn uniformly with replacement.
type Generator struct {
	TargetCount int
	Size        int

	// MaxSlotAttempts bounds how many augmentation or write failures in a
	// row one slot may hit before the class is given up as incomplete.
	// Zero means unbounded.
	MaxSlotAttempts int

	// DedupDistance enables the near-duplicate audit of originals when
	// positive.
	DedupDistance int

	ShowProgress bool

	Cleaner   Cleaner // optional; nil resizes originals without cleaning
	Augmenter Augmenter
	Splitter  *SplitAssigner
	Writer    SampleWriter

	rng    *rand.Rand
	decode func(path string) (gocv.Mat, error)
}

// NewGenerator returns a Generator wired from cfg. All random decisions are
// drawn from rng.
func NewGenerator(cfg *AppConfig, rng *rand.Rand, writer SampleWriter) *Generator {
	g := &Generator{
		TargetCount:     cfg.TargetCount,
		Size:            cfg.Size,
		MaxSlotAttempts: cfg.MaxSlotAttempts,
		ShowProgress:    cfg.Progress,
		Augmenter:       NewPipeline(cfg.Size, rng),
		Splitter:        NewSplitAssigner(cfg.ValRatio, rng),
		Writer:          writer,
		rng:             rng,
		decode:          DecodeImage,
	}
	if cfg.Watermark.Enabled {
		g.Cleaner = NewCornerWatermarkRemover(cfg.Watermark)
	}
	if cfg.Dedup.Enabled {
		g.DedupDistance = cfg.Dedup.Distance
	}
	return g
}

// Generate produces the samples of one class. It stops early, leaving the
// class incomplete, when every source failed to decode or a slot ran out of
// attempts. Failures never propagate: they are logged and reflected in the
// returned ClassResult.
func (g *Generator) Generate(rec ClassRecord) ClassResult {
	res := ClassResult{
		ClassID:     rec.ID,
		DisplayName: rec.DisplayName,
		Category:    rec.Folder.Category,
		Folder:      rec.Folder.Name,
		Sources:     len(rec.Folder.Images),
	}
	logger := log.With().Str("class", rec.ID).Logger()

	pool := slices.Clone(rec.Folder.Images)
	audit := newDupAuditor(g.DedupDistance)
	bar := g.newProgressBar(rec.ID)
	attempts := 0

	for res.Generated < g.TargetCount && len(pool) > 0 {
		if g.MaxSlotAttempts > 0 && attempts >= g.MaxSlotAttempts {
			logger.Warn().Int("idx", res.Generated).Int("attempts", attempts).Msg("giving up on class")
			res.StopReason = StopAttemptBudget
			break
		}

		idx := res.Generated
		pick, prov := idx, Original
		if idx >= len(pool) {
			pick, prov = g.rng.IntN(len(pool)), Augmented
		}
		src := pool[pick]

		img, err := g.decode(src)
		if err != nil {
			logger.Warn().Err(err).Str("src", src).Msg("dropping undecodable source")
			pool = slices.Delete(pool, pick, pick+1)
			res.Dropped++
			continue
		}
		out, err := g.render(img, prov)
		img.Close()
		if err != nil {
			logger.Warn().Err(err).Str("src", src).Stringer("provenance", prov).Msg("render failed")
			if prov == Original {
				// A plain resize failing is deterministic, retrying cannot help.
				pool = slices.Delete(pool, pick, pick+1)
				res.Dropped++
			} else {
				attempts++
			}
			continue
		}

		sample := GeneratedSample{
			ClassID:    rec.ID,
			Provenance: prov,
			Split:      g.Splitter.Assign(),
			Index:      idx,
			SourceName: filepath.Base(src),
			Image:      out,
		}
		if err := g.Writer.Write(sample); err != nil {
			logger.Warn().Err(err).Str("src", src).Int("idx", idx).Msg("write failed")
			out.Close()
			attempts++
			continue
		}
		attempts = 0
		res.record(sample)
		if prov == Original && audit.isDuplicate(out) {
			res.NearDuplicates++
			logger.Warn().Str("src", src).Msg("near-duplicate original")
		}
		out.Close()

		logger.Debug().Int("idx", idx).Str("src", src).
			Stringer("provenance", prov).Stringer("split", sample.Split).Msg(sample.FileName())
		if bar != nil {
			_ = bar.Add(1)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	res.Complete = res.Generated == g.TargetCount
	if !res.Complete && res.StopReason == "" {
		res.StopReason = StopPoolExhausted
	}
	level := zerolog.InfoLevel
	if !res.Complete {
		level = zerolog.WarnLevel
	}
	logger.WithLevel(level).Str("name", rec.DisplayName).Int("generated", res.Generated).Int("target", g.TargetCount).
		Int("dropped", res.Dropped).Int("val", res.Val).Str("stopReason", res.StopReason).Msg(rec.Folder.Name)
	return res
}

// render turns a decoded source into an output image: originals are cleaned
// and resized, augmented samples go through the Augmenter only.
func (g *Generator) render(img gocv.Mat, prov Provenance) (gocv.Mat, error) {
	if prov == Augmented {
		return g.Augmenter.Augment(img)
	}
	if g.Cleaner == nil {
		return ResizeTo(img, g.Size)
	}
	cleaned := g.Cleaner.Clean(img)
	defer cleaned.Close()
	return ResizeTo(cleaned, g.Size)
}

func (g *Generator) newProgressBar(classID string) *progressbar.ProgressBar {
	if !g.ShowProgress {
		return nil
	}
	return progressbar.NewOptions(g.TargetCount,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(classID),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionSetTheme(progressbar.ThemeASCII),
		progressbar.OptionClearOnFinish(),
	)
}
