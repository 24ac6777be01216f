package main

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type WatermarkConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Gravity   string  `yaml:"gravity"`
	Fraction  float64 `yaml:"fraction"`
	Threshold float32 `yaml:"threshold"`
	Radius    float32 `yaml:"radius"`
}

type DedupConfig struct {
	Enabled  bool `yaml:"enabled"`
	Distance int  `yaml:"distance"`
}

type AppConfig struct {
	Debug bool `yaml:"debug"`
	Info  bool `yaml:"info"`
	Human bool `yaml:"human"`

	Src      string `yaml:"src"`
	Dst      string `yaml:"dst"`
	Mapping  string `yaml:"mapping"`
	Manifest string `yaml:"manifest"` // empty: <dst>/manifest.yaml

	TargetCount     int     `yaml:"targetCount"`
	ValRatio        float64 `yaml:"valRatio"`
	Size            int     `yaml:"size"`
	Seed            uint64  `yaml:"seed"` // 0: derived from the clock
	Clean           bool    `yaml:"clean"`
	Progress        bool    `yaml:"progress"`
	MaxSlotAttempts int     `yaml:"maxSlotAttempts"`

	Watermark WatermarkConfig `yaml:"watermark"`
	Dedup     DedupConfig     `yaml:"dedup"`
}

// DefaultConfig returns the settings used for anything a config file leaves
// out.
func DefaultConfig() AppConfig {
	return AppConfig{
		Info:            true,
		Src:             filepath.Join("datasets", "raw"),
		Dst:             filepath.Join("datasets", "processed"),
		Mapping:         filepath.Join("datasets", "id_to_name.json"),
		TargetCount:     50,
		ValRatio:        0.2,
		Size:            224,
		Clean:           true,
		MaxSlotAttempts: 25,
		Watermark: WatermarkConfig{
			Enabled:   true,
			Gravity:   "south-east",
			Fraction:  0.2,
			Threshold: 215,
			Radius:    3,
		},
		Dedup: DedupConfig{
			Enabled:  true,
			Distance: 10,
		},
	}
}

// LoadConfig reads a YAML config file over DefaultConfig. A missing file
// yields the defaults.
func LoadConfig(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &cfg, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "decoding config %s", path)
	}
	return &cfg, nil
}

// ManifestPath returns where the run manifest is written.
func (c *AppConfig) ManifestPath() string {
	if c.Manifest != "" {
		return c.Manifest
	}
	return filepath.Join(c.Dst, "manifest.yaml")
}

// ResolveSeed fills in a clock derived seed when none is configured and
// returns the seed in use.
func (c *AppConfig) ResolveSeed() uint64 {
	if c.Seed == 0 {
		c.Seed = uint64(time.Now().UnixNano())
	}
	return c.Seed
}

// Validate reports the first invalid setting.
func (c *AppConfig) Validate() error {
	switch {
	case c.Src == "":
		return errors.New("src is required")
	case c.Dst == "":
		return errors.New("dst is required")
	case c.Mapping == "":
		return errors.New("mapping is required")
	case c.TargetCount < 1:
		return errors.Errorf("targetCount must be positive, got %d", c.TargetCount)
	case c.ValRatio < 0 || c.ValRatio > 1:
		return errors.Errorf("valRatio must be within [0, 1], got %g", c.ValRatio)
	case c.Size < 1:
		return errors.Errorf("size must be positive, got %d", c.Size)
	case c.MaxSlotAttempts < 0:
		return errors.Errorf("maxSlotAttempts must not be negative, got %d", c.MaxSlotAttempts)
	}
	if c.Clean && sameOrInside(c.Src, c.Dst) {
		return errors.Errorf("refusing to clean %s: it contains the source directory %s", c.Dst, c.Src)
	}
	if c.Watermark.Enabled {
		if c.Watermark.Fraction <= 0 || c.Watermark.Fraction > 1 {
			return errors.Errorf("watermark.fraction must be within (0, 1], got %g", c.Watermark.Fraction)
		}
		if _, err := RegionWithGravity(1, 1, 1, 1, c.Watermark.Gravity); err != nil {
			return errors.WithMessage(err, "watermark.gravity")
		}
	}
	return nil
}

// sameOrInside reports whether path is dir or lies below it. Both are
// compared as absolute paths with symlinks resolved. Anything that cannot be
// resolved counts as inside.
func sameOrInside(path, dir string) bool {
	p, err := resolvePath(path)
	if err != nil {
		return true
	}
	d, err := resolvePath(dir)
	if err != nil {
		return true
	}
	rel, err := filepath.Rel(d, p)
	if err != nil {
		return true
	}
	return rel == "." || (rel != ".." && !filepath.IsAbs(rel) && !hasParentPrefix(rel))
}

// resolvePath returns the absolute form of path with the symlinks of its
// longest existing ancestor evaluated. The rest need not exist yet.
func resolvePath(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", errors.Wrapf(err, "resolving %s", path)
	}
	rest := ""
	for cur := abs; ; {
		if resolved, err := filepath.EvalSymlinks(cur); err == nil {
			return filepath.Join(resolved, rest), nil
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, nil
		}
		rest = filepath.Join(filepath.Base(cur), rest)
		cur = parent
	}
}

func hasParentPrefix(rel string) bool {
	return len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator)
}
