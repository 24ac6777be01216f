package main

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Manifest records how a run went, class by class. Unlike the class mapping,
// it tells complete classes apart from ones whose source pool ran dry.
type Manifest struct {
	RunID       string        `yaml:"runId"`
	Seed        uint64        `yaml:"seed"`
	TargetCount int           `yaml:"targetCount"`
	ValRatio    float64       `yaml:"valRatio"`
	Size        int           `yaml:"size"`
	Classes     []ClassResult `yaml:"classes"`
}

// Incomplete returns the classes that ended below the target count.
func (m *Manifest) Incomplete() []ClassResult {
	var out []ClassResult
	for _, c := range m.Classes {
		if !c.Complete {
			out = append(out, c)
		}
	}
	return out
}

// Samples returns the number of samples generated over all classes.
func (m *Manifest) Samples() int {
	n := 0
	for _, c := range m.Classes {
		n += c.Generated
	}
	return n
}

// WriteManifest writes m as YAML to path.
func WriteManifest(path string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return errors.Wrap(err, "encoding manifest")
	}
	return writeFileAtomic(path, data)
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrapf(err, "decoding manifest %s", path)
	}
	return &m, nil
}
