package core

import (
	_ "embed"
	"errors"
	"fmt"

	"go.yaml.in/yaml/v3"
)

//go:embed samples.yaml
var samplesYAML []byte

// Samples are the pools name, job and text values are drawn from.
type Samples struct {
	FirstNames []string `yaml:"first_names"`
	LastNames  []string `yaml:"last_names"`
	Jobs       []string `yaml:"jobs"`
	Sentences  []string `yaml:"sentences"`
}

var samples = mustLoadSamples(samplesYAML)

// LoadSamples parses a samples document. Every pool must be non-empty.
func LoadSamples(data []byte) (*Samples, error) {
	var s Samples
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse samples: %w", err)
	}

	var errs []error
	for name, pool := range map[string][]string{
		"first_names": s.FirstNames,
		"last_names":  s.LastNames,
		"jobs":        s.Jobs,
		"sentences":   s.Sentences,
	} {
		if len(pool) == 0 {
			errs = append(errs, fmt.Errorf("samples: %s is empty", name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &s, nil
}

func mustLoadSamples(data []byte) *Samples {
	s, err := LoadSamples(data)
	if err != nil {
		panic(err)
	}
	return s
}
