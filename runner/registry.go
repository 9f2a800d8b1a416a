/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package runner

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// TestSettings overrides the global defaults for one test. Unset fields
// inherit the default; an explicit 0 is kept.
type TestSettings struct {
	Threshold         *float64 `yaml:"threshold" validate:"omitnil,gte=0,lte=100"`
	VarianceThreshold *float64 `yaml:"variance_threshold" validate:"omitnil,gte=0"`
	// Critical tests bypass percentage sampling and are the only ones
	// evaluated under the critical strategy.
	Critical bool `yaml:"critical"`
}

// Registry holds per-test settings keyed by test name.
//
//	tests:
//	  greeting:
//	    threshold: 80
//	    critical: true
//	  farewell:
//	    variance_threshold: 25
type Registry struct {
	Tests map[string]TestSettings `yaml:"tests" validate:"dive"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Lookup returns the settings for testName. A nil Registry has none.
func (r *Registry) Lookup(testName string) (TestSettings, bool) {
	if r == nil {
		return TestSettings{}, false
	}
	s, ok := r.Tests[testName]
	return s, ok
}

// Validate checks every entry.
func (r *Registry) Validate() error {
	if err := validate.Struct(r); err != nil {
		return fmt.Errorf("invalid test registry: %w", err)
	}
	return nil
}

// LoadRegistry decodes a YAML registry. Unknown keys are rejected.
func LoadRegistry(r io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	reg := &Registry{}
	if err := dec.Decode(reg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding test registry: %w", err)
	}
	if reg.Tests == nil {
		reg.Tests = make(map[string]TestSettings)
	}
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	return reg, nil
}

// LoadRegistryFile reads a YAML registry from path.
func LoadRegistryFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening test registry: %w", err)
	}
	defer f.Close()
	return LoadRegistry(f)
}
