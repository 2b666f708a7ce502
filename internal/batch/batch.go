// Package batch applies YAML edit documents to a configuration.
//
//	set:
//	  MBEDTLS_SSL_MAX_CONTENT_LEN: "4096"
//	  MBEDTLS_DEBUG_C:            # activate, keep the value
//	unset: [MBEDTLS_NET_C]
//	set_all: ["^MBEDTLS_SSL_PROTO_"]
//	unset_all: ["_DEPRECATED_"]
//
// Sections are applied in the order set, unset, set_all, unset_all.
package batch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"

	"github.com/doridoridoriand/hdrconf/internal/config"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// Document is one batch of edits.
type Document struct {
	Set      map[string]*string `yaml:"set"`
	Unset    []string           `yaml:"unset"`
	SetAll   []string           `yaml:"set_all"`
	UnsetAll []string           `yaml:"unset_all"`
}

// Load reads a document from path.
func Load(fs afero.Fs, path string) (*Document, error) {
	src, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// Parse decodes a document. Unknown keys are rejected and an empty input
// is an empty document.
func Parse(src []byte) (*Document, error) {
	doc := &Document{}
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)
	if err := dec.Decode(doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return doc, nil
}

// Apply performs the edits on cfg. Unless force is set, every name under
// set must already be known; this is checked before anything changes.
func (d *Document) Apply(cfg *config.Config, force bool) error {
	names := make([]string, 0, len(d.Set))
	for name := range d.Set {
		names = append(names, name)
	}
	sort.Strings(names)

	if !force {
		for _, name := range names {
			if !cfg.Known(name) {
				return fmt.Errorf("set %s: %w", name, config.ErrNotFound)
			}
		}
	}
	if err := validatePatterns(d.SetAll); err != nil {
		return err
	}
	if err := validatePatterns(d.UnsetAll); err != nil {
		return err
	}

	for _, name := range names {
		var err error
		if value := d.Set[name]; value != nil {
			err = cfg.SetWithValue(name, *value)
		} else {
			err = cfg.Set(name)
		}
		if err != nil {
			return err
		}
	}
	for _, name := range d.Unset {
		cfg.Unset(name)
	}
	if err := cfg.ChangeMatching(d.SetAll, true); err != nil {
		return err
	}
	return cfg.ChangeMatching(d.UnsetAll, false)
}

func validatePatterns(patterns []string) error {
	if len(patterns) == 0 {
		return nil
	}
	if _, err := regexp.Compile(strings.Join(patterns, "|")); err != nil {
		return fmt.Errorf("invalid pattern: %w", err)
	}
	return nil
}
