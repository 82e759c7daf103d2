package api

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"orbix/internal/services"
	"orbix/internal/store"
)

// SourceSeed is one entry of a sources YAML file.
type SourceSeed struct {
	Name    string `yaml:"name"`
	URL     string `yaml:"url"`
	Type    string `yaml:"type"`
	Enabled *bool  `yaml:"enabled"`
}

type sourceSeedFile struct {
	Sources []SourceSeed `yaml:"sources"`
}

// ParseSourceSeeds reads either a bare list of entries or a document of the
// form
//
//	sources:
//	  - name: Reuters Tech
//	    url: https://example.com/feed.xml
//	    type: RSS
//
// Entries default to enabled.
func ParseSourceSeeds(r io.Reader) ([]store.Source, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "sources", "import", "read yaml", err)
	}
	seeds, err := decodeSeeds(data)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "sources", "import", "parse yaml", err)
	}
	out := make([]store.Source, 0, len(seeds))
	for i, seed := range seeds {
		typ, err := store.ParseSourceType(seed.Type)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "sources", "import", fmt.Sprintf("entry %d", i+1), err)
		}
		if seed.URL == "" {
			return nil, services.Wrap(services.ErrValidation, "sources", "import", fmt.Sprintf("entry %d: url is required", i+1), nil)
		}
		enabled := true
		if seed.Enabled != nil {
			enabled = *seed.Enabled
		}
		out = append(out, store.Source{Name: seed.Name, URL: seed.URL, Type: typ, Enabled: enabled})
	}
	return out, nil
}

// decodeSeeds peeks at the root node to pick the document shape, then decodes
// strictly so unknown keys are rejected in both forms.
func decodeSeeds(data []byte) ([]SourceSeed, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if root.Kind == 0 || len(root.Content) == 0 {
		return nil, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if root.Content[0].Kind == yaml.SequenceNode {
		var seeds []SourceSeed
		if err := dec.Decode(&seeds); err != nil {
			return nil, err
		}
		return seeds, nil
	}
	var doc sourceSeedFile
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc.Sources, nil
}

// ImportSources upserts every source in the YAML document and returns how
// many were new.
func (s *Service) ImportSources(ctx context.Context, r io.Reader) (int, int, error) {
	seeds, err := ParseSourceSeeds(r)
	if err != nil {
		return 0, 0, err
	}
	if len(seeds) == 0 {
		return 0, 0, nil
	}
	created, err := s.store.UpsertSources(ctx, seeds)
	if err != nil {
		return 0, 0, err
	}
	return created, len(seeds), nil
}
