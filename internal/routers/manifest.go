package routers

import (
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Manifest is the on-disk router table
type Manifest struct {
	Name          string            `yaml:"name"`
	Version       string            `yaml:"version"`
	Routers       []RouterEntry     `yaml:"routers"`
	WrappedNative map[uint64]string `yaml:"wrappedNative,omitempty"`
}

// RouterEntry is a single router declaration in a manifest
type RouterEntry struct {
	Address string    `yaml:"address"`
	Type    VenueType `yaml:"type"`
	Name    string    `yaml:"name"`
}

// ManifestLoader handles loading and parsing router manifests
type ManifestLoader struct {
	logger zerolog.Logger
}

// NewManifestLoader creates a new manifest loader
func NewManifestLoader(logger zerolog.Logger) *ManifestLoader {
	return &ManifestLoader{
		logger: logger.With().Str("component", "router_manifest").Logger(),
	}
}

// LoadFromFile loads a manifest from a file
func (l *ManifestLoader) LoadFromFile(path string) (*Manifest, error) {
	l.logger.Debug().Str("path", path).Msg("Loading router manifest from file")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read router manifest %s: %w", path, err)
	}

	return l.ParseManifest(data)
}

// ParseManifest parses a YAML manifest from bytes
func (l *ManifestLoader) ParseManifest(data []byte) (*Manifest, error) {
	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse router manifest: %w", err)
	}

	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid router manifest: %w", err)
	}

	return &manifest, nil
}

// Validate checks that every entry is usable
func (m *Manifest) Validate() error {
	for i, r := range m.Routers {
		if !common.IsHexAddress(r.Address) {
			return ErrInvalidManifest{Field: fmt.Sprintf("routers[%d].address", i), Reason: "not a 20-byte hex address"}
		}
		if r.Type == VenueUnknown {
			return ErrInvalidManifest{Field: fmt.Sprintf("routers[%d].type", i), Reason: "type is required"}
		}
		if r.Name == "" {
			return ErrInvalidManifest{Field: fmt.Sprintf("routers[%d].name", i), Reason: "name is required"}
		}
	}
	for chainID, addr := range m.WrappedNative {
		if !common.IsHexAddress(addr) {
			return ErrInvalidManifest{Field: fmt.Sprintf("wrappedNative[%d]", chainID), Reason: "not a 20-byte hex address"}
		}
	}
	return nil
}

// Apply merges the manifest into a registry, overriding existing entries
func (m *Manifest) Apply(r *Registry) {
	for _, entry := range m.Routers {
		r.Register(entry.Address, RouterInfo{VenueType: entry.Type, Name: entry.Name})
	}
	for chainID, addr := range m.WrappedNative {
		r.SetWrappedNative(chainID, common.HexToAddress(addr))
	}
}

// ErrInvalidManifest is returned when a manifest is invalid
type ErrInvalidManifest struct {
	Field  string
	Reason string
}

func (e ErrInvalidManifest) Error() string {
	return "invalid manifest field " + e.Field + ": " + e.Reason
}
