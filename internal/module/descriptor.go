// Package module defines what a pluggable module is: its descriptor, its
// optional lifecycle hooks and schema migrations, and the table modules are
// registered into at startup.
package module

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// DefaultVersion is assumed when a descriptor does not declare one.
const DefaultVersion = "0.1.0"

// Descriptor is the static metadata a module exposes to the registry.
type Descriptor struct {
	Identifier  string `json:"identifier"`
	DisplayName string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	URLPrefix   string `json:"url_prefix"`
}

// Normalize fills defaults and validates the descriptor. The returned
// descriptor is a copy; d is not modified.
func (d Descriptor) Normalize() (Descriptor, error) {
	d.Identifier = strings.TrimSpace(d.Identifier)
	if d.Identifier == "" {
		return Descriptor{}, fmt.Errorf("module descriptor has no identifier")
	}
	if d.DisplayName == "" {
		d.DisplayName = d.Identifier
	}
	if d.Version == "" {
		d.Version = DefaultVersion
	}
	if _, err := semver.NewVersion(d.Version); err != nil {
		return Descriptor{}, fmt.Errorf("module %s: invalid version %q: %w", d.Identifier, d.Version, err)
	}
	if d.URLPrefix == "" {
		d.URLPrefix = URLPrefixFor(d.DisplayName)
	}
	return d, nil
}

// URLPrefixFor derives a route prefix from a display name: "Product Catalog" -> "product-catalog".
func URLPrefixFor(displayName string) string {
	return strings.ReplaceAll(strings.ToLower(displayName), " ", "-")
}
