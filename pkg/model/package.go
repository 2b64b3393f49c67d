package model

import (
	"path/filepath"
	"strings"
)

// PoolLocation is the placement category of a package artifact in the pool
type PoolLocation string

const (
	// LocationUnset is the zero value: the location has not been specified
	LocationUnset PoolLocation = ""

	// LocationAutomated is for packages deployed by automation (e.g. CI)
	LocationAutomated PoolLocation = "automated"

	// LocationOverlay is for packages overlaid on top of the automated pool
	LocationOverlay PoolLocation = "overlay"

	// LocationManual is for packages manually placed by a maintainer
	LocationManual PoolLocation = "manual"

	// DefaultLocation is assumed whenever a location is unset
	DefaultLocation = LocationOverlay

	signatureExt = ".sig"
)

// PreferredLocationOrder lists pool locations, most authoritative first
var PreferredLocationOrder = []PoolLocation{LocationManual, LocationOverlay, LocationAutomated}

// Valid tells if the location is a known one
func (l PoolLocation) Valid() bool {
	switch l {
	case LocationAutomated, LocationOverlay, LocationManual:
		return true
	default:
		return false
	}
}

// OrDefault returns the location, or DefaultLocation when unset
func (l PoolLocation) OrDefault() PoolLocation {
	if l == LocationUnset {
		return DefaultLocation
	}
	return l
}

// PackageID identifies a package within the box
type PackageID struct {
	Section Section `json:"section" yaml:"section"`
	Name    string  `json:"name" yaml:"name"`
}

// String renders the id as branch/repository/architecture/name.
//
// This is the key under which the package record is persisted.
func (id PackageID) String() string {
	return id.Section.String() + sectionSeparator + id.Name
}

// Validate the package id
func (id PackageID) Validate() error {
	if err := id.Section.Validate(); err != nil {
		return ErrInvalidPackageID.Wrap(err)
	}
	if id.Name == "" || strings.ContainsAny(id.Name, "/:") {
		return ErrInvalidPackageID.Describe("invalid name %q", id.Name)
	}
	return nil
}

// ParsePackageID is the inverse of PackageID.String
func ParsePackageID(key string) (PackageID, error) {
	i := strings.LastIndex(key, sectionSeparator)
	if i < 0 {
		return PackageID{}, ErrInvalidPackageID.Describe("%q", key)
	}
	section, err := ParseSection(key[:i])
	if err != nil {
		return PackageID{}, ErrInvalidPackageID.Describe("%q", key).Wrap(err)
	}
	id := PackageID{Section: section, Name: key[i+1:]}
	if err := id.Validate(); err != nil {
		return PackageID{}, err
	}
	return id, nil
}

// Package is a binary package belonging to a section
type Package struct {
	Section      Section        `json:"section" yaml:"section"`
	Name         string         `json:"name" yaml:"name"`
	Version      PackageVersion `json:"version" yaml:"version"`
	Architecture string         `json:"architecture" yaml:"architecture"`
	Filepath     string         `json:"filepath" yaml:"filepath"`
	HasSignature bool           `json:"has_signature,omitempty" yaml:"has_signature,omitempty"`
	Location     PoolLocation   `json:"location,omitempty" yaml:"location,omitempty"`
}

// ID of the package
func (p Package) ID() PackageID {
	return PackageID{Section: p.Section, Name: p.Name}
}

// String renders the package as name-version-arch
func (p Package) String() string {
	return p.Name + "-" + p.Version.String() + "-" + p.Architecture
}

// SignaturePath returns the path to the detached signature, if any
func (p Package) SignaturePath() (string, bool) {
	if !p.HasSignature {
		return "", false
	}
	return p.Filepath + signatureExt, true
}

// ParseFilename builds a package from the path to an artifact named like name-version-release-arch.pkg.tar.ext
func ParseFilename(section Section, path string) (Package, error) {
	base := filepath.Base(path)

	i := strings.Index(base, ".pkg.tar")
	if i <= 0 {
		return Package{}, ErrInvalidFilename.Describe("%q", base)
	}
	parts := strings.Split(base[:i], "-")
	if len(parts) < 4 {
		return Package{}, ErrInvalidFilename.Describe("%q", base)
	}

	n := len(parts)
	pkg := Package{
		Section:      section,
		Name:         strings.Join(parts[:n-3], "-"),
		Version:      ParseVersion(parts[n-3] + "-" + parts[n-2]),
		Architecture: parts[n-1],
		Filepath:     path,
	}
	if pkg.Name == "" || pkg.Version.Version == "" || pkg.Architecture == "" {
		return Package{}, ErrInvalidFilename.Describe("%q", base)
	}
	return pkg, nil
}

// IsPackageFile tells if a path looks like a package artifact (not a signature)
func IsPackageFile(path string) bool {
	base := filepath.Base(path)
	return strings.Contains(base, ".pkg.tar") && !strings.HasSuffix(base, signatureExt)
}
