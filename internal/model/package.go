package model

import (
	"encoding/json"

	"github.com/pkgsolve/pkgsolve/internal/platform"
)

// PackageType mirrors spec §3's package_type field.
type PackageType string

const (
	TypeLibrary     PackageType = "library"
	TypeMetapackage PackageType = "metapackage"
	TypePlugin      PackageType = "plugin"
	TypeProject     PackageType = "project"
)

// SourceRef describes a version-control acquisition route for a package.
type SourceRef struct {
	Kind      string `json:"type"` // "git", "hg", "svn", "bzr", "path"
	URL       string `json:"url"`
	Reference string `json:"reference"`
}

// DistRef describes an archive acquisition route for a package. URLs
// holds one or more download locations, the first being primary and the
// rest fallback mirrors (spec §4.1 "URL fallback"); on the wire only the
// primary URL is written, matching Composer's dist.url.
type DistRef struct {
	Kind      string   `json:"type"` // "zip", "tar", "path"
	URLs      []string `json:"-"`
	Shasum256 string   `json:"shasum,omitempty"`
	Shasum1   string   `json:"shasum1,omitempty"`
	// Transport flags used by path-type dists (spec §4.1 Local path repository).
	Symlink  bool `json:"symlink,omitempty"`
	Relative bool `json:"relative,omitempty"`
}

type rawDistRef struct {
	Kind      string `json:"type"`
	URL       string `json:"url,omitempty"`
	Shasum256 string `json:"shasum,omitempty"`
	Shasum1   string `json:"shasum1,omitempty"`
	Symlink   bool   `json:"symlink,omitempty"`
	Relative  bool   `json:"relative,omitempty"`
}

// MarshalJSON writes the primary URL only; fallback mirrors are a
// resolver-session detail, not a lock-file concern.
func (d *DistRef) MarshalJSON() ([]byte, error) {
	var url string
	if len(d.URLs) > 0 {
		url = d.URLs[0]
	}
	return json.Marshal(rawDistRef{
		Kind: d.Kind, URL: url, Shasum256: d.Shasum256, Shasum1: d.Shasum1,
		Symlink: d.Symlink, Relative: d.Relative,
	})
}

func (d *DistRef) UnmarshalJSON(data []byte) error {
	var raw rawDistRef
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	d.Kind = raw.Kind
	if raw.URL != "" {
		d.URLs = []string{raw.URL}
	}
	d.Shasum256 = raw.Shasum256
	d.Shasum1 = raw.Shasum1
	d.Symlink = raw.Symlink
	d.Relative = raw.Relative
	return nil
}

// Autoload mirrors the subset of the manifest's autoload block the
// installer and importers care about: namespace/path mappings, classmap
// directories, and force-included files. It is opaque data as far as the
// resolver is concerned.
type Autoload struct {
	PSR4      map[string][]string `json:"psr-4,omitempty"`
	PSR0      map[string][]string `json:"psr-0,omitempty"`
	ClassMap  []string            `json:"classmap,omitempty"`
	Files     []string            `json:"files,omitempty"`
}

// Abandoned encodes the three-state abandoned marker from spec §3/§6:
// absent/false (not abandoned), true (abandoned, no replacement named),
// or a replacement package name.
type Abandoned struct {
	Is          bool
	Replacement string
}

// Package is the immutable package record of spec §3. Once constructed by
// a repository and inserted into a pool, a Package is never mutated —
// it may be shared by many pool entries and alias handles.
type Package struct {
	Name          string // canonical lowercased "vendor/name"
	Version       Version
	PrettyVersion string
	Type          PackageType

	Source *SourceRef
	Dist   *DistRef

	Require     map[string]string // name -> constraint string
	RequireDev  map[string]string
	Conflict    map[string]string
	Provide     map[string]string
	Replace     map[string]string
	Suggest     map[string]string

	Autoload *Autoload
	Bin      []string

	Abandoned *Abandoned

	// BranchAlias is non-empty when this package's manifest declared a
	// branch-alias (e.g. a "dev-main" branch presented as "1.0.x-dev"),
	// which the pool builder turns into an Alias handle (spec §3, §9
	// "Branch aliases").
	BranchAlias string
}

// Stability returns the package's stability tier, derived from its
// version.
func (p *Package) Stability() Stability {
	return p.Version.Stability()
}

// IsPlatform reports whether this is a synthetic platform package (spec
// §6): "php", "composer", "composer-runtime-api", "composer-plugin-api",
// or anything prefixed "ext-"/"lib-".
func (p *Package) IsPlatform() bool {
	return platform.IsPlatformPackage(p.Name)
}

// Names returns every name this package can be required by: its own name,
// plus (when includeProvide is true) every name in Provide and Replace.
// This mirrors Composer's Package::getNames($provides) used throughout
// rule generation (spec §4.3).
func (p *Package) Names(includeProvide bool) []string {
	names := []string{p.Name}
	for n := range p.Replace {
		names = append(names, n)
	}
	if includeProvide {
		for n := range p.Provide {
			names = append(names, n)
		}
	}
	return names
}
