package manifest

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/model"
)

// LockName is the on-disk filename pkgsolve writes and reads, mirroring
// Composer's composer.lock next to composer.json.
const LockName = "pkgsolve.lock"

// LockedAlias is one entry of the lock file's "aliases" array (spec §6):
// records a branch alias actually selected by the resolver, separate
// from the transient Alias handles the pool builds while solving.
type LockedAlias struct {
	Package string `json:"package"`
	Version string `json:"version"`
	Alias   string `json:"alias"`
	AliasNormalized string `json:"alias_normalized"`
}

// Lock is the decoded form of the lock file (spec §6): the exact set of
// packages the last successful resolution selected, plus enough metadata
// to detect whether the manifest has drifted since.
type Lock struct {
	ContentHash       string
	Packages          []*LockedPackage
	PackagesDev       []*LockedPackage
	Aliases           []LockedAlias
	MinimumStability  string
	StabilityFlags    map[string]string // name -> stability, insertion order not significant here
	PreferStable      bool
	PreferLowest      bool
	Platform          map[string]string
	PlatformDev       map[string]string
	PlatformOverrides map[string]string
	PluginAPIVersion  string
}

// LockedPackage is a single resolved package entry in the lock file. It
// carries the full package record (spec §3) so the lock file alone is
// enough to reconstruct an Installed-equivalent repository without
// re-contacting any remote repository.
type LockedPackage struct {
	Name          string
	Version       string // pretty version, e.g. "1.4.2" or "dev-main"
	Source        *model.SourceRef
	Dist          *model.DistRef
	Require       *OrderedMap
	RequireDev    *OrderedMap
	Conflict      *OrderedMap
	Provide       *OrderedMap
	Replace       *OrderedMap
	Suggest       *OrderedMap
	Type          model.PackageType
	Autoload      *model.Autoload
	Bin           []string
	Abandoned     *Abandoned
}

// Abandoned mirrors model.Abandoned in the lock file's three-state JSON
// shape: absent, true, or a replacement package name string.
type Abandoned struct {
	Is          bool
	Replacement string
}

func (a *Abandoned) MarshalJSON() ([]byte, error) {
	if a == nil || !a.Is {
		return json.Marshal(false)
	}
	if a.Replacement == "" {
		return json.Marshal(true)
	}
	return json.Marshal(a.Replacement)
}

func (a *Abandoned) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		a.Is = b
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return errors.Wrap(err, "decoding abandoned marker")
	}
	a.Is = true
	a.Replacement = s
	return nil
}

type rawLockedPackage struct {
	Name       string                     `json:"name"`
	Version    string                     `json:"version"`
	Source     *model.SourceRef           `json:"source,omitempty"`
	Dist       *model.DistRef             `json:"dist,omitempty"`
	Require    *OrderedMap                `json:"require,omitempty"`
	RequireDev *OrderedMap                `json:"require-dev,omitempty"`
	Conflict   *OrderedMap                `json:"conflict,omitempty"`
	Provide    *OrderedMap                `json:"provide,omitempty"`
	Replace    *OrderedMap                `json:"replace,omitempty"`
	Suggest    *OrderedMap                `json:"suggest,omitempty"`
	Type       string                     `json:"type,omitempty"`
	Autoload   *model.Autoload            `json:"autoload,omitempty"`
	Bin        []string                   `json:"bin,omitempty"`
	Abandoned  *Abandoned                 `json:"abandoned,omitempty"`
}

type rawLock struct {
	ContentHash       string                     `json:"content-hash"`
	Packages          []rawLockedPackage         `json:"packages"`
	PackagesDev       []rawLockedPackage         `json:"packages-dev"`
	Aliases           []LockedAlias              `json:"aliases,omitempty"`
	MinimumStability  string                     `json:"minimum-stability"`
	StabilityFlags    map[string]string          `json:"stability-flags,omitempty"`
	PreferStable      bool                       `json:"prefer-stable"`
	PreferLowest      bool                       `json:"prefer-lowest"`
	Platform          map[string]string          `json:"platform,omitempty"`
	PlatformDev       map[string]string          `json:"platform-dev,omitempty"`
	PlatformOverrides map[string]string          `json:"platform-overrides,omitempty"`
	PluginAPIVersion  string                     `json:"plugin-api-version,omitempty"`
}

// DecodeLock parses a lock file document.
func DecodeLock(raw []byte) (*Lock, error) {
	var rl rawLock
	if err := json.Unmarshal(raw, &rl); err != nil {
		return nil, errors.Wrap(err, "decoding lock file")
	}

	l := &Lock{
		ContentHash:       rl.ContentHash,
		Aliases:           rl.Aliases,
		MinimumStability:  rl.MinimumStability,
		StabilityFlags:    rl.StabilityFlags,
		PreferStable:      rl.PreferStable,
		PreferLowest:      rl.PreferLowest,
		Platform:          rl.Platform,
		PlatformDev:       rl.PlatformDev,
		PlatformOverrides: rl.PlatformOverrides,
		PluginAPIVersion:  rl.PluginAPIVersion,
	}
	for _, rp := range rl.Packages {
		l.Packages = append(l.Packages, fromRaw(rp))
	}
	for _, rp := range rl.PackagesDev {
		l.PackagesDev = append(l.PackagesDev, fromRaw(rp))
	}
	return l, nil
}

func fromRaw(rp rawLockedPackage) *LockedPackage {
	return &LockedPackage{
		Name:       rp.Name,
		Version:    rp.Version,
		Source:     rp.Source,
		Dist:       rp.Dist,
		Require:    orEmpty(rp.Require),
		RequireDev: orEmpty(rp.RequireDev),
		Conflict:   orEmpty(rp.Conflict),
		Provide:    orEmpty(rp.Provide),
		Replace:    orEmpty(rp.Replace),
		Suggest:    orEmpty(rp.Suggest),
		Type:       model.PackageType(orDefaultType(rp.Type)),
		Autoload:   rp.Autoload,
		Bin:        rp.Bin,
		Abandoned:  rp.Abandoned,
	}
}

func toRaw(lp *LockedPackage) rawLockedPackage {
	return rawLockedPackage{
		Name:       lp.Name,
		Version:    lp.Version,
		Source:     lp.Source,
		Dist:       lp.Dist,
		Require:    omitEmpty(lp.Require),
		RequireDev: omitEmpty(lp.RequireDev),
		Conflict:   omitEmpty(lp.Conflict),
		Provide:    omitEmpty(lp.Provide),
		Replace:    omitEmpty(lp.Replace),
		Suggest:    omitEmpty(lp.Suggest),
		Type:       typeOrEmpty(lp.Type),
		Autoload:   lp.Autoload,
		Bin:        lp.Bin,
		Abandoned:  lp.Abandoned,
	}
}

// Encode re-serializes l. Packages and PackagesDev are sorted by name
// before writing (spec §8: lock file package order is canonicalized, not
// solver-decision order, so two resolutions of the same input produce a
// byte-identical lock).
func (l *Lock) Encode() ([]byte, error) {
	rl := rawLock{
		ContentHash:       l.ContentHash,
		Aliases:           l.Aliases,
		MinimumStability:  l.MinimumStability,
		StabilityFlags:    l.StabilityFlags,
		PreferStable:      l.PreferStable,
		PreferLowest:      l.PreferLowest,
		Platform:          l.Platform,
		PlatformDev:       l.PlatformDev,
		PlatformOverrides: l.PlatformOverrides,
		PluginAPIVersion:  l.PluginAPIVersion,
	}

	sorted := append([]*LockedPackage(nil), l.Packages...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
	for _, lp := range sorted {
		rl.Packages = append(rl.Packages, toRaw(lp))
	}

	sortedDev := append([]*LockedPackage(nil), l.PackagesDev...)
	sort.Slice(sortedDev, func(i, j int) bool { return sortedDev[i].Name < sortedDev[j].Name })
	for _, lp := range sortedDev {
		rl.PackagesDev = append(rl.PackagesDev, toRaw(lp))
	}
	if rl.Packages == nil {
		rl.Packages = []rawLockedPackage{}
	}
	if rl.PackagesDev == nil {
		rl.PackagesDev = []rawLockedPackage{}
	}

	return json.MarshalIndent(rl, "", "    ")
}

// ContentHash computes the canonical hash of a manifest's lock-relevant
// fields (spec §8: "the lock file's content-hash must equal the hash of
// the manifest it was generated from"). It hashes a stable JSON
// projection of the fields that affect resolution, so unrelated edits
// (scripts, extra) never invalidate a lock.
func ContentHash(m *Manifest) (string, error) {
	projection := struct {
		Name       string      `json:"name"`
		Version    string      `json:"version"`
		Require    *OrderedMap `json:"require"`
		RequireDev *OrderedMap `json:"require-dev"`
		Conflict   *OrderedMap `json:"conflict"`
		Provide    *OrderedMap `json:"provide"`
		Replace    *OrderedMap `json:"replace"`
		Suggest    *OrderedMap `json:"suggest"`
	}{
		Name:       m.Name,
		Version:    m.Version,
		Require:    orEmpty(m.Require),
		RequireDev: orEmpty(m.RequireDev),
		Conflict:   orEmpty(m.Conflict),
		Provide:    orEmpty(m.Provide),
		Replace:    orEmpty(m.Replace),
		Suggest:    orEmpty(m.Suggest),
	}
	raw, err := json.Marshal(projection)
	if err != nil {
		return "", errors.Wrap(err, "hashing manifest content")
	}
	return sha256Hex(raw), nil
}

// IsFresh reports whether l's content-hash still matches m, i.e. the
// lock file does not need to be regenerated.
func (l *Lock) IsFresh(m *Manifest) (bool, error) {
	hash, err := ContentHash(m)
	if err != nil {
		return false, err
	}
	return hash == l.ContentHash, nil
}

// ToModelPackage expands lp into the model.Package the rest of the
// resolver operates on, so a lock file alone can re-seed a pool as a set
// of fixed packages without re-contacting any repository.
func (lp *LockedPackage) ToModelPackage() (*model.Package, error) {
	ver, err := model.ParseVersion(lp.Version)
	if err != nil {
		return nil, errors.Wrapf(err, "locked package %q", lp.Name)
	}
	pkg := &model.Package{
		Name:          lp.Name,
		Version:       ver,
		PrettyVersion: lp.Version,
		Type:          lp.Type,
		Source:        lp.Source,
		Dist:          lp.Dist,
		Require:       lp.Require.ToMap(),
		RequireDev:    lp.RequireDev.ToMap(),
		Conflict:      lp.Conflict.ToMap(),
		Provide:       lp.Provide.ToMap(),
		Replace:       lp.Replace.ToMap(),
		Suggest:       lp.Suggest.ToMap(),
		Autoload:      lp.Autoload,
		Bin:           lp.Bin,
	}
	if lp.Abandoned != nil {
		pkg.Abandoned = &model.Abandoned{Is: lp.Abandoned.Is, Replacement: lp.Abandoned.Replacement}
	}
	return pkg, nil
}

// NewLockedPackageFromModel narrows pkg down to the lock file's shape,
// the inverse of ToModelPackage, used when writing the lock after a
// successful resolution.
func NewLockedPackageFromModel(pkg *model.Package) *LockedPackage {
	lp := &LockedPackage{
		Name:       pkg.Name,
		Version:    pkg.PrettyVersion,
		Source:     pkg.Source,
		Dist:       pkg.Dist,
		Require:    FromMap(pkg.Require),
		RequireDev: FromMap(pkg.RequireDev),
		Conflict:   FromMap(pkg.Conflict),
		Provide:    FromMap(pkg.Provide),
		Replace:    FromMap(pkg.Replace),
		Suggest:    FromMap(pkg.Suggest),
		Type:       pkg.Type,
		Autoload:   pkg.Autoload,
		Bin:        pkg.Bin,
	}
	if lp.Version == "" {
		lp.Version = pkg.Version.String()
	}
	if pkg.Abandoned != nil {
		lp.Abandoned = &Abandoned{Is: pkg.Abandoned.Is, Replacement: pkg.Abandoned.Replacement}
	}
	return lp
}
