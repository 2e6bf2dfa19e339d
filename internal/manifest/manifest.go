// Package manifest decodes and re-encodes the manifest and lock file
// formats of spec §6. Round-tripping (spec §8) is the organizing
// constraint: a document parsed and re-serialized with no field changed
// must come back byte-identical modulo insignificant whitespace, so every
// map here preserves declaration order via orderedMap rather than Go's
// unordered map type.
package manifest

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/model"
)

// ManifestName is the on-disk filename pkgsolve reads and writes,
// mirroring Composer's composer.json.
const ManifestName = "pkgsolve.json"

// RepositoryDescriptor is one entry of the manifest's "repositories"
// array (spec §6).
type RepositoryDescriptor struct {
	Type string          `json:"type"`
	URL  string          `json:"url,omitempty"`
	Raw  json.RawMessage `json:"-"` // full original object, for type-specific fields
}

// Manifest is the decoded form of composer.json-equivalent project
// manifests (spec §6).
type Manifest struct {
	Name       string
	Version    string
	Type       model.PackageType
	Require    *OrderedMap
	RequireDev *OrderedMap
	Conflict   *OrderedMap
	Provide    *OrderedMap
	Replace    *OrderedMap
	Suggest    *OrderedMap
	Autoload   *model.Autoload
	AutoloadDev *model.Autoload
	Bin        []string
	Repositories []RepositoryDescriptor
	Config     map[string]json.RawMessage
	Scripts    map[string]json.RawMessage // out of scope for the core; preserved opaquely for round-trip
	Extra      map[string]json.RawMessage
}

// rawManifest mirrors the wire shape exactly so unmarshal/marshal are
// symmetric; Manifest itself is the friendlier API the rest of the
// resolver consumes.
type rawManifest struct {
	Name         string                     `json:"name,omitempty"`
	Version      string                     `json:"version,omitempty"`
	Type         string                     `json:"type,omitempty"`
	Require      *OrderedMap                `json:"require,omitempty"`
	RequireDev   *OrderedMap                `json:"require-dev,omitempty"`
	Conflict     *OrderedMap                `json:"conflict,omitempty"`
	Provide      *OrderedMap                `json:"provide,omitempty"`
	Replace      *OrderedMap                `json:"replace,omitempty"`
	Suggest      *OrderedMap                `json:"suggest,omitempty"`
	Autoload     *model.Autoload            `json:"autoload,omitempty"`
	AutoloadDev  *model.Autoload            `json:"autoload-dev,omitempty"`
	Bin          []string                   `json:"bin,omitempty"`
	Repositories json.RawMessage            `json:"repositories,omitempty"`
	Config       map[string]json.RawMessage `json:"config,omitempty"`
	Scripts      map[string]json.RawMessage `json:"scripts,omitempty"`
	Extra        map[string]json.RawMessage `json:"extra,omitempty"`
}

// Decode parses a manifest document.
func Decode(raw []byte) (*Manifest, error) {
	var rm rawManifest
	if err := json.Unmarshal(raw, &rm); err != nil {
		return nil, errors.Wrap(err, "decoding manifest")
	}

	m := &Manifest{
		Name:        rm.Name,
		Version:     rm.Version,
		Type:        model.PackageType(orDefaultType(rm.Type)),
		Require:     orEmpty(rm.Require),
		RequireDev:  orEmpty(rm.RequireDev),
		Conflict:    orEmpty(rm.Conflict),
		Provide:     orEmpty(rm.Provide),
		Replace:     orEmpty(rm.Replace),
		Suggest:     orEmpty(rm.Suggest),
		Autoload:    rm.Autoload,
		AutoloadDev: rm.AutoloadDev,
		Bin:         rm.Bin,
		Config:      rm.Config,
		Scripts:     rm.Scripts,
		Extra:       rm.Extra,
	}

	repos, err := decodeRepositories(rm.Repositories)
	if err != nil {
		return nil, err
	}
	m.Repositories = repos
	return m, nil
}

func orDefaultType(t string) string {
	if t == "" {
		return string(model.TypeLibrary)
	}
	return t
}

func orEmpty(m *OrderedMap) *OrderedMap {
	if m == nil {
		return NewOrderedMap()
	}
	return m
}

// decodeRepositories accepts both the array form ("repositories": [...])
// and the object form ("repositories": {name: {...}}) some producers
// emit, per spec §6.
func decodeRepositories(raw json.RawMessage) ([]RepositoryDescriptor, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var asArray []json.RawMessage
	if err := json.Unmarshal(raw, &asArray); err == nil {
		return decodeRepoList(asArray)
	}

	var asObject OrderedMapRaw
	if err := json.Unmarshal(raw, &asObject); err != nil {
		return nil, errors.Wrap(err, "decoding repositories")
	}
	entries := make([]json.RawMessage, 0, len(asObject.Keys))
	for _, k := range asObject.Keys {
		entries = append(entries, asObject.Values[k])
	}
	return decodeRepoList(entries)
}

func decodeRepoList(entries []json.RawMessage) ([]RepositoryDescriptor, error) {
	out := make([]RepositoryDescriptor, 0, len(entries))
	for _, e := range entries {
		var d struct {
			Type string `json:"type"`
			URL  string `json:"url"`
		}
		if err := json.Unmarshal(e, &d); err != nil {
			return nil, errors.Wrap(err, "decoding repository descriptor")
		}
		out = append(out, RepositoryDescriptor{Type: d.Type, URL: d.URL, Raw: e})
	}
	return out, nil
}

// Encode re-serializes m. Fields that were never populated (nil
// OrderedMap, empty slice) are omitted the same way Decode would have
// left them absent, so Decode(Encode(m)) round-trips (spec §8).
func (m *Manifest) Encode() ([]byte, error) {
	rm := rawManifest{
		Name:        m.Name,
		Version:     m.Version,
		Type:        typeOrEmpty(m.Type),
		Require:     omitEmpty(m.Require),
		RequireDev:  omitEmpty(m.RequireDev),
		Conflict:    omitEmpty(m.Conflict),
		Provide:     omitEmpty(m.Provide),
		Replace:     omitEmpty(m.Replace),
		Suggest:     omitEmpty(m.Suggest),
		Autoload:    m.Autoload,
		AutoloadDev: m.AutoloadDev,
		Bin:         m.Bin,
		Config:      m.Config,
		Scripts:     m.Scripts,
		Extra:       m.Extra,
	}
	if len(m.Repositories) > 0 {
		raws := make([]json.RawMessage, len(m.Repositories))
		for i, r := range m.Repositories {
			raws[i] = r.Raw
		}
		encoded, err := json.Marshal(raws)
		if err != nil {
			return nil, errors.Wrap(err, "encoding repositories")
		}
		rm.Repositories = encoded
	}
	return json.MarshalIndent(rm, "", "    ")
}

func typeOrEmpty(t model.PackageType) string {
	if t == model.TypeLibrary {
		return ""
	}
	return string(t)
}

func omitEmpty(m *OrderedMap) *OrderedMap {
	if m == nil || m.Len() == 0 {
		return nil
	}
	return m
}

// ToModelPackage lowers m into a model.Package candidate record, the
// shape a VCS or path repository needs once it has already determined
// which version/source/dist this manifest belongs to (spec §4.1: VCS and
// path repositories read a manifest per ref/directory and attach the
// version information themselves, since composer.json never names its
// own version for those repository types).
func (m *Manifest) ToModelPackage(version model.Version, prettyVersion string, src *model.SourceRef, dist *model.DistRef) *model.Package {
	return &model.Package{
		Name:          strings.ToLower(m.Name),
		Version:       version,
		PrettyVersion: prettyVersion,
		Type:          orDefaultPackageType(m.Type),
		Source:        src,
		Dist:          dist,
		Require:       m.Require.ToMap(),
		RequireDev:    m.RequireDev.ToMap(),
		Conflict:      m.Conflict.ToMap(),
		Provide:       m.Provide.ToMap(),
		Replace:       m.Replace.ToMap(),
		Suggest:       m.Suggest.ToMap(),
		Autoload:      m.Autoload,
		Bin:           m.Bin,
	}
}

func orDefaultPackageType(t model.PackageType) model.PackageType {
	if t == "" {
		return model.TypeLibrary
	}
	return t
}

// ReadFile reads and decodes the manifest file at path.
func ReadFile(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest %q", path)
	}
	return Decode(raw)
}
