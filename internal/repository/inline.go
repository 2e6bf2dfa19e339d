package repository

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/model"
)

// Inline is the C1 inline package repository of spec §4.1: constructs
// records directly from a JSON array of package definitions, handed to
// the constructor already decoded into model.Package values.
type Inline struct {
	name     string
	byName   map[string][]*model.Package
	packages []*model.Package
}

// NewInline builds an Inline repository from already-decoded packages
// (typically the manifest's "repositories": [{"type": "package", ...}]
// entries).
func NewInline(name string, packages []*model.Package) *Inline {
	byName := make(map[string][]*model.Package)
	for _, p := range packages {
		key := strings.ToLower(p.Name)
		byName[key] = append(byName[key], p)
	}
	return &Inline{name: name, byName: byName, packages: packages}
}

func (r *Inline) Name() string { return r.name }

func (r *Inline) HasPackage(ctx context.Context, name string) (bool, error) {
	_, ok := r.byName[strings.ToLower(name)]
	return ok, nil
}

func (r *Inline) Versions(ctx context.Context, name string) ([]*model.Package, error) {
	return r.byName[strings.ToLower(name)], nil
}

func (r *Inline) Search(ctx context.Context, query string) ([]*model.Package, error) {
	q := strings.ToLower(query)
	var out []*model.Package
	for _, p := range r.packages {
		if strings.Contains(p.Name, q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Inline) All(ctx context.Context) ([]*model.Package, error) {
	return r.packages, nil
}

func (r *Inline) BatchLoad(ctx context.Context, reqs []LoadRequest) (*BatchResult, error) {
	result := &BatchResult{Found: make(map[string]bool)}
	for _, req := range reqs {
		versions := r.byName[strings.ToLower(req.Name)]
		if len(versions) > 0 {
			result.Found[strings.ToLower(req.Name)] = true
			result.Packages = append(result.Packages, versions...)
		}
	}
	return result, nil
}

// inlinePackageEntry is one entry of a "package" repository descriptor's
// "package" field. It is schema-identical to a registry provider-index
// entry plus the name, since Composer's inline package repository and its
// regular registry describe a version the same way.
type inlinePackageEntry struct {
	Name string `json:"name"`
	providerEntry
}

// NewInlineFromDescriptor decodes a manifest's {"type": "package", ...}
// repository descriptor into an Inline repository. Composer accepts the
// "package" field as either a single package object or an array of them;
// both forms are handled here.
func NewInlineFromDescriptor(name string, raw json.RawMessage) (*Inline, error) {
	var wrapper struct {
		Package json.RawMessage `json:"package"`
	}
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return nil, errors.Wrap(err, "decoding package repository descriptor")
	}

	var entries []inlinePackageEntry
	var single inlinePackageEntry
	if err := json.Unmarshal(wrapper.Package, &single); err == nil && single.Name != "" {
		entries = []inlinePackageEntry{single}
	} else if err := json.Unmarshal(wrapper.Package, &entries); err != nil {
		return nil, errors.Wrap(err, "decoding inline package entries")
	}

	packages := make([]*model.Package, 0, len(entries))
	for _, e := range entries {
		pkg, err := buildPackage(e.Name, e.providerEntry)
		if err != nil {
			return nil, errors.Wrapf(err, "inline package %q", e.Name)
		}
		packages = append(packages, pkg)
	}
	return NewInline(name, packages), nil
}
