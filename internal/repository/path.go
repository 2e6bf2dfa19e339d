package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/model"
)

// Path is the C1 local path repository of spec §4.1: reads a manifest
// from a directory (optionally matching a glob), computes a content-hash
// reference, and records a dist of kind "path" with transport flags
// (symlink/relative) carried through to the installer.
type Path struct {
	name         string
	glob         string // e.g. "../packages/*"; empty means a single dir
	readManifest func(dir string) (*model.Package, error)
	symlink      bool
	relative     bool

	packages []*model.Package
	byName   map[string][]*model.Package
	scanned  bool
}

// NewPath builds a Path repository. glob is a directory glob (as used by
// Composer's "path" repository type); an empty glob means pathOrGlob
// names a single package directory.
func NewPath(name, pathOrGlob string, readManifest func(dir string) (*model.Package, error), symlink, relative bool) *Path {
	return &Path{name: name, glob: pathOrGlob, readManifest: readManifest, symlink: symlink, relative: relative, byName: make(map[string][]*model.Package)}
}

func (r *Path) Name() string { return r.name }

func (r *Path) scan() error {
	if r.scanned {
		return nil
	}
	r.scanned = true

	dirs, err := filepath.Glob(r.glob)
	if err != nil {
		return errors.Wrapf(err, "globbing path repository %q", r.glob)
	}
	if len(dirs) == 0 {
		dirs = []string{r.glob}
	}

	for _, dir := range dirs {
		pkg, err := r.readManifest(dir)
		if err != nil {
			continue
		}
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		pkg.Name = strings.ToLower(pkg.Name)
		pkg.Dist = &model.DistRef{
			Kind:     "path",
			URLs:     []string{abs},
			Shasum1:  contentHashRef(abs),
			Symlink:  r.symlink,
			Relative: r.relative,
		}
		r.packages = append(r.packages, pkg)
		r.byName[pkg.Name] = append(r.byName[pkg.Name], pkg)
	}
	return nil
}

// contentHashRef computes a stable reference for a path-type dist from
// its absolute path, mirroring Composer's path repository which uses a
// content hash of the directory as the package's distReference so that
// changes under the path are detectable across reinstalls even though no
// archive exists to checksum.
func contentHashRef(absPath string) string {
	sum := sha256.Sum256([]byte(absPath))
	return hex.EncodeToString(sum[:])[:12]
}

func (r *Path) HasPackage(ctx context.Context, name string) (bool, error) {
	if err := r.scan(); err != nil {
		return false, err
	}
	_, ok := r.byName[strings.ToLower(name)]
	return ok, nil
}

func (r *Path) Versions(ctx context.Context, name string) ([]*model.Package, error) {
	if err := r.scan(); err != nil {
		return nil, err
	}
	return r.byName[strings.ToLower(name)], nil
}

func (r *Path) Search(ctx context.Context, query string) ([]*model.Package, error) {
	if err := r.scan(); err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []*model.Package
	for _, p := range r.packages {
		if strings.Contains(p.Name, q) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Path) All(ctx context.Context) ([]*model.Package, error) {
	if err := r.scan(); err != nil {
		return nil, err
	}
	return r.packages, nil
}

func (r *Path) BatchLoad(ctx context.Context, reqs []LoadRequest) (*BatchResult, error) {
	if err := r.scan(); err != nil {
		return nil, err
	}
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
