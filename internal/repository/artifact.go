package repository

import (
	"context"
	"crypto/sha1" //nolint:gosec // spec §3 requires SHA-1 for artifact dist integrity, matching the archive's legacy hashing scheme
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/model"
)

// ArchiveManifestReader extracts and decodes the top-level package
// manifest from an archive file (zip or tar), without materializing the
// whole archive to disk.
type ArchiveManifestReader func(archivePath string) (*model.Package, error)

// Artifact is the C1 artifact repository of spec §4.1: scans a directory
// for archive files, extracts the top-level manifest, and records a
// path-based dist with a SHA-1 of the archive.
type Artifact struct {
	name    string
	dir     string
	readArc ArchiveManifestReader

	packages []*model.Package
	byName   map[string][]*model.Package
	scanned  bool
}

// NewArtifact builds an Artifact repository scanning dir for archives.
func NewArtifact(name, dir string, readArc ArchiveManifestReader) *Artifact {
	return &Artifact{name: name, dir: dir, readArc: readArc, byName: make(map[string][]*model.Package)}
}

func (r *Artifact) Name() string { return r.name }

func (r *Artifact) scan() error {
	if r.scanned {
		return nil
	}
	r.scanned = true

	err := godirwalk.Walk(r.dir, &godirwalk.Options{
		Callback: func(path string, de *godirwalk.Dirent) error {
			if de.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext != ".zip" && ext != ".tar" && ext != ".gz" && ext != ".tgz" {
				return nil
			}
			pkg, err := r.readArc(path)
			if err != nil {
				// A single unreadable archive doesn't fail the scan; it
				// is simply not offered as a candidate.
				return nil
			}
			sum, err := sha1Of(path)
			if err != nil {
				return nil
			}
			pkg.Name = strings.ToLower(pkg.Name)
			pkg.Dist = &model.DistRef{Kind: distKindFromExt(ext), URLs: []string{path}, Shasum1: sum}
			r.packages = append(r.packages, pkg)
			r.byName[pkg.Name] = append(r.byName[pkg.Name], pkg)
			return nil
		},
		Unsorted: true,
	})
	return errors.Wrapf(err, "scanning artifact directory %q", r.dir)
}

func distKindFromExt(ext string) string {
	switch ext {
	case ".zip":
		return "zip"
	default:
		return "tar"
	}
}

func sha1Of(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %q for hashing", path)
	}
	defer f.Close()

	h := sha1.New() //nolint:gosec
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hashing %q", path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func (r *Artifact) HasPackage(ctx context.Context, name string) (bool, error) {
	if err := r.scan(); err != nil {
		return false, err
	}
	_, ok := r.byName[strings.ToLower(name)]
	return ok, nil
}

func (r *Artifact) Versions(ctx context.Context, name string) ([]*model.Package, error) {
	if err := r.scan(); err != nil {
		return nil, err
	}
	return r.byName[strings.ToLower(name)], nil
}

func (r *Artifact) Search(ctx context.Context, query string) ([]*model.Package, error) {
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

func (r *Artifact) All(ctx context.Context) ([]*model.Package, error) {
	if err := r.scan(); err != nil {
		return nil, err
	}
	return r.packages, nil
}

func (r *Artifact) BatchLoad(ctx context.Context, reqs []LoadRequest) (*BatchResult, error) {
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
