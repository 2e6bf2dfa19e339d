package repository

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/model"
)

// installedRecord is the on-disk bookkeeping file pkgsolve writes per
// vendored package (".pkgsolve-installed.json") so Installed can mirror
// what is present without re-deriving it from the lock file, whose
// selection may have already moved on.
type installedRecord struct {
	Name          string            `json:"name"`
	Version       string            `json:"version"`
	PrettyVersion string            `json:"pretty_version"`
	Source        *model.SourceRef  `json:"source,omitempty"`
	Dist          *model.DistRef    `json:"dist,omitempty"`
	Type          model.PackageType `json:"type"`
}

// Installed mirrors what is currently on disk under the vendor directory
// (spec §4.1): used only as the "present" side of the transaction diff,
// never as a candidate source for the solver.
type Installed struct {
	vendorDir string
}

// NewInstalled builds an Installed repository rooted at vendorDir.
func NewInstalled(vendorDir string) *Installed {
	return &Installed{vendorDir: vendorDir}
}

func (r *Installed) Name() string { return "installed" }

// Scan reads every per-package bookkeeping file under the vendor
// directory and returns the corresponding package records. Missing
// vendor directory is not an error: it simply means nothing is
// installed yet.
func (r *Installed) Scan() ([]*model.Package, error) {
	entries, err := os.ReadDir(r.vendorDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading vendor directory %q", r.vendorDir)
	}

	var out []*model.Package
	for _, vendorEntry := range entries {
		if !vendorEntry.IsDir() || vendorEntry.Name() == "bin" {
			continue
		}
		vendorPath := filepath.Join(r.vendorDir, vendorEntry.Name())
		nameEntries, err := os.ReadDir(vendorPath)
		if err != nil {
			continue
		}
		for _, ne := range nameEntries {
			if !ne.IsDir() {
				continue
			}
			pkg, err := r.readBookkeeping(filepath.Join(vendorPath, ne.Name()))
			if err != nil {
				continue
			}
			out = append(out, pkg)
		}
	}
	return out, nil
}

func (r *Installed) readBookkeeping(pkgDir string) (*model.Package, error) {
	raw, err := os.ReadFile(filepath.Join(pkgDir, ".pkgsolve-installed.json"))
	if err != nil {
		return nil, err
	}
	var rec installedRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, errors.Wrapf(err, "decoding installed bookkeeping in %q", pkgDir)
	}
	ver, err := model.ParseVersion(rec.Version)
	if err != nil {
		return nil, err
	}
	return &model.Package{
		Name:          strings.ToLower(rec.Name),
		Version:       ver,
		PrettyVersion: rec.PrettyVersion,
		Type:          rec.Type,
		Source:        rec.Source,
		Dist:          rec.Dist,
	}, nil
}

// WriteBookkeeping records pkg's installed state at <vendor>/<name>, used
// by the installer after a successful Install/Update so the next run's
// Installed.Scan can see it.
func (r *Installed) WriteBookkeeping(pkg *model.Package) error {
	dir := filepath.Join(r.vendorDir, pkg.Name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "creating package directory %q", dir)
	}
	rec := installedRecord{
		Name:          pkg.Name,
		Version:       pkg.Version.String(),
		PrettyVersion: pkg.PrettyVersion,
		Source:        pkg.Source,
		Dist:          pkg.Dist,
		Type:          pkg.Type,
	}
	raw, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encoding installed bookkeeping")
	}
	return errors.Wrap(os.WriteFile(filepath.Join(dir, ".pkgsolve-installed.json"), raw, 0o644), "writing installed bookkeeping")
}

// RemoveBookkeeping deletes a package's vendor subdirectory entirely,
// used by Uninstall.
func (r *Installed) RemoveBookkeeping(name string) error {
	err := os.RemoveAll(filepath.Join(r.vendorDir, name))
	return errors.Wrapf(err, "removing vendor directory for %q", name)
}

// The remaining Repository methods exist so Installed can sit in a
// repository.Set if ever needed, but it is never wired into pool
// building (spec §4.1: "used only as the present side... never as a
// candidate source").

func (r *Installed) HasPackage(ctx context.Context, name string) (bool, error) {
	pkgs, err := r.Scan()
	if err != nil {
		return false, err
	}
	for _, p := range pkgs {
		if p.Name == strings.ToLower(name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *Installed) Versions(ctx context.Context, name string) ([]*model.Package, error) {
	pkgs, err := r.Scan()
	if err != nil {
		return nil, err
	}
	var out []*model.Package
	for _, p := range pkgs {
		if p.Name == strings.ToLower(name) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *Installed) Search(ctx context.Context, query string) ([]*model.Package, error) {
	return nil, errors.New("installed repository does not support search")
}

func (r *Installed) All(ctx context.Context) ([]*model.Package, error) {
	return r.Scan()
}

func (r *Installed) BatchLoad(ctx context.Context, reqs []LoadRequest) (*BatchResult, error) {
	return nil, errors.New("installed repository is never a candidate source")
}
