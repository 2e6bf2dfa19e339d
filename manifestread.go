package pkgsolve

import (
	"os"
	"path/filepath"

	"github.com/pkgsolve/pkgsolve/internal/installer"
	"github.com/pkgsolve/pkgsolve/internal/manifest"
	"github.com/pkgsolve/pkgsolve/internal/model"
)

// readManifestFromDir is the ManifestReader VCS and path repositories use
// (spec §4.1): it reads the manifest found at dir and, if the manifest
// itself declares no usable version (the common case for a VCS ref,
// whose version the caller derives from the tag/branch name instead),
// falls back to a "dev-main" placeholder that the caller overwrites.
func readManifestFromDir(dir string) (*model.Package, error) {
	m, err := manifest.ReadFile(filepath.Join(dir, manifest.ManifestName))
	if err != nil {
		return nil, err
	}
	ver := model.ParseBranch("main")
	pretty := "dev-main"
	if m.Version != "" {
		if v, verr := model.ParseVersion(m.Version); verr == nil {
			ver, pretty = v, m.Version
		}
	}
	return m.ToModelPackage(ver, pretty, nil, nil), nil
}

// readManifestFromArchive is the ArchiveManifestReader the artifact
// repository uses: it extracts arc to a scratch directory and reads the
// manifest the same way a path repository would, since an artifact
// archive's layout is otherwise identical to a path package's.
func readManifestFromArchive(archivePath string) (*model.Package, error) {
	tmp, err := os.MkdirTemp("", "pkgsolve-artifact-*")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	kind := installer.DetectArchiveKindFromPath(archivePath)
	if err := installer.ExtractArchive(archivePath, tmp, kind); err != nil {
		return nil, err
	}
	return readManifestFromDir(tmp)
}
