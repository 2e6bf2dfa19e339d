package installer

import (
	"os"

	vcslib "github.com/Masterminds/vcs"
	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/model"
)

// InstallFromSource clones (or updates an existing clone of) src's URL
// into destDir and checks out its reference, the same Masterminds/vcs
// Get/UpdateVersion pair the teacher uses for a plain (non-git-native)
// source checkout (spec §4.5 "dev versions and prefer_source=true choose
// source"). Only "git" sources are supported — hg/svn/bzr dist checkouts
// are exceedingly rare in practice and are out of scope for this
// implementation's installer (the resolver's VCS repository still reads
// their manifests for candidate discovery).
func InstallFromSource(src *model.SourceRef, destDir string) error {
	if src == nil {
		return errors.New("package has no source reference")
	}
	if src.Kind != "git" {
		return errors.Errorf("unsupported source type %q for install", src.Kind)
	}

	if err := os.RemoveAll(destDir); err != nil {
		return errors.Wrapf(err, "clearing destination %q", destDir)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating destination %q", destDir)
	}

	repo, err := vcslib.NewGitRepo(src.URL, destDir)
	if err != nil {
		return errors.Wrapf(err, "initializing git checkout of %q", src.URL)
	}
	if err := repo.Get(); err != nil {
		return errors.Wrapf(err, "cloning %q", src.URL)
	}
	if src.Reference != "" {
		if err := repo.UpdateVersion(src.Reference); err != nil {
			return errors.Wrapf(err, "checking out %q at %q", src.URL, src.Reference)
		}
	}
	return nil
}
