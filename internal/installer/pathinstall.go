package installer

import (
	"os"

	"github.com/pkg/errors"
	"github.com/termie/go-shutil"
)

// InstallPathDist places a path-type dist (spec §4.1 "Local path
// repository") at destDir: a symlink when symlink is requested, otherwise
// a mirror copy — the same shutil.CopyTree the teacher uses to lay a
// checked-out working copy into the vendor tree (spec §4.5 "Path-type
// dists symlink or mirror per transport options").
func InstallPathDist(sourceDir, destDir string, symlink bool) error {
	if err := os.RemoveAll(destDir); err != nil {
		return errors.Wrapf(err, "clearing destination %q", destDir)
	}

	if symlink {
		target := sourceDir
		return errors.Wrapf(os.Symlink(target, destDir), "symlinking %q to %q", destDir, target)
	}

	cfg := &shutil.CopyTreeOptions{
		Symlinks:     true,
		CopyFunction: shutil.Copy,
		Ignore: func(src string, contents []os.FileInfo) (ignore []string) {
			for _, fi := range contents {
				if fi.IsDir() && fi.Name() == ".git" {
					ignore = append(ignore, fi.Name())
				}
			}
			return
		},
	}
	return errors.Wrapf(shutil.CopyTree(sourceDir, destDir, cfg), "mirror-copying %q to %q", sourceDir, destDir)
}
