package pkgsolve

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/manifest"
)

// Project is a manifest (and, if one exists, a lock file) rooted at a
// directory on disk, paired with the vendor directory packages install
// into. It is the unit LoadProject hands back and every other Ctx method
// operates on, the same role the teacher's own Project plays for a
// GOPATH-rooted Go workspace.
type Project struct {
	Root      string
	VendorDir string
	Manifest  *manifest.Manifest
	Lock      *manifest.Lock // nil when no lock file exists yet
}

// LoadProject reads the manifest at root/pkgsolve.json and, if present,
// the lock file at root/pkgsolve.lock. vendorDir defaults to
// root/vendor when empty.
func (c *Ctx) LoadProject(root, vendorDir string) (*Project, error) {
	if vendorDir == "" {
		vendorDir = filepath.Join(root, "vendor")
	}

	m, err := manifest.ReadFile(filepath.Join(root, manifest.ManifestName))
	if err != nil {
		return nil, err
	}
	p := &Project{Root: root, VendorDir: vendorDir, Manifest: m}

	lockPath := filepath.Join(root, manifest.LockName)
	raw, err := os.ReadFile(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return p, nil
		}
		return nil, errors.Wrapf(err, "reading lock file %q", lockPath)
	}
	lock, err := manifest.DecodeLock(raw)
	if err != nil {
		return nil, err
	}
	p.Lock = lock
	return p, nil
}

// WriteLock re-serializes lock to root/pkgsolve.lock.
func (p *Project) WriteLock(lock *manifest.Lock) error {
	raw, err := lock.Encode()
	if err != nil {
		return err
	}
	path := filepath.Join(p.Root, manifest.LockName)
	return errors.Wrapf(os.WriteFile(path, raw, 0o644), "writing lock file %q", path)
}
