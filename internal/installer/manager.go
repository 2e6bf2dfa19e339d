// Package installer implements the C5 download/install manager of spec
// §4.5: it executes a transaction.Transaction against the filesystem,
// downloading or checking out each package, verifying integrity, and
// extracting or copying it into the vendor tree, with bounded concurrency
// over the install/update phase.
package installer

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/sdboyer/constext"
	"golang.org/x/sync/semaphore"

	"github.com/pkgsolve/pkgsolve/internal/model"
	"github.com/pkgsolve/pkgsolve/internal/repository"
	"github.com/pkgsolve/pkgsolve/internal/repository/cache"
	"github.com/pkgsolve/pkgsolve/internal/transaction"
)

// Config tunes the installer's filesystem layout and execution policy
// (spec §4.5 "Execution").
type Config struct {
	VendorDir    string
	CacheDir     string
	Concurrency  int // default 10, per spec §4.5
	PreferSource bool
	HTTPClient   *http.Client
}

func (c Config) concurrency() int64 {
	if c.Concurrency <= 0 {
		return 10
	}
	return int64(c.Concurrency)
}

// Manager executes transactions against disk. The context passed to New
// bounds every operation the Manager ever runs: canceling it aborts
// in-flight downloads and extractions at their next check (spec §5
// "Cancellation"), the same way the teacher's callManager combines an
// overarching source-manager context with each individual call's context
// via constext.Cons.
type Manager struct {
	cfg       Config
	ctx       context.Context
	logger    *log.Logger
	dl        *Downloader
	installed *repository.Installed
	cache     *cache.Cache
	sem       *semaphore.Weighted
}

// New builds a Manager rooted at cfg.VendorDir, bounding every operation
// it runs to ctx's lifetime.
func New(ctx context.Context, cfg Config, c *cache.Cache, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		cfg:       cfg,
		ctx:       ctx,
		logger:    logger,
		dl:        NewDownloader(cfg.HTTPClient),
		installed: repository.NewInstalled(cfg.VendorDir),
		cache:     c,
		sem:       semaphore.NewWeighted(cfg.concurrency()),
	}
}

// Execute runs every operation in t: uninstalls sequentially (spec §4.5
// "Uninstalls run sequentially"), then installs/updates through the
// bounded-concurrency pool. A single package's failure surfaces with its
// name; packages that already completed are left in place (spec §4.5
// "Failure semantics").
func (m *Manager) Execute(callerCtx context.Context, t *transaction.Transaction) error {
	cctx, cancel := constext.Cons(callerCtx, m.ctx)
	defer cancel()

	for _, op := range t.Operations {
		switch op.Kind {
		case transaction.KindUninstall:
			if err := m.uninstall(op.From); err != nil {
				return errors.Wrapf(err, "uninstalling %q", op.From.Name)
			}
		case transaction.KindMarkAliasUninstalled:
			// No filesystem effect: alias state lives only in the lock
			// file, which the caller rewrites separately.
		}
	}

	type task struct {
		op transaction.Operation
	}
	var tasks []task
	for _, op := range t.Operations {
		if op.Kind == transaction.KindInstall || op.Kind == transaction.KindUpdate {
			tasks = append(tasks, task{op: op})
		}
	}

	errCh := make(chan error, len(tasks))
	for _, tk := range tasks {
		tk := tk
		if err := m.sem.Acquire(cctx, 1); err != nil {
			return errors.Wrap(err, "acquiring install slot")
		}
		go func() {
			defer m.sem.Release(1)
			errCh <- m.installOrUpdate(cctx, tk.op)
		}()
	}
	var firstErr error
	for range tasks {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *Manager) uninstall(pkg *model.Package) error {
	if pkg == nil {
		return nil
	}
	m.logger.Printf("removing %s (%s)", pkg.Name, pkg.PrettyVersion)
	return m.installed.RemoveBookkeeping(pkg.Name)
}

// installOrUpdate places pkg.To on disk and records its bookkeeping. For
// an Update, the previous directory is simply overwritten in place
// (removing then re-extracting), matching spec §4.5's planner invariant
// that at most one operation ever targets a given name in a run.
func (m *Manager) installOrUpdate(ctx context.Context, op transaction.Operation) error {
	pkg := op.To
	dest := filepath.Join(m.cfg.VendorDir, pkg.Name)

	if pkg.Type == model.TypeMetapackage {
		m.logger.Printf("%s (%s): metapackage, no files to place", pkg.Name, pkg.PrettyVersion)
		return m.installed.WriteBookkeeping(pkg)
	}

	if pkg.Dist != nil && pkg.Dist.Kind == "path" {
		source := ""
		if len(pkg.Dist.URLs) > 0 {
			source = pkg.Dist.URLs[0]
		}
		if err := InstallPathDist(source, dest, pkg.Dist.Symlink); err != nil {
			return err
		}
		m.linkBinaries(pkg, dest)
		return m.installed.WriteBookkeeping(pkg)
	}

	useSource := pkg.Version.IsDev() || (m.cfg.PreferSource && pkg.Source != nil)
	if useSource && pkg.Source != nil {
		m.logger.Printf("installing %s (%s) from source (%s)", pkg.Name, pkg.PrettyVersion, pkg.Source.Kind)
		if err := InstallFromSource(pkg.Source, dest); err != nil {
			if pkg.Dist == nil {
				return err
			}
			m.logger.Printf("source checkout failed for %s, falling back to dist: %v", pkg.Name, err)
		} else {
			m.linkBinaries(pkg, dest)
			return m.installed.WriteBookkeeping(pkg)
		}
	}

	if pkg.Dist != nil {
		fromCache, err := m.installFromDist(ctx, pkg, dest)
		if err != nil {
			return err
		}
		if fromCache {
			m.logger.Printf("loading %s (%s) from cache", pkg.Name, pkg.PrettyVersion)
		} else {
			m.logger.Printf("downloading %s (%s)", pkg.Name, pkg.PrettyVersion)
		}
		m.linkBinaries(pkg, dest)
		return m.installed.WriteBookkeeping(pkg)
	}

	if pkg.Source != nil {
		if err := InstallFromSource(pkg.Source, dest); err != nil {
			return err
		}
		m.linkBinaries(pkg, dest)
		return m.installed.WriteBookkeeping(pkg)
	}

	return errors.Errorf("package %q has no source or dist to install from", pkg.Name)
}

// linkBinaries symlinks pkg's declared bin/ entries into
// <vendor>/bin/ (spec §6 "Binaries declared by packages are linked into
// <vendor>/bin/"). Failures here are logged, not fatal: a missing or
// unexecutable bin entry shouldn't roll back an otherwise-successful
// install.
func (m *Manager) linkBinaries(pkg *model.Package, installDir string) {
	if len(pkg.Bin) == 0 {
		return
	}
	binDir := filepath.Join(m.cfg.VendorDir, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		m.logger.Printf("creating %q: %v", binDir, err)
		return
	}
	for _, rel := range pkg.Bin {
		target := filepath.Join(installDir, rel)
		link := filepath.Join(binDir, filepath.Base(rel))
		_ = os.Remove(link)
		if err := os.Symlink(target, link); err != nil {
			m.logger.Printf("linking binary %q for %s: %v", rel, pkg.Name, err)
		}
	}
}

// installFromDist downloads (or reuses a cached copy of) pkg's dist
// archive and extracts it to dest, returning whether the cache already
// held a verified copy (spec §4.5 "Download"/"Extraction").
func (m *Manager) installFromDist(ctx context.Context, pkg *model.Package, dest string) (fromCache bool, err error) {
	dist := pkg.Dist
	cacheKey := strings.ToLower(pkg.Name) + "-" + pkg.Version.String() + "." + dist.Kind
	cachePath := filepath.Join(m.cfg.CacheDir, "files", cache.SanitizeKey(cacheKey))

	if ok, verr := m.cacheHitVerified(cachePath, dist); verr != nil {
		return false, verr
	} else if ok {
		if err := ExtractArchive(cachePath, dest, DetectArchiveKindFromPath(cacheKey)); err != nil {
			return false, errors.Wrapf(err, "extracting cached %q", pkg.Name)
		}
		return true, nil
	}

	usedURL, err := m.dl.FetchToFile(ctx, dist.URLs, cachePath)
	if err != nil {
		return false, errors.Wrapf(err, "downloading %q", pkg.Name)
	}

	ok, verr := verifyDist(cachePath, dist)
	if verr != nil {
		return false, verr
	}
	if !ok {
		_ = removeQuiet(cachePath)
		return false, &ChecksumMismatch{Package: pkg.Name}
	}

	kind := DetectArchiveKindFromPath(usedURL)
	if kind == ArchiveUnknown {
		kind = DetectArchiveKindFromPath(cacheKey)
	}
	if err := ExtractArchive(cachePath, dest, kind); err != nil {
		return false, errors.Wrapf(err, "extracting %q", pkg.Name)
	}
	return false, nil
}

func (m *Manager) cacheHitVerified(cachePath string, dist *model.DistRef) (bool, error) {
	if !fileExists(cachePath) {
		return false, nil
	}
	if dist.Shasum256 == "" && dist.Shasum1 == "" {
		return true, nil
	}
	ok, err := VerifyChecksum(cachePath, dist.Shasum256, dist.Shasum1)
	if err != nil {
		return false, err
	}
	if !ok {
		_ = removeQuiet(cachePath)
		return false, nil
	}
	return true, nil
}

func verifyDist(path string, dist *model.DistRef) (bool, error) {
	return VerifyChecksum(path, dist.Shasum256, dist.Shasum1)
}
