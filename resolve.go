package pkgsolve

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/installer"
	"github.com/pkgsolve/pkgsolve/internal/manifest"
	"github.com/pkgsolve/pkgsolve/internal/model"
	"github.com/pkgsolve/pkgsolve/internal/pool"
	"github.com/pkgsolve/pkgsolve/internal/repository"
	"github.com/pkgsolve/pkgsolve/internal/repository/cache"
	"github.com/pkgsolve/pkgsolve/internal/solver"
	"github.com/pkgsolve/pkgsolve/internal/transaction"
)

// ResolveOptions tunes a single Resolve call (spec §4.2 step 2's
// root-require expansion and spec §4.4's decide-time version
// preference).
type ResolveOptions struct {
	IncludeDev   bool
	PreferLowest bool
}

// Result is everything a Resolve call produces: the selected packages
// and branch-alias records, plus the pool they were selected from (kept
// for diagnostics and for a caller that wants to inspect why a name was
// or wasn't selected).
type Result struct {
	Packages []*model.Package
	Aliases  []transaction.AliasRecord
	Pool     *pool.Pool
}

// Resolve runs the full C2-C4 pipeline: build a demand-driven pool from
// p's manifest requirements (seeded by any existing lock file), lower it
// to a RuleSet, and run the SAT solver to completion.
func (c *Ctx) Resolve(ctx context.Context, p *Project, repos *repository.Set, opts ResolveOptions) (*Result, error) {
	rootRequires := lowerKeys(p.Manifest.Require.ToMap())
	if opts.IncludeDev {
		for k, v := range lowerKeys(p.Manifest.RequireDev.ToMap()) {
			rootRequires[k] = v
		}
	}

	locked, err := lockedPackages(p.Lock)
	if err != nil {
		return nil, err
	}

	builder := pool.NewBuilder(repos, c.Logger)
	built, err := builder.Build(ctx, rootRequires, nil, locked)
	if err != nil {
		return nil, errors.Wrap(err, "building candidate pool")
	}

	gen := solver.NewGenerator(built.Pool)
	rs := gen.Generate(&solver.Request{RootRequires: rootRequires})

	assignment, err := solver.Solve(built.Pool, rs, solver.Config{PreferLowest: opts.PreferLowest})
	if err != nil {
		return nil, err
	}

	var packages []*model.Package
	var aliases []transaction.AliasRecord
	for _, id := range assignment.SelectedIDs() {
		if built.Pool.IsAlias(id) {
			a := built.Pool.Alias(id)
			aliases = append(aliases, transaction.AliasRecord{Name: strings.ToLower(a.Name()), Version: a.Version, Alias: a})
			continue
		}
		packages = append(packages, built.Pool.Package(id))
	}

	return &Result{Packages: packages, Aliases: aliases, Pool: built.Pool}, nil
}

func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}

func lockedPackages(lock *manifest.Lock) ([]*model.Package, error) {
	if lock == nil {
		return nil, nil
	}
	var out []*model.Package
	for _, lp := range lock.Packages {
		pkg, err := lp.ToModelPackage()
		if err != nil {
			return nil, err
		}
		out = append(out, pkg)
	}
	for _, lp := range lock.PackagesDev {
		pkg, err := lp.ToModelPackage()
		if err != nil {
			return nil, err
		}
		out = append(out, pkg)
	}
	return out, nil
}

// Plan diffs res against what is currently installed under p.VendorDir,
// producing an ordered transaction.Transaction ready for Install (spec
// §4.5).
func (c *Ctx) Plan(p *Project, res *Result) (*transaction.Transaction, error) {
	installed := repository.NewInstalled(p.VendorDir)
	present, err := installed.Scan()
	if err != nil {
		return nil, err
	}

	var presentAliases []transaction.AliasRecord
	if p.Lock != nil {
		for _, la := range p.Lock.Aliases {
			ver, err := model.ParseVersion(la.AliasNormalized)
			if err != nil {
				continue
			}
			presentAliases = append(presentAliases, transaction.AliasRecord{Name: strings.ToLower(la.Package), Version: ver})
		}
	}

	return transaction.Plan(present, res.Packages, presentAliases, res.Aliases), nil
}

// Install executes tx against p's vendor directory using a bounded-
// concurrency installer.Manager, then rewrites the project's lock file
// to match res (spec §4.5 Execution, spec §6 lock file).
func (c *Ctx) Install(ctx context.Context, p *Project, res *Result, tx *transaction.Transaction, cfg installer.Config) error {
	cch, err := cache.Open(c.CacheDir, c.CacheTTL, false)
	if err != nil {
		return errors.Wrap(err, "opening install cache")
	}
	defer cch.Close()

	cfg.VendorDir = p.VendorDir
	if cfg.CacheDir == "" {
		cfg.CacheDir = c.CacheDir
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = c.HTTPClient
	}

	mgr := installer.New(ctx, cfg, cch, c.Logger)
	if err := mgr.Execute(ctx, tx); err != nil {
		return err
	}

	lock := buildLock(p.Lock, res)
	if err := FinalizeLock(lock, p.Manifest); err != nil {
		return err
	}
	return p.WriteLock(lock)
}

// buildLock derives the new lock contents from res, carrying over the
// stability/platform metadata of the previous lock (if any) since a
// resolution run never changes those fields itself.
func buildLock(prev *manifest.Lock, res *Result) *manifest.Lock {
	lock := &manifest.Lock{}
	if prev != nil {
		lock.MinimumStability = prev.MinimumStability
		lock.StabilityFlags = prev.StabilityFlags
		lock.PreferStable = prev.PreferStable
		lock.PreferLowest = prev.PreferLowest
		lock.Platform = prev.Platform
		lock.PlatformDev = prev.PlatformDev
		lock.PlatformOverrides = prev.PlatformOverrides
		lock.PluginAPIVersion = prev.PluginAPIVersion
	}
	for _, pkg := range res.Packages {
		lock.Packages = append(lock.Packages, manifest.NewLockedPackageFromModel(pkg))
	}
	for _, a := range res.Aliases {
		lock.Aliases = append(lock.Aliases, manifest.LockedAlias{
			Package:         a.Name,
			Version:         a.Alias.Base.Version.String(),
			Alias:           a.Alias.Pretty,
			AliasNormalized: a.Alias.Version.String(),
		})
	}
	return lock
}

// FinalizeLock computes and sets lock.ContentHash from m, to be called
// after buildLock and before Project.WriteLock when a caller writes the
// lock outside of Install (e.g. a dry-run resolve that still wants an
// up-to-date lock on disk).
func FinalizeLock(lock *manifest.Lock, m *manifest.Manifest) error {
	hash, err := manifest.ContentHash(m)
	if err != nil {
		return err
	}
	lock.ContentHash = hash
	return nil
}
