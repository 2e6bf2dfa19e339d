package pool

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/model"
	"github.com/pkgsolve/pkgsolve/internal/platform"
	"github.com/pkgsolve/pkgsolve/internal/repository"
)

// sortedStringKeys returns m's keys in ascending order, so callers that
// queue work while ranging over a map produce the same pool insertion
// order on every run (spec §4.4 determinism).
func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// batchSize bounds how many (name, constraint) pairs the builder asks a
// repository set to resolve in one round, per spec §4.2 step 3a.
const batchSize = 50

// Builder implements the demand-driven pool construction of spec §4.2
// (C2): starting from root requirements, it expands outward through
// every reachable dependency, querying repos only for names actually
// demanded.
type Builder struct {
	repos  *repository.Set
	logger *log.Logger
}

// NewBuilder returns a Builder querying repos, logging diagnostics (a
// skipped repository error, a name nothing could satisfy) to logger.
func NewBuilder(repos *repository.Set, logger *log.Logger) *Builder {
	if logger == nil {
		logger = log.New(log.Writer(), "pool: ", log.LstdFlags)
	}
	return &Builder{repos: repos, logger: logger}
}

// Result is everything the rule generator needs from pool construction:
// the pool itself, and the set of names whose constraint was fixed by a
// root requirement and therefore never narrowed by a transitive one
// (spec §4.2 step 2, "root-extended").
type Result struct {
	Pool         *Pool
	RootExtended map[string]bool
}

// pendingQueue is an insertion-ordered work queue of (name, constraint)
// pairs still waiting to be loaded. Go maps don't preserve iteration
// order, but batch composition must be deterministic across runs for
// the solver's decisions to be reproducible, so order is tracked
// explicitly alongside the dedup map.
type pendingQueue struct {
	names       []string
	constraints map[string]string
	queued      map[string]bool
}

func newPendingQueue() *pendingQueue {
	return &pendingQueue{constraints: make(map[string]string), queued: make(map[string]bool)}
}

func (q *pendingQueue) push(name, constraint string) {
	if q.queued[name] {
		q.constraints[name] = model.MergeOR(q.constraints[name], constraint)
		return
	}
	q.queued[name] = true
	q.names = append(q.names, name)
	q.constraints[name] = constraint
}

func (q *pendingQueue) empty() bool { return len(q.names) == 0 }

func (q *pendingQueue) drain(n int) []repository.LoadRequest {
	if n > len(q.names) {
		n = len(q.names)
	}
	batch := q.names[:n]
	q.names = q.names[n:]

	reqs := make([]repository.LoadRequest, 0, len(batch))
	for _, name := range batch {
		reqs = append(reqs, repository.LoadRequest{Name: name, Constraint: q.constraints[name]})
		delete(q.queued, name)
		delete(q.constraints, name)
	}
	return reqs
}

// Build runs the full demand-driven load: fixed and locked packages seed
// loaded_packages directly, root requirements seed packages_to_load, and
// the load loop runs until the queue is empty.
func (b *Builder) Build(ctx context.Context, rootRequires map[string]string, fixed, locked []*model.Package) (*Result, error) {
	p := New()
	loaded := make(map[string]string) // name -> constraint already satisfied
	rootExtended := make(map[string]bool)
	queue := newPendingQueue()
	var loadErrs []error

	addFixed := func(pkg *model.Package) {
		p.AddPackage(pkg)
		loaded[pkg.Name] = "*"
		for n := range pkg.Replace {
			loaded[n] = "*"
		}
	}
	for _, pkg := range fixed {
		addFixed(pkg)
	}
	for _, pkg := range locked {
		addFixed(pkg)
	}

	for _, rawName := range sortedStringKeys(rootRequires) {
		constraint := rootRequires[rawName]
		name := strings.ToLower(rawName)
		if platform.IsPlatformPackage(name) {
			continue
		}
		if _, ok := loaded[name]; ok {
			continue
		}
		rootExtended[name] = true
		loaded[name] = constraint
		queue.push(name, constraint)
	}

	for !queue.empty() {
		batch := queue.drain(batchSize)
		if len(batch) == 0 {
			continue
		}

		packages, found, errs := b.repos.BatchLoad(ctx, batch)
		for _, err := range errs {
			b.logger.Printf("repository query failed during pool build: %v", err)
			loadErrs = append(loadErrs, err)
		}

		for _, pkg := range packages {
			b.load(p, pkg, loaded, rootExtended, queue)
		}

		for _, req := range batch {
			if !found[strings.ToLower(req.Name)] && rootExtended[strings.ToLower(req.Name)] {
				loadErrs = append(loadErrs, errors.Errorf("no candidates found for %q", req.Name))
			}
		}
	}

	if len(loadErrs) > 0 {
		return &Result{Pool: p, RootExtended: rootExtended}, loadErrs[0]
	}
	return &Result{Pool: p, RootExtended: rootExtended}, nil
}

// load implements spec §4.2 step 4: append the record, materialize any
// branch-alias handle, and mark every non-platform, non-self-referential
// dependency for loading.
func (b *Builder) load(p *Pool, pkg *model.Package, loaded map[string]string, rootExtended map[string]bool, queue *pendingQueue) {
	baseID := p.AddPackage(pkg)

	if pkg.BranchAlias != "" {
		if aliasVersion, err := model.ParseVersion(pkg.BranchAlias); err == nil {
			alias := model.NewAlias(pkg, aliasVersion, pkg.BranchAlias, false)
			p.AddAlias(alias, baseID)
		} else {
			b.logger.Printf("package %q: unparseable branch-alias %q, ignored: %v", pkg.Name, pkg.BranchAlias, err)
		}
	}

	for _, rawName := range sortedStringKeys(pkg.Require) {
		constraint := pkg.Require[rawName]
		name := strings.ToLower(rawName)
		if name == pkg.Name || platform.IsPlatformPackage(name) {
			continue
		}
		b.markForLoading(name, constraint, loaded, rootExtended, queue)
	}
}

// markForLoading is spec §4.2's mark-for-loading routine: root-extended
// names are never narrowed, a constraint the pool builder can already
// prove is covered is skipped, and everything else widens the pending
// constraint with OR and re-queues the name.
func (b *Builder) markForLoading(name, constraint string, loaded map[string]string, rootExtended map[string]bool, queue *pendingQueue) {
	if rootExtended[name] {
		return
	}
	if existing, ok := loaded[name]; ok {
		if model.IsSupersetHeuristic(existing, constraint) {
			return
		}
		loaded[name] = model.MergeOR(existing, constraint)
		queue.push(name, constraint)
		return
	}
	loaded[name] = constraint
	queue.push(name, constraint)
}
