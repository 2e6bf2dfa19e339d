// Package repository implements the uniform repository capability set of
// spec §4.1 (C1): a common query surface over heterogeneous package
// sources (registry, VCS, inline, artifact directory, local path,
// installed), plus the cache layer backing the registry repository.
package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/pkgsolve/pkgsolve/internal/model"
)

// LoadRequest is one (name, optional constraint) pair fed to a batch load,
// per spec §4.1.
type LoadRequest struct {
	Name       string
	Constraint string // empty means "any version"
}

// BatchResult is the result of a batch load: every package record found,
// plus the set of names this repository authoritatively owns (so the
// caller can mask lower-priority repositories for those names).
type BatchResult struct {
	Packages []*model.Package
	Found    map[string]bool
}

// Repository is the capability set spec §4.1 requires of every package
// source. Every method is safe for concurrent use.
type Repository interface {
	// Name identifies the repository for logging and diagnostics.
	Name() string

	// HasPackage reports whether this repository knows of name at all
	// (any version).
	HasPackage(ctx context.Context, name string) (bool, error)

	// Versions returns every version this repository has for name.
	Versions(ctx context.Context, name string) ([]*model.Package, error)

	// BatchLoad resolves many (name, constraint) pairs in one call,
	// bounding outstanding concurrent fetches to the repository's own
	// configured limit (spec §4.1: "at most N concurrent HTTP
	// requests").
	BatchLoad(ctx context.Context, reqs []LoadRequest) (*BatchResult, error)

	// Search returns packages whose name or description matches query.
	Search(ctx context.Context, query string) ([]*model.Package, error)

	// All returns every package this repository can enumerate. Not all
	// repositories can do this cheaply (a registry repository may
	// return an error); callers that only need demand-driven loading
	// should prefer BatchLoad.
	All(ctx context.Context) ([]*model.Package, error)
}

// Set is a priority-ordered list of repositories. Set iterates
// highest-priority first; once a name has been authoritatively found by
// one repository in a pass, Set.BatchLoad does not ask lower-priority
// repositories about that name in the same pass (spec §4.1 "masking").
type Set struct {
	repos []Repository
}

// NewSet builds a Set in the given priority order (first = highest
// priority).
func NewSet(repos ...Repository) *Set {
	return &Set{repos: repos}
}

// Len returns the number of repositories in the set.
func (s *Set) Len() int { return len(s.repos) }

// BatchLoad walks the repository set in priority order, asking each for
// the subset of reqs whose names have not yet been authoritatively found
// by a higher-priority repository. A single repository error is logged by
// the caller and that repository is skipped for the rest of the pass
// (spec §4.1 failure semantics) — BatchLoad itself returns the error
// alongside whatever partial results were gathered so the caller can
// decide.
func (s *Set) BatchLoad(ctx context.Context, reqs []LoadRequest) (packages []*model.Package, foundNames map[string]bool, errs []error) {
	foundNames = make(map[string]bool)
	remaining := make([]LoadRequest, len(reqs))
	copy(remaining, reqs)

	for _, repo := range s.repos {
		if len(remaining) == 0 {
			break
		}
		var toAsk []LoadRequest
		for _, r := range remaining {
			if !foundNames[strings.ToLower(r.Name)] {
				toAsk = append(toAsk, r)
			}
		}
		if len(toAsk) == 0 {
			break
		}

		res, err := repo.BatchLoad(ctx, toAsk)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if res == nil {
			continue
		}
		packages = append(packages, res.Packages...)
		for name, ok := range res.Found {
			if ok {
				foundNames[strings.ToLower(name)] = true
			}
		}

		var next []LoadRequest
		for _, r := range remaining {
			if !foundNames[strings.ToLower(r.Name)] {
				next = append(next, r)
			}
		}
		remaining = next
	}

	sort.SliceStable(packages, func(i, j int) bool { return packages[i].Name < packages[j].Name })
	return packages, foundNames, errs
}
