// Package pool implements the indexed candidate-package collection of spec
// §3 ("Pool") together with the demand-driven loader of spec §4.2 ("Pool
// builder", C2). A Pool is built once per resolution pass by Builder and
// handed to internal/solver's rule generator; after that point it is
// read-only.
package pool

import (
	"sort"

	"github.com/pkgsolve/pkgsolve/internal/model"
)

// ID is a stable numeric identifier for one pool entry (a package or an
// alias), assigned in insertion order starting at 1. Id 0 is never valid.
type ID int

type entry struct {
	pkg   *model.Package
	alias *model.Alias
	base  ID // valid only when alias != nil
}

// Pool is the indexed collection described in spec §3. Ids are stable for
// the Pool's lifetime; PackagesByName always returns ids in descending
// stability/version preference order.
type Pool struct {
	entries   []entry // entries[0] is a sentinel; real ids start at 1
	byName    map[string][]ID
	byProvide map[string][]ID
	byReplace map[string][]ID
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{
		entries:   make([]entry, 1),
		byName:    make(map[string][]ID),
		byProvide: make(map[string][]ID),
		byReplace: make(map[string][]ID),
	}
}

// AddPackage inserts a package record and returns its new id.
func (p *Pool) AddPackage(pkg *model.Package) ID {
	id := ID(len(p.entries))
	p.entries = append(p.entries, entry{pkg: pkg})
	p.index(id, pkg.Name, pkg.Names(false), pkg.Provide, pkg.Replace)
	return id
}

// AddAlias inserts an alias handle whose base is already in the pool.
func (p *Pool) AddAlias(alias *model.Alias, base ID) ID {
	id := ID(len(p.entries))
	p.entries = append(p.entries, entry{alias: alias, base: base})
	p.index(id, alias.Name(), alias.Names(false), alias.Provide, alias.Replace)
	return id
}

func (p *Pool) index(id ID, name string, plainNames []string, provide, replace map[string]string) {
	seen := make(map[string]bool, len(plainNames)+1)
	for _, n := range append(plainNames, name) {
		if seen[n] {
			continue
		}
		seen[n] = true
		p.byName[n] = append(p.byName[n], id)
	}
	for n := range provide {
		p.byProvide[n] = append(p.byProvide[n], id)
	}
	for n := range replace {
		p.byReplace[n] = append(p.byReplace[n], id)
	}
}

// Len returns the number of entries in the pool (aliases included).
func (p *Pool) Len() int { return len(p.entries) - 1 }

// Package returns the package record for id, or nil if id names an alias.
func (p *Pool) Package(id ID) *model.Package {
	if int(id) <= 0 || int(id) >= len(p.entries) {
		return nil
	}
	return p.entries[id].pkg
}

// Alias returns the alias handle for id, or nil if id names a plain
// package.
func (p *Pool) Alias(id ID) *model.Alias {
	if int(id) <= 0 || int(id) >= len(p.entries) {
		return nil
	}
	return p.entries[id].alias
}

// IsAlias reports whether id names an alias handle.
func (p *Pool) IsAlias(id ID) bool {
	return p.Alias(id) != nil
}

// AliasBase returns the base id of an alias, and true if id is an alias.
func (p *Pool) AliasBase(id ID) (ID, bool) {
	if int(id) <= 0 || int(id) >= len(p.entries) {
		return 0, false
	}
	e := p.entries[id]
	if e.alias == nil {
		return 0, false
	}
	return e.base, true
}

// Version returns the presented version for id: the alias version for an
// alias handle, or the package's own version otherwise.
func (p *Pool) Version(id ID) model.Version {
	if e := p.entries[id]; e.alias != nil {
		return e.alias.Version
	} else if e.pkg != nil {
		return e.pkg.Version
	}
	return model.Version{}
}

// Name returns the canonical name for id.
func (p *Pool) Name(id ID) string {
	if e := p.entries[id]; e.alias != nil {
		return e.alias.Name()
	} else if e.pkg != nil {
		return e.pkg.Name
	}
	return ""
}

// Names mirrors model.Package.Names/Alias.Names for a pool id.
func (p *Pool) Names(id ID, includeProvide bool) []string {
	if e := p.entries[id]; e.alias != nil {
		return e.alias.Names(includeProvide)
	} else if e.pkg != nil {
		return e.pkg.Names(includeProvide)
	}
	return nil
}

// PackagesByName returns every id known under name (direct name match,
// not provide/replace), ordered by descending stability then descending
// version — the pool's fixed preference order (spec §3).
func (p *Pool) PackagesByName(name string) []ID {
	ids := append([]ID(nil), p.byName[name]...)
	p.sortByPreference(ids)
	return ids
}

func (p *Pool) sortByPreference(ids []ID) {
	sort.SliceStable(ids, func(i, j int) bool {
		vi, vj := p.Version(ids[i]), p.Version(ids[j])
		if vi.Stability() != vj.Stability() {
			return vi.Stability() > vj.Stability()
		}
		return vi.Compare(vj) > 0
	})
}

// WhatProvides returns every id that can satisfy (name, constraint):
// direct name matches, plus ids that Provide or Replace name at a
// matching version. If constraint is nil, every version matches (used for
// fixed/locked lookups where only the name+exact version matters to the
// caller).
func (p *Pool) WhatProvides(name string, constraint model.Constraint) []ID {
	return p.whatProvides(name, constraint, true)
}

// WhatProvidesDirectOnly returns only direct name matches, ignoring
// provide/replace — used by the rule generator's has_direct check (spec
// §4.3 Package-requires asymmetry).
func (p *Pool) WhatProvidesDirectOnly(name string, constraint model.Constraint) []ID {
	return p.whatProvides(name, constraint, false)
}

func (p *Pool) whatProvides(name string, constraint model.Constraint, includeVirtual bool) []ID {
	var out []ID
	seen := make(map[ID]bool)
	add := func(id ID, checkVersion bool) {
		if seen[id] {
			return
		}
		if checkVersion && constraint != nil && !constraint.Matches(p.Version(id)) {
			return
		}
		seen[id] = true
		out = append(out, id)
	}

	for _, id := range p.byName[name] {
		add(id, true)
	}

	if includeVirtual {
		for _, id := range p.byReplace[name] {
			add(id, replaceMatches(p, id, name, constraint))
		}
		for _, id := range p.byProvide[name] {
			add(id, provideMatches(p, id, name, constraint))
		}
	}

	p.sortByPreference(out)
	return out
}

// replaceMatches/provideMatches re-check against the *declared* replace or
// provide constraint string for (name) on the given entry, not the
// package's own version: a package "replace"-ing foo:^2.0 satisfies a
// request for foo:^2.0 regardless of the replacer's own version number.
func replaceMatches(p *Pool, id ID, name string, want model.Constraint) bool {
	return linkMatches(linkMap(p, id, false), name, want)
}

func provideMatches(p *Pool, id ID, name string, want model.Constraint) bool {
	return linkMatches(linkMap(p, id, true), name, want)
}

func linkMap(p *Pool, id ID, provide bool) map[string]string {
	e := p.entries[id]
	if e.alias != nil {
		if provide {
			return e.alias.Provide
		}
		return e.alias.Replace
	}
	if e.pkg != nil {
		if provide {
			return e.pkg.Provide
		}
		return e.pkg.Replace
	}
	return nil
}

func linkMatches(links map[string]string, name string, want model.Constraint) bool {
	raw, ok := links[name]
	if !ok {
		return false
	}
	if want == nil {
		return true
	}
	c, err := model.ParseConstraint(raw)
	if err != nil {
		// An unparsable declared constraint can't be proven to satisfy
		// anything; treat as a non-match rather than failing the whole
		// resolution (the package just won't be offered as a provider).
		return false
	}
	return want.MatchesAny(c)
}
