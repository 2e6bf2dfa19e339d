package solver

import (
	"sort"
	"strings"

	"github.com/pkgsolve/pkgsolve/internal/model"
	"github.com/pkgsolve/pkgsolve/internal/pool"
)

// Request bundles the inputs to rule generation: root requirements and
// the set of packages fixed in place (spec §4.3).
type Request struct {
	RootRequires map[string]string // name (lowercase) -> constraint
	Fixed        []*model.Package
}

// Generator walks packages reachable from the root and emits the clause
// kinds of spec §4.3. It mirrors the host ecosystem's RuleSetGenerator:
// a package's rules are only added once, same-name and replace-collision
// rules are deferred until every reachable package has been visited, and
// provider/replacer auto-selection is gated on root-required-name
// membership.
type Generator struct {
	pool  *pool.Pool
	rules *RuleSet

	added        map[pool.ID]bool
	addedByName  map[string][]pool.ID // name -> ids, keyed by Names(false): own name + replace
	rootRequired map[string]bool
}

// NewGenerator returns a Generator over p.
func NewGenerator(p *pool.Pool) *Generator {
	return &Generator{
		pool:         p,
		rules:        NewRuleSet(),
		added:        make(map[pool.ID]bool),
		addedByName:  make(map[string][]pool.ID),
		rootRequired: make(map[string]bool),
	}
}

// Generate runs the full rule-emission pipeline and returns the result.
func (g *Generator) Generate(req *Request) *RuleSet {
	for name := range req.RootRequires {
		g.rootRequired[strings.ToLower(name)] = true
	}

	// Packages providing/replacing a root-required name are themselves
	// root-required, so virtual providers named explicitly by the root
	// can be auto-selected (spec §4.3 package-requires asymmetry).
	for name := range copyStringSet(g.rootRequired) {
		for _, id := range g.pool.WhatProvides(name, model.Any) {
			for _, n := range g.pool.Names(id, true) {
				g.rootRequired[strings.ToLower(n)] = true
			}
		}
	}
	for _, fixed := range req.Fixed {
		for _, id := range g.pool.PackagesByName(fixed.Name) {
			if g.pool.Version(id).Compare(fixed.Version) == 0 {
				for _, n := range g.pool.Names(id, true) {
					g.rootRequired[strings.ToLower(n)] = true
				}
				break
			}
		}
	}

	g.addFixedRules(req)
	g.addRootRequireRules(req)
	g.addSameNameConflictRules()
	g.addConflictRules()
	g.addReplaceCollisionRules()

	return g.rules
}

func copyStringSet(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k := range m {
		out[k] = true
	}
	return out
}

// sortedStringKeys returns m's keys in ascending order, so callers that
// emit rules while ranging over a map produce the same rule ids on every
// run (spec §4.4 determinism).
func sortedStringKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// sortedIDs returns the ids of m (keyed by pool.ID) in ascending order.
func sortedIDs(m map[pool.ID]bool) []pool.ID {
	ids := make([]pool.ID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (g *Generator) addFixedRules(req *Request) {
	for _, fixed := range req.Fixed {
		for _, id := range g.pool.PackagesByName(fixed.Name) {
			if g.pool.Version(id).Compare(fixed.Version) == 0 {
				g.rules.Add(fixedRule(id))
				g.addPackageRules(id)
				break
			}
		}
	}
}

func (g *Generator) addRootRequireRules(req *Request) {
	for _, name := range sortedStringKeys(req.RootRequires) {
		constraintStr := req.RootRequires[name]
		constraint, err := model.ParseConstraint(constraintStr)
		if err != nil {
			constraint = model.None
		}
		providers := g.pool.WhatProvides(name, constraint)
		if len(providers) == 0 {
			r := Rule{Type: TypeRootRequire, TargetName: name, Constraint: constraintStr}
			g.rules.Add(r)
			continue
		}
		r := rootRequireRule(providers)
		r.TargetName, r.Constraint = name, constraintStr
		g.rules.Add(r)

		for _, id := range providers {
			g.addPackageRules(id)
		}
	}
}

// addPackageRules is the recursive per-package rule walk (spec §4.3
// Package-requires, Alias). It is idempotent: a package id already
// visited is skipped.
func (g *Generator) addPackageRules(id pool.ID) {
	if g.added[id] {
		return
	}
	g.added[id] = true

	if alias := g.pool.Alias(id); alias != nil {
		if baseID, ok := g.pool.AliasBase(id); ok {
			r := aliasRule(id, baseID)
			r.TargetName = alias.Name()
			g.rules.Add(r)
			g.addPackageRules(baseID)
		}
		g.addRequireEdges(id, alias.Require)
		return
	}

	pkg := g.pool.Package(id)
	if pkg == nil {
		return
	}

	for _, name := range pkg.Names(false) {
		g.addedByName[name] = append(g.addedByName[name], id)
	}

	g.addRequireEdges(id, pkg.Require)
}

// addRequireEdges emits the package-requires clause for every dependency
// of the package/alias at id, applying the direct-vs-provide asymmetry:
// providers/replacers are only auto-selected when a direct candidate also
// exists, or when the dependency name is itself root-required.
func (g *Generator) addRequireEdges(id pool.ID, require map[string]string) {
	for _, depName := range sortedStringKeys(require) {
		constraintStr := require[depName]
		depName = strings.ToLower(depName)
		if strings.HasPrefix(depName, "lib-") {
			continue
		}
		constraint, err := model.ParseConstraint(constraintStr)
		if err != nil {
			constraint = model.None
		}

		direct := g.pool.WhatProvidesDirectOnly(depName, constraint)
		all := g.pool.WhatProvides(depName, constraint)

		var providers []pool.ID
		if len(direct) > 0 || g.rootRequired[depName] {
			providers = all
		} else {
			providers = direct
		}

		if len(providers) == 0 {
			r := Rule{
				Literals: []Literal{lit(id, false)}, Type: TypePackageRequires,
				SourceID: id, HasSource: true, TargetName: depName, Constraint: constraintStr,
			}
			g.rules.Add(r)
			continue
		}

		r := requiresRule(id, providers)
		r.TargetName, r.Constraint = depName, constraintStr
		g.rules.Add(r)

		for _, pid := range providers {
			if pkg := g.pool.Package(pid); pkg != nil && pkg.IsPlatform() {
				continue
			}
			g.addPackageRules(pid)
		}
	}
}

// addSameNameConflictRules emits the n-ary at-most-one rule for every
// name reachable with ≥2 ids, excluding alias/base pairs (spec §4.3
// Same-name multi-conflict).
func (g *Generator) addSameNameConflictRules() {
	names := make([]string, 0, len(g.addedByName))
	for name := range g.addedByName {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ids := g.addedByName[name]
		if len(ids) <= 1 {
			continue
		}
		var nonAlias []pool.ID
		idSet := make(map[pool.ID]bool, len(ids))
		for _, id := range ids {
			idSet[id] = true
		}
		for _, id := range ids {
			if baseID, ok := g.pool.AliasBase(id); ok && idSet[baseID] {
				continue
			}
			nonAlias = append(nonAlias, id)
		}
		if len(nonAlias) <= 1 {
			continue
		}
		r := multiConflictRule(nonAlias)
		r.TargetName = name
		g.rules.Add(r)
	}
}

// addConflictRules emits one binary conflict clause per (visited package,
// visited conflict target) pair (spec §4.3 Explicit conflict).
func (g *Generator) addConflictRules() {
	for _, id := range sortedIDs(g.added) {
		pkg := g.pool.Package(id)
		if pkg == nil {
			continue
		}
		for _, rawName := range sortedStringKeys(pkg.Conflict) {
			constraintStr := pkg.Conflict[rawName]
			conflictName := strings.ToLower(rawName)
			if _, ok := g.addedByName[conflictName]; !ok {
				continue
			}
			constraint, err := model.ParseConstraint(constraintStr)
			if err != nil {
				constraint = model.None
			}
			for _, otherID := range g.pool.WhatProvides(conflictName, constraint) {
				if otherID == id || !g.added[otherID] {
					continue
				}
				if alias := g.pool.Alias(otherID); alias != nil && strings.ToLower(alias.Name()) != conflictName {
					continue
				}
				r := conflictRule(id, otherID)
				r.TargetName = conflictName
				g.rules.Add(r)
			}
		}
	}
}

// addReplaceCollisionRules emits a multi-conflict rule for each name that
// ≥2 visited packages replace but which has no direct pool entries (spec
// §4.3 Replace-collision). Plain provide never creates such a rule.
func (g *Generator) addReplaceCollisionRules() {
	replacers := make(map[string][]pool.ID)
	for _, id := range sortedIDs(g.added) {
		pkg := g.pool.Package(id)
		if pkg == nil {
			continue
		}
		for _, rawName := range sortedStringKeys(pkg.Replace) {
			name := strings.ToLower(rawName)
			replacers[name] = append(replacers[name], id)
		}
	}
	names := make([]string, 0, len(replacers))
	for name := range replacers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		ids := replacers[name]
		if len(ids) <= 1 {
			continue
		}
		if _, ok := g.addedByName[name]; ok {
			continue
		}
		r := multiConflictRule(ids)
		r.TargetName = name
		g.rules.Add(r)
	}
}
