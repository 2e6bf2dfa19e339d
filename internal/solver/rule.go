// Package solver implements the rule generator (C3) and CDCL SAT solver
// with two-watched-literal propagation (C4) of spec §4.3/§4.4.
package solver

import (
	"fmt"

	"github.com/pkgsolve/pkgsolve/internal/pool"
)

// Literal is a signed pool id: positive means "install this id", negative
// means "do not install it". Literal 0 never occurs.
type Literal int32

// ID returns the unsigned pool id this literal refers to.
func (l Literal) ID() pool.ID { return pool.ID(abs32(int32(l))) }

// Positive reports whether this literal asserts installation.
func (l Literal) Positive() bool { return l > 0 }

func (l Literal) negate() Literal { return -l }

func abs32(x int32) int32 {
	if x < 0 {
		return -x
	}
	return x
}

func lit(id pool.ID, positive bool) Literal {
	if positive {
		return Literal(id)
	}
	return Literal(-int32(id))
}

// Type enumerates the rule kinds spec §4.3 emits.
type Type uint8

const (
	TypeFixed Type = iota
	TypeRootRequire
	TypePackageRequires
	TypeConflict
	TypeMultiConflict
	TypeAlias
	TypeLearned
)

func (t Type) String() string {
	switch t {
	case TypeFixed:
		return "fixed"
	case TypeRootRequire:
		return "root-require"
	case TypePackageRequires:
		return "requires"
	case TypeConflict:
		return "conflict"
	case TypeMultiConflict:
		return "multi-conflict"
	case TypeAlias:
		return "alias"
	case TypeLearned:
		return "learned"
	default:
		return "unknown"
	}
}

// priority returns the decide-order priority class used by the solver's
// heuristic (spec §4.4 Decide: "fixed and root-require clauses first").
// Lower sorts first.
func (t Type) priority() int {
	switch t {
	case TypeFixed, TypeRootRequire:
		return 0
	case TypeLearned:
		return 2
	default:
		return 1
	}
}

// Rule is one SAT clause (a disjunction of literals), annotated with the
// diagnostics spec §4.3 requires for later error rendering.
type Rule struct {
	ID       int
	Literals []Literal
	Type     Type
	Disabled bool

	SourceID     pool.ID
	HasSource    bool
	TargetName   string
	Constraint   string
}

// IsAssertion reports whether this is a unit clause.
func (r *Rule) IsAssertion() bool { return len(r.Literals) == 1 }

// IsMultiConflict reports whether this rule uses all-literal watching.
func (r *Rule) IsMultiConflict() bool { return r.Type == TypeMultiConflict }

func (r *Rule) String() string {
	return fmt.Sprintf("(%s) %v", r.Type, r.Literals)
}

func fixedRule(id pool.ID) Rule {
	return Rule{Literals: []Literal{lit(id, true)}, Type: TypeFixed, SourceID: id, HasSource: true}
}

func rootRequireRule(providers []pool.ID) Rule {
	lits := make([]Literal, len(providers))
	for i, id := range providers {
		lits[i] = lit(id, true)
	}
	return Rule{Literals: lits, Type: TypeRootRequire}
}

func requiresRule(source pool.ID, providers []pool.ID) Rule {
	lits := make([]Literal, 0, len(providers)+1)
	lits = append(lits, lit(source, false))
	for _, id := range providers {
		lits = append(lits, lit(id, true))
	}
	return Rule{Literals: lits, Type: TypePackageRequires, SourceID: source, HasSource: true}
}

func conflictRule(a, b pool.ID) Rule {
	return Rule{Literals: []Literal{lit(a, false), lit(b, false)}, Type: TypeConflict, SourceID: a, HasSource: true}
}

func multiConflictRule(ids []pool.ID) Rule {
	lits := make([]Literal, len(ids))
	for i, id := range ids {
		lits[i] = lit(id, false)
	}
	return Rule{Literals: lits, Type: TypeMultiConflict}
}

func aliasRule(aliasID, baseID pool.ID) Rule {
	return Rule{
		Literals: []Literal{lit(aliasID, false), lit(baseID, true)},
		Type:     TypeAlias, SourceID: aliasID, HasSource: true,
	}
}
