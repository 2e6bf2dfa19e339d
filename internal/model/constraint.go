package model

import (
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Constraint is a parsed version constraint: a disjunction of conjunctions
// over the primitive operators (=, !=, >, >=, <, <=), per spec §9
// "Constraint model". Shorthand (caret, tilde, wildcard, hyphen range, x)
// is lowered to this primitive form during ParseConstraint.
type Constraint interface {
	// Matches reports whether v satisfies the constraint.
	Matches(v Version) bool
	// MatchesAny reports whether the intersection of this constraint with
	// other could admit any version at all.
	MatchesAny(other Constraint) bool
	String() string
}

var (
	// Any is the wildcard constraint "*": it matches every version,
	// including dev/branch versions.
	Any Constraint = anyConstraint{}
	// None matches nothing; it is the result of an unsatisfiable
	// intersection and is never produced by ParseConstraint directly.
	None Constraint = noneConstraint{}
)

type anyConstraint struct{}

func (anyConstraint) Matches(Version) bool { return true }
func (anyConstraint) MatchesAny(Constraint) bool { return true }
func (anyConstraint) String() string { return "*" }

type noneConstraint struct{}

func (noneConstraint) Matches(Version) bool { return false }
func (noneConstraint) MatchesAny(Constraint) bool { return false }
func (noneConstraint) String() string { return "" }

// branchConstraint matches only the dev version derived from an exact
// branch name ("dev-main", "1.0.x-dev" style aliases resolve to this
// through the alias machinery, not here).
type branchConstraint struct {
	branch string
}

func (b branchConstraint) Matches(v Version) bool {
	return v.Branch == b.branch
}

func (b branchConstraint) MatchesAny(other Constraint) bool {
	return other.Matches(Version{Branch: b.branch})
}

func (b branchConstraint) String() string { return "dev-" + b.branch }

// semverConstraint wraps a Masterminds/semver/v3 constraint set. It never
// matches a branch/dev version, matching Composer's rule that branch
// aliases must be requested by their exact "dev-*" form.
type semverConstraint struct {
	raw string
	c   *semver.Constraints
}

func (s semverConstraint) Matches(v Version) bool {
	if v.Branch != "" {
		return false
	}
	sv, err := toSemver(v)
	if err != nil {
		return false
	}
	return s.c.Check(sv)
}

func (s semverConstraint) MatchesAny(other Constraint) bool {
	// Conservative: only cheaply provable when other is Any/None, or a
	// textually identical constraint. A full intersection over arbitrary
	// semver.Constraints isn't exposed by the library, and the pool
	// builder only needs a sound (never under-approximating) answer per
	// spec §4.2 — so fall back to "maybe" (true) for anything else,
	// which only costs performance, never correctness.
	switch o := other.(type) {
	case anyConstraint:
		return true
	case noneConstraint:
		return false
	case semverConstraint:
		if o.raw == s.raw {
			return true
		}
	}
	return true
}

func (s semverConstraint) String() string { return s.raw }

func toSemver(v Version) (*semver.Version, error) {
	return semver.NewVersion(v.String())
}

// ParseConstraint lowers a constraint string (possibly using Composer-style
// shorthand: caret, tilde, wildcard, hyphen range, "x") into a Constraint.
// "dev-<branch>" is recognized as an exact branch constraint; everything
// else is handed to Masterminds/semver/v3, which already understands
// caret/tilde/wildcard/hyphen-range/"x" shorthand natively.
func ParseConstraint(raw string) (Constraint, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "*" {
		return Any, nil
	}
	if strings.HasPrefix(raw, "dev-") {
		return branchConstraint{branch: strings.TrimPrefix(raw, "dev-")}, nil
	}

	c, err := semver.NewConstraint(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing constraint %q", raw)
	}
	return semverConstraint{raw: raw, c: c}, nil
}

// MergeOR widens two constraint strings with logical OR, the way the pool
// builder's mark-for-loading step does (spec §4.2): "a || b", collapsing
// to "*" whenever either side is already a wildcard. This operates purely
// on strings, matching spec's note that the pool builder "does not
// interpret constraints" — it is a syntactic widening, never a narrowing,
// so soundness (never under-loading) is preserved even when it produces a
// textually redundant disjunction.
func MergeOR(a, b string) string {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == "*" || b == "*" {
		return "*"
	}
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if a == b {
		return a
	}
	// Avoid unbounded growth across many widenings: if b's clauses are
	// already present in a (or vice versa) skip re-adding them.
	aClauses := strings.Split(a, "||")
	for _, c := range aClauses {
		if strings.TrimSpace(c) == b {
			return a
		}
	}
	return a + " || " + b
}

// IsSupersetHeuristic reports whether constraint string `have` is known,
// by simple textual inspection, to already cover `want`. It is a
// correctness-preserving optimization only: a false negative merely costs
// the pool builder extra loading work, never correctness (spec §4.2).
func IsSupersetHeuristic(have, want string) bool {
	have, want = strings.TrimSpace(have), strings.TrimSpace(want)
	if have == "*" {
		return true
	}
	if have == want {
		return true
	}
	for _, c := range strings.Split(have, "||") {
		if strings.TrimSpace(c) == want {
			return true
		}
	}
	return false
}
