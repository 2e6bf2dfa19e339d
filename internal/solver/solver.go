package solver

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/pool"
)

// Config tunes decide-time version preference (spec §4.4 Decide).
type Config struct {
	// PreferLowest reverses the usual highest-version-first preference,
	// used by the install configuration's prefer-lowest mode.
	PreferLowest bool
}

// Assignment is the solver's final result: which pool ids ended up
// installed.
type Assignment struct {
	installed map[pool.ID]bool
}

// Installed reports whether id was selected.
func (a *Assignment) Installed(id pool.ID) bool { return a.installed[id] }

// SelectedIDs returns every selected pool id, in ascending id order.
func (a *Assignment) SelectedIDs() []pool.ID {
	out := make([]pool.ID, 0, len(a.installed))
	for id, v := range a.installed {
		if v {
			out = append(out, id)
		}
	}
	sortIDs(out)
	return out
}

func sortIDs(ids []pool.ID) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

// ResolutionFailure is returned when the CDCL loop derives an empty
// clause: the request is unsatisfiable. Explanation is the rendered
// chain of requirement strings that led to it (spec §4.4 Termination).
type ResolutionFailure struct {
	Explanation []string
}

func (e *ResolutionFailure) Error() string {
	return "dependency resolution failed:\n  " + strings.Join(e.Explanation, "\n  ")
}

// trailEntry records one assignment on the decision trail, enough to
// support conflict analysis and backjumping.
type trailEntry struct {
	lit    Literal
	level  int
	reason int // rule id that forced this assignment, -1 for a decision
}

// solverState is the mutable CDCL state of spec §4.4: an assignment
// vector, a decision-level stack (trailStart), a watch index, and the
// rule set (which grows as clauses are learned).
type solverState struct {
	pool   *pool.Pool
	rules  *RuleSet
	graph  *watchGraph
	prop   *propagator
	config Config

	value      map[pool.ID]bool // current truth value per variable
	level      map[pool.ID]int
	reason     map[pool.ID]int
	trail      []trailEntry
	trailStart []int // trail index where each decision level begins
}

// Solve runs the CDCL loop to completion over rs (as built by Generator)
// against p, returning the selected package/alias ids or a
// *ResolutionFailure.
func Solve(p *pool.Pool, rs *RuleSet, cfg Config) (*Assignment, error) {
	s := &solverState{
		pool:   p,
		rules:  rs,
		graph:  buildWatchGraph(rs),
		config: cfg,
		value:  make(map[pool.ID]bool),
		level:  make(map[pool.ID]int),
		reason: make(map[pool.ID]int),
	}
	s.prop = newPropagator(s.graph, s.rules)
	s.trailStart = append(s.trailStart, 0)

	// Seed the propagation queue with every unit clause (fixed packages,
	// and any root-require/package-requires rule the generator emitted
	// with a single literal). Each is asserted at level 0 before being
	// queued, so later resolution can find it on the trail.
	queue := make([]Literal, 0, rs.Len())
	for i := range rs.rules {
		r := &rs.rules[i]
		if r.Disabled || !r.IsAssertion() {
			continue
		}
		l := r.Literals[0]
		if v := s.valueOf(l); v != nil {
			if !*v {
				return nil, &ResolutionFailure{Explanation: s.explain(r.ID)}
			}
			continue
		}
		s.assertLiteral(l, 0, r.ID)
		queue = append(queue, l)
	}

	for {
		conflictRuleID, ok := s.propagateAll(queue)
		queue = nil
		if !ok {
			level, learned, failure := s.analyze(conflictRuleID)
			if failure != nil {
				return nil, failure
			}
			s.backjumpTo(level)
			learnedID := s.rules.Add(Rule{Literals: learned, Type: TypeLearned})
			s.graph.addRule(s.rules.Get(learnedID))
			unit := learned[len(learned)-1]
			s.assertLiteral(unit, level, learnedID)
			queue = []Literal{unit}
			continue
		}

		next, found := s.decide()
		if !found {
			break
		}
		s.trailStart = append(s.trailStart, len(s.trail))
		s.assertLiteral(next, len(s.trailStart)-1, -1)
		queue = []Literal{next}
	}

	installed := make(map[pool.ID]bool)
	for id, v := range s.value {
		installed[id] = v
	}
	return &Assignment{installed: installed}, nil
}

func (s *solverState) valueOf(l Literal) *bool {
	v, ok := s.value[l.ID()]
	if !ok {
		return nil
	}
	result := v == l.Positive()
	return &result
}

// assertLiteral records l as true in the assignment at level, with
// reason as its forcing rule id (-1 for a decision).
func (s *solverState) assertLiteral(l Literal, level, reason int) {
	id := l.ID()
	s.value[id] = l.Positive()
	s.level[id] = level
	s.reason[id] = reason
	s.trail = append(s.trail, trailEntry{lit: l, level: level, reason: reason})
}

// propagateAll drains queue (and whatever further units propagation
// discovers) until fixpoint or conflict, returning the conflicting rule
// id and false on conflict.
func (s *solverState) propagateAll(queue []Literal) (int, bool) {
	for len(queue) > 0 {
		l := queue[0]
		queue = queue[1:]

		results := s.prop.propagate(l, s.valueOf)
		for _, r := range results {
			switch r.kind {
			case propConflict:
				return r.ruleID, false
			case propUnit:
				if v := s.valueOf(r.unit); v != nil {
					if !*v {
						return r.ruleID, false
					}
					continue
				}
				s.assertLiteral(r.unit, len(s.trailStart)-1, r.ruleID)
				queue = append(queue, r.unit)
			}
		}
	}
	return 0, true
}

// decide implements spec §4.4 Decide: among not-yet-satisfied rules,
// prefer fixed/root-require clauses, then pick the highest-preference
// unassigned candidate literal (or lowest, under prefer-lowest).
func (s *solverState) decide() (Literal, bool) {
	bestPriority := 1 << 30
	var best Literal

	for i := range s.rules.rules {
		r := &s.rules.rules[i]
		if r.Disabled || s.ruleSatisfied(r) {
			continue
		}
		pr := r.Type.priority()
		if pr > bestPriority {
			continue
		}
		cand, ok := s.pickCandidate(r)
		if !ok {
			continue
		}
		if pr < bestPriority {
			bestPriority, best = pr, cand
		}
	}
	if best == 0 {
		return 0, false
	}
	return best, true
}

func (s *solverState) ruleSatisfied(r *Rule) bool {
	for _, l := range r.Literals {
		if v := s.valueOf(l); v != nil && *v {
			return true
		}
	}
	return false
}

// pickCandidate returns the first unassigned positive literal in r
// (highest preference, since the generator built provider lists in
// descending preference order), or the last one under prefer-lowest.
func (s *solverState) pickCandidate(r *Rule) (Literal, bool) {
	positives := make([]Literal, 0, len(r.Literals))
	for _, l := range r.Literals {
		if l.Positive() && s.valueOf(l) == nil {
			positives = append(positives, l)
		}
	}
	if len(positives) == 0 {
		return 0, false
	}
	if s.config.PreferLowest {
		return positives[len(positives)-1], true
	}
	return positives[0], true
}

// analyze implements spec §4.4 Analyze: 1-UIP resolution over the
// implication graph, producing a learned clause, the backjump level, and
// (when the learned clause is empty, i.e. the conflict occurred at level
// 0) the rendered failure.
func (s *solverState) analyze(conflictRuleID int) (int, []Literal, *ResolutionFailure) {
	currentLevel := len(s.trailStart) - 1
	if currentLevel == 0 {
		// No decision is on the trail to backjump past: the conflict is
		// implied by fixed/root facts alone and is therefore unsatisfiable.
		return 0, nil, &ResolutionFailure{Explanation: s.explain(conflictRuleID)}
	}
	seen := make(map[pool.ID]bool)
	var learned []Literal
	counterAtLevel := 0

	reasonRule := s.rules.Get(conflictRuleID)
	var resolving Literal
	trailIdx := len(s.trail) - 1

	for {
		for _, l := range reasonRule.Literals {
			if l == resolving {
				continue
			}
			id := l.ID()
			if seen[id] {
				continue
			}
			seen[id] = true
			litLevel := s.level[id]
			if litLevel == currentLevel {
				counterAtLevel++
			} else if litLevel > 0 {
				learned = append(learned, l)
			}
		}

		for trailIdx >= 0 && !seen[s.trail[trailIdx].lit.ID()] {
			trailIdx--
		}
		if trailIdx < 0 {
			break
		}
		entry := s.trail[trailIdx]
		seen[entry.lit.ID()] = false
		counterAtLevel--
		if counterAtLevel == 0 || entry.reason < 0 {
			resolving = entry.lit
			learned = append(learned, entry.lit.negate())
			break
		}
		resolving = entry.lit
		reasonRule = s.rules.Get(entry.reason)
		trailIdx--
	}

	if len(learned) == 0 {
		return 0, nil, &ResolutionFailure{Explanation: s.explain(conflictRuleID)}
	}

	backjumpLevel := 0
	for _, l := range learned[:len(learned)-1] {
		if lvl := s.level[l.ID()]; lvl > backjumpLevel {
			backjumpLevel = lvl
		}
	}
	return backjumpLevel, learned, nil
}

// backjumpTo undoes every assignment made at a decision level deeper than
// level (spec §4.4 Analyze: "backjumps to the second-highest decision
// level... then asserts the unit").
func (s *solverState) backjumpTo(level int) {
	cut := s.trailStart[level+1]
	for i := cut; i < len(s.trail); i++ {
		delete(s.value, s.trail[i].lit.ID())
		delete(s.level, s.trail[i].lit.ID())
		delete(s.reason, s.trail[i].lit.ID())
	}
	s.trail = s.trail[:cut]
	s.trailStart = s.trailStart[:level+1]
}

// explain renders the minimal chain of requirement diagnostics leading to
// an unsatisfiable clause, per spec §4.4 Termination.
func (s *solverState) explain(ruleID int) []string {
	r := s.rules.Get(ruleID)
	if r == nil {
		return []string{"unsatisfiable"}
	}
	switch r.Type {
	case TypeRootRequire:
		return []string{errors.Errorf("project requires %s (%s) -> no matching package found", r.TargetName, r.Constraint).Error()}
	case TypePackageRequires:
		return []string{errors.Errorf("requires %s (%s) -> no matching package found", r.TargetName, r.Constraint).Error()}
	default:
		return []string{r.String()}
	}
}
