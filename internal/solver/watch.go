package solver

// watchNode links a rule to the literal watching it alongside the rule's
// other watched literal (unused/ignored for multi-conflict rules, which
// watch every literal).
type watchNode struct {
	ruleID     int
	otherWatch Literal
}

// watchGraph is the two-watched-literal index of spec §4.4: for each
// literal, the list of rules currently watching it.
type watchGraph struct {
	watches map[Literal][]watchNode
}

func newWatchGraph() *watchGraph {
	return &watchGraph{watches: make(map[Literal][]watchNode)}
}

// buildWatchGraph indexes every non-assertion rule in rs. Multi-conflict
// rules watch all their literals; everything else watches exactly two.
func buildWatchGraph(rs *RuleSet) *watchGraph {
	g := newWatchGraph()
	for i := range rs.rules {
		r := &rs.rules[i]
		if r.Disabled || r.IsAssertion() {
			continue
		}
		g.addRule(r)
	}
	return g
}

func (g *watchGraph) addRule(r *Rule) {
	if len(r.Literals) < 2 {
		return
	}
	if r.IsMultiConflict() {
		first := r.Literals[0]
		for _, l := range r.Literals {
			g.watches[l] = append(g.watches[l], watchNode{ruleID: r.ID, otherWatch: first})
		}
		return
	}
	w1, w2 := r.Literals[0], r.Literals[1]
	g.watches[w1] = append(g.watches[w1], watchNode{ruleID: r.ID, otherWatch: w2})
	g.watches[w2] = append(g.watches[w2], watchNode{ruleID: r.ID, otherWatch: w1})
}

func (g *watchGraph) get(l Literal) []watchNode {
	return g.watches[l]
}

func (g *watchGraph) removeWatch(l Literal, ruleID int) {
	list := g.watches[l]
	for i, w := range list {
		if w.ruleID == ruleID {
			g.watches[l] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

func (g *watchGraph) moveWatch(ruleID int, from, to, other Literal) {
	g.removeWatch(from, ruleID)
	g.watches[to] = append(g.watches[to], watchNode{ruleID: ruleID, otherWatch: other})
}

// propagateResult is the outcome of processing one watch-list entry
// during propagation.
type propagateResult struct {
	kind   propagateKind
	unit   Literal
	ruleID int
}

type propagateKind uint8

const (
	propOK propagateKind = iota
	propUnit
	propConflict
)

// propagator drives unit propagation through the watch graph, using
// valueOf to read the current (possibly partial) assignment: true, false,
// or "undecided" (nil).
type propagator struct {
	graph *watchGraph
	rules *RuleSet
}

func newPropagator(graph *watchGraph, rules *RuleSet) *propagator {
	return &propagator{graph: graph, rules: rules}
}

// propagate processes the consequences of literal becoming true (its
// negation becoming false), per spec §4.4 Propagate. valueOf reports the
// current truth value of a literal, or nil if undecided.
func (p *propagator) propagate(literal Literal, valueOf func(Literal) *bool) []propagateResult {
	var results []propagateResult
	falseLiteral := literal.negate()

	watches := append([]watchNode(nil), p.graph.get(falseLiteral)...)
	for _, w := range watches {
		rule := p.rules.Get(w.ruleID)
		if rule == nil || rule.Disabled {
			continue
		}

		if rule.IsMultiConflict() {
			results = append(results, p.propagateMultiConflict(rule, falseLiteral, valueOf)...)
			continue
		}

		other := w.otherWatch
		switch v := valueOf(other); {
		case v != nil && *v:
			continue // satisfied by the other watch
		case v != nil && !*v:
			if r := p.findNewWatch(rule, falseLiteral, other, valueOf); r.kind != propOK {
				results = append(results, r)
			}
		default:
			if r := p.checkUnit(rule, falseLiteral, other, valueOf); r.kind != propOK {
				results = append(results, r)
			}
		}
	}
	return results
}

func (p *propagator) propagateMultiConflict(rule *Rule, falseLiteral Literal, valueOf func(Literal) *bool) []propagateResult {
	var results []propagateResult
	for _, l := range rule.Literals {
		if l == falseLiteral {
			continue
		}
		switch v := valueOf(l); {
		case v != nil && *v:
			continue
		case v != nil && !*v:
			return []propagateResult{{kind: propConflict, ruleID: rule.ID}}
		default:
			results = append(results, propagateResult{kind: propUnit, unit: l, ruleID: rule.ID})
		}
	}
	return results
}

func (p *propagator) findNewWatch(rule *Rule, falseLiteral, otherFalse Literal, valueOf func(Literal) *bool) propagateResult {
	for _, l := range rule.Literals {
		if l == falseLiteral || l == otherFalse {
			continue
		}
		switch v := valueOf(l); {
		case v == nil, v != nil && *v:
			p.graph.moveWatch(rule.ID, falseLiteral, l, otherFalse)
			return propagateResult{kind: propOK}
		}
	}
	return propagateResult{kind: propConflict, ruleID: rule.ID}
}

func (p *propagator) checkUnit(rule *Rule, falseLiteral, undecided Literal, valueOf func(Literal) *bool) propagateResult {
	for _, l := range rule.Literals {
		if l == falseLiteral || l == undecided {
			continue
		}
		switch v := valueOf(l); {
		case v != nil && *v:
			p.graph.moveWatch(rule.ID, falseLiteral, l, undecided)
			return propagateResult{kind: propOK}
		case v == nil:
			p.graph.moveWatch(rule.ID, falseLiteral, l, undecided)
			return propagateResult{kind: propOK}
		}
	}
	return propagateResult{kind: propUnit, unit: undecided, ruleID: rule.ID}
}
