// Package transaction implements the transaction planner of spec §4.5
// (C5): diffing the solver's selected packages against what is currently
// present on disk, and ordering the resulting operations for safe
// execution (uninstalls first, plugins promoted to the front of the
// install group, dependencies before dependents).
//
// Grounded on the original implementation's solver/transaction.rs, adapted
// to Go's explicit-error, slice-of-structs style rather than Rust's enum
// variants.
package transaction

import (
	"sort"
	"strings"

	"github.com/pkgsolve/pkgsolve/internal/model"
)

// Kind enumerates the operation kinds of spec §3's Transaction type.
type Kind uint8

const (
	KindInstall Kind = iota
	KindUpdate
	KindUninstall
	KindMarkAliasInstalled
	KindMarkAliasUninstalled
)

func (k Kind) String() string {
	switch k {
	case KindInstall:
		return "install"
	case KindUpdate:
		return "update"
	case KindUninstall:
		return "uninstall"
	case KindMarkAliasInstalled:
		return "mark-alias-installed"
	case KindMarkAliasUninstalled:
		return "mark-alias-uninstalled"
	default:
		return "unknown"
	}
}

// Operation is one step of a Transaction. From/To are populated according
// to Kind: Install and Uninstall use only To/From respectively; Update
// uses both; the MarkAlias* kinds use Alias only.
type Operation struct {
	Kind  Kind
	From  *model.Package
	To    *model.Package
	Alias *model.Alias
}

// Package returns the package this operation primarily concerns: To for
// Install/Update, From for Uninstall. Returns nil for alias operations.
func (op Operation) Package() *model.Package {
	switch op.Kind {
	case KindInstall, KindUpdate:
		return op.To
	case KindUninstall:
		return op.From
	default:
		return nil
	}
}

// Transaction is the ordered list of operations spec §3 describes.
type Transaction struct {
	Operations []Operation
}

// Summary tallies operation counts for a human-readable progress report.
type Summary struct {
	Installs, Updates, Uninstalls, AliasInstalls, AliasUninstalls int
}

func (s Summary) String() string {
	var parts []string
	if s.Installs > 0 {
		parts = append(parts, pluralize(s.Installs, "install"))
	}
	if s.Updates > 0 {
		parts = append(parts, pluralize(s.Updates, "update"))
	}
	if s.Uninstalls > 0 {
		parts = append(parts, pluralize(s.Uninstalls, "removal"))
	}
	if len(parts) == 0 {
		return "Nothing to do"
	}
	return strings.Join(parts, ", ")
}

func pluralize(n int, word string) string {
	if n == 1 {
		return "1 " + word
	}
	return strings.Join([]string{itoa(n), word + "s"}, " ")
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Summary computes the operation tally.
func (t *Transaction) Summary() Summary {
	var s Summary
	for _, op := range t.Operations {
		switch op.Kind {
		case KindInstall:
			s.Installs++
		case KindUpdate:
			s.Updates++
		case KindUninstall:
			s.Uninstalls++
		case KindMarkAliasInstalled:
			s.AliasInstalls++
		case KindMarkAliasUninstalled:
			s.AliasUninstalls++
		}
	}
	return s
}

// Installs returns every package that will end up on disk: new installs
// and update targets.
func (t *Transaction) Installs() []*model.Package {
	var out []*model.Package
	for _, op := range t.Operations {
		switch op.Kind {
		case KindInstall:
			out = append(out, op.To)
		case KindUpdate:
			out = append(out, op.To)
		}
	}
	return out
}

// Uninstalls returns every package that will be removed from disk:
// removals and update sources.
func (t *Transaction) Uninstalls() []*model.Package {
	var out []*model.Package
	for _, op := range t.Operations {
		switch op.Kind {
		case KindUninstall:
			out = append(out, op.From)
		case KindUpdate:
			out = append(out, op.From)
		}
	}
	return out
}

// IsEmpty reports whether the transaction has no operations.
func (t *Transaction) IsEmpty() bool { return len(t.Operations) == 0 }

// AliasRecord is a lightweight alias presence marker: just enough
// identity to diff against another run's alias list (spec §3 "for
// symmetry with the lock file").
type AliasRecord struct {
	Name    string
	Version model.Version
	Alias   *model.Alias
}

// Plan computes the transaction diffing present (currently installed)
// packages against result (the solver's selection) and result aliases
// against present aliases, then applies the ordering rules of spec §4.5.
func Plan(present []*model.Package, result []*model.Package, presentAliases, resultAliases []AliasRecord) *Transaction {
	t := &Transaction{}

	presentByName := make(map[string]*model.Package, len(present))
	removeSet := make(map[string]*model.Package, len(present))
	for _, pkg := range present {
		name := strings.ToLower(pkg.Name)
		presentByName[name] = pkg
		removeSet[name] = pkg
	}

	for _, pkg := range result {
		name := strings.ToLower(pkg.Name)
		if cur, ok := presentByName[name]; ok {
			if needsUpdate(cur, pkg) {
				t.Operations = append(t.Operations, Operation{Kind: KindUpdate, From: cur, To: pkg})
			}
			delete(removeSet, name)
		} else {
			t.Operations = append(t.Operations, Operation{Kind: KindInstall, To: pkg})
		}
	}

	presentAliasKey := make(map[string]bool, len(presentAliases))
	for _, a := range presentAliases {
		presentAliasKey[aliasKey(a.Name, a.Version)] = true
	}
	removeAlias := make(map[string]AliasRecord, len(presentAliases))
	for _, a := range presentAliases {
		removeAlias[aliasKey(a.Name, a.Version)] = a
	}
	for _, a := range resultAliases {
		key := aliasKey(a.Name, a.Version)
		if presentAliasKey[key] {
			delete(removeAlias, key)
			continue
		}
		t.Operations = append(t.Operations, Operation{Kind: KindMarkAliasInstalled, Alias: a.Alias})
	}

	var removeNames []string
	for name := range removeSet {
		removeNames = append(removeNames, name)
	}
	sort.Strings(removeNames)
	uninstalls := make([]Operation, len(removeNames))
	for i, name := range removeNames {
		uninstalls[i] = Operation{Kind: KindUninstall, From: removeSet[name]}
	}
	t.Operations = append(uninstalls, t.Operations...)

	var removeAliasKeys []string
	for key := range removeAlias {
		removeAliasKeys = append(removeAliasKeys, key)
	}
	sort.Strings(removeAliasKeys)
	for _, key := range removeAliasKeys {
		t.Operations = append(t.Operations, Operation{Kind: KindMarkAliasUninstalled, Alias: removeAlias[key].Alias})
	}

	t.moveUninstallsToFront()
	t.orderInstalls()
	return t
}

func aliasKey(name string, v model.Version) string {
	return strings.ToLower(name) + "::" + v.String()
}

// needsUpdate mirrors Transaction::needs_update: a version change always
// triggers an update; otherwise a differing dist or source reference
// (when both sides declare one) does too.
func needsUpdate(present, target *model.Package) bool {
	if present.Version.Compare(target.Version) != 0 {
		return true
	}
	if present.Dist != nil && target.Dist != nil &&
		present.Dist.Shasum256 != "" && target.Dist.Shasum256 != "" &&
		present.Dist.Shasum256 != target.Dist.Shasum256 {
		return true
	}
	if present.Source != nil && target.Source != nil &&
		present.Source.Reference != "" && target.Source.Reference != "" &&
		present.Source.Reference != target.Source.Reference {
		return true
	}
	return false
}

// isPlugin reports whether pkg is a plugin-typed package (spec §4.5
// "plugin-typed packages... promoted to the front").
func isPlugin(pkg *model.Package) bool {
	return pkg.Type == model.TypePlugin
}

// moveUninstallsToFront hoists Uninstall and MarkAliasUninstalled
// operations ahead of everything else, preserving relative order within
// each group.
func (t *Transaction) moveUninstallsToFront() {
	var uninstalls, others []Operation
	for _, op := range t.Operations {
		if op.Kind == KindUninstall || op.Kind == KindMarkAliasUninstalled {
			uninstalls = append(uninstalls, op)
		} else {
			others = append(others, op)
		}
	}
	t.Operations = append(uninstalls, others...)
}

// orderInstalls reorders the Install/Update subset in place: dependencies
// before dependents (Kahn's algorithm over the subgraph induced by the
// transaction's own packages), with ties broken so that plugin-typed
// packages and their transitive non-platform dependents sort before
// everything else in the same wave (spec §4.5 "plugin-typed packages...
// promoted to the front of the install group... within the remaining
// installs, Kahn's topological sort... places dependencies before
// dependents"). Non-install/update operations keep their existing
// relative position; a residual cycle is appended in input order.
func (t *Transaction) orderInstalls() {
	var uninstalls, installLike, rest []Operation
	for _, op := range t.Operations {
		switch op.Kind {
		case KindUninstall, KindMarkAliasUninstalled:
			uninstalls = append(uninstalls, op)
		case KindInstall, KindUpdate:
			installLike = append(installLike, op)
		default:
			rest = append(rest, op)
		}
	}
	if len(installLike) == 0 {
		return
	}

	nameToIdx := make(map[string]int, len(installLike))
	for i, op := range installLike {
		nameToIdx[strings.ToLower(op.Package().Name)] = i
	}

	inDegree := make([]int, len(installLike))
	dependents := make([][]int, len(installLike))
	for idx, op := range installLike {
		for dep := range op.Package().Require {
			depLower := strings.ToLower(dep)
			if depLower == "php" || strings.HasPrefix(depLower, "ext-") || strings.HasPrefix(depLower, "lib-") {
				continue
			}
			depIdx, ok := nameToIdx[depLower]
			if !ok || depIdx == idx {
				continue
			}
			dependents[depIdx] = append(dependents[depIdx], idx)
			inDegree[idx]++
		}
	}

	// A package is plugin-priority if it is itself plugin-typed, or if it
	// is named by any plugin's Require (directly or transitively, via the
	// dependents edges just built).
	pluginPriority := make([]bool, len(installLike))
	var seedPlugins []int
	for idx, op := range installLike {
		if pkg := op.Package(); pkg != nil && isPlugin(pkg) {
			pluginPriority[idx] = true
			seedPlugins = append(seedPlugins, idx)
		}
	}
	for _, idx := range seedPlugins {
		markDependencyChainAsPluginPriority(idx, installLike, nameToIdx, pluginPriority)
	}

	order := kahnSort(inDegree, dependents, func(idx int) (priority, tiebreak int) {
		if pluginPriority[idx] {
			return 0, idx
		}
		return 1, idx
	})
	if len(order) != len(installLike) {
		inOrder := make(map[int]bool, len(order))
		for _, idx := range order {
			inOrder[idx] = true
		}
		for idx := range installLike {
			if !inOrder[idx] {
				order = append(order, idx)
			}
		}
	}

	sorted := make([]Operation, len(order))
	for i, idx := range order {
		sorted[i] = installLike[idx]
	}

	out := make([]Operation, 0, len(t.Operations))
	out = append(out, uninstalls...)
	out = append(out, sorted...)
	out = append(out, rest...)
	t.Operations = out
}

// markDependencyChainAsPluginPriority walks idx's (non-platform) Require
// edges within installLike, marking every reachable dependency as
// plugin-priority too, so a plugin's own transitive deps also sort to the
// front of their topological wave.
func markDependencyChainAsPluginPriority(idx int, installLike []Operation, nameToIdx map[string]int, priority []bool) {
	pkg := installLike[idx].Package()
	if pkg == nil {
		return
	}
	for dep := range pkg.Require {
		depLower := strings.ToLower(dep)
		if depLower == "php" || strings.HasPrefix(depLower, "ext-") || strings.HasPrefix(depLower, "lib-") {
			continue
		}
		depIdx, ok := nameToIdx[depLower]
		if !ok || priority[depIdx] {
			continue
		}
		priority[depIdx] = true
		markDependencyChainAsPluginPriority(depIdx, installLike, nameToIdx, priority)
	}
}

// kahnSort runs Kahn's algorithm; among simultaneously-ready nodes it
// picks the one with the lowest (priority, tiebreak) pair first, so
// priority classes are honored without breaking the dependency order.
func kahnSort(inDegree []int, dependents [][]int, rank func(idx int) (priority, tiebreak int)) []int {
	ready := make([]int, 0)
	for idx, d := range inDegree {
		if d == 0 {
			ready = append(ready, idx)
		}
	}
	var order []int
	for len(ready) > 0 {
		best, bestPos := -1, -1
		bestPr, bestTb := 1<<30, 1<<30
		for pos, idx := range ready {
			pr, tb := rank(idx)
			if pr < bestPr || (pr == bestPr && tb < bestTb) {
				best, bestPos, bestPr, bestTb = idx, pos, pr, tb
			}
		}
		ready = append(ready[:bestPos], ready[bestPos+1:]...)
		order = append(order, best)
		for _, dep := range dependents[best] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				ready = append(ready, dep)
			}
		}
	}
	return order
}
