package model

import "fmt"

// selfVersionSentinel is the literal constraint string Composer-family
// manifests use to mean "the exact version of the package declaring this
// dependency" (spec §3, "Alias package").
const selfVersionSentinel = "self.version"

// Alias is a handle wrapping a base Package and presenting it under a
// different version. It is created either from a package's branch-alias
// metadata (a dev branch presented as a numeric dev version) or from an
// inline "as" clause in a root requirement.
//
// All of Require/RequireDev/Conflict/Provide/Replace are the base
// package's corresponding maps with any "self.version" constraint
// rewritten to an exact match against the alias's own version, so that
// self-referential constraints stay consistent with the version actually
// being presented.
type Alias struct {
	Base    *Package
	Version Version
	Pretty  string

	// RootAlias marks an alias created from an inline "as" clause in a
	// root requirement, as opposed to one derived from the base
	// package's branch-alias manifest metadata.
	RootAlias bool

	Require    map[string]string
	RequireDev map[string]string
	Conflict   map[string]string
	Provide    map[string]string
	Replace    map[string]string
}

// NewAlias builds an Alias presenting base under version/pretty,
// transforming every "self.version" constraint in base's dependency maps
// into an exact constraint against the alias version. This mirrors
// AliasPackage::transform_dependencies in the Rust original.
func NewAlias(base *Package, version Version, pretty string, rootAlias bool) *Alias {
	exact := fmt.Sprintf("=%s", version.String())
	return &Alias{
		Base:       base,
		Version:    version,
		Pretty:     pretty,
		RootAlias:  rootAlias,
		Require:    rewriteSelfVersion(base.Require, exact),
		RequireDev: rewriteSelfVersion(base.RequireDev, exact),
		Conflict:   rewriteSelfVersion(base.Conflict, exact),
		Provide:    rewriteSelfVersion(base.Provide, exact),
		Replace:    rewriteSelfVersion(base.Replace, exact),
	}
}

func rewriteSelfVersion(deps map[string]string, exact string) map[string]string {
	out := make(map[string]string, len(deps))
	for name, constraint := range deps {
		if constraint == selfVersionSentinel {
			out[name] = exact
		} else {
			out[name] = constraint
		}
	}
	return out
}

// Name returns the presented package's name (identical to the base's,
// since an alias only ever changes the version, never the identity).
func (a *Alias) Name() string { return a.Base.Name }

// Names mirrors Package.Names for alias handles, using the alias's own
// rewritten Replace/Provide maps rather than the base's.
func (a *Alias) Names(includeProvide bool) []string {
	names := []string{a.Name()}
	for n := range a.Replace {
		names = append(names, n)
	}
	if includeProvide {
		for n := range a.Provide {
			names = append(names, n)
		}
	}
	return names
}
