// Package model holds the data model shared by every resolver component:
// package records, alias handles, versions, constraints and stability
// levels. Nothing in this package talks to a repository, the pool, or the
// solver — it is pure data plus the small amount of logic (constraint
// matching, version comparison) that operates directly on it.
package model

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Stability is the pre-release tier of a version, ordered least to most
// preferred: Dev < Alpha < Beta < RC < Stable.
type Stability uint8

const (
	StabilityDev Stability = iota
	StabilityAlpha
	StabilityBeta
	StabilityRC
	StabilityStable
)

func (s Stability) String() string {
	switch s {
	case StabilityDev:
		return "dev"
	case StabilityAlpha:
		return "alpha"
	case StabilityBeta:
		return "beta"
	case StabilityRC:
		return "RC"
	case StabilityStable:
		return "stable"
	default:
		return "unknown"
	}
}

// stabilityTags maps the pre-release tags recognized in a version string
// to their Stability tier. Unrecognized tags (including the empty tag)
// are treated as stable.
var stabilityTags = map[string]Stability{
	"dev":   StabilityDev,
	"alpha": StabilityAlpha,
	"a":     StabilityAlpha,
	"beta":  StabilityBeta,
	"b":     StabilityBeta,
	"rc":    StabilityRC,
}

// Version is the normalized dot-separated 4-tuple plus pre-release tag
// described in spec §3. Branch names are mapped to a synthetic dev version
// whose Branch field carries the original branch name.
type Version struct {
	Major, Minor, Patch, Build int
	PreTag                     string
	PreNum                     int
	Branch                     string // non-empty for "dev-<branch>" versions
	Pretty                     string // display form as it appeared in source data
}

// Stability computes the stability tier implied by this version's
// pre-release tag, or by its Branch (branches are always StabilityDev).
func (v Version) Stability() Stability {
	if v.Branch != "" {
		return StabilityDev
	}
	if v.PreTag == "" {
		return StabilityStable
	}
	if s, ok := stabilityTags[strings.ToLower(v.PreTag)]; ok {
		return s
	}
	return StabilityStable
}

// IsDev reports whether this version is a branch-derived dev version.
func (v Version) IsDev() bool {
	return v.Branch != "" || v.Stability() == StabilityDev
}

// Compare orders two versions: numeric tuple first, then stability tier,
// then pre-release number. Dev/branch versions compare equal to each
// other only when their branch names match; otherwise they are ordered
// lexically by branch name after the numeric tuple, so ordering stays
// total and deterministic.
func (v Version) Compare(o Version) int {
	if c := compareInts(v.Major, o.Major); c != 0 {
		return c
	}
	if c := compareInts(v.Minor, o.Minor); c != 0 {
		return c
	}
	if c := compareInts(v.Patch, o.Patch); c != 0 {
		return c
	}
	if c := compareInts(v.Build, o.Build); c != 0 {
		return c
	}
	if c := compareInts(int(v.Stability()), int(o.Stability())); c != 0 {
		return c
	}
	if c := compareInts(v.PreNum, o.PreNum); c != 0 {
		return c
	}
	if v.Branch != o.Branch {
		return strings.Compare(v.Branch, o.Branch)
	}
	return 0
}

func compareInts(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (v Version) String() string {
	if v.Pretty != "" {
		return v.Pretty
	}
	s := fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Patch, v.Build)
	if v.PreTag != "" {
		s += "-" + v.PreTag
		if v.PreNum != 0 {
			s += strconv.Itoa(v.PreNum)
		}
	}
	return s
}

// ParseVersion normalizes a version string into its 4-tuple + pre-release
// form. Branch-like inputs ("dev-main", "1.0.x-dev") are recognized by the
// caller (see ParseBranch) and passed in already shaped; ParseVersion only
// handles the numeric/tagged form.
func ParseVersion(raw string) (Version, error) {
	orig := raw
	raw = strings.TrimPrefix(raw, "v")

	var pre string
	core := raw
	if i := strings.IndexAny(raw, "-+"); i >= 0 {
		core = raw[:i]
		pre = strings.TrimLeft(raw[i:], "-+")
	}

	parts := strings.Split(core, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return Version{}, errors.Errorf("version %q: expected 1-4 dot-separated numeric components", orig)
	}

	nums := [4]int{}
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, errors.Wrapf(err, "version %q: component %q is not numeric", orig, p)
		}
		nums[i] = n
	}

	v := Version{Major: nums[0], Minor: nums[1], Patch: nums[2], Build: nums[3], Pretty: orig}
	if pre != "" {
		tag, num := splitPreTag(pre)
		v.PreTag, v.PreNum = tag, num
	}
	return v, nil
}

func splitPreTag(pre string) (string, int) {
	i := len(pre)
	for i > 0 && pre[i-1] >= '0' && pre[i-1] <= '9' {
		i--
	}
	tag := pre[:i]
	num := 0
	if i < len(pre) {
		num, _ = strconv.Atoi(pre[i:])
	}
	return tag, num
}

// ParseBranch recognizes a VCS branch name and produces the synthetic
// "dev-<branch>" version spec §3 describes. Every branch ref becomes a
// dev-stability version regardless of its name.
func ParseBranch(branch string) Version {
	return Version{Branch: branch, Pretty: "dev-" + branch}
}
