package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	vcslib "github.com/Masterminds/vcs"
	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/model"
)

// ManifestReader reads and decodes the package manifest found at a given
// ref of a checked-out repository. Implemented by internal/manifest so
// this package does not need to import it directly (avoids a cycle with
// manifest's own use of model).
type ManifestReader func(dir string) (*model.Package, error)

// VCS is the C1 VCS repository of spec §4.1: lists tags and branches via
// a hosted API when the URL matches a known host template, or a local
// clone otherwise; for each ref it reads the manifest and produces one
// package record. Tag names normalize to versions; branch names become
// "dev-<branch>" with any branch-alias metadata preserved.
type VCS struct {
	name        string
	url         string
	workDir     string // clone destination root
	readManifest ManifestReader
	hostedTags  HostedRefLister // nil falls back to local clone

	mu     sync.Mutex
	cloned bool
	repo   vcslib.Repo
}

// HostedRefLister is the hosted-API path for a recognized VCS host
// template (GitHub/GitLab/Bitbucket), returning tag and branch names
// without a local clone. See vcs_hosts.go.
type HostedRefLister interface {
	ListTags(ctx context.Context, url string) ([]string, error)
	ListBranches(ctx context.Context, url string) ([]string, error)
}

// NewVCS builds a VCS repository rooted at workDir for clones. hostedTags
// may be nil, in which case every ref listing falls back to a local
// clone.
func NewVCS(name, url, workDir string, readManifest ManifestReader, hostedTags HostedRefLister) *VCS {
	return &VCS{name: name, url: url, workDir: workDir, readManifest: readManifest, hostedTags: hostedTags}
}

func (v *VCS) Name() string { return v.name }

func (v *VCS) HasPackage(ctx context.Context, name string) (bool, error) {
	versions, err := v.Versions(ctx, name)
	return len(versions) > 0, err
}

func (v *VCS) Search(ctx context.Context, query string) ([]*model.Package, error) {
	return nil, errors.New("VCS repository does not support search")
}

func (v *VCS) All(ctx context.Context) ([]*model.Package, error) {
	return nil, errors.New("VCS repository cannot enumerate without a name")
}

func (v *VCS) BatchLoad(ctx context.Context, reqs []LoadRequest) (*BatchResult, error) {
	result := &BatchResult{Found: make(map[string]bool)}
	var firstErr error
	for _, req := range reqs {
		versions, err := v.Versions(ctx, req.Name)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if len(versions) > 0 {
			result.Found[strings.ToLower(req.Name)] = true
			result.Packages = append(result.Packages, versions...)
		}
	}
	return result, firstErr
}

// Versions lists tags and branches for this repository's single URL,
// reading the manifest at each ref. name is used only to stamp the
// resulting package records (a VCS repository serves exactly one URL, so
// it only ever answers for the one name it was configured with).
func (v *VCS) Versions(ctx context.Context, name string) ([]*model.Package, error) {
	refs, err := v.listRefs(ctx)
	if err != nil {
		return nil, err
	}

	var out []*model.Package
	for _, ref := range refs {
		pkg, err := v.loadRef(ctx, name, ref)
		if err != nil {
			continue // a single unreadable ref does not fail the whole listing
		}
		if pkg != nil {
			out = append(out, pkg)
		}
	}
	return out, nil
}

type vcsRef struct {
	name     string
	isBranch bool
}

func (v *VCS) listRefs(ctx context.Context) ([]vcsRef, error) {
	if v.hostedTags != nil {
		tags, tErr := v.hostedTags.ListTags(ctx, v.url)
		branches, bErr := v.hostedTags.ListBranches(ctx, v.url)
		if tErr == nil && bErr == nil {
			refs := make([]vcsRef, 0, len(tags)+len(branches))
			for _, t := range tags {
				refs = append(refs, vcsRef{name: t})
			}
			for _, b := range branches {
				refs = append(refs, vcsRef{name: b, isBranch: true})
			}
			return refs, nil
		}
	}
	return v.listRefsLocal()
}

func (v *VCS) listRefsLocal() ([]vcsRef, error) {
	repo, err := v.ensureClone()
	if err != nil {
		return nil, err
	}

	tags, err := repo.Tags()
	if err != nil {
		return nil, errors.Wrapf(err, "listing tags for %s", v.url)
	}
	branches, err := repo.Branches()
	if err != nil {
		return nil, errors.Wrapf(err, "listing branches for %s", v.url)
	}

	refs := make([]vcsRef, 0, len(tags)+len(branches))
	for _, t := range tags {
		refs = append(refs, vcsRef{name: t})
	}
	for _, b := range branches {
		refs = append(refs, vcsRef{name: b, isBranch: true})
	}
	return refs, nil
}

func (v *VCS) ensureClone() (vcslib.Repo, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.cloned {
		return v.repo, nil
	}

	local := filepath.Join(v.workDir, cloneDirName(v.url))
	repo, err := vcslib.NewRepo(v.url, local)
	if err != nil {
		return nil, errors.Wrapf(err, "creating VCS handle for %s", v.url)
	}
	if !repo.CheckLocal() {
		if err := os.MkdirAll(filepath.Dir(local), 0o755); err != nil {
			return nil, errors.Wrapf(err, "creating clone parent dir for %s", v.url)
		}
		if err := repo.Get(); err != nil {
			return nil, errors.Wrapf(err, "cloning %s", v.url)
		}
	} else if err := repo.Update(); err != nil {
		return nil, errors.Wrapf(err, "updating clone of %s", v.url)
	}

	v.repo, v.cloned = repo, true
	return repo, nil
}

func cloneDirName(url string) string {
	r := strings.NewReplacer("/", "-", ":", "-", "@", "-")
	return r.Replace(url)
}

func (v *VCS) loadRef(ctx context.Context, name string, ref vcsRef) (*model.Package, error) {
	repo, err := v.ensureClone()
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateVersion(ref.name); err != nil {
		return nil, errors.Wrapf(err, "checking out %s@%s", v.url, ref.name)
	}

	pkg, err := v.readManifest(repo.LocalPath())
	if err != nil {
		return nil, err
	}
	pkg.Name = strings.ToLower(name)

	if ref.isBranch {
		alias := pkg.BranchAlias
		pkg.Version = model.ParseBranch(ref.name)
		pkg.PrettyVersion = "dev-" + ref.name
		pkg.BranchAlias = alias
		pkg.Source = &model.SourceRef{Kind: repoKind(repo), URL: v.url, Reference: ref.name}
		return pkg, nil
	}

	ver, err := model.ParseVersion(strings.TrimPrefix(ref.name, "v"))
	if err != nil {
		return nil, err
	}
	pkg.Version = ver
	pkg.PrettyVersion = ref.name
	pkg.Source = &model.SourceRef{Kind: repoKind(repo), URL: v.url, Reference: ref.name}
	return pkg, nil
}

func repoKind(repo vcslib.Repo) string {
	switch repo.(type) {
	case *vcslib.GitRepo:
		return "git"
	case *vcslib.HgRepo:
		return "hg"
	case *vcslib.SvnRepo:
		return "svn"
	case *vcslib.BzrRepo:
		return "bzr"
	default:
		return "git"
	}
}

// branchAliasExtra is the shape of the "extra.branch-alias" manifest
// field (spec §9 "Branch aliases").
type branchAliasExtra struct {
	Extra struct {
		BranchAlias map[string]string `json:"branch-alias"`
	} `json:"extra"`
}

// ParseBranchAlias extracts the branch-alias target for branchName from a
// raw manifest document, if present.
func ParseBranchAlias(manifestJSON []byte, branchName string) string {
	var m branchAliasExtra
	if json.Unmarshal(manifestJSON, &m) != nil {
		return ""
	}
	return m.Extra.BranchAlias[fmt.Sprintf("dev-%s", branchName)]
}
