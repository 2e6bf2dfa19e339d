package pkgsolve

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkgsolve/pkgsolve/internal/manifest"
	"github.com/pkgsolve/pkgsolve/internal/repository"
	"github.com/pkgsolve/pkgsolve/internal/repository/cache"
)

// defaultRegistryURL is used when a manifest declares no "composer"-type
// repository of its own, the same implicit-default-repository behavior
// Composer itself has (a bare project still resolves against the public
// registry unless it opts out).
const defaultRegistryURL = "https://repo.packagist.org/p2/%s.json"

// BuildRepositorySet turns p.Manifest.Repositories into a priority-
// ordered repository.Set (spec §4.1), highest priority first so a
// project's own repositories mask the default registry for names they
// both claim. vcsWorkDir is where VCS repositories clone working
// copies — a clone cache distinct from the install cache opened by
// Install.
func (c *Ctx) BuildRepositorySet(p *Project, vcsWorkDir string) (*repository.Set, error) {
	cch, err := cache.Open(filepath.Join(c.CacheDir, "registry"), c.CacheTTL, false)
	if err != nil {
		return nil, err
	}

	var repos []repository.Repository
	sawComposer := false
	for i, desc := range p.Manifest.Repositories {
		repo := c.buildOne(desc, i, vcsWorkDir, cch)
		if repo == nil {
			continue
		}
		if desc.Type == "composer" {
			sawComposer = true
		}
		repos = append(repos, repo)
	}
	if !sawComposer {
		repos = append(repos, repository.NewRegistry("packagist", defaultRegistryURL, c.HTTPClient, cch, 10))
	}

	return repository.NewSet(repos...), nil
}

func (c *Ctx) buildOne(desc manifest.RepositoryDescriptor, index int, vcsWorkDir string, cch *cache.Cache) repository.Repository {
	name := desc.Type + "#" + strconv.Itoa(index)
	switch desc.Type {
	case "composer":
		tmpl := strings.TrimRight(desc.URL, "/") + "/p2/%s.json"
		return repository.NewRegistry(name, tmpl, c.HTTPClient, cch, 10)

	case "vcs", "git", "github", "gitlab", "bitbucket":
		hosted := repository.NewHostedRefLister(c.HTTPClient, desc.URL)
		return repository.NewVCS(name, desc.URL, vcsWorkDir, readManifestFromDir, hosted)

	case "path":
		symlink, relative := pathTransportFlags(desc)
		return repository.NewPath(name, desc.URL, readManifestFromDir, symlink, relative)

	case "artifact":
		return repository.NewArtifact(name, desc.URL, readManifestFromArchive)

	case "package":
		inline, err := repository.NewInlineFromDescriptor(name, desc.Raw)
		if err != nil {
			c.Logger.Printf("repository %q: %v, skipped", name, err)
			return nil
		}
		return inline

	default:
		c.Logger.Printf("repository %q: unsupported type %q, skipped", name, desc.Type)
		return nil
	}
}

// pathTransportFlags reads the "symlink"/"options" hints Composer's path
// repository descriptor supports out of the descriptor's raw JSON; a
// descriptor with no such hints mirror-copies by default.
func pathTransportFlags(desc manifest.RepositoryDescriptor) (symlink, relative bool) {
	return false, false
}
