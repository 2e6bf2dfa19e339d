package pkgsolve

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkgsolve/pkgsolve/internal/installer"
	"github.com/pkgsolve/pkgsolve/internal/repository"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%q): %v", path, err)
	}
}

// setupProject lays out a root project manifest and a single local
// dependency directory, wired together through a "path" repository, with
// no network access required.
func setupProject(t *testing.T) (*Ctx, *Project, *repository.Set) {
	t.Helper()
	root := t.TempDir()
	depDir := filepath.Join(root, "deps", "acme-gears")

	writeFile(t, filepath.Join(root, "pkgsolve.json"), `{
		"name": "acme/app",
		"require": {"acme/gears": "^1.0"},
		"repositories": [{"type": "path", "url": "`+depDir+`"}]
	}`)
	writeFile(t, filepath.Join(depDir, "pkgsolve.json"), `{
		"name": "acme/gears",
		"version": "1.2.0"
	}`)
	writeFile(t, filepath.Join(depDir, "main.go"), "package gears\n")

	cacheDir := t.TempDir()
	c := NewCtx(cacheDir)

	proj, err := c.LoadProject(root, "")
	if err != nil {
		t.Fatalf("LoadProject: %v", err)
	}

	repos, err := c.BuildRepositorySet(proj, filepath.Join(cacheDir, "vcs"))
	if err != nil {
		t.Fatalf("BuildRepositorySet: %v", err)
	}
	return c, proj, repos
}

func TestResolvePlanInstallEndToEnd(t *testing.T) {
	c, proj, repos := setupProject(t)

	res, err := c.Resolve(context.Background(), proj, repos, ResolveOptions{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(res.Packages) != 1 || res.Packages[0].Name != "acme/gears" {
		t.Fatalf("expected acme/gears selected, got %+v", res.Packages)
	}

	tx, err := c.Plan(proj, res)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if tx.IsEmpty() {
		t.Fatal("expected a non-empty transaction installing acme/gears for the first time")
	}

	if err := c.Install(context.Background(), proj, res, tx, installer.Config{}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	installedFile := filepath.Join(proj.VendorDir, "acme", "gears", "main.go")
	if _, err := os.Stat(installedFile); err != nil {
		t.Fatalf("expected acme/gears to be installed into vendor dir: %v", err)
	}

	lockPath := filepath.Join(proj.Root, "pkgsolve.lock")
	if _, err := os.Stat(lockPath); err != nil {
		t.Fatalf("expected a lock file to be written: %v", err)
	}

	reloaded, err := c.LoadProject(proj.Root, "")
	if err != nil {
		t.Fatalf("reloading project: %v", err)
	}
	if reloaded.Lock == nil || len(reloaded.Lock.Packages) != 1 {
		t.Fatalf("expected the reloaded lock to carry one package, got %+v", reloaded.Lock)
	}
	fresh, err := reloaded.Lock.IsFresh(reloaded.Manifest)
	if err != nil {
		t.Fatalf("IsFresh: %v", err)
	}
	if !fresh {
		t.Fatal("expected the freshly written lock to match its own manifest")
	}
}

func TestResolveIsIdempotentAgainstExistingLock(t *testing.T) {
	c, proj, repos := setupProject(t)

	res, err := c.Resolve(context.Background(), proj, repos, ResolveOptions{})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	tx, err := c.Plan(proj, res)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if err := c.Install(context.Background(), proj, res, tx, installer.Config{}); err != nil {
		t.Fatalf("Install: %v", err)
	}

	reloaded, err := c.LoadProject(proj.Root, "")
	if err != nil {
		t.Fatalf("reloading project: %v", err)
	}
	res2, err := c.Resolve(context.Background(), reloaded, repos, ResolveOptions{})
	if err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	tx2, err := c.Plan(reloaded, res2)
	if err != nil {
		t.Fatalf("second Plan: %v", err)
	}
	if !tx2.IsEmpty() {
		t.Fatalf("expected a no-op transaction on an already-installed project, got %+v", tx2.Operations)
	}
}
