// Command pkgsolve resolves and installs dependencies described by a
// pkgsolve.json manifest, mirroring the teacher's own small,
// flag.FlagSet-dispatched command set rather than pulling in a CLI
// framework dependency.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkgsolve/pkgsolve"
	"github.com/pkgsolve/pkgsolve/internal/installer"
)

type command interface {
	Name() string
	ShortHelp() string
	Register(*flag.FlagSet)
	Run(ctx context.Context, wd string, args []string) error
}

func main() {
	wd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pkgsolve: getting working directory:", err)
		os.Exit(1)
	}

	commands := []command{&installCmd{}, &updateCmd{}}

	if len(os.Args) < 2 {
		usage(commands)
		os.Exit(1)
	}
	name := os.Args[1]

	for _, cmd := range commands {
		if cmd.Name() != name {
			continue
		}
		fs := flag.NewFlagSet(name, flag.ExitOnError)
		cmd.Register(fs)
		if err := fs.Parse(os.Args[2:]); err != nil {
			os.Exit(2)
		}
		if err := cmd.Run(context.Background(), wd, fs.Args()); err != nil {
			fmt.Fprintf(os.Stderr, "pkgsolve %s: %v\n", name, err)
			os.Exit(1)
		}
		return
	}

	fmt.Fprintf(os.Stderr, "pkgsolve: unknown command %q\n\n", name)
	usage(commands)
	os.Exit(1)
}

func usage(commands []command) {
	fmt.Fprintln(os.Stderr, "Usage: pkgsolve <command> [flags]")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", c.Name(), c.ShortHelp())
	}
}

// sharedFlags are the resolve/install knobs every subcommand exposes.
type sharedFlags struct {
	dev          bool
	preferLowest bool
	dryRun       bool
	concurrency  int
}

func (f *sharedFlags) register(fs *flag.FlagSet) {
	fs.BoolVar(&f.dev, "dev", true, "include require-dev in resolution")
	fs.BoolVar(&f.preferLowest, "prefer-lowest", false, "prefer the lowest allowed version of every package")
	fs.BoolVar(&f.dryRun, "dry-run", false, "resolve and print the transaction without installing")
	fs.IntVar(&f.concurrency, "concurrency", 10, "maximum concurrent package installs")
}

func (f *sharedFlags) resolveAndInstall(ctx context.Context, wd string, ignoreLock bool) error {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	cc := pkgsolve.NewCtx(filepath.Join(home, ".cache", "pkgsolve"))

	proj, err := cc.LoadProject(wd, "")
	if err != nil {
		return err
	}
	if ignoreLock {
		proj.Lock = nil
	}

	repos, err := cc.BuildRepositorySet(proj, filepath.Join(cc.CacheDir, "vcs"))
	if err != nil {
		return err
	}

	res, err := cc.Resolve(ctx, proj, repos, pkgsolve.ResolveOptions{IncludeDev: f.dev, PreferLowest: f.preferLowest})
	if err != nil {
		return err
	}

	tx, err := cc.Plan(proj, res)
	if err != nil {
		return err
	}

	fmt.Println(tx.Summary().String())
	if f.dryRun || tx.IsEmpty() {
		return nil
	}

	return cc.Install(ctx, proj, res, tx, installer.Config{Concurrency: f.concurrency})
}

type installCmd struct{ sharedFlags }

func (c *installCmd) Name() string      { return "install" }
func (c *installCmd) ShortHelp() string  { return "resolve pkgsolve.lock (or the manifest) and install" }
func (c *installCmd) Register(fs *flag.FlagSet) { c.register(fs) }
func (c *installCmd) Run(ctx context.Context, wd string, args []string) error {
	return c.resolveAndInstall(ctx, wd, false)
}

type updateCmd struct{ sharedFlags }

func (c *updateCmd) Name() string      { return "update" }
func (c *updateCmd) ShortHelp() string { return "re-resolve the manifest, ignoring the existing lock" }
func (c *updateCmd) Register(fs *flag.FlagSet) { c.register(fs) }
func (c *updateCmd) Run(ctx context.Context, wd string, args []string) error {
	return c.resolveAndInstall(ctx, wd, true)
}
