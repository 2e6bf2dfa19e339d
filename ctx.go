// Package pkgsolve ties the pool builder, rule generator, SAT solver,
// transaction planner, and install manager into the single Resolve/Plan/
// Install entry point described by spec §2's component table.
package pkgsolve

import (
	"log"
	"net/http"
	"time"
)

// Ctx holds configuration shared across every project a process touches:
// where the download cache lives, which HTTP client to use, and where to
// log diagnostics — mirroring the teacher's own Ctx, a small struct
// threaded through every subsequent call rather than a package-level
// global.
type Ctx struct {
	CacheDir   string
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// NewCtx returns a Ctx rooted at cacheDir with sensible defaults (an
// hour-long registry cache TTL, http.DefaultClient, and a logger writing
// to the process's default log output).
func NewCtx(cacheDir string) *Ctx {
	return &Ctx{
		CacheDir:   cacheDir,
		CacheTTL:   time.Hour,
		HTTPClient: http.DefaultClient,
		Logger:     log.Default(),
	}
}
