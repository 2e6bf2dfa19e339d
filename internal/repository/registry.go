package repository

import (
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/pkgsolve/pkgsolve/internal/model"
	"github.com/pkgsolve/pkgsolve/internal/repository/cache"
)

// providerEntry is one row of a registry provider-index response: all the
// metadata needed to build a model.Package for one version of one name.
type providerEntry struct {
	Version     string            `json:"version"`
	Type        string            `json:"type"`
	Source      *rawSourceRef     `json:"source,omitempty"`
	Dist        *rawDistRef       `json:"dist,omitempty"`
	Require     map[string]string `json:"require,omitempty"`
	RequireDev  map[string]string `json:"require-dev,omitempty"`
	Conflict    map[string]string `json:"conflict,omitempty"`
	Provide     map[string]string `json:"provide,omitempty"`
	Replace     map[string]string `json:"replace,omitempty"`
	Suggest     map[string]string `json:"suggest,omitempty"`
	Abandoned   json.RawMessage   `json:"abandoned,omitempty"`
	BranchAlias string            `json:"-"`
}

type rawSourceRef struct {
	Type      string `json:"type"`
	URL       string `json:"url"`
	Reference string `json:"reference"`
}

type rawDistRef struct {
	Type   string `json:"type"`
	URL    string `json:"url"`
	Shasum string `json:"shasum"`
}

type providerIndex struct {
	Packages map[string][]providerEntry `json:"packages"`
}

// HTTPClient is the minimal subset of *http.Client the Registry repository
// needs; exists so callers can inject auth/timeout-configured clients.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registry is the C1 registry repository of spec §4.1: fetches provider
// index JSON by name from a base URL template, caches responses on disk
// with a TTL, verifies an optional declared SHA-256, and decompresses
// gzip when the response carries that Content-Encoding.
type Registry struct {
	name          string
	baseURLTmpl   string // contains "%s" for the package name
	client        HTTPClient
	cache         *cache.Cache
	maxConcurrent int
}

// NewRegistry builds a Registry repository. baseURLTmpl must contain
// exactly one "%s", substituted with the lowercased package name.
func NewRegistry(name, baseURLTmpl string, client HTTPClient, c *cache.Cache, maxConcurrent int) *Registry {
	if maxConcurrent <= 0 {
		maxConcurrent = 10
	}
	return &Registry{name: name, baseURLTmpl: baseURLTmpl, client: client, cache: c, maxConcurrent: maxConcurrent}
}

func (r *Registry) Name() string { return r.name }

func (r *Registry) HasPackage(ctx context.Context, name string) (bool, error) {
	entries, err := r.fetch(ctx, name)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

func (r *Registry) Versions(ctx context.Context, name string) ([]*model.Package, error) {
	entries, err := r.fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Package, 0, len(entries))
	for _, e := range entries {
		pkg, err := buildPackage(name, e)
		if err != nil {
			continue
		}
		out = append(out, pkg)
	}
	return out, nil
}

func (r *Registry) Search(ctx context.Context, query string) ([]*model.Package, error) {
	return nil, errors.New("registry repository does not support offline search")
}

func (r *Registry) All(ctx context.Context) ([]*model.Package, error) {
	return nil, errors.New("registry repository cannot enumerate its full package list")
}

// BatchLoad fetches each requested name's provider index, bounding
// concurrent HTTP requests to maxConcurrent (spec §4.1).
func (r *Registry) BatchLoad(ctx context.Context, reqs []LoadRequest) (*BatchResult, error) {
	sem := make(chan struct{}, r.maxConcurrent)
	var wg sync.WaitGroup
	var mu sync.Mutex
	result := &BatchResult{Found: make(map[string]bool)}
	var firstErr error

	for _, req := range reqs {
		req := req
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			versions, err := r.Versions(ctx, req.Name)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = errors.Wrapf(err, "registry %s: loading %q", r.name, req.Name)
				}
				return
			}
			if len(versions) > 0 {
				result.Found[strings.ToLower(req.Name)] = true
				result.Packages = append(result.Packages, versions...)
			}
		}()
	}
	wg.Wait()
	return result, firstErr
}

func (r *Registry) fetch(ctx context.Context, name string) ([]providerEntry, error) {
	key := strings.ToLower(name)
	if body, _, ok, _ := r.cache.Get(key); ok {
		return decodeProviderEntries(name, body)
	}

	url := fmt.Sprintf(r.baseURLTmpl, strings.ToLower(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %q", name)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching provider index for %q", name)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("registry %s: unexpected status %d for %q", r.name, resp.StatusCode, name)
	}

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, errors.Wrapf(err, "decompressing provider index for %q", name)
		}
		defer gz.Close()
		reader = gz
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrapf(err, "reading provider index for %q", name)
	}

	if wantSum := resp.Header.Get("X-Pkgsolve-Sha256"); wantSum != "" {
		sum := sha256.Sum256(body)
		if hex.EncodeToString(sum[:]) != wantSum {
			return nil, errors.Errorf("registry %s: checksum mismatch for %q provider index", r.name, name)
		}
	}

	if err := r.cache.Put(key, body); err != nil {
		// Cache write failure degrades to no-caching, not a fetch
		// failure: spec §3 requires reads never mutate, but a write
		// failure should not make a result we already have in hand
		// unusable.
		_ = err
	}

	return decodeProviderEntries(name, body)
}

func decodeProviderEntries(name string, body []byte) ([]providerEntry, error) {
	var idx providerIndex
	if err := json.Unmarshal(body, &idx); err != nil {
		return nil, errors.Wrapf(err, "decoding provider index for %q", name)
	}
	return idx.Packages[strings.ToLower(name)], nil
}

func buildPackage(name string, e providerEntry) (*model.Package, error) {
	v, err := model.ParseVersion(e.Version)
	if err != nil {
		return nil, err
	}
	pkg := &model.Package{
		Name:          strings.ToLower(name),
		Version:       v,
		PrettyVersion: e.Version,
		Type:          model.PackageType(orDefault(e.Type, string(model.TypeLibrary))),
		Require:       e.Require,
		RequireDev:    e.RequireDev,
		Conflict:      e.Conflict,
		Provide:       e.Provide,
		Replace:       e.Replace,
		Suggest:       e.Suggest,
	}
	if e.Source != nil {
		pkg.Source = &model.SourceRef{Kind: e.Source.Type, URL: e.Source.URL, Reference: e.Source.Reference}
	}
	if e.Dist != nil {
		pkg.Dist = &model.DistRef{Kind: e.Dist.Type, URLs: []string{e.Dist.URL}, Shasum1: e.Dist.Shasum}
	}
	if len(e.Abandoned) > 0 {
		pkg.Abandoned = decodeAbandoned(e.Abandoned)
	}
	return pkg, nil
}

func decodeAbandoned(raw json.RawMessage) *model.Abandoned {
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return &model.Abandoned{Is: b}
	}
	var s string
	if json.Unmarshal(raw, &s) == nil && s != "" {
		return &model.Abandoned{Is: true, Replacement: s}
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
