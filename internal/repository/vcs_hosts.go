package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// hostedAPI implements HostedRefLister for the three VCS hosts spec §3
// (SUPPLEMENTED FEATURES) recognizes by URL shape: github.com, gitlab.com,
// and bitbucket.org. Any other URL has no hosted API template and the VCS
// repository falls back to a local clone (original_source's
// repository/vcs/bitbucket.rs: "anything else falls through to local
// clone").
type hostedAPI struct {
	client HTTPClient
}

// NewHostedRefLister builds the hosted-API ref lister used by the VCS
// repository. Returns nil (meaning "always clone locally") when url
// matches none of the known host templates.
func NewHostedRefLister(client HTTPClient, url string) HostedRefLister {
	if !isKnownHost(url) {
		return nil
	}
	return &hostedAPI{client: client}
}

var (
	githubRE    = regexp.MustCompile(`^(?:https?://|git@)github\.com[/:]([^/]+)/([^/.]+?)(?:\.git)?/?$`)
	gitlabRE    = regexp.MustCompile(`^(?:https?://|git@)gitlab\.com[/:]([^/]+)/([^/.]+?)(?:\.git)?/?$`)
	bitbucketRE = regexp.MustCompile(`^(?:https?://|git@)bitbucket\.org[/:]([^/]+)/([^/.]+?)(?:\.git)?/?$`)
)

func isKnownHost(url string) bool {
	return githubRE.MatchString(url) || gitlabRE.MatchString(url) || bitbucketRE.MatchString(url)
}

func (h *hostedAPI) ListTags(ctx context.Context, url string) ([]string, error) {
	return h.listRefs(ctx, url, "tags")
}

func (h *hostedAPI) ListBranches(ctx context.Context, url string) ([]string, error) {
	return h.listRefs(ctx, url, "branches")
}

func (h *hostedAPI) listRefs(ctx context.Context, url, kind string) ([]string, error) {
	apiURL, err := h.refListURL(url, kind)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "building %s request for %s", kind, url)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching %s for %s", kind, url)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("hosted API: unexpected status %d listing %s for %s", resp.StatusCode, kind, url)
	}

	var rows []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, errors.Wrapf(err, "decoding %s response for %s", kind, url)
	}

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		names = append(names, r.Name)
	}
	return names, nil
}

func (h *hostedAPI) refListURL(url, kind string) (string, error) {
	switch {
	case githubRE.MatchString(url):
		m := githubRE.FindStringSubmatch(url)
		return fmt.Sprintf("https://api.github.com/repos/%s/%s/%s", m[1], m[2], kind), nil
	case gitlabRE.MatchString(url):
		m := gitlabRE.FindStringSubmatch(url)
		proj := strings.ReplaceAll(fmt.Sprintf("%s/%s", m[1], m[2]), "/", "%2F")
		gitlabKind := kind
		if kind == "tags" {
			gitlabKind = "repository/tags"
		} else {
			gitlabKind = "repository/branches"
		}
		return fmt.Sprintf("https://gitlab.com/api/v4/projects/%s/%s", proj, gitlabKind), nil
	case bitbucketRE.MatchString(url):
		m := bitbucketRE.FindStringSubmatch(url)
		return fmt.Sprintf("https://api.bitbucket.org/2.0/repositories/%s/%s/refs/%s", m[1], m[2], kind), nil
	default:
		return "", errors.Errorf("URL %q does not match a known VCS host template", url)
	}
}
