package sources

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/vellankikoti/tool-versions/internal/config"
	"github.com/vellankikoti/tool-versions/internal/httpclient"
	"github.com/vellankikoti/tool-versions/internal/logging"
)

const (
	// GitHubMediaType is the versioned media type requested from the REST API
	GitHubMediaType = "application/vnd.github.v3+json"
)

// GitHubOption configures a GitHubReleaseAdapter
type GitHubOption func(*GitHubReleaseAdapter)

// WithAPIURL points the adapter at another API host (GitHub Enterprise, tests)
func WithAPIURL(apiURL string) GitHubOption {
	return func(a *GitHubReleaseAdapter) {
		if apiURL != "" {
			a.apiURL = strings.TrimSuffix(apiURL, "/")
		}
	}
}

// WithToken sends token as a bearer token
func WithToken(token string) GitHubOption {
	return func(a *GitHubReleaseAdapter) {
		a.token = token
	}
}

// GitHubReleaseAdapter reads the latest release of a GitHub repository
type GitHubReleaseAdapter struct {
	httpClient httpclient.Client
	apiURL     string
	token      string
}

var _ Adapter = (*GitHubReleaseAdapter)(nil)

// NewGitHubReleaseAdapter creates a new GitHub release adapter
func NewGitHubReleaseAdapter(client httpclient.Client, opts ...GitHubOption) *GitHubReleaseAdapter {
	a := &GitHubReleaseAdapter{
		httpClient: client,
		apiURL:     config.DefaultAPIURL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Validate checks that locator has the "owner/repo" form
func (*GitHubReleaseAdapter) Validate(locator string) error {
	owner, repo, ok := strings.Cut(locator, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return fmt.Errorf("%w: expected owner/repo, got %q", ErrInvalidLocator, locator)
	}
	return nil
}

// FetchLatest retrieves the latest published release of the repository
func (a *GitHubReleaseAdapter) FetchLatest(ctx context.Context, locator string) (*VersionInfo, error) {
	logger := logging.FromContext(ctx)

	if err := a.Validate(locator); err != nil {
		return nil, err
	}

	endpoint := a.releaseURL(locator)
	logger.V(1).Info("Fetching latest release", "url", endpoint)

	opts := []httpclient.RequestOption{
		httpclient.WithHeader("Accept", GitHubMediaType),
	}
	if a.token != "" {
		opts = append(opts, httpclient.WithHeader("Authorization", "Bearer "+a.token))
	}

	body, err := a.httpClient.Get(ctx, endpoint, opts...)
	if err != nil {
		if httpclient.StatusCode(err) == http.StatusNotFound {
			return nil, fmt.Errorf("%w: no published release for %s: %w", ErrSourceUnavailable, locator, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	info, err := parseRelease(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrMalformedResponse, endpoint, err)
	}

	return info, nil
}

func (a *GitHubReleaseAdapter) releaseURL(locator string) string {
	owner, repo, _ := strings.Cut(locator, "/")
	return fmt.Sprintf("%s/repos/%s/%s/releases/latest", a.apiURL, url.PathEscape(owner), url.PathEscape(repo))
}

// parseRelease extracts tag_name, published_at and html_url from a release body
func parseRelease(body []byte) (*VersionInfo, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("body is not valid JSON")
	}
	doc := gjson.ParseBytes(body)
	if !doc.IsObject() {
		return nil, errors.New("body is not a JSON object")
	}

	fields := doc.Map()

	tag := fields["tag_name"]
	if tag.Type != gjson.String || strings.TrimSpace(tag.Str) == "" {
		return nil, errors.New("tag_name is missing or empty")
	}

	info := &VersionInfo{Version: tag.Str}

	if published, ok := fields["published_at"]; ok && published.Type != gjson.Null {
		if published.Type != gjson.String {
			return nil, errors.New("published_at is not a string")
		}
		ts, err := time.Parse(time.RFC3339, published.Str)
		if err != nil {
			return nil, fmt.Errorf("published_at: %w", err)
		}
		info.ReleaseDate = &ts
	}

	if htmlURL, ok := fields["html_url"]; ok && htmlURL.Type == gjson.String {
		info.URL = htmlURL.Str
	}

	return info, nil
}
