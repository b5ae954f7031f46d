package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/slok/vetbox/internal/conventions"
	"github.com/slok/vetbox/internal/log"
)

const (
	defaultGitHubAPIBase      = "https://api.github.com"
	defaultGitHubDownloadBase = "https://github.com"

	// DefaultCacheDir is the default local agent cache directory (relative to home).
	DefaultCacheDir = ".vetbox/agents"
)

// Artifact is a locally available agent binary ready to be installed.
type Artifact struct {
	// Path is the local filesystem path of the binary.
	Path string
	// Version is the release tag or source reference it came from.
	Version string
}

// Resolver resolves the agent binary for an architecture into a local
// artifact.
type Resolver interface {
	Resolve(ctx context.Context, arch string) (*Artifact, error)
}

// SourceResolverConfig configures the source-notation resolver dispatch.
type SourceResolverConfig struct {
	// Source is where the agent comes from: "owner/repo" for the latest
	// GitHub release, "file:/path" for a local binary, "https://..." for a
	// direct artifact URL.
	Source string
	// CacheDir is the local directory release downloads are cached in.
	CacheDir string
	// HTTPClient is the HTTP client for API and download requests.
	HTTPClient *http.Client
	// Logger for logging.
	Logger log.Logger
}

// NewSourceResolver returns the resolver matching the agent source notation.
func NewSourceResolver(cfg SourceResolverConfig) (Resolver, error) {
	switch {
	case strings.HasPrefix(cfg.Source, "file:"):
		return newLocalFileResolver(strings.TrimPrefix(cfg.Source, "file:"))
	case strings.HasPrefix(cfg.Source, "http://"), strings.HasPrefix(cfg.Source, "https://"):
		return newURLResolver(cfg.Source, cfg.HTTPClient)
	case strings.Count(cfg.Source, "/") == 1:
		return NewGitHubReleaseResolver(GitHubReleaseResolverConfig{
			Repo:       cfg.Source,
			CacheDir:   cfg.CacheDir,
			HTTPClient: cfg.HTTPClient,
			Logger:     cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("unrecognized agent source %q", cfg.Source)
	}
}

// GitHubReleaseResolverConfig configures the GitHub-backed release resolver.
type GitHubReleaseResolverConfig struct {
	// Repo is the GitHub repository (e.g. "slok/warden").
	Repo string
	// CacheDir is the local directory for caching downloaded releases.
	CacheDir string
	// HTTPClient is the HTTP client for API and download requests.
	HTTPClient *http.Client
	// Logger for logging.
	Logger log.Logger
}

func (c *GitHubReleaseResolverConfig) defaults() error {
	if c.Repo == "" {
		c.Repo = conventions.DefaultAgentRepo
	}
	if c.CacheDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("could not get user home dir: %w", err)
		}
		c.CacheDir = filepath.Join(home, DefaultCacheDir)
	}
	if c.HTTPClient == nil {
		c.HTTPClient = http.DefaultClient
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	return nil
}

// GitHubReleaseResolver resolves the latest agent release from GitHub
// Releases and caches the downloaded binary locally.
type GitHubReleaseResolver struct {
	repo       string
	cacheDir   string
	httpClient *http.Client
	logger     log.Logger

	// Base URLs (overridable for testing).
	apiBaseURL      string
	downloadBaseURL string
}

// NewGitHubReleaseResolver creates a new GitHub-backed release resolver.
func NewGitHubReleaseResolver(cfg GitHubReleaseResolverConfig) (*GitHubReleaseResolver, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &GitHubReleaseResolver{
		repo:            cfg.Repo,
		cacheDir:        cfg.CacheDir,
		httpClient:      cfg.HTTPClient,
		logger:          cfg.Logger,
		apiBaseURL:      defaultGitHubAPIBase,
		downloadBaseURL: defaultGitHubDownloadBase,
	}, nil
}

// NewGitHubReleaseResolverWithBaseURL creates a resolver with custom base
// URLs (for testing).
func NewGitHubReleaseResolverWithBaseURL(cfg GitHubReleaseResolverConfig, apiBaseURL, downloadBaseURL string) (*GitHubReleaseResolver, error) {
	r, err := NewGitHubReleaseResolver(cfg)
	if err != nil {
		return nil, err
	}
	r.apiBaseURL = apiBaseURL
	r.downloadBaseURL = downloadBaseURL
	return r, nil
}

type ghRelease struct {
	TagName string `json:"tag_name"`
}

// Resolve fetches the latest release tag and downloads the agent binary for
// the architecture, reusing the local cache when the release was downloaded
// before.
func (g *GitHubReleaseResolver) Resolve(ctx context.Context, arch string) (*Artifact, error) {
	release, err := g.fetchLatestRelease(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not resolve latest release of %s: %w", g.repo, err)
	}

	assetName := fmt.Sprintf("warden-linux-%s", arch)
	dstPath := filepath.Join(g.cacheDir, release.TagName, assetName)

	if _, err := os.Stat(dstPath); err == nil {
		g.logger.Debugf("Using cached agent release %s (%s)", release.TagName, dstPath)
		return &Artifact{Path: dstPath, Version: release.TagName}, nil
	}

	if err := os.MkdirAll(filepath.Dir(dstPath), 0o755); err != nil {
		return nil, fmt.Errorf("could not create cache dir: %w", err)
	}

	downloadURL := fmt.Sprintf("%s/%s/releases/download/%s/%s", g.downloadBaseURL, g.repo, release.TagName, assetName)
	g.logger.Infof("Downloading agent %s (%s)", release.TagName, downloadURL)
	if err := g.downloadFile(ctx, downloadURL, dstPath); err != nil {
		return nil, fmt.Errorf("could not download agent release: %w", err)
	}

	return &Artifact{Path: dstPath, Version: release.TagName}, nil
}

func (g *GitHubReleaseResolver) fetchLatestRelease(ctx context.Context) (*ghRelease, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", g.apiBaseURL, g.repo)
	data, err := g.httpGet(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching latest release: %w", err)
	}

	var release ghRelease
	if err := json.Unmarshal(data, &release); err != nil {
		return nil, fmt.Errorf("parsing latest release: %w", err)
	}
	if release.TagName == "" {
		return nil, fmt.Errorf("latest release has no tag name")
	}

	return &release, nil
}

func (g *GitHubReleaseResolver) httpGet(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	return io.ReadAll(resp.Body)
}

func (g *GitHubReleaseResolver) downloadFile(ctx context.Context, url, dstPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}

	f, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("creating file %s: %w", dstPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("writing file %s: %w", dstPath, err)
	}

	return nil
}

// localFileResolver resolves a binary that is already on the local disk.
type localFileResolver struct {
	path string
}

func newLocalFileResolver(path string) (*localFileResolver, error) {
	if path == "" {
		return nil, fmt.Errorf("local agent path is empty")
	}
	return &localFileResolver{path: path}, nil
}

func (l *localFileResolver) Resolve(_ context.Context, _ string) (*Artifact, error) {
	info, err := os.Stat(l.path)
	if err != nil {
		return nil, fmt.Errorf("could not stat local agent %s: %w", l.path, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("local agent %s is a directory", l.path)
	}

	return &Artifact{Path: l.path, Version: "local"}, nil
}

// urlResolver downloads the binary from a direct artifact URL.
type urlResolver struct {
	url        string
	httpClient *http.Client
}

func newURLResolver(rawURL string, httpClient *http.Client) (*urlResolver, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("invalid agent artifact URL: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &urlResolver{url: rawURL, httpClient: httpClient}, nil
}

func (u *urlResolver) Resolve(ctx context.Context, _ string) (*Artifact, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := u.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, u.url)
	}

	dir, err := os.MkdirTemp("", "vetbox-agent-*")
	if err != nil {
		return nil, fmt.Errorf("could not create temp dir: %w", err)
	}

	parsed, _ := url.Parse(u.url)
	version := filepath.Base(parsed.Path)
	dstPath := filepath.Join(dir, "warden")

	f, err := os.Create(dstPath)
	if err != nil {
		return nil, fmt.Errorf("creating file %s: %w", dstPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(dstPath)
		return nil, fmt.Errorf("writing file %s: %w", dstPath, err)
	}

	return &Artifact{Path: dstPath, Version: version}, nil
}
