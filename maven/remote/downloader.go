// Package remote downloads POMs, artifacts and version metadata from Maven
// repositories over HTTP, storing everything it fetches through the cache
// facade. POM decoding is injected by the caller; this package does not know
// how POM documents are parsed.
package remote

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	slogcontext "github.com/veqryn/slog-context"
	"golang.org/x/sync/singleflight"

	"github.com/pomgraph/pomgraph/maven"
	"github.com/pomgraph/pomgraph/maven/cache"
	"github.com/pomgraph/pomgraph/maven/settings"
)

const Realm = "maven.remote"

// ErrNotFound is returned by fetch when a repository answers 404. It never
// escapes the downloader: a coordinate found in no repository yields
// (nil, nil) per the Downloader contract.
var ErrNotFound = errors.New("artifact not found")

// CentralRepository is the fallback repository used when neither the request
// nor the settings supply any.
// https://maven.apache.org/ref/3.6.3/maven-model-builder/super-pom.html
var CentralRepository = maven.RawRepository{
	ID:        "central",
	URL:       "https://repo.maven.apache.org/maven2",
	Snapshots: &maven.RawArtifactPolicy{Enabled: false},
}

// DecodePomFunc turns fetched POM bytes into a raw POM. sourceURL is carried
// into the POM's SourcePath for error reporting.
type DecodePomFunc func(data []byte, sourceURL string) (*maven.RawPom, error)

// Options configures a Downloader.
type Options struct {
	// Client defaults to an HTTP client with a 30 second timeout.
	Client *http.Client

	// Settings supplies mirrors and the default repositories, consulted after
	// the repositories a request carries.
	Settings *settings.Settings

	// ActiveProfiles selects the settings profiles contributing default
	// repositories.
	ActiveProfiles []string

	// DecodePom parses fetched POM bytes. Required for DownloadPom.
	DecodePom DecodePomFunc
}

// Downloader fetches POMs and artifacts from Maven repositories. It is safe
// for concurrent use: concurrent requests for the same URL are collapsed
// into one fetch, and every result is stored through the shared cache.
//
// Once a coordinate has been served by a repository, subsequent requests for
// the same coordinate go to that repository first.
type Downloader struct {
	cache          *cache.Cache
	client         *http.Client
	settings       *settings.Settings
	activeProfiles []string
	decodePom      DecodePomFunc

	group singleflight.Group

	repoForCoordinateMu sync.RWMutex
	repoForCoordinate   map[maven.GroupArtifact]maven.RawRepository
}

var _ maven.Downloader = (*Downloader)(nil)

// New creates a downloader storing through the given cache.
func New(c *cache.Cache, opts Options) *Downloader {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Downloader{
		cache:             c,
		client:            client,
		settings:          opts.Settings,
		activeProfiles:    opts.ActiveProfiles,
		decodePom:         opts.DecodePom,
		repoForCoordinate: make(map[maven.GroupArtifact]maven.RawRepository),
	}
}

// DownloadPom fetches and decodes the POM for the requested coordinates,
// walking the request's repositories in order. A coordinate found in no
// repository yields (nil, nil).
func (d *Downloader) DownloadPom(ctx context.Context, req maven.PomRequest) (*maven.RawPom, error) {
	if d.decodePom == nil {
		return nil, fmt.Errorf("downloader has no POM decoder configured")
	}

	artifact := cache.Artifact{
		GroupID:    req.GroupID,
		ArtifactID: req.ArtifactID,
		Classifier: req.Classifier,
		Extension:  "pom",
		Version:    req.Version,
	}
	if data, ok := d.cache.Lookup(artifact); ok {
		return d.decodePom(data, artifact.String())
	}

	ga := maven.GroupArtifact{GroupID: req.GroupID, ArtifactID: req.ArtifactID}
	path := artifactPath(req.GroupID, req.ArtifactID, req.Version, req.Classifier, "pom")

	data, repo, err := d.fetchFromRepositories(ctx, ga, d.repositories(req.Repositories), req.Version, path)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	if err := d.cache.Store(artifact, data); err != nil {
		slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "caching POM failed",
			slog.String("realm", Realm),
			slog.String("artifact", artifact.String()),
			slog.String("error", err.Error()))
	}
	return d.decodePom(data, joinURL(repo.URL, path))
}

// DownloadArtifact fetches the artifact bytes (extension "jar") for a
// coordinate, using the settings-level repositories.
func (d *Downloader) DownloadArtifact(ctx context.Context, ga maven.GroupArtifact, classifier, version string) ([]byte, error) {
	artifact := cache.Artifact{
		GroupID:    ga.GroupID,
		ArtifactID: ga.ArtifactID,
		Classifier: classifier,
		Extension:  "jar",
		Version:    version,
	}
	if data, ok := d.cache.Lookup(artifact); ok {
		return data, nil
	}

	path := artifactPath(ga.GroupID, ga.ArtifactID, version, classifier, "jar")
	data, _, err := d.fetchFromRepositories(ctx, ga, d.repositories(nil), version, path)
	if err != nil || data == nil {
		return nil, err
	}

	if err := d.cache.Store(artifact, data); err != nil {
		return data, nil
	}
	return data, nil
}

// metadata is the subset of maven-metadata.xml the downloader reads.
type metadata struct {
	Versioning struct {
		Versions struct {
			Version []string `xml:"version"`
		} `xml:"versions"`
	} `xml:"versioning"`
}

// FindVersions lists the versions available for a coordinate by fetching the
// repositories' version metadata.
func (d *Downloader) FindVersions(ctx context.Context, ga maven.GroupArtifact) ([]string, error) {
	artifact := cache.Artifact{
		GroupID:    ga.GroupID,
		ArtifactID: ga.ArtifactID,
		Extension:  "maven-metadata",
	}
	if versions, ok := d.cache.LookupVersions(artifact); ok {
		return versions, nil
	}

	var versions []string
	seen := map[string]struct{}{}
	for _, repo := range d.repositories(nil) {
		url := strings.TrimSuffix(repo.URL, "/") + "/" + groupPath(ga.GroupID) + "/" + ga.ArtifactID + "/maven-metadata.xml"
		data, err := d.fetch(ctx, url)
		if err != nil {
			continue
		}
		var meta metadata
		if err := xml.Unmarshal(data, &meta); err != nil {
			slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "malformed version metadata",
				slog.String("realm", Realm),
				slog.String("url", url),
				slog.String("error", err.Error()))
			continue
		}
		for _, version := range meta.Versioning.Versions.Version {
			if _, ok := seen[version]; ok {
				continue
			}
			seen[version] = struct{}{}
			versions = append(versions, version)
		}
	}

	if len(versions) > 0 {
		if err := d.cache.StoreVersions(artifact, versions); err != nil {
			return versions, nil
		}
	}
	return versions, nil
}

// repositories merges the per-request repositories with the settings-level
// defaults, applying mirrors. An empty result falls back to Maven Central.
func (d *Downloader) repositories(requested []maven.RawRepository) []maven.RawRepository {
	var repos []maven.RawRepository
	repos = append(repos, requested...)
	for _, repo := range d.settings.ActiveRepositories(d.activeProfiles) {
		raw := maven.RawRepository{ID: repo.ID, URL: repo.URL}
		if !repo.ReleasesEnabled() {
			raw.Releases = &maven.RawArtifactPolicy{Enabled: false}
		}
		if !repo.SnapshotsEnabled() {
			raw.Snapshots = &maven.RawArtifactPolicy{Enabled: false}
		}
		repos = append(repos, raw)
	}
	if len(repos) == 0 {
		repos = append(repos, CentralRepository)
	}

	for i, repo := range repos {
		if mirror, ok := d.settings.MirrorURLFor(repo.ID, repo.URL); ok {
			repos[i].URL = mirror
		}
	}
	return repos
}

// fetchFromRepositories walks the repositories in order, trying the one that
// served the coordinate before first. A nil data return with nil error means
// not found anywhere.
func (d *Downloader) fetchFromRepositories(ctx context.Context, ga maven.GroupArtifact, repositories []maven.RawRepository, version, path string) ([]byte, maven.RawRepository, error) {
	snapshot := strings.HasSuffix(version, "-SNAPSHOT")

	ordered := repositories
	if cached, ok := d.cachedRepositoryFor(ga); ok {
		ordered = append([]maven.RawRepository{cached}, repositories...)
	}

	var lastErr error
	for _, repo := range ordered {
		if snapshot && !repo.SnapshotsEnabled() {
			continue
		}
		if !snapshot && !repo.ReleasesEnabled() {
			continue
		}

		data, err := d.fetch(ctx, joinURL(repo.URL, path))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			lastErr = err
			continue
		}

		d.repoForCoordinateMu.Lock()
		d.repoForCoordinate[ga] = repo
		d.repoForCoordinateMu.Unlock()

		slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "repository served artifact",
			slog.String("realm", Realm),
			slog.String("coordinate", ga.String()),
			slog.String("repository", repo.URL))
		return data, repo, nil
	}
	if lastErr != nil {
		return nil, maven.RawRepository{}, lastErr
	}
	return nil, maven.RawRepository{}, nil
}

func (d *Downloader) cachedRepositoryFor(ga maven.GroupArtifact) (maven.RawRepository, bool) {
	d.repoForCoordinateMu.RLock()
	defer d.repoForCoordinateMu.RUnlock()
	repo, ok := d.repoForCoordinate[ga]
	return repo, ok
}

// fetch GETs a URL, collapsing concurrent requests for the same URL into one.
// An https URL whose request fails for any reason other than a 404 is retried
// once over plain http.
func (d *Downloader) fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := d.fetchOnce(ctx, url)
	if err != nil && !errors.Is(err, ErrNotFound) && strings.HasPrefix(url, "https://") {
		if fallback, ferr := d.fetchOnce(ctx, "http://"+strings.TrimPrefix(url, "https://")); ferr == nil {
			return fallback, nil
		}
	}
	return data, err
}

func (d *Downloader) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	result, err, _ := d.group.Do(url, func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("building request for %q failed: %w", url, err)
		}
		resp, err := d.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("requesting %q failed: %w", url, err)
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, fmt.Errorf("%q: %w", url, ErrNotFound)
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("requesting %q failed with status %s", url, resp.Status)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading response of %q failed: %w", url, err)
		}
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func artifactPath(groupID, artifactID, version, classifier, extension string) string {
	name := artifactID + "-" + version
	if classifier != "" {
		name += "-" + classifier
	}
	return groupPath(groupID) + "/" + artifactID + "/" + version + "/" + name + "." + extension
}

func groupPath(groupID string) string {
	return strings.ReplaceAll(groupID, ".", "/")
}

func joinURL(base, path string) string {
	return strings.TrimSuffix(base, "/") + "/" + path
}
