package settings_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pomgraph/pomgraph/maven/settings"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
activeProfiles:
  - corporate
profiles:
  - id: corporate
    repositories:
      - id: corp-releases
        url: https://repo.corp.example.com/releases
        snapshots: false
    properties:
      corp.region: eu-central
mirrors:
  - id: corp-mirror
    url: https://mirror.corp.example.com/maven2
    mirrorOf: central
servers:
  - id: corp-releases
    username: deployer
    password: hunter2
`), 0o600))

	s, err := settings.Load(path)
	require.NoError(t, err)

	repos := s.ActiveRepositories(nil)
	require.Len(t, repos, 1)
	assert.Equal(t, "corp-releases", repos[0].ID)
	assert.True(t, repos[0].ReleasesEnabled())
	assert.False(t, repos[0].SnapshotsEnabled())

	assert.Equal(t, map[string]string{"corp.region": "eu-central"}, s.ActiveProperties(nil))

	url, ok := s.MirrorURLFor("central", "https://repo.maven.apache.org/maven2")
	require.True(t, ok)
	assert.Equal(t, "https://mirror.corp.example.com/maven2", url)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := settings.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestActiveRepositories(t *testing.T) {
	s := &settings.Settings{
		ActiveProfiles: []string{"a"},
		Profiles: []settings.Profile{
			{ID: "a", Repositories: []settings.Repository{{ID: "repo-a", URL: "https://a.example.com"}}},
			{ID: "b", Repositories: []settings.Repository{{ID: "repo-b", URL: "https://b.example.com"}}},
			{ID: "c", ActiveByDefault: true, Repositories: []settings.Repository{{ID: "repo-c", URL: "https://c.example.com"}}},
		},
	}

	ids := func(repos []settings.Repository) []string {
		var out []string
		for _, repo := range repos {
			out = append(out, repo.ID)
		}
		return out
	}

	assert.Equal(t, []string{"repo-a", "repo-c"}, ids(s.ActiveRepositories(nil)))
	assert.Equal(t, []string{"repo-a", "repo-b", "repo-c"}, ids(s.ActiveRepositories([]string{"b"})))
}

func TestActiveRepositoriesNilSettings(t *testing.T) {
	var s *settings.Settings
	assert.Nil(t, s.ActiveRepositories(nil))
}

func TestMirrorMatching(t *testing.T) {
	cases := []struct {
		name     string
		mirrorOf string
		repoID   string
		repoURL  string
		expected bool
	}{
		{name: "star matches everything", mirrorOf: "*", repoID: "central", repoURL: "https://repo.maven.apache.org/maven2", expected: true},
		{name: "exact id", mirrorOf: "central", repoID: "central", repoURL: "https://repo.maven.apache.org/maven2", expected: true},
		{name: "id mismatch", mirrorOf: "central", repoID: "other", repoURL: "https://other.example.com", expected: false},
		{name: "comma list", mirrorOf: "central,other", repoID: "other", repoURL: "https://other.example.com", expected: true},
		{name: "negation wins", mirrorOf: "*,!internal", repoID: "internal", repoURL: "https://internal.example.com", expected: false},
		{name: "external star skips localhost", mirrorOf: "external:*", repoID: "local", repoURL: "http://localhost:8081/repo", expected: false},
		{name: "external star skips file urls", mirrorOf: "external:*", repoID: "file", repoURL: "file:///var/maven", expected: false},
		{name: "external star matches remote", mirrorOf: "external:*", repoID: "central", repoURL: "https://repo.maven.apache.org/maven2", expected: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := &settings.Settings{Mirrors: []settings.Mirror{{
				ID:       "mirror",
				URL:      "https://mirror.example.com/maven2",
				MirrorOf: tc.mirrorOf,
			}}}

			_, ok := s.MirrorURLFor(tc.repoID, tc.repoURL)
			assert.Equal(t, tc.expected, ok)
		})
	}
}

func TestMirrorFirstMatchWins(t *testing.T) {
	s := &settings.Settings{Mirrors: []settings.Mirror{
		{ID: "first", URL: "https://first.example.com", MirrorOf: "central"},
		{ID: "second", URL: "https://second.example.com", MirrorOf: "*"},
	}}

	url, ok := s.MirrorURLFor("central", "https://repo.maven.apache.org/maven2")
	require.True(t, ok)
	assert.Equal(t, "https://first.example.com", url)
}
