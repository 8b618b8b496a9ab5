// Package settings models the user-level configuration the resolver consumes:
// active profiles with their repositories and properties, repository mirrors,
// and server credentials. It is the programmatic equivalent of Maven's
// settings file, loaded from YAML.
package settings

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type Settings struct {
	ActiveProfiles []string  `yaml:"activeProfiles,omitempty"`
	Profiles       []Profile `yaml:"profiles,omitempty"`
	Mirrors        []Mirror  `yaml:"mirrors,omitempty"`
	Servers        []Server  `yaml:"servers,omitempty"`
}

type Profile struct {
	ID              string            `yaml:"id"`
	ActiveByDefault bool              `yaml:"activeByDefault,omitempty"`
	Repositories    []Repository      `yaml:"repositories,omitempty"`
	Properties      map[string]string `yaml:"properties,omitempty"`
}

type Repository struct {
	ID        string `yaml:"id,omitempty"`
	URL       string `yaml:"url"`
	Releases  *bool  `yaml:"releases,omitempty"`
	Snapshots *bool  `yaml:"snapshots,omitempty"`
}

// ReleasesEnabled reports whether release artifacts may be served. Absent
// means enabled.
func (r Repository) ReleasesEnabled() bool {
	return r.Releases == nil || *r.Releases
}

// SnapshotsEnabled reports whether snapshot artifacts may be served. Absent
// means enabled.
func (r Repository) SnapshotsEnabled() bool {
	return r.Snapshots == nil || *r.Snapshots
}

// Mirror redirects requests for matching repositories to another URL.
// MirrorOf uses Maven's matching syntax: "*" for everything, "external:*"
// for everything not on localhost or a file URL, a comma-separated list of
// repository ids, and "!id" entries to exempt a repository.
type Mirror struct {
	ID       string `yaml:"id,omitempty"`
	URL      string `yaml:"url"`
	MirrorOf string `yaml:"mirrorOf"`
}

type Server struct {
	ID       string `yaml:"id"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// Load reads settings from a YAML file.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings file %q failed: %w", path, err)
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parsing settings file %q failed: %w", path, err)
	}
	return &s, nil
}

// ActiveRepositories returns the repositories of every profile active under
// the union of the settings' own activeProfiles and the given extra profiles,
// in declaration order.
func (s *Settings) ActiveRepositories(extraProfiles []string) []Repository {
	if s == nil {
		return nil
	}
	var repos []Repository
	for _, profile := range s.Profiles {
		if s.profileActive(profile, extraProfiles) {
			repos = append(repos, profile.Repositories...)
		}
	}
	return repos
}

// ActiveProperties merges the properties of every active profile.
func (s *Settings) ActiveProperties(extraProfiles []string) map[string]string {
	if s == nil {
		return nil
	}
	props := map[string]string{}
	for _, profile := range s.Profiles {
		if s.profileActive(profile, extraProfiles) {
			for k, v := range profile.Properties {
				props[k] = v
			}
		}
	}
	return props
}

func (s *Settings) profileActive(profile Profile, extraProfiles []string) bool {
	if profile.ActiveByDefault {
		return true
	}
	for _, name := range s.ActiveProfiles {
		if name == profile.ID {
			return true
		}
	}
	for _, name := range extraProfiles {
		if name == profile.ID {
			return true
		}
	}
	return false
}

// MirrorURLFor returns the mirror URL to use in place of the repository with
// the given id and URL. The first matching mirror wins. The second return is
// false when no mirror applies.
func (s *Settings) MirrorURLFor(repoID, repoURL string) (string, bool) {
	if s == nil {
		return "", false
	}
	for _, mirror := range s.Mirrors {
		if mirror.matches(repoID, repoURL) {
			return mirror.URL, true
		}
	}
	return "", false
}

func (m Mirror) matches(repoID, repoURL string) bool {
	matched := false
	for _, pattern := range strings.Split(m.MirrorOf, ",") {
		pattern = strings.TrimSpace(pattern)
		switch {
		case pattern == "":
			continue
		case strings.HasPrefix(pattern, "!"):
			if pattern[1:] == repoID {
				return false
			}
		case pattern == "*":
			matched = true
		case pattern == "external:*":
			if isExternal(repoURL) {
				matched = true
			}
		case pattern == repoID:
			matched = true
		}
	}
	return matched
}

func isExternal(repoURL string) bool {
	lower := strings.ToLower(repoURL)
	if strings.HasPrefix(lower, "file:") {
		return false
	}
	return !strings.Contains(lower, "://localhost") && !strings.Contains(lower, "://127.0.0.1")
}
