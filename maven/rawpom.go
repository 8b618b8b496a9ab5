package maven

// RawPom is the unresolved form of a POM as produced by a parser. Group,
// artifact and version may each be empty and inherited from the parent.
// Nothing in here has had property placeholders evaluated yet.
type RawPom struct {
	// SourcePath records where the POM came from (a file path or URL). It is
	// carried through resolution for error messages only.
	SourcePath string `yaml:"sourcePath,omitempty" json:"sourcePath,omitempty"`

	GroupID         string `yaml:"groupId,omitempty" json:"groupId,omitempty"`
	ArtifactID      string `yaml:"artifactId" json:"artifactId"`
	Version         string `yaml:"version,omitempty" json:"version,omitempty"`
	SnapshotVersion string `yaml:"snapshotVersion,omitempty" json:"snapshotVersion,omitempty"`

	Parent *RawParent `yaml:"parent,omitempty" json:"parent,omitempty"`

	Dependencies         []RawDependency `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	DependencyManagement []RawDependency `yaml:"dependencyManagement,omitempty" json:"dependencyManagement,omitempty"`
	Repositories         []RawRepository `yaml:"repositories,omitempty" json:"repositories,omitempty"`
	Licenses             []RawLicense    `yaml:"licenses,omitempty" json:"licenses,omitempty"`

	Properties map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`

	Profiles []RawProfile `yaml:"profiles,omitempty" json:"profiles,omitempty"`
}

// GAV returns the declared coordinates. Fields inherited from the parent are
// empty here; the assembler fills them in on the resolved model.
func (p *RawPom) GAV() GAV {
	return GAV{GroupID: p.GroupID, ArtifactID: p.ArtifactID, Version: p.Version}
}

// ActiveDependencies returns the POM's dependencies plus those contributed by
// active profiles, in declaration order. Declaration order is preserved
// because it feeds the breadth-first traversal and with it conflict
// resolution.
func (p *RawPom) ActiveDependencies(activeProfiles []string) []RawDependency {
	deps := make([]RawDependency, 0, len(p.Dependencies))
	deps = append(deps, p.Dependencies...)
	for _, profile := range p.Profiles {
		if profile.isActive(activeProfiles) {
			deps = append(deps, profile.Dependencies...)
		}
	}
	return deps
}

// ActiveProperties merges the POM's properties with those of active profiles,
// profile values overriding base values.
func (p *RawPom) ActiveProperties(activeProfiles []string) map[string]string {
	props := make(map[string]string, len(p.Properties))
	for k, v := range p.Properties {
		props[k] = v
	}
	for _, profile := range p.Profiles {
		if profile.isActive(activeProfiles) {
			for k, v := range profile.Properties {
				props[k] = v
			}
		}
	}
	return props
}

// ActiveRepositories returns the POM's repositories plus those contributed by
// active profiles, in declaration order.
func (p *RawPom) ActiveRepositories(activeProfiles []string) []RawRepository {
	repos := make([]RawRepository, 0, len(p.Repositories))
	repos = append(repos, p.Repositories...)
	for _, profile := range p.Profiles {
		if profile.isActive(activeProfiles) {
			repos = append(repos, profile.Repositories...)
		}
	}
	return repos
}

// RawParent is a POM's parent declaration.
type RawParent struct {
	GroupID      string `yaml:"groupId" json:"groupId"`
	ArtifactID   string `yaml:"artifactId" json:"artifactId"`
	Version      string `yaml:"version" json:"version"`
	RelativePath string `yaml:"relativePath,omitempty" json:"relativePath,omitempty"`
}

func (p *RawParent) GAV() GAV {
	return GAV{GroupID: p.GroupID, ArtifactID: p.ArtifactID, Version: p.Version}
}

// RawDependency is a single dependency or dependencyManagement entry. The
// version may contain unexpanded ${...} placeholders.
type RawDependency struct {
	GroupID    string         `yaml:"groupId" json:"groupId"`
	ArtifactID string         `yaml:"artifactId" json:"artifactId"`
	Version    string         `yaml:"version,omitempty" json:"version,omitempty"`
	Type       string         `yaml:"type,omitempty" json:"type,omitempty"`
	Classifier string         `yaml:"classifier,omitempty" json:"classifier,omitempty"`
	Scope      string         `yaml:"scope,omitempty" json:"scope,omitempty"`
	Optional   bool           `yaml:"optional,omitempty" json:"optional,omitempty"`
	Exclusions []RawExclusion `yaml:"exclusions,omitempty" json:"exclusions,omitempty"`
}

// RawExclusion is a group/artifact exclusion pattern. A '*' in either field
// matches any character sequence.
type RawExclusion struct {
	GroupID    string `yaml:"groupId" json:"groupId"`
	ArtifactID string `yaml:"artifactId" json:"artifactId"`
}

// RawRepository is a repository declaration. Its URL may contain unexpanded
// ${...} placeholders until the resolution worker substitutes them.
type RawRepository struct {
	ID        string             `yaml:"id,omitempty" json:"id,omitempty"`
	URL       string             `yaml:"url" json:"url"`
	Releases  *RawArtifactPolicy `yaml:"releases,omitempty" json:"releases,omitempty"`
	Snapshots *RawArtifactPolicy `yaml:"snapshots,omitempty" json:"snapshots,omitempty"`
}

// ReleasesEnabled reports whether release artifacts may be resolved from the
// repository. An absent policy means enabled.
func (r RawRepository) ReleasesEnabled() bool {
	return r.Releases == nil || r.Releases.Enabled
}

// SnapshotsEnabled reports whether snapshot artifacts may be resolved from
// the repository. An absent policy means enabled.
func (r RawRepository) SnapshotsEnabled() bool {
	return r.Snapshots == nil || r.Snapshots.Enabled
}

type RawArtifactPolicy struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

type RawLicense struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
}

// RawProfile carries the subset of a profile the resolver cares about:
// extra dependencies, properties and repositories that become active when
// the profile is.
type RawProfile struct {
	ID              string            `yaml:"id" json:"id"`
	ActiveByDefault bool              `yaml:"activeByDefault,omitempty" json:"activeByDefault,omitempty"`
	Dependencies    []RawDependency   `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`
	Properties      map[string]string `yaml:"properties,omitempty" json:"properties,omitempty"`
	Repositories    []RawRepository   `yaml:"repositories,omitempty" json:"repositories,omitempty"`
}

func (p *RawProfile) isActive(activeProfiles []string) bool {
	if p.ActiveByDefault {
		return true
	}
	for _, name := range activeProfiles {
		if name == p.ID {
			return true
		}
	}
	return false
}
