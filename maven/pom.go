package maven

import (
	"net/url"
)

// Pom is a fully resolved POM model: coordinates made concrete, parents
// resolved, dependencies transitively expanded under conflict resolution.
type Pom struct {
	SourcePath string

	GroupID         string
	ArtifactID      string
	Version         string
	SnapshotVersion string

	// Parent is nil for POMs without a parent declaration, and for POMs whose
	// parent could not be resolved under ContinueOnError.
	Parent *Pom

	Dependencies         []Dependency
	DependencyManagement DependencyManagement
	Licenses             []License
	Repositories         []Repository
	Properties           map[string]string
}

func (p *Pom) GAV() GAV {
	return GAV{GroupID: p.GroupID, ArtifactID: p.ArtifactID, Version: p.Version}
}

// Property returns the POM's own property for key. It does not consult the
// parent chain; callers that want inheritance walk Parent themselves.
func (p *Pom) Property(key string) (string, bool) {
	v, ok := p.Properties[key]
	return v, ok
}

// ManagedVersion returns the version pinned for the coordinate by this POM's
// dependencyManagement, walking imported BOMs transitively and then the
// parent chain. The empty string means no entry pins the coordinate.
func (p *Pom) ManagedVersion(groupID, artifactID string) string {
	for _, managed := range p.DependencyManagement.Dependencies {
		for _, desc := range managed.Descriptors() {
			if desc.GroupID == groupID && desc.ArtifactID == artifactID {
				return desc.Version
			}
		}
	}
	if p.Parent != nil {
		return p.Parent.ManagedVersion(groupID, artifactID)
	}
	return ""
}

// Dependency is an edge in the resolved graph: a dependency whose target POM
// has itself been transitively resolved.
type Dependency struct {
	Scope      Scope
	Classifier string
	// Optional is the disjunction of the dependency's own optional flag and
	// that of any ancestor on the path it was reached through.
	Optional bool
	// Pom is the resolved target.
	Pom *Pom
	// RequestedVersion is the version string as originally declared, before
	// placeholder expansion and conflict resolution. Empty when the version
	// came entirely from dependencyManagement.
	RequestedVersion string
	// Exclusions are the raw group/artifact patterns in force on the edge:
	// those declared on it plus those accumulated along the path to it.
	Exclusions []GroupArtifact
}

func (d Dependency) GroupID() string    { return d.Pom.GroupID }
func (d Dependency) ArtifactID() string { return d.Pom.ArtifactID }
func (d Dependency) Version() string    { return d.Pom.Version }

func (d Dependency) GroupArtifact() GroupArtifact {
	return GroupArtifact{GroupID: d.Pom.GroupID, ArtifactID: d.Pom.ArtifactID}
}

// Repository is a validated repository the resolved POM may be served from.
type Repository struct {
	URL       *url.URL
	Releases  bool
	Snapshots bool
}

// DependencyManagement is the resolved dependencyManagement section.
type DependencyManagement struct {
	Dependencies []ManagedDependency
}

// ManagedKind discriminates the two shapes a dependencyManagement entry can
// take.
type ManagedKind int

const (
	// ManagedDefined is a plain entry pinning one coordinate.
	ManagedDefined ManagedKind = iota
	// ManagedImported is a type=pom scope=import entry whose resolved BOM
	// contributes all of its own managed entries.
	ManagedImported
)

// ManagedDependency is one dependencyManagement entry. Kind selects which
// fields are meaningful: a defined entry carries its own descriptor fields,
// an imported entry delegates to the Imported BOM.
type ManagedDependency struct {
	Kind ManagedKind

	GroupID    string
	ArtifactID string
	Version    string
	// RequestedVersion is the declared version string before evaluation.
	RequestedVersion string
	Scope            Scope
	Classifier       string
	Exclusions       []GroupArtifact

	// Imported is the resolved BOM for ManagedImported entries, nil otherwise.
	Imported *Pom
}

// DependencyDescriptor is the flattened view of a managed entry used for
// version lookups.
type DependencyDescriptor struct {
	GroupID    string
	ArtifactID string
	Version    string
	Scope      Scope
	Classifier string
}

// Descriptors flattens the entry into the coordinates it manages: itself for
// a defined entry, the imported BOM's managed entries (transitively) for an
// imported one.
func (m ManagedDependency) Descriptors() []DependencyDescriptor {
	switch m.Kind {
	case ManagedImported:
		if m.Imported == nil {
			return nil
		}
		var descriptors []DependencyDescriptor
		for _, managed := range m.Imported.DependencyManagement.Dependencies {
			descriptors = append(descriptors, managed.Descriptors()...)
		}
		return descriptors
	default:
		return []DependencyDescriptor{{
			GroupID:    m.GroupID,
			ArtifactID: m.ArtifactID,
			Version:    m.Version,
			Scope:      m.Scope,
			Classifier: m.Classifier,
		}}
	}
}

// Properties exposes the property map an entry contributes to placeholder
// resolution: an imported BOM brings its merged properties along, a defined
// entry brings none.
func (m ManagedDependency) Properties() map[string]string {
	if m.Kind == ManagedImported && m.Imported != nil {
		return m.Imported.Properties
	}
	return nil
}
