package maven_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pomgraph/pomgraph/maven"
)

// fakeDownloader serves raw POMs from an in-memory index, the way a remote
// downloader would after parsing.
type fakeDownloader struct {
	poms     map[maven.GAV]*maven.RawPom
	versions map[maven.GroupArtifact][]string

	downloads []maven.GAV
}

func newFakeDownloader(poms ...*maven.RawPom) *fakeDownloader {
	d := &fakeDownloader{
		poms:     map[maven.GAV]*maven.RawPom{},
		versions: map[maven.GroupArtifact][]string{},
	}
	for _, pom := range poms {
		d.register(pom)
	}
	return d
}

func (d *fakeDownloader) register(pom *maven.RawPom) {
	d.poms[pom.GAV()] = pom
}

func (d *fakeDownloader) DownloadPom(_ context.Context, req maven.PomRequest) (*maven.RawPom, error) {
	gav := maven.GAV{GroupID: req.GroupID, ArtifactID: req.ArtifactID, Version: req.Version}
	d.downloads = append(d.downloads, gav)
	return d.poms[gav], nil
}

func (d *fakeDownloader) DownloadArtifact(context.Context, maven.GroupArtifact, string, string) ([]byte, error) {
	return nil, nil
}

func (d *fakeDownloader) FindVersions(_ context.Context, ga maven.GroupArtifact) ([]string, error) {
	return d.versions[ga], nil
}

func rawPom(groupID, artifactID, version string, dependencies ...maven.RawDependency) *maven.RawPom {
	return &maven.RawPom{
		SourcePath:   groupID + ":" + artifactID + ":" + version + "/pom.xml",
		GroupID:      groupID,
		ArtifactID:   artifactID,
		Version:      version,
		Dependencies: dependencies,
	}
}

func dep(groupID, artifactID, version string) maven.RawDependency {
	return maven.RawDependency{GroupID: groupID, ArtifactID: artifactID, Version: version}
}

func resolve(t *testing.T, downloader maven.Downloader, root *maven.RawPom, opts maven.Options) *maven.Pom {
	t.Helper()
	pom, err := maven.NewResolver(downloader, opts).Resolve(t.Context(), root)
	require.NoError(t, err)
	require.NotNil(t, pom)
	return pom
}

// dependencyGAVs flattens the direct dependencies to group:artifact:version.
func dependencyGAVs(pom *maven.Pom) []string {
	var gavs []string
	for _, dependency := range pom.Dependencies {
		gavs = append(gavs, dependency.Pom.GAV().String())
	}
	return gavs
}

func TestResolve_DirectDependency(t *testing.T) {
	downloader := newFakeDownloader(
		rawPom("com.example", "a", "1.0"),
	)
	root := rawPom("com.example", "root", "1.0", dep("com.example", "a", "1.0"))

	pom := resolve(t, downloader, root, maven.Options{})

	require.Len(t, pom.Dependencies, 1)
	assert.Equal(t, "com.example:a:1.0", pom.Dependencies[0].Pom.GAV().String())
	assert.Equal(t, maven.ScopeCompile, pom.Dependencies[0].Scope)
	assert.False(t, pom.Dependencies[0].Optional)
}

func TestResolve_NearerVersionWins(t *testing.T) {
	downloader := newFakeDownloader(
		rawPom("com.example", "a", "1.0", dep("com.example", "b", "2.0")),
		rawPom("com.example", "b", "1.0"),
		rawPom("com.example", "b", "2.0"),
	)
	root := rawPom("com.example", "root", "1.0",
		dep("com.example", "a", "1.0"),
		dep("com.example", "b", "1.0"),
	)

	pom := resolve(t, downloader, root, maven.Options{})

	assert.Equal(t, []string{"com.example:a:1.0", "com.example:b:1.0"}, dependencyGAVs(pom))

	// The farther declaration b:2.0 lost conflict resolution everywhere,
	// including inside a's subtree.
	require.Len(t, pom.Dependencies[0].Pom.Dependencies, 1)
	assert.Equal(t, "com.example:b:1.0", pom.Dependencies[0].Pom.Dependencies[0].Pom.GAV().String())
}

func TestResolve_ScopeTransitivity(t *testing.T) {
	cases := []struct {
		name     string
		scope    string
		expected []string
	}{
		{
			name:     "test dependencies of a dependency are pruned",
			scope:    "test",
			expected: nil,
		},
		{
			name:     "provided dependencies of a dependency are pruned",
			scope:    "provided",
			expected: nil,
		},
		{
			name:     "runtime dependencies of a dependency survive",
			scope:    "runtime",
			expected: []string{"com.example:b:1.0"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := maven.RawDependency{GroupID: "com.example", ArtifactID: "b", Version: "1.0", Scope: tc.scope}
			downloader := newFakeDownloader(
				rawPom("com.example", "a", "1.0", b),
				rawPom("com.example", "b", "1.0"),
			)
			root := rawPom("com.example", "root", "1.0", dep("com.example", "a", "1.0"))

			pom := resolve(t, downloader, root, maven.Options{})

			require.Len(t, pom.Dependencies, 1)
			assert.Equal(t, tc.expected, dependencyGAVs(pom.Dependencies[0].Pom))
		})
	}
}

func TestResolve_ImportedBOM(t *testing.T) {
	bom := &maven.RawPom{
		GroupID:    "com.example",
		ArtifactID: "bom",
		Version:    "1.0",
		DependencyManagement: []maven.RawDependency{
			{GroupID: "com.example", ArtifactID: "c", Version: "3.0"},
		},
	}
	downloader := newFakeDownloader(
		bom,
		rawPom("com.example", "c", "3.0"),
	)
	root := rawPom("com.example", "root", "1.0", dep("com.example", "c", ""))
	root.DependencyManagement = []maven.RawDependency{
		{GroupID: "com.example", ArtifactID: "bom", Version: "1.0", Type: "pom", Scope: "import"},
	}

	pom := resolve(t, downloader, root, maven.Options{})

	assert.Equal(t, []string{"com.example:c:3.0"}, dependencyGAVs(pom))

	require.Len(t, pom.DependencyManagement.Dependencies, 1)
	managed := pom.DependencyManagement.Dependencies[0]
	assert.Equal(t, maven.ManagedImported, managed.Kind)
	require.Len(t, managed.Descriptors(), 1)
	assert.Equal(t, "3.0", managed.Descriptors()[0].Version)
}

func TestResolve_ParentCycle(t *testing.T) {
	a := rawPom("com.example", "a", "1.0")
	a.Parent = &maven.RawParent{GroupID: "com.example", ArtifactID: "b", Version: "1.0"}
	b := rawPom("com.example", "b", "1.0")
	b.Parent = &maven.RawParent{GroupID: "com.example", ArtifactID: "a", Version: "1.0"}
	downloader := newFakeDownloader(a, b)

	_, err := maven.NewResolver(downloader, maven.Options{}).Resolve(t.Context(), a)
	require.Error(t, err)

	var cycleErr *maven.CycleError
	require.ErrorAs(t, err, &cycleErr)
	assert.Contains(t, err.Error(), "com.example:a:1.0")
	assert.Contains(t, err.Error(), "com.example:b:1.0")
}

func TestResolve_ParentCycleContinueOnError(t *testing.T) {
	a := rawPom("com.example", "a", "1.0")
	a.Parent = &maven.RawParent{GroupID: "com.example", ArtifactID: "b", Version: "1.0"}
	b := rawPom("com.example", "b", "1.0")
	b.Parent = &maven.RawParent{GroupID: "com.example", ArtifactID: "a", Version: "1.0"}
	downloader := newFakeDownloader(a, b)

	var observed []error
	pom := resolve(t, downloader, a, maven.Options{
		ContinueOnError: true,
		OnError:         func(err error) { observed = append(observed, err) },
	})

	// The cycle is cut: the innermost occurrence of a resolves without a
	// parent model instead of recursing forever.
	require.NotNil(t, pom.Parent)
	assert.Equal(t, "com.example:b:1.0", pom.Parent.GAV().String())
	require.NotNil(t, pom.Parent.Parent)
	assert.Nil(t, pom.Parent.Parent.Parent)

	require.NotEmpty(t, observed)
	var cycleErr *maven.CycleError
	assert.ErrorAs(t, observed[0], &cycleErr)
}

func TestResolve_PropertyIndirection(t *testing.T) {
	downloader := newFakeDownloader(
		rawPom("com.example", "d", "4.0"),
	)
	root := rawPom("com.example", "root", "1.0", dep("com.example", "d", ""))
	root.Properties = map[string]string{"lib.version": "4.0"}
	root.DependencyManagement = []maven.RawDependency{
		{GroupID: "com.example", ArtifactID: "d", Version: "${lib.version}"},
	}

	pom := resolve(t, downloader, root, maven.Options{})

	assert.Equal(t, []string{"com.example:d:4.0"}, dependencyGAVs(pom))
}

func TestResolve_OptionalDependencies(t *testing.T) {
	optional := maven.RawDependency{GroupID: "com.example", ArtifactID: "opt", Version: "1.0", Optional: true}

	cases := []struct {
		name            string
		resolveOptional bool
		expected        []string
	}{
		{name: "skipped by default", resolveOptional: false, expected: nil},
		{name: "followed when requested", resolveOptional: true, expected: []string{"com.example:opt:1.0"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			downloader := newFakeDownloader(rawPom("com.example", "opt", "1.0"))
			root := rawPom("com.example", "root", "1.0", optional)

			pom := resolve(t, downloader, root, maven.Options{ResolveOptional: tc.resolveOptional})
			assert.Equal(t, tc.expected, dependencyGAVs(pom))

			if tc.resolveOptional {
				assert.True(t, pom.Dependencies[0].Optional)
			}
		})
	}
}

func TestResolve_Exclusions(t *testing.T) {
	a := rawPom("com.example", "a", "1.0",
		dep("org.unwanted", "x", "1.0"),
		dep("com.example", "y", "1.0"),
	)
	downloader := newFakeDownloader(
		a,
		rawPom("org.unwanted", "x", "1.0"),
		rawPom("com.example", "y", "1.0"),
	)
	root := rawPom("com.example", "root", "1.0", maven.RawDependency{
		GroupID:    "com.example",
		ArtifactID: "a",
		Version:    "1.0",
		Exclusions: []maven.RawExclusion{{GroupID: "org.unwanted", ArtifactID: "*"}},
	})

	pom := resolve(t, downloader, root, maven.Options{})

	require.Len(t, pom.Dependencies, 1)
	assert.Equal(t, []string{"com.example:y:1.0"}, dependencyGAVs(pom.Dependencies[0].Pom))
}

func TestResolve_MalformedExclusionPatternIsIgnored(t *testing.T) {
	a := rawPom("com.example", "a", "1.0", dep("com.example", "y", "1.0"))
	downloader := newFakeDownloader(a, rawPom("com.example", "y", "1.0"))
	root := rawPom("com.example", "root", "1.0", maven.RawDependency{
		GroupID:    "com.example",
		ArtifactID: "a",
		Version:    "1.0",
		Exclusions: []maven.RawExclusion{{GroupID: "[", ArtifactID: "["}},
	})

	pom := resolve(t, downloader, root, maven.Options{})

	require.Len(t, pom.Dependencies, 1)
	assert.Equal(t, []string{"com.example:y:1.0"}, dependencyGAVs(pom.Dependencies[0].Pom))
}

func TestResolve_UnresolvedPropertyVersion(t *testing.T) {
	downloader := newFakeDownloader()
	root := rawPom("com.example", "root", "1.0", dep("com.example", "e", "${missing.version}"))

	_, err := maven.NewResolver(downloader, maven.Options{}).Resolve(t.Context(), root)
	require.Error(t, err)

	var parseErr *maven.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestResolve_UnresolvedPropertyVersionContinueOnError(t *testing.T) {
	downloader := newFakeDownloader(rawPom("com.example", "a", "1.0"))
	root := rawPom("com.example", "root", "1.0",
		dep("com.example", "e", "${missing.version}"),
		dep("com.example", "a", "1.0"),
	)

	var observed []error
	pom := resolve(t, downloader, root, maven.Options{
		ContinueOnError: true,
		OnError:         func(err error) { observed = append(observed, err) },
	})

	assert.Equal(t, []string{"com.example:a:1.0"}, dependencyGAVs(pom))
	require.Len(t, observed, 1)
}

func TestResolve_MissingArtifact(t *testing.T) {
	downloader := newFakeDownloader()
	root := rawPom("com.example", "root", "1.0", dep("com.example", "gone", "1.0"))

	_, err := maven.NewResolver(downloader, maven.Options{}).Resolve(t.Context(), root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "com.example:gone:1.0")
	assert.Contains(t, err.Error(), root.SourcePath)
}

func TestResolve_ParentDependenciesSpliced(t *testing.T) {
	parent := rawPom("com.example", "parent", "1.0", dep("com.example", "x", "1.0"))
	child := rawPom("com.example", "child", "1.0", dep("com.example", "y", "1.0"))
	child.Parent = &maven.RawParent{GroupID: "com.example", ArtifactID: "parent", Version: "1.0"}
	downloader := newFakeDownloader(
		parent,
		rawPom("com.example", "x", "1.0"),
		rawPom("com.example", "y", "1.0"),
	)

	pom := resolve(t, downloader, child, maven.Options{})

	require.NotNil(t, pom.Parent)
	assert.Equal(t, "com.example:parent:1.0", pom.Parent.GAV().String())
	assert.ElementsMatch(t, []string{"com.example:x:1.0", "com.example:y:1.0"}, dependencyGAVs(pom))
}

func TestResolve_GroupAndVersionInheritedFromParent(t *testing.T) {
	parent := rawPom("com.example", "parent", "2.0")
	child := &maven.RawPom{
		ArtifactID: "child",
		Parent:     &maven.RawParent{GroupID: "com.example", ArtifactID: "parent", Version: "2.0"},
	}
	downloader := newFakeDownloader(parent, child)

	pom := resolve(t, downloader, child, maven.Options{})

	assert.Equal(t, "com.example", pom.GroupID)
	assert.Equal(t, "child", pom.ArtifactID)
	assert.Equal(t, "2.0", pom.Version)
}

func TestResolve_VersionRange(t *testing.T) {
	downloader := newFakeDownloader(
		rawPom("com.example", "ranged", "1.5"),
	)
	downloader.versions[maven.GroupArtifact{GroupID: "com.example", ArtifactID: "ranged"}] =
		[]string{"0.9", "1.0", "1.5", "2.0", "not-a-version"}
	root := rawPom("com.example", "root", "1.0", dep("com.example", "ranged", "[1.0,2.0)"))

	pom := resolve(t, downloader, root, maven.Options{})

	assert.Equal(t, []string{"com.example:ranged:1.5"}, dependencyGAVs(pom))
}

func TestResolve_DiamondTerminatesAndDeduplicates(t *testing.T) {
	downloader := newFakeDownloader(
		rawPom("com.example", "a", "1.0", dep("com.example", "c", "1.0")),
		rawPom("com.example", "b", "1.0", dep("com.example", "c", "1.0")),
		rawPom("com.example", "c", "1.0"),
	)
	root := rawPom("com.example", "root", "1.0",
		dep("com.example", "a", "1.0"),
		dep("com.example", "b", "1.0"),
	)

	pom := resolve(t, downloader, root, maven.Options{})

	assert.Equal(t, []string{"com.example:a:1.0", "com.example:b:1.0"}, dependencyGAVs(pom))
	for _, dependency := range pom.Dependencies {
		assert.Equal(t, []string{"com.example:c:1.0"}, dependencyGAVs(dependency.Pom))
	}
}

func TestResolve_NonJarTypesPruned(t *testing.T) {
	downloader := newFakeDownloader(rawPom("com.example", "a", "1.0"))
	root := rawPom("com.example", "root", "1.0",
		maven.RawDependency{GroupID: "com.example", ArtifactID: "a", Version: "1.0", Type: "test-jar"},
	)

	pom := resolve(t, downloader, root, maven.Options{})
	assert.Empty(t, pom.Dependencies)
}

func TestResolve_Idempotent(t *testing.T) {
	build := func() (*fakeDownloader, *maven.RawPom) {
		downloader := newFakeDownloader(
			rawPom("com.example", "a", "1.0", dep("com.example", "b", "2.0")),
			rawPom("com.example", "b", "1.0"),
			rawPom("com.example", "b", "2.0"),
		)
		root := rawPom("com.example", "root", "1.0",
			dep("com.example", "a", "1.0"),
			dep("com.example", "b", "1.0"),
		)
		return downloader, root
	}

	type edge struct {
		gav   string
		scope maven.Scope
	}
	edges := func(pom *maven.Pom) map[edge]int {
		counts := map[edge]int{}
		var walk func(p *maven.Pom, seen map[maven.GAV]bool)
		walk = func(p *maven.Pom, seen map[maven.GAV]bool) {
			if seen[p.GAV()] {
				return
			}
			seen[p.GAV()] = true
			for _, dependency := range p.Dependencies {
				counts[edge{dependency.Pom.GAV().String(), dependency.Scope}]++
				walk(dependency.Pom, seen)
			}
		}
		walk(pom, map[maven.GAV]bool{})
		return counts
	}

	downloader1, root1 := build()
	downloader2, root2 := build()
	first := resolve(t, downloader1, root1, maven.Options{})
	second := resolve(t, downloader2, root2, maven.Options{})

	assert.Equal(t, edges(first), edges(second))
}

func TestResolve_ErrNotResolvable(t *testing.T) {
	downloader := newFakeDownloader()
	root := rawPom("com.example", "root", "1.0", dep("com.example", "gone", "1.0"))

	_, err := maven.NewResolver(downloader, maven.Options{}).Resolve(t.Context(), root)

	var parseErr *maven.ParseError
	require.True(t, errors.As(err, &parseErr))
}
