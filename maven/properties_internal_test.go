package maven

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func evaluationContext() *partialModel {
	return &partialModel{
		rawPom: &RawPom{
			GroupID:    "com.example",
			ArtifactID: "lib",
			Version:    "1.0",
			Properties: map[string]string{"own.key": "own-value"},
		},
		properties: map[string]string{"own.key": "own-value"},
		parent: &Pom{
			GroupID:    "com.example",
			ArtifactID: "parent",
			Version:    "0.9",
			Properties: map[string]string{"parent.key": "parent-value"},
			Parent: &Pom{
				GroupID:    "com.example",
				ArtifactID: "grandparent",
				Version:    "0.1",
				Properties: map[string]string{"grandparent.key": "grandparent-value"},
			},
		},
	}
}

func TestPartialModel_Value(t *testing.T) {
	partial := evaluationContext()

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "non placeholder passes through", input: "1.2.3", expected: "1.2.3"},
		{name: "own property", input: "${own.key}", expected: "own-value"},
		{name: "parent property", input: "${parent.key}", expected: "parent-value"},
		{name: "grandparent property", input: "${grandparent.key}", expected: "grandparent-value"},
		{name: "unresolvable stays literal", input: "${no.such.key}", expected: "${no.such.key}"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, partial.value(tc.input))
		})
	}
}

func TestPartialModel_ValuePrefersOwnPropertiesOverAncestors(t *testing.T) {
	partial := evaluationContext()
	partial.properties["parent.key"] = "shadowed"

	assert.Equal(t, "shadowed", partial.value("${parent.key}"))
}

func TestPartialModel_ValueConsultsManagedDependencyProperties(t *testing.T) {
	partial := evaluationContext()
	partial.dependencyManagement = DependencyManagement{Dependencies: []ManagedDependency{{
		Kind: ManagedImported,
		Imported: &Pom{
			Properties: map[string]string{"bom.key": "bom-value"},
		},
	}}}

	assert.Equal(t, "bom-value", partial.value("${bom.key}"))
}

func TestPartialModel_ValueFallsBackToProcessEnvironment(t *testing.T) {
	t.Setenv("POMGRAPH_TEST_AMBIENT", "ambient-value")

	partial := evaluationContext()
	assert.Equal(t, "ambient-value", partial.value("${POMGRAPH_TEST_AMBIENT}"))
}

func TestPartialModel_GroupID(t *testing.T) {
	partial := evaluationContext()

	assert.Equal(t, "com.example", partial.groupID("${project.groupId}"))
	assert.Equal(t, "com.example", partial.groupID("${pom.groupId}"))
	assert.Equal(t, "com.example", partial.groupID("${project.parent.groupId}"))
	assert.Equal(t, "org.literal", partial.groupID("org.literal"))
	assert.Equal(t, "", partial.groupID(""))
}

func TestPartialModel_GroupIDFallsThroughToParent(t *testing.T) {
	partial := evaluationContext()
	partial.rawPom.GroupID = ""

	assert.Equal(t, "com.example", partial.groupID("${project.groupId}"))
}

func TestPartialModel_ArtifactIDNeverInheritsFromParent(t *testing.T) {
	partial := evaluationContext()
	partial.rawPom.ArtifactID = ""

	assert.Equal(t, "", partial.artifactID("${project.artifactId}"))
	assert.Equal(t, "parent", partial.artifactID("${project.parent.artifactId}"))
}

func TestPartialModel_Version(t *testing.T) {
	partial := evaluationContext()

	assert.Equal(t, "1.0", partial.version("${project.version}"))
	assert.Equal(t, "0.9", partial.version("${project.parent.version}"))
	assert.Equal(t, "2.5", partial.version("2.5"))
}

func TestPartialModel_VersionChainsThroughProperties(t *testing.T) {
	partial := evaluationContext()
	partial.properties["revision"] = "7.7"
	partial.rawPom.Version = "${revision}"

	assert.Equal(t, "7.7", partial.version("${project.version}"))
}

func TestPartialModel_VersionFallsThroughToParent(t *testing.T) {
	partial := evaluationContext()
	partial.rawPom.Version = ""

	assert.Equal(t, "0.9", partial.version("${project.version}"))
}

func TestExpandPlaceholders(t *testing.T) {
	props := map[string]string{"repo.host": "repo.example.com", "repo.port": "8081"}
	lookup := func(key string) (string, bool) {
		v, ok := props[key]
		return v, ok
	}

	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single placeholder", input: "https://${repo.host}/maven2", expected: "https://repo.example.com/maven2"},
		{name: "multiple placeholders", input: "https://${repo.host}:${repo.port}/maven2", expected: "https://repo.example.com:8081/maven2"},
		{name: "unknown stays literal", input: "https://${unknown.host}/maven2", expected: "https://${unknown.host}/maven2"},
		{name: "no placeholder", input: "https://repo.example.com", expected: "https://repo.example.com"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, expandPlaceholders(tc.input, lookup))
		})
	}
}
