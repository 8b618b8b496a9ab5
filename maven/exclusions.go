package maven

import "github.com/gobwas/glob"

// excluded reports whether the dependency's literal group and artifact
// strings match any of the accumulated exclusion patterns. Patterns use '*'
// as a wildcard for any character sequence. A pattern that fails to compile
// is skipped, matching nothing.
func excluded(dep RawDependency, exclusions []GroupArtifact) bool {
	for _, exclusion := range exclusions {
		if globMatch(exclusion.GroupID, dep.GroupID) && globMatch(exclusion.ArtifactID, dep.ArtifactID) {
			return true
		}
	}
	return false
}

func globMatch(pattern, s string) bool {
	g, err := glob.Compile(pattern)
	if err != nil {
		return false
	}
	return g.Match(s)
}
