package maven

import "strings"

// Scope is the lifecycle class of a dependency. It determines classpath
// membership and how far the dependency is visible down the tree.
//
// The declaration order is load-bearing: version conflict resolution walks
// scopes from ScopeNone upwards, so a lower ordinal means "broader" and a
// selection recorded there shadows selections at narrower scopes.
type Scope int

const (
	ScopeNone Scope = iota
	ScopeCompile
	ScopeProvided
	ScopeRuntime
	ScopeTest
	ScopeSystem
	// ScopeImport only ever appears on dependencyManagement entries of type
	// "pom". It never participates in conflict resolution.
	ScopeImport
	ScopeInvalid
)

var scopeNames = map[Scope]string{
	ScopeNone:     "none",
	ScopeCompile:  "compile",
	ScopeProvided: "provided",
	ScopeRuntime:  "runtime",
	ScopeTest:     "test",
	ScopeSystem:   "system",
	ScopeImport:   "import",
	ScopeInvalid:  "invalid",
}

func (s Scope) String() string {
	if name, ok := scopeNames[s]; ok {
		return name
	}
	return "invalid"
}

// ParseScope maps a scope string from a POM to a Scope. The empty string is
// a dependency declared without a scope, which Maven treats as compile.
// Unrecognized names map to ScopeInvalid rather than failing.
func ParseScope(name string) Scope {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "compile":
		return ScopeCompile
	case "provided":
		return ScopeProvided
	case "runtime":
		return ScopeRuntime
	case "test":
		return ScopeTest
	case "system":
		return ScopeSystem
	case "import":
		return ScopeImport
	case "none":
		return ScopeNone
	default:
		return ScopeInvalid
	}
}

// transitiveScopes encodes Maven's scope-in-subtree rules: the scope a
// dependency contributes when reached through a dependency of the containing
// scope. Missing entries mean the dependency is pruned from the subtree.
//
// https://maven.apache.org/guides/introduction/introduction-to-dependency-mechanism.html#dependency-scope
var transitiveScopes = map[Scope]map[Scope]Scope{
	ScopeCompile: {
		ScopeCompile: ScopeCompile,
		ScopeRuntime: ScopeRuntime,
	},
	ScopeProvided: {
		ScopeCompile: ScopeProvided,
		ScopeRuntime: ScopeProvided,
	},
	ScopeRuntime: {
		ScopeCompile: ScopeRuntime,
		ScopeRuntime: ScopeRuntime,
	},
	ScopeTest: {
		ScopeCompile: ScopeTest,
		ScopeRuntime: ScopeTest,
	},
}

// TransitiveOf answers which scope s contributes when it is declared inside a
// subtree reached through containing. The second return is false when the
// dependency does not propagate at all (e.g. test dependencies of a
// dependency, or provided anywhere below the root).
func (s Scope) TransitiveOf(containing Scope) (Scope, bool) {
	if containing == ScopeNone {
		// The root POM's own dependencies keep their declared scope.
		return s, true
	}
	inSubtree, ok := transitiveScopes[containing]
	if !ok {
		return ScopeNone, false
	}
	effective, ok := inSubtree[s]
	return effective, ok
}
