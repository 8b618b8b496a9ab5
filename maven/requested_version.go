package maven

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Masterminds/semver/v3"
	slogcontext "github.com/veqryn/slog-context"
)

// RequestedVersion is one coordinate's entry in the version-selection table.
// It remembers the version the declaration asked for and, when a declaration
// nearer the root already pinned the same coordinate, points at that nearer
// selection. Resolution always prefers the nearer chain.
type RequestedVersion struct {
	GroupArtifact GroupArtifact

	nearer  *RequestedVersion
	version string
}

func newRequestedVersion(ga GroupArtifact, nearer *RequestedVersion, version string) *RequestedVersion {
	return &RequestedVersion{GroupArtifact: ga, nearer: nearer, version: version}
}

// Resolve produces the concrete version this selection stands for. A nearer
// ancestor selection wins outright. A Maven range literal is resolved against
// the coordinate's version metadata; when the metadata cannot be fetched or
// the range cannot be parsed the literal is kept as a hard version.
func (v *RequestedVersion) Resolve(ctx context.Context, downloader Downloader, repositories []RawRepository) string {
	if v.nearer != nil {
		return v.nearer.Resolve(ctx, downloader, repositories)
	}
	if !isRangeLiteral(v.version) {
		return v.version
	}

	rng, err := parseVersionRange(v.version)
	if err != nil {
		slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "treating unparsable version range as hard version",
			slog.String("realm", Realm),
			slog.String("coordinate", v.GroupArtifact.String()),
			slog.String("range", v.version))
		return v.version
	}

	available, err := downloader.FindVersions(ctx, v.GroupArtifact)
	if err != nil || len(available) == 0 {
		return v.version
	}

	var selected *semver.Version
	var selectedRaw string
	for _, candidate := range available {
		parsed, err := semver.NewVersion(candidate)
		if err != nil {
			continue
		}
		if !rng.contains(parsed) {
			continue
		}
		if selected == nil || parsed.GreaterThan(selected) {
			selected = parsed
			selectedRaw = candidate
		}
	}
	if selected == nil {
		return v.version
	}
	return selectedRaw
}

func isRangeLiteral(version string) bool {
	return strings.HasPrefix(version, "[") || strings.HasPrefix(version, "(")
}

// versionRange is a parsed Maven range expression: a union of restrictions,
// any one of which may admit a version.
type versionRange struct {
	restrictions []versionRestriction
}

type versionRestriction struct {
	lower          *semver.Version
	lowerInclusive bool
	upper          *semver.Version
	upperInclusive bool
}

func (r versionRange) contains(v *semver.Version) bool {
	for _, restriction := range r.restrictions {
		if restriction.contains(v) {
			return true
		}
	}
	return false
}

func (r versionRestriction) contains(v *semver.Version) bool {
	if r.lower != nil {
		if cmp := v.Compare(r.lower); cmp < 0 || (cmp == 0 && !r.lowerInclusive) {
			return false
		}
	}
	if r.upper != nil {
		if cmp := v.Compare(r.upper); cmp > 0 || (cmp == 0 && !r.upperInclusive) {
			return false
		}
	}
	return true
}

// parseVersionRange parses Maven range syntax: "[1.0,2.0)", "(,1.0]",
// "[1.5,)", the exact pin "[1.0]", and comma-joined unions of these.
func parseVersionRange(spec string) (versionRange, error) {
	var rng versionRange
	rest := spec
	for rest != "" {
		if !strings.HasPrefix(rest, "[") && !strings.HasPrefix(rest, "(") {
			return versionRange{}, fmt.Errorf("version range %q: restriction must start with '[' or '('", spec)
		}
		end := strings.IndexAny(rest, "])")
		if end < 0 {
			return versionRange{}, fmt.Errorf("version range %q: unclosed restriction", spec)
		}
		restriction, err := parseRestriction(rest[:end+1])
		if err != nil {
			return versionRange{}, fmt.Errorf("version range %q: %w", spec, err)
		}
		rng.restrictions = append(rng.restrictions, restriction)

		rest = rest[end+1:]
		rest = strings.TrimPrefix(rest, ",")
	}
	if len(rng.restrictions) == 0 {
		return versionRange{}, fmt.Errorf("version range %q: empty", spec)
	}
	return rng, nil
}

func parseRestriction(spec string) (versionRestriction, error) {
	restriction := versionRestriction{
		lowerInclusive: strings.HasPrefix(spec, "["),
		upperInclusive: strings.HasSuffix(spec, "]"),
	}
	inner := spec[1 : len(spec)-1]

	lowerSpec, upperSpec, bounded := strings.Cut(inner, ",")
	if !bounded {
		// "[1.0]" pins exactly one version.
		exact, err := semver.NewVersion(lowerSpec)
		if err != nil {
			return versionRestriction{}, fmt.Errorf("invalid version %q: %w", lowerSpec, err)
		}
		restriction.lower, restriction.upper = exact, exact
		restriction.lowerInclusive, restriction.upperInclusive = true, true
		return restriction, nil
	}

	if lowerSpec != "" {
		lower, err := semver.NewVersion(lowerSpec)
		if err != nil {
			return versionRestriction{}, fmt.Errorf("invalid lower bound %q: %w", lowerSpec, err)
		}
		restriction.lower = lower
	}
	if upperSpec != "" {
		upper, err := semver.NewVersion(upperSpec)
		if err != nil {
			return versionRestriction{}, fmt.Errorf("invalid upper bound %q: %w", upperSpec, err)
		}
		restriction.upper = upper
	}
	return restriction, nil
}

// versionSelection tracks, per scope and coordinate, which version a
// declaration nearer the root already selected. Scopes are consulted in
// ascending order so a selection at a broader scope shadows narrower ones.
type versionSelection struct {
	byScope [ScopeSystem + 1]map[GroupArtifact]*RequestedVersion
}

func newVersionSelection() *versionSelection {
	table := &versionSelection{}
	for scope := range table.byScope {
		table.byScope[scope] = make(map[GroupArtifact]*RequestedVersion)
	}
	return table
}

// selectVersion answers the "nearer wins" query for a coordinate seen at the
// given scope: scanning from the broadest scope up to and including scope,
// the first prior selection becomes the nearer chain of the returned entry.
// The call itself never writes; the breadth-first worker records the entry
// with put once the child task exists.
func (t *versionSelection) selectVersion(scope Scope, ga GroupArtifact, version string) *RequestedVersion {
	if scope < ScopeNone || scope > ScopeSystem {
		return newRequestedVersion(ga, nil, version)
	}

	var nearer *RequestedVersion
	for s := ScopeNone; s <= scope; s++ {
		if requested, ok := t.byScope[s][ga]; ok {
			nearer = requested
			break
		}
	}

	if existing, ok := t.byScope[scope][ga]; ok {
		return existing
	}
	return newRequestedVersion(ga, nearer, version)
}

func (t *versionSelection) put(scope Scope, ga GroupArtifact, requested *RequestedVersion) {
	if scope < ScopeNone || scope > ScopeSystem {
		return
	}
	t.byScope[scope][ga] = requested
}
