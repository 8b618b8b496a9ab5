package maven

import (
	"context"
	"log/slog"
	neturl "net/url"
	"slices"
	"strings"

	slogcontext "github.com/veqryn/slog-context"
)

// assemble is the depth-first second pass: it turns the partial models
// produced by the breadth-first pass into the final resolved model, splicing
// inherited ancestor dependencies back in under their conflict-resolved
// versions. Tasks already on the path assemble to nil, cutting cycles.
func (r *Resolver) assemble(ctx context.Context, task *resolutionTask, assemblyStack []*resolutionTask) (*Pom, error) {
	taskID := task.key()
	for _, onPath := range assemblyStack {
		if onPath.key() == taskID {
			return nil, nil // cut cycles
		}
	}

	raw := task.rawPom
	memoKey := raw.GAV()
	if pom, ok := r.resolved[memoKey]; ok {
		return pom, nil
	}

	nextStack := append(slices.Clone(assemblyStack), task)

	partial, ok := r.partialResults[taskID]
	if !ok {
		r.resolved[memoKey] = nil
		return nil, nil
	}

	var dependencies []Dependency
	for _, depTask := range partial.dependencyTasks {
		optional := depTask.optional
		if !optional {
			for _, ancestor := range nextStack {
				if ancestor.optional {
					optional = true
					break
				}
			}
		}

		if !r.forParent {
			slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "assembling dependency",
				slog.String("realm", Realm),
				slog.String("pom", depTask.rawPom.GAV().String()),
				slog.Int("depth", len(assemblyStack)),
				slog.Bool("optional", optional))
		}

		resolved, err := r.assemble(ctx, depTask, nextStack)
		if err != nil {
			return nil, err
		}
		if resolved == nil {
			continue
		}

		dependencies = append(dependencies, Dependency{
			Scope:            depTask.scope,
			Classifier:       depTask.classifier,
			Optional:         optional,
			Pom:              resolved,
			RequestedVersion: depTask.requestedVersion,
			Exclusions:       depTask.exclusions,
		})
	}

	spliced, err := r.spliceAncestorDependencies(ctx, task, partial, nextStack)
	if err != nil {
		return nil, err
	}
	dependencies = append(dependencies, spliced...)

	groupID := raw.GroupID
	if groupID == "" && partial.parent != nil {
		groupID = partial.parent.GroupID
	}
	version := raw.Version
	if version == "" && partial.parent != nil {
		version = partial.parent.Version
	}

	var repositories []Repository
	for _, repo := range partial.repositories {
		parsed, parseErr := neturl.Parse(repo.URL)
		if parseErr != nil || !parsed.IsAbs() {
			if err := r.report(parseErrorf("malformed repository URL %q", repo.URL)); err != nil {
				return nil, err
			}
			continue
		}
		repositories = append(repositories, Repository{
			URL:       parsed,
			Releases:  repo.ReleasesEnabled(),
			Snapshots: repo.SnapshotsEnabled(),
		})
	}

	pom := &Pom{
		SourcePath:           partial.sourcePath,
		GroupID:              groupID,
		ArtifactID:           raw.ArtifactID,
		Version:              version,
		SnapshotVersion:      raw.SnapshotVersion,
		Parent:               partial.parent,
		Dependencies:         dependencies,
		DependencyManagement: partial.dependencyManagement,
		Licenses:             partial.licenses,
		Repositories:         repositories,
		Properties:           partial.properties,
	}
	r.resolved[memoKey] = pom
	return pom, nil
}

// spliceAncestorDependencies walks the resolved parent chain and re-adds each
// ancestor's own dependencies. An ancestor's dependency may have been
// overridden by conflict resolution somewhere in this subtree; when it was,
// the conflict-resolved POM is assembled in its place, falling back to the
// ancestor's original dependency if that assembly yields nothing.
func (r *Resolver) spliceAncestorDependencies(ctx context.Context, task *resolutionTask, partial *partialModel, nextStack []*resolutionTask) ([]Dependency, error) {
	var dependencies []Dependency
	for ancestor := partial.parent; ancestor != nil; ancestor = ancestor.Parent {
		for _, ancestorDep := range ancestor.Dependencies {
			scope := ancestorDep.Scope
			ga := ancestorDep.GroupArtifact()

			conflictResolvedVersion := r.versionSelection.
				selectVersion(scope, ga, ancestorDep.Version()).
				Resolve(ctx, r.downloader, task.repositories)

			if conflictResolvedVersion == ancestorDep.Version() {
				dependencies = append(dependencies, ancestorDep)
				continue
			}

			conflictResolvedRaw, err := r.downloader.DownloadPom(ctx, PomRequest{
				GroupID:      ga.GroupID,
				ArtifactID:   ga.ArtifactID,
				Version:      conflictResolvedVersion,
				Classifier:   ancestorDep.Classifier,
				Repositories: task.repositories,
			})
			if err != nil || conflictResolvedRaw == nil {
				if err != nil {
					if err := r.report(parseErrorf("unable to download %s:%s (%v)", ga, conflictResolvedVersion, err)); err != nil {
						return nil, err
					}
				}
				dependencies = append(dependencies, ancestorDep)
				continue
			}

			conflictResolved, err := r.assemble(ctx, &resolutionTask{
				scope:            scope,
				rawPom:           conflictResolvedRaw,
				exclusions:       ancestorDep.Exclusions,
				optional:         ancestorDep.Optional,
				classifier:       ancestorDep.Classifier,
				requestedVersion: ancestorDep.RequestedVersion,
				repositories:     task.repositories,
			}, nextStack)
			if err != nil {
				return nil, err
			}
			if conflictResolved == nil {
				// Never drop an inherited dependency: keep the ancestor's
				// declaration when the conflict-resolved model cannot be
				// assembled.
				dependencies = append(dependencies, ancestorDep)
				continue
			}

			dependencies = append(dependencies, Dependency{
				Scope:            scope,
				Classifier:       ancestorDep.Classifier,
				Optional:         ancestorDep.Optional,
				Pom:              conflictResolved,
				RequestedVersion: ancestorDep.RequestedVersion,
				Exclusions:       ancestorDep.Exclusions,
			})
		}
	}
	return dependencies, nil
}

// DependencyTree renders the resolved graph as an indented
// group:artifact:version listing, one line per edge, cycles elided.
func (p *Pom) DependencyTree() string {
	var b strings.Builder
	seen := map[GAV]bool{}
	var walk func(pom *Pom, depth int)
	walk = func(pom *Pom, depth int) {
		if seen[pom.GAV()] {
			return
		}
		seen[pom.GAV()] = true
		for _, dep := range pom.Dependencies {
			b.WriteString(strings.Repeat("  ", depth))
			b.WriteString(dep.Pom.GAV().String())
			b.WriteString(" [")
			b.WriteString(dep.Scope.String())
			b.WriteString("]")
			if dep.Optional {
				b.WriteString(" (optional)")
			}
			b.WriteString("\n")
			walk(dep.Pom, depth+1)
		}
		delete(seen, pom.GAV())
	}
	walk(p, 0)
	return b.String()
}
