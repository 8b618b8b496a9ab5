package maven

import (
	"context"
	"fmt"
	"log/slog"
	neturl "net/url"
	"slices"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	slogcontext "github.com/veqryn/slog-context"

	"github.com/pomgraph/pomgraph/maven/settings"
)

const Realm = "maven.resolver"

// Options configures a Resolver at construction.
type Options struct {
	// ForParent marks resolvers spawned for parents and import BOMs. It only
	// influences logging and metrics.
	ForParent bool

	// ActiveProfiles selects which POM profiles contribute dependencies,
	// properties and repositories.
	ActiveProfiles []string

	// Settings supplies mirrors and the settings-level repositories, which are
	// consulted after the repositories a POM declares.
	Settings *settings.Settings

	// ResolveOptional controls whether optional dependencies are followed.
	ResolveOptional bool

	// ContinueOnError converts non-fatal resolution errors into pruned
	// branches instead of failing the resolve call.
	ContinueOnError bool

	// OnError observes every resolution error, suppressed or not.
	OnError func(error)
}

// Resolver computes the transitive dependency graph of a raw POM.
//
// Resolution is performed breadth-first because Maven's default conflict
// resolution prefers nearer versions: proceeding level by level lets the
// resolver avoid descending into subtrees that have no chance of being
// selected. A Resolver holds per-resolution state and is not safe for
// concurrent use; construct one per resolve call.
type Resolver struct {
	downloader Downloader

	forParent       bool
	activeProfiles  []string
	settings        *settings.Settings
	resolveOptional bool
	continueOnError bool
	onError         func(error)

	workQueue        []*resolutionTask
	versionSelection *versionSelection

	// resolved memoizes assembly results by declared coordinates. A present
	// nil entry means "computed as not resolvable"; both states are final.
	resolved       map[GAV]*Pom
	partialResults map[taskKey]*partialModel
}

// NewResolver creates a resolver around the given downloader.
func NewResolver(downloader Downloader, opts Options) *Resolver {
	return &Resolver{
		downloader:       downloader,
		forParent:        opts.ForParent,
		activeProfiles:   opts.ActiveProfiles,
		settings:         opts.Settings,
		resolveOptional:  opts.ResolveOptional,
		continueOnError:  opts.ContinueOnError,
		onError:          opts.OnError,
		versionSelection: newVersionSelection(),
		resolved:         make(map[GAV]*Pom),
		partialResults:   make(map[taskKey]*partialModel),
	}
}

// nested constructs the resolver used for parent POMs and import BOMs: fresh
// traversal state, shared downloader and configuration.
func (r *Resolver) nested() *Resolver {
	return NewResolver(r.downloader, Options{
		ForParent:       true,
		ActiveProfiles:  r.activeProfiles,
		Settings:        r.settings,
		ResolveOptional: r.resolveOptional,
		ContinueOnError: r.continueOnError,
		OnError:         r.onError,
	})
}

// Resolve computes the fully resolved model for a raw POM: every transitive
// dependency with its conflict-resolved version, inherited parent
// dependencies spliced in, and property placeholders evaluated.
func (r *Resolver) Resolve(ctx context.Context, raw *RawPom) (*Pom, error) {
	var repositories []RawRepository
	for _, repo := range r.settings.ActiveRepositories(r.activeProfiles) {
		repositories = append(repositories, settingsRepository(repo))
	}

	pom, err := r.resolve(ctx, raw, ScopeNone, raw.Version, repositories, nil)
	if err != nil {
		return nil, err
	}
	if pom == nil {
		return nil, parseErrorf("unable to resolve %s", raw.GAV())
	}
	return pom, nil
}

func (r *Resolver) resolve(ctx context.Context, raw *RawPom, scope Scope, requestedVersion string, repositories []RawRepository, seenParents []GAV) (*Pom, error) {
	timer := prometheus.NewTimer(resolutionDurationHistogram.WithLabelValues(raw.GroupID, raw.ArtifactID))
	defer timer.ObserveDuration()

	root := &resolutionTask{
		scope:            scope,
		rawPom:           raw,
		requestedVersion: requestedVersion,
		repositories:     repositories,
		seenParents:      seenParents,
	}

	r.workQueue = append(r.workQueue, root)
	for len(r.workQueue) > 0 {
		task := r.workQueue[0]
		r.workQueue = r.workQueue[1:]
		if err := r.processTask(ctx, task); err != nil {
			return nil, err
		}
	}

	return r.assemble(ctx, root, nil)
}

// report surfaces err to the OnError observer and decides whether resolution
// continues: a nil return means the error was suppressed and the caller
// prunes the current branch, a non-nil return aborts the resolve call.
func (r *Resolver) report(err error) error {
	if err == nil {
		return nil
	}
	if r.onError != nil {
		r.onError(err)
	}
	if r.continueOnError {
		return nil
	}
	return wrapParseError(err)
}

// resolutionTask is one node of the breadth-first traversal. Tasks are
// created by the worker and never mutated afterwards.
type resolutionTask struct {
	scope  Scope
	rawPom *RawPom
	// exclusions accumulated along the path, as raw glob patterns.
	exclusions       []GroupArtifact
	optional         bool
	classifier       string
	requestedVersion string

	// repositories active for this subtree. Merged once at enqueue time,
	// immutable afterwards; not part of task identity.
	repositories []RawRepository

	// seenParents are the parent coordinates sighted on the way here, in
	// sighting order, used to cut parent cycles. Not part of task identity.
	seenParents []GAV
}

// taskKey is the comparable identity of a task: two tasks are the same node
// when scope, POM, exclusions, optional flag, classifier and requested
// version all match.
type taskKey struct {
	scope            Scope
	rawPom           *RawPom
	exclusions       string
	optional         bool
	classifier       string
	requestedVersion string
}

func (t *resolutionTask) key() taskKey {
	return taskKey{
		scope:            t.scope,
		rawPom:           t.rawPom,
		exclusions:       canonicalExclusions(t.exclusions),
		optional:         t.optional,
		classifier:       t.classifier,
		requestedVersion: t.requestedVersion,
	}
}

func canonicalExclusions(exclusions []GroupArtifact) string {
	if len(exclusions) == 0 {
		return ""
	}
	patterns := make([]string, len(exclusions))
	for i, exclusion := range exclusions {
		patterns[i] = exclusion.GroupID + ":" + exclusion.ArtifactID
	}
	sort.Strings(patterns)
	return strings.Join(patterns, "\n")
}

func (r *Resolver) processTask(ctx context.Context, task *resolutionTask) error {
	if _, ok := r.partialResults[task.key()]; ok {
		return nil // already resolved this subtree
	}

	raw := task.rawPom
	partial := &partialModel{sourcePath: raw.SourcePath, rawPom: raw}

	r.processProperties(task, partial)
	if err := r.processRepositories(task, partial); err != nil {
		return err
	}
	if err := r.processParent(ctx, task, partial); err != nil {
		return err
	}
	if err := r.processDependencyManagement(ctx, task, partial); err != nil {
		return err
	}
	r.processLicenses(task, partial)
	if err := r.processDependencies(ctx, task, partial); err != nil {
		return err
	}

	r.partialResults[task.key()] = partial

	slogcontext.FromCtx(ctx).Log(ctx, slog.LevelDebug, "resolved partial model",
		slog.String("realm", Realm),
		slog.String("pom", raw.GAV().String()),
		slog.Int("dependencies", len(partial.dependencyTasks)),
		slog.Bool("forParent", r.forParent))
	return nil
}

func (r *Resolver) processProperties(task *resolutionTask, partial *partialModel) {
	partial.properties = task.rawPom.ActiveProperties(r.activeProfiles)
}

func (r *Resolver) processRepositories(task *resolutionTask, partial *partialModel) error {
	var repositories []RawRepository
	for _, repo := range task.rawPom.ActiveRepositories(r.activeProfiles) {
		url := strings.TrimSpace(repo.URL)
		if strings.Contains(url, "${") {
			url = expandPlaceholders(url, func(key string) (string, bool) {
				value, ok := partial.properties[key]
				return value, ok
			})
		}
		if _, err := neturl.ParseRequestURI(url); err != nil {
			if err := r.report(parseErrorf("malformed repository URL %q in %s", repo.URL, task.rawPom.GAV())); err != nil {
				return err
			}
			continue
		}
		if mirror, ok := r.settings.MirrorURLFor(repo.ID, url); ok {
			url = mirror
		}
		repositories = append(repositories, RawRepository{
			ID:        repo.ID,
			URL:       url,
			Releases:  repo.Releases,
			Snapshots: repo.Snapshots,
		})
	}

	repositories = append(repositories, task.repositories...)
	partial.repositories = repositories
	return nil
}

func (r *Resolver) processParent(ctx context.Context, task *resolutionTask, partial *partialModel) error {
	raw := task.rawPom
	if raw.Parent == nil {
		return nil
	}
	rawParent := raw.Parent
	gav := rawParent.GAV()

	// With "->" indicating a "has parent" relationship, detect cycles like
	// A -> B -> A and cut them off with an actionable error instead of
	// recursing until the stack blows.
	sightings := slices.Clone(task.seenParents)
	if slices.Contains(sightings, gav) {
		return r.report(&CycleError{GAV: gav, Chain: sightings})
	}
	sightings = append(sightings, gav)

	parentRaw, err := r.downloader.DownloadPom(ctx, PomRequest{
		GroupID:      rawParent.GroupID,
		ArtifactID:   rawParent.ArtifactID,
		Version:      rawParent.Version,
		RelativePath: rawParent.RelativePath,
		Originator:   raw,
		Repositories: partial.repositories,
	})
	if err != nil {
		return r.report(parseErrorf("unable to download parent %s of %s: %v", gav, raw.GAV(), err))
	}
	if parentRaw == nil {
		return nil
	}

	if parent, ok := r.resolved[gav]; ok {
		partial.parent = parent
		return nil
	}

	parent, err := r.nested().resolve(ctx, parentRaw, ScopeCompile, rawParent.Version, partial.repositories, sightings)
	if err != nil {
		return r.report(err)
	}
	r.resolved[gav] = parent
	partial.parent = parent
	return nil
}

func (r *Resolver) processDependencyManagement(ctx context.Context, task *resolutionTask, partial *partialModel) error {
	raw := task.rawPom
	var managedDependencies []ManagedDependency

	for _, d := range raw.DependencyManagement {
		if d.Version == "" {
			if err := r.report(parseErrorf(
				"problem with dependencyManagement section of %s: unable to determine version of managed dependency %s:%s",
				raw.GAV(), d.GroupID, d.ArtifactID)); err != nil {
				return err
			}
			continue
		}

		groupID := partial.groupID(d.GroupID)
		artifactID := partial.artifactID(d.ArtifactID)
		version := partial.version(d.Version)
		if groupID == "" || artifactID == "" || version == "" {
			if err := r.report(parseErrorf(
				"problem with dependencyManagement section of %s: unable to determine groupId, artifactId, or version of managed dependency %s:%s",
				raw.GAV(), d.GroupID, d.ArtifactID)); err != nil {
				return err
			}
			continue
		}

		// https://maven.apache.org/guides/introduction/introduction-to-dependency-mechanism.html#importing-dependencies
		if d.Type == "pom" && d.Scope == "import" {
			bomRaw, err := r.downloader.DownloadPom(ctx, PomRequest{
				GroupID:      groupID,
				ArtifactID:   artifactID,
				Version:      version,
				Originator:   raw,
				Repositories: partial.repositories,
			})
			if err != nil {
				if err := r.report(parseErrorf("unable to download imported BOM %s:%s:%s: %v", groupID, artifactID, version, err)); err != nil {
					return err
				}
				continue
			}
			if bomRaw == nil {
				continue
			}
			bom, err := r.nested().resolve(ctx, bomRaw, ScopeCompile, d.Version, partial.repositories, nil)
			if err != nil {
				if err := r.report(err); err != nil {
					return err
				}
				continue
			}
			if bom != nil {
				managedDependencies = append(managedDependencies, ManagedDependency{
					Kind:             ManagedImported,
					GroupID:          groupID,
					ArtifactID:       artifactID,
					Version:          version,
					RequestedVersion: d.Version,
					Imported:         bom,
				})
			}
			continue
		}

		scope := ScopeNone
		if d.Scope != "" {
			scope = ParseScope(d.Scope)
		}
		managedDependencies = append(managedDependencies, ManagedDependency{
			Kind:             ManagedDefined,
			GroupID:          groupID,
			ArtifactID:       artifactID,
			Version:          version,
			RequestedVersion: d.Version,
			Scope:            scope,
			Classifier:       d.Classifier,
			Exclusions:       exclusionPatterns(d.Exclusions),
		})
	}

	partial.dependencyManagement = DependencyManagement{Dependencies: managedDependencies}
	return nil
}

func (r *Resolver) processLicenses(task *resolutionTask, partial *partialModel) {
	for _, license := range task.rawPom.Licenses {
		partial.licenses = append(partial.licenses, ParseLicense(license.Name))
	}
}

func (r *Resolver) processDependencies(ctx context.Context, task *resolutionTask, partial *partialModel) error {
	raw := task.rawPom

	// Parent dependencies wind up being part of the subtree rooted at this
	// task, so they affect conflict resolution further down the tree.
	if partial.parent != nil {
		for _, dependency := range partial.parent.Dependencies {
			ga := dependency.GroupArtifact()
			requested := r.versionSelection.selectVersion(dependency.Scope, ga, dependency.Version())
			r.versionSelection.put(dependency.Scope, ga, requested)
		}
	}

	var dependencyTasks []*resolutionTask
	for _, dep := range raw.ActiveDependencies(r.activeProfiles) {
		// test-jar and friends are not resolved transitively.
		if dep.Type != "" && dep.Type != "jar" {
			continue
		}
		if dep.Optional && !r.resolveOptional {
			continue
		}

		groupID := partial.groupID(dep.GroupID)
		artifactID := partial.artifactID(dep.ArtifactID)
		if groupID == "" || artifactID == "" {
			if err := r.report(parseErrorf(
				"problem resolving dependency of %s: unable to determine groupId or artifactId of %s:%s",
				raw.GAV(), dep.GroupID, dep.ArtifactID)); err != nil {
				return err
			}
			continue
		}

		if excluded(dep, task.exclusions) {
			continue
		}

		childTask, err := r.resolveDependencyTask(ctx, task, partial, dep, groupID, artifactID)
		if err != nil {
			return err
		}
		if childTask == nil {
			continue
		}

		if _, ok := r.partialResults[childTask.key()]; !ok {
			// otherwise we've already resolved this subtree previously!
			r.workQueue = append(r.workQueue, childTask)
		}
		dependencyTasks = append(dependencyTasks, childTask)
	}

	partial.dependencyTasks = dependencyTasks
	return nil
}

// resolveDependencyTask turns one declared dependency into a child task:
// version determination, transitive scope, conflict-resolution bookkeeping
// and the POM download. A (nil, nil) return means the dependency was pruned
// or its error suppressed.
func (r *Resolver) resolveDependencyTask(ctx context.Context, task *resolutionTask, partial *partialModel, dep RawDependency, groupID, artifactID string) (*resolutionTask, error) {
	raw := task.rawPom

	// dependencyManagement may itself indirect through a property, so iterate
	// to a fixed point, capped at three passes.
	version := ""
	for i := 0; i < 3; i++ {
		last := version
		next := ""
		if version != "" {
			next = partial.version(version)
		}
		if next == "" {
			next = r.managedVersionFor(partial, groupID, artifactID)
		}
		version = next
		if version == last {
			break
		}
	}

	// dependencyManagement takes precedence over the version specified on the
	// dependency itself.
	if version == "" && dep.Version != "" {
		version = partial.version(dep.Version)
	}
	if version == "" {
		if err := r.report(parseErrorf(
			"failed to determine version for %s:%s. Initial value was %q. Including POM is at %s",
			groupID, artifactID, dep.Version, raw.SourcePath)); err != nil {
			return nil, err
		}
		return nil, nil
	}

	requestedScope := ParseScope(partial.scopeName(dep.Scope))
	effectiveScope, ok := requestedScope.TransitiveOf(task.scope)
	if !ok {
		// Pruned from this subtree. Pruned dependencies do not pin versions
		// for their siblings.
		return nil, nil
	}

	ga := GroupArtifact{GroupID: groupID, ArtifactID: artifactID}
	requested := r.versionSelection.selectVersion(effectiveScope, ga, version)
	r.versionSelection.put(effectiveScope, ga, requested)
	version = requested.Resolve(ctx, r.downloader, partial.repositories)

	if strings.Contains(version, "${") {
		if err := r.report(parseErrorf(
			"unresolved property in version %q for %s:%s. Including POM is at %s",
			version, groupID, artifactID, raw.SourcePath)); err != nil {
			return nil, err
		}
		return nil, nil
	}

	download, err := r.downloader.DownloadPom(ctx, PomRequest{
		GroupID:      groupID,
		ArtifactID:   artifactID,
		Version:      version,
		Classifier:   dep.Classifier,
		Originator:   raw,
		Repositories: partial.repositories,
	})
	if err == nil && download == nil {
		err = fmt.Errorf("not found in any repository")
	}
	if err != nil {
		if err := r.report(parseErrorf(
			"unable to download %s:%s:%s (%v). Including POM is at %s",
			groupID, artifactID, version, err, raw.SourcePath)); err != nil {
			return nil, err
		}
		return nil, nil
	}

	// The child keeps the requested scope so its own subtree applies the
	// transitive rules starting from what was declared, not from the already
	// narrowed effective scope.
	return &resolutionTask{
		scope:            requestedScope,
		rawPom:           download,
		exclusions:       append(slices.Clone(task.exclusions), exclusionPatterns(dep.Exclusions)...),
		optional:         dep.Optional,
		classifier:       dep.Classifier,
		requestedVersion: dep.Version,
		repositories:     partial.repositories,
	}, nil
}

// managedVersionFor looks the coordinate up in the partial model's own
// dependencyManagement first, then in the parent chain's managed versions.
func (r *Resolver) managedVersionFor(partial *partialModel, groupID, artifactID string) string {
	for _, managed := range partial.dependencyManagement.Dependencies {
		for _, descriptor := range managed.Descriptors() {
			if groupID == partial.groupID(descriptor.GroupID) && artifactID == partial.artifactID(descriptor.ArtifactID) {
				return descriptor.Version
			}
		}
	}
	if partial.parent != nil {
		return partial.parent.ManagedVersion(groupID, artifactID)
	}
	return ""
}

func exclusionPatterns(exclusions []RawExclusion) []GroupArtifact {
	if len(exclusions) == 0 {
		return nil
	}
	patterns := make([]GroupArtifact, len(exclusions))
	for i, exclusion := range exclusions {
		patterns[i] = GroupArtifact{GroupID: exclusion.GroupID, ArtifactID: exclusion.ArtifactID}
	}
	return patterns
}

func settingsRepository(repo settings.Repository) RawRepository {
	raw := RawRepository{ID: repo.ID, URL: repo.URL}
	if !repo.ReleasesEnabled() {
		raw.Releases = &RawArtifactPolicy{Enabled: false}
	}
	if !repo.SnapshotsEnabled() {
		raw.Snapshots = &RawArtifactPolicy{Enabled: false}
	}
	return raw
}
