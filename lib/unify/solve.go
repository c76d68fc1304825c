// Copyright 2026 The Carton Authors
// SPDX-License-Identifier: Apache-2.0

package unify

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/carton-build/carton/lib/graph"
	"github.com/carton-build/carton/lib/object"
	"github.com/carton-build/carton/lib/tag"
)

// Config holds the solver's collaborators and options.
type Config struct {
	// Registry lists candidate versions for tag patterns. Candidates
	// arrive newest first; the solver tries them in that order.
	Registry tag.Registry

	// Importer materializes stored objects as graph nodes. Required.
	Importer Importer

	// Locked forbids consulting the registry: every tag pattern must
	// resolve against a pinned version or a binding already present in
	// the graph, and a pattern that would need a fresh listing is a
	// hard error.
	Locked bool

	// Pinned maps package names to the versions a lockfile recorded.
	// A pinned version is the only candidate considered for its name.
	Pinned map[string]tag.Tag

	// Overrides maps package names to local filesystem paths. An
	// override bypasses the registry for that name entirely.
	Overrides map[string]string

	// ImportPath brings a local directory into the graph on behalf of
	// an override. Required when Overrides is non-empty.
	ImportPath func(ctx context.Context, path string) (int, error)

	// Logger receives operational messages. If nil, logging is
	// discarded.
	Logger *slog.Logger
}

// visitKey identifies one (edge, resolution target) pair. Keying on
// the target as well as the edge makes re-processing after a rewind
// work: the same edge resolved to a different candidate is new work.
type visitKey struct {
	ref    graph.EdgeRef
	target string
}

// checkpoint captures everything needed to retry a version choice: the
// graph journal position plus copies of the solver's own small state,
// taken just before the choice was applied. The saved queue has the
// choosing edge back at its front, so a rewind re-poses exactly the
// question that was answered differently.
type checkpoint struct {
	name      string
	mark      graph.Mark
	queue     []graph.EdgeRef
	visited   map[visitKey]struct{}
	retry     map[string][]tag.Tag
	remaining []tag.Tag
}

// Solver resolves every reference in a graph, one version per package
// name, backtracking through checkpoints when choices collide. A
// Solver is single-use: construct, call Solve once, discard.
type Solver struct {
	cfg    Config
	graph  *graph.Graph
	logger *slog.Logger

	queue       []graph.EdgeRef
	visited     map[visitKey]struct{}
	checkpoints []checkpoint

	// retry holds candidate lists reinstated by a rewind, consumed in
	// preference to a fresh registry listing.
	retry map[string][]tag.Tag
}

// New returns a solver over g.
func New(g *graph.Graph, cfg Config) *Solver {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Solver{
		cfg:     cfg,
		graph:   g,
		logger:  logger,
		visited: make(map[visitKey]struct{}),
		retry:   make(map[string][]tag.Tag),
	}
}

// Solve drains the worklist starting from root's outgoing edges. On
// return every reachable edge is either resolved or owned by a node
// carrying a recorded error; a non-nil return wraps those errors.
func (s *Solver) Solve(ctx context.Context, root int) error {
	s.enqueue(s.graph.Outgoing(root))

	for len(s.queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		ref := s.queue[0]
		s.queue = s.queue[1:]
		s.step(ctx, ref)
	}

	if errs := s.graph.Errors(); len(errs) > 0 {
		return &SolveError{Errors: errs}
	}
	return nil
}

func (s *Solver) enqueue(refs []graph.EdgeRef) {
	s.queue = append(s.queue, refs...)
}

// step processes one edge. Already-visited (edge, target) pairs are
// skipped, which makes processing idempotent: cycles terminate because
// revisiting an edge with the same resolution is a no-op.
func (s *Solver) step(ctx context.Context, ref graph.EdgeRef) {
	edge, ok := s.graph.Edge(ref)
	if !ok {
		return
	}
	key := visitKey{ref: ref, target: targetOf(edge)}
	if _, seen := s.visited[key]; seen {
		return
	}
	s.visited[key] = struct{}{}

	if edge.Resolved() {
		s.enqueue(s.graph.Outgoing(edge.Node))
		return
	}

	reference := *edge.Reference
	switch {
	case reference.Tag != nil:
		s.resolveTag(ctx, ref, *reference.Tag)
	case !reference.ID.IsZero():
		s.resolveLiteral(ctx, ref, reference.ID)
	case reference.Path != "":
		// Path references are resolved during scanning; one surviving
		// to the solve points at something outside the scanned tree.
		s.graph.RecordError(ref.Node, fmt.Errorf("unresolved path reference %q", reference.Path))
	default:
		s.graph.RecordError(ref.Node, fmt.Errorf("empty reference"))
	}
}

// resolveLiteral binds an edge to an object named by id, importing it
// if the graph does not hold it yet.
func (s *Solver) resolveLiteral(ctx context.Context, ref graph.EdgeRef, id object.ID) {
	index, err := s.cfg.Importer.Import(ctx, s.graph, id)
	if err != nil {
		s.graph.RecordError(ref.Node, fmt.Errorf("importing %s: %w", id.Short(), err))
		return
	}
	s.bind(ref, index)
}

// bind resolves an edge to an arena index and schedules the target's
// outgoing edges.
func (s *Solver) bind(ref graph.EdgeRef, index int) {
	s.graph.SetEdge(ref, graph.ResolvedEdge(index))
	s.graph.AddReferrer(index, ref.Node)
	s.enqueue(s.graph.Outgoing(index))
}

// resolveTag resolves a tag-pattern edge: reuse the existing binding
// for the name when the pattern accepts it, conflict (and backtrack)
// when it does not, and otherwise choose a fresh candidate.
func (s *Solver) resolveTag(ctx context.Context, ref graph.EdgeRef, pattern tag.Pattern) {
	name := pattern.Name

	if path, ok := s.cfg.Overrides[name]; ok {
		s.resolveOverride(ctx, ref, name, path)
		return
	}

	if binding, bound := s.graph.Binding(name); bound {
		if pattern.Matches(binding.Tag.Version) {
			s.bind(ref, binding.Node)
			return
		}
		err := &ConflictError{
			Referrer: s.graph.Node(ref.Node).Describe(ref.Node),
			Pattern:  pattern,
			Bound:    binding.Tag,
		}
		s.fail(ref, name, err)
		return
	}

	candidates, ok := s.retry[name]
	switch {
	case ok:
		delete(s.retry, name)
	case s.cfg.Pinned != nil:
		if pinned, pok := s.cfg.Pinned[name]; pok {
			candidates = []tag.Tag{pinned}
			break
		}
		fallthrough
	default:
		if s.cfg.Locked {
			s.graph.RecordError(ref.Node, &LockedError{Pattern: pattern})
			return
		}
		listed, err := s.cfg.Registry.List(ctx, pattern)
		if err != nil {
			s.graph.RecordError(ref.Node, fmt.Errorf("listing tags for %s: %w", pattern, err))
			return
		}
		candidates = listed
	}

	s.tryCandidates(ctx, ref, pattern, candidates)
}

// resolveOverride resolves a name through a local-path override.
func (s *Solver) resolveOverride(ctx context.Context, ref graph.EdgeRef, name, path string) {
	if binding, bound := s.graph.Binding(name); bound {
		s.bind(ref, binding.Node)
		return
	}
	if s.cfg.ImportPath == nil {
		s.graph.RecordError(ref.Node, fmt.Errorf("override for %q needs a path importer", name))
		return
	}
	index, err := s.cfg.ImportPath(ctx, path)
	if err != nil {
		s.graph.RecordError(ref.Node, fmt.Errorf("importing override %s for %q: %w", path, name, err))
		return
	}
	s.logger.Debug("resolved package through local override",
		"name", name,
		"path", path)
	s.graph.Bind(name, graph.Binding{Tag: tag.Tag{Name: name, Version: "local"}, Node: index})
	s.bind(ref, index)
}

// tryCandidates applies the first importable candidate and records a
// checkpoint holding the rest, so a later conflict over this name can
// rewind here and continue down the list.
func (s *Solver) tryCandidates(ctx context.Context, ref graph.EdgeRef, pattern tag.Pattern, candidates []tag.Tag) {
	name := pattern.Name

	// The exclusion key must match what step recorded for this edge,
	// or the rewound visited set would still hold the in-progress
	// visit and the re-queued edge would be skipped unresolved.
	edge, _ := s.graph.Edge(ref)
	key := visitKey{ref: ref, target: targetOf(edge)}

	for i, candidate := range candidates {
		if !pattern.Matches(candidate.Version) {
			continue
		}
		// The checkpoint snapshots the pre-choice state: this edge back
		// at the queue front and its visit not yet recorded, so the
		// rewound solver re-asks the same question with the remaining
		// candidates.
		cp := checkpoint{
			name:      name,
			mark:      s.graph.Mark(),
			queue:     prependRef(ref, s.queue),
			visited:   copyVisited(s.visited, key),
			retry:     copyRetry(s.retry),
			remaining: candidates[i+1:],
		}

		index, err := s.cfg.Importer.Import(ctx, s.graph, candidate.Target)
		if err != nil {
			s.logger.Warn("skipping unimportable tag candidate",
				"tag", candidate.Name+"@"+candidate.Version,
				"error", err)
			s.graph.Rewind(cp.mark)
			continue
		}

		s.logger.Debug("bound package version",
			"name", name,
			"version", candidate.Version,
			"remaining", len(cp.remaining))
		s.graph.Bind(name, graph.Binding{Tag: candidate, Node: index})
		s.checkpoints = append(s.checkpoints, cp)
		s.bind(ref, index)
		return
	}

	s.fail(ref, name, &NoMatchError{Pattern: pattern})
}

// fail handles a resolution failure for a package name: backtrack to
// the most recent checkpoint for that name with candidates left, or
// record the error when no checkpoint can help.
func (s *Solver) fail(ref graph.EdgeRef, name string, err error) {
	for i := len(s.checkpoints) - 1; i >= 0; i-- {
		cp := s.checkpoints[i]
		if cp.name != name || len(cp.remaining) == 0 {
			continue
		}

		s.logger.Debug("backtracking",
			"name", name,
			"discarded", len(s.checkpoints)-i,
			"remaining", len(cp.remaining),
			"cause", err)

		s.graph.Rewind(cp.mark)
		s.queue = append([]graph.EdgeRef(nil), cp.queue...)
		s.visited = copyVisited(cp.visited, visitKey{})
		s.retry = copyRetry(cp.retry)
		s.retry[name] = cp.remaining
		s.checkpoints = s.checkpoints[:i]
		return
	}

	s.graph.RecordError(ref.Node, err)
}

// targetOf describes an edge's current resolution for visit keying.
func targetOf(edge graph.Edge) string {
	if edge.Resolved() {
		return fmt.Sprintf("node:%d", edge.Node)
	}
	return "ref:" + edge.Reference.String()
}

func prependRef(ref graph.EdgeRef, queue []graph.EdgeRef) []graph.EdgeRef {
	out := make([]graph.EdgeRef, 0, len(queue)+1)
	out = append(out, ref)
	return append(out, queue...)
}

// copyVisited copies the visited set, leaving out exclude (pass the
// zero key to copy everything).
func copyVisited(visited map[visitKey]struct{}, exclude visitKey) map[visitKey]struct{} {
	out := make(map[visitKey]struct{}, len(visited))
	for key := range visited {
		if key == exclude {
			continue
		}
		out[key] = struct{}{}
	}
	return out
}

func copyRetry(retry map[string][]tag.Tag) map[string][]tag.Tag {
	out := make(map[string][]tag.Tag, len(retry))
	for name, tags := range retry {
		out[name] = tags
	}
	return out
}
