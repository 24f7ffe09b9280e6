package artifact

import (
	"fmt"
	"sort"
	"strings"

	contractx "github.com/sorawit/datacrew/agent/contract"
)

// Registry is the process-wide record of produced outputs keyed by logical
// name. A name belongs to the phase that first registered it: the same
// phase may append new versions, a different phase may not. Access is
// sequential by construction (one phase at a time), so no locking.
type Registry struct {
	versions map[string][]contractx.Artifact
}

func NewRegistry() *Registry {
	return &Registry{versions: make(map[string][]contractx.Artifact, 16)}
}

// Register records an artifact under its logical name, stamping the next
// version number. Re-registering a name owned by a different producing
// phase fails with ErrDuplicateArtifact.
func (r *Registry) Register(a contractx.Artifact) error {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return fmt.Errorf("artifact name is empty")
	}
	if a.Kind == "" {
		return fmt.Errorf("artifact %q has no kind", name)
	}

	existing := r.versions[name]
	if len(existing) > 0 && existing[0].Phase != a.Phase {
		return fmt.Errorf("%w: %s owned by phase %d, attempted by phase %d",
			contractx.ErrDuplicateArtifact, name, existing[0].Phase, a.Phase)
	}

	a.Name = name
	a.Version = len(existing) + 1
	r.versions[name] = append(existing, a)
	return nil
}

// Lookup returns the latest version of a named artifact.
func (r *Registry) Lookup(name string) (contractx.Artifact, error) {
	versions := r.versions[strings.TrimSpace(name)]
	if len(versions) == 0 {
		return contractx.Artifact{}, fmt.Errorf("%w: %s", contractx.ErrArtifactNotFound, name)
	}
	return versions[len(versions)-1], nil
}

// ByPhase returns the latest version of every artifact produced by a phase.
func (r *Registry) ByPhase(ordinal int) []contractx.Artifact {
	out := make([]contractx.Artifact, 0, 8)
	for _, versions := range r.versions {
		latest := versions[len(versions)-1]
		if latest.Phase == ordinal {
			out = append(out, latest)
		}
	}
	sortArtifacts(out)
	return out
}

// CountKind counts distinct artifact names of a kind produced by a phase.
func (r *Registry) CountKind(ordinal int, kind contractx.ArtifactKind) int {
	n := 0
	for _, a := range r.ByPhase(ordinal) {
		if a.Kind == kind {
			n++
		}
	}
	return n
}

// ByKind returns the latest version of every artifact of a kind, across
// all phases.
func (r *Registry) ByKind(kind contractx.ArtifactKind) []contractx.Artifact {
	out := make([]contractx.Artifact, 0, 8)
	for _, versions := range r.versions {
		latest := versions[len(versions)-1]
		if latest.Kind == kind {
			out = append(out, latest)
		}
	}
	sortArtifacts(out)
	return out
}

// All returns the latest version of every registered artifact, ordered by
// producing phase then name.
func (r *Registry) All() []contractx.Artifact {
	out := make([]contractx.Artifact, 0, len(r.versions))
	for _, versions := range r.versions {
		out = append(out, versions[len(versions)-1])
	}
	sortArtifacts(out)
	return out
}

func sortArtifacts(arts []contractx.Artifact) {
	sort.Slice(arts, func(i, j int) bool {
		if arts[i].Phase != arts[j].Phase {
			return arts[i].Phase < arts[j].Phase
		}
		return arts[i].Name < arts[j].Name
	})
}
