package contract

// AgentType identifies a pipeline role. Each role is bound to a fixed
// capability subset; the binding is enforced, not advisory.
type AgentType string

const (
	AgentTypeDiscovery     AgentType = "data-discovery"
	AgentTypeAnalysis      AgentType = "data-analysis"
	AgentTypeStatistics    AgentType = "statistical"
	AgentTypeVisualization AgentType = "visualization"
	AgentTypeReport        AgentType = "report"
)

// ResultStatus is the outcome of one agent run.
type ResultStatus string

const (
	StatusSuccess ResultStatus = "success"
	StatusFailure ResultStatus = "failure"
	StatusPartial ResultStatus = "partial"
)

// ArtifactKind classifies what a phase produced.
type ArtifactKind string

const (
	KindDataframe ArtifactKind = "dataframe-handle"
	KindImage     ArtifactKind = "image-file"
	KindReport    ArtifactKind = "report-file"
	KindMetadata  ArtifactKind = "metadata-record"
)

// SideEffect declares what a capability is allowed to touch.
type SideEffect string

const (
	SideEffectPure  SideEffect = "pure"
	SideEffectWrite SideEffect = "filesystem-write"
)

// Task is a single instruction issued to an agent. Immutable once issued.
type Task struct {
	Instruction string            `json:"instruction"`
	Params      map[string]string `json:"params,omitempty"`
}

// Param returns a named task parameter or the empty string.
func (t Task) Param(key string) string {
	if t.Params == nil {
		return ""
	}
	return t.Params[key]
}

// Artifact is a named, versioned output produced by exactly one phase.
// Location is a filesystem path for file kinds, or a mem:// handle name
// for dataframe handles and metadata records.
type Artifact struct {
	Name     string       `json:"name"`
	Kind     ArtifactKind `json:"kind"`
	Location string       `json:"location"`
	Phase    int          `json:"phase"`
	Version  int          `json:"version"`
}

// Result is produced once per task and never mutated after return.
type Result struct {
	Status    ResultStatus `json:"status"`
	Artifacts []Artifact   `json:"artifacts,omitempty"`
	Summary   string       `json:"summary"`
}

// CapabilityResult is the structured output of one capability invocation.
// Error is set instead of a Go error when the underlying operation was
// reached but rejected the input or failed.
type CapabilityResult struct {
	Capability string         `json:"capability"`
	Output     map[string]any `json:"output,omitempty"`
	Artifacts  []Artifact     `json:"artifacts,omitempty"`
	Error      string         `json:"error,omitempty"`
}
