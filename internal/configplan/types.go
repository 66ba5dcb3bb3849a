// Package configplan plans and applies configuration-file migration between
// distribution families.
//
// Planning is read-only: BuildPlan returns a list of Operations that can be
// printed, serialized or compared before anything touches the filesystem.
// Execute applies one Operation.
package configplan

// Kind is the action an Operation performs.
type Kind string

const (
	Copy      Kind = "copy"
	Merge     Kind = "merge"
	Transform Kind = "transform"
	Skip      Kind = "skip"
)

// Rule is a registered intent for one path. Skip rules document paths that
// are deliberately left alone and never become Operations.
type Rule struct {
	Name      string `json:"name"`
	Kind      Kind   `json:"kind"`
	Source    string `json:"source"`
	Target    string `json:"target"`
	Transform string `json:"transform,omitempty"`
}

// Operation is one executable step. Source and Target are live paths.
// Backup is set for merges; Transform names a registered text transform.
// StagedSource, when set, is read instead of Source.
type Operation struct {
	Kind         Kind   `json:"kind"`
	Rule         string `json:"rule"`
	Source       string `json:"source"`
	Target       string `json:"target"`
	Backup       string `json:"backup,omitempty"`
	Transform    string `json:"transform,omitempty"`
	StagedSource string `json:"staged_source,omitempty"`
}

// MergeMarker separates target content from appended source content.
const MergeMarker = "\n# Merged from previous system\n"
