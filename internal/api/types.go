package api

import (
	"confstack/internal/dirstack"
	"confstack/internal/engine"
	"confstack/internal/tree"
)

// ConfigResponse carries the value found at a configuration path.
type ConfigResponse struct {
	Path  string     `json:"path"`
	Value *tree.Node `json:"value"`
}

// StackEntry describes one override directory.
type StackEntry struct {
	Path         string              `json:"path"`
	ConfigSubdir string              `json:"configSubdir,omitempty"`
	Descriptor   dirstack.Descriptor `json:"descriptor"`
}

// StackResponse lists the override stack, root ancestor first.
type StackResponse struct {
	Directories []StackEntry `json:"directories"`
}

// ResetResponse acknowledges a cache reset.
type ResetResponse struct {
	Reset bool `json:"reset"`
}

// StatusResponse wraps the engine status.
type StatusResponse struct {
	Status engine.Status `json:"status"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Path          string `json:"path,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
}

// FromStack converts a resolved stack into its transport form.
func FromStack(stack dirstack.Stack) StackResponse {
	entries := make([]StackEntry, 0, len(stack))
	for _, dir := range stack {
		entries = append(entries, StackEntry{
			Path:         dir.Path,
			ConfigSubdir: dir.ConfigSubdir,
			Descriptor:   dir.Descriptor,
		})
	}
	return StackResponse{Directories: entries}
}
