// Package diag carries non-fatal resolver diagnostics: missing override
// directories, cycles, unreadable descriptors, and snapshot failures.
// Absence and cycles never surface as errors; they are reported here and
// the resolver continues with the best partial result.
package diag

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"confstack/internal/logging"
)

// Severity ranks events. Warnings indicate likely misconfiguration.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
)

// Event kinds emitted by the resolvers.
const (
	KindDirectoryMissing    = "directory_missing"
	KindCycleDetected       = "cycle_detected"
	KindDescriptorInvalid   = "descriptor_invalid"
	KindParentMissing       = "parent_missing"
	KindParentCycle         = "parent_cycle"
	KindSnapshotWriteFailed = "snapshot_write_failed"
	KindSnapshotReadFailed  = "snapshot_read_failed"
	KindCacheDegraded       = "cache_degraded"
)

// Event is one diagnostic.
type Event struct {
	Kind          string    `json:"kind"`
	Severity      Severity  `json:"severity"`
	Path          string    `json:"path,omitempty"`
	Message       string    `json:"message"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	Time          time.Time `json:"time"`
	Err           error     `json:"-"`
}

// Sink receives diagnostics. Implementations must be safe for concurrent use.
type Sink interface {
	Report(ctx context.Context, event Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, event Event)

func (f SinkFunc) Report(ctx context.Context, event Event) { f(ctx, event) }

// Discard drops every event.
func Discard() Sink {
	return SinkFunc(func(context.Context, Event) {})
}

// OrDiscard returns sink, or Discard when sink is nil.
func OrDiscard(sink Sink) Sink {
	if sink == nil {
		return Discard()
	}
	return sink
}

// Warn stamps and reports a warning-level event. The correlation ID is
// taken from ctx when present.
func Warn(ctx context.Context, sink Sink, kind, path, message string, err error) {
	id, _ := logging.CorrelationIDFromContext(ctx)
	OrDiscard(sink).Report(ctx, Event{
		Kind:          kind,
		Severity:      SeverityWarning,
		Path:          path,
		Message:       message,
		CorrelationID: id,
		Time:          time.Now().UTC(),
		Err:           err,
	})
}

// NewCorrelationID returns a fresh identifier for one resolver operation.
func NewCorrelationID() string {
	return uuid.NewString()
}

// Begin returns ctx carrying a correlation ID, minting one if ctx has none.
func Begin(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := logging.CorrelationIDFromContext(ctx); ok {
		return ctx
	}
	return logging.WithCorrelationID(ctx, NewCorrelationID())
}

var impactByKind = map[string]string{
	KindDirectoryMissing:    "override stack truncated; base configuration still applies",
	KindCycleDetected:       "override stack truncated at the repeated directory",
	KindDescriptorInvalid:   "directory treated as having no parent and default subdir",
	KindParentMissing:       "inheritance chain stops at the declaring file",
	KindParentCycle:         "inheritance chain stops before the repeated file",
	KindSnapshotWriteFailed: "value returned without persisting the snapshot",
	KindSnapshotReadFailed:  "snapshot ignored and rebuilt from source files",
	KindCacheDegraded:       "snapshots disabled for this process",
}

var hintByKind = map[string]string{
	KindDirectoryMissing:    "check local_dir and Parent_Dir paths",
	KindCycleDetected:       "check Parent_Dir entries in the directory descriptors",
	KindDescriptorInvalid:   "fix the syntax of the directory descriptor",
	KindParentMissing:       "check Parent_Config path or relative_path",
	KindParentCycle:         "remove the circular Parent_Config reference",
	KindSnapshotWriteFailed: "check permissions and free space in cache_dir",
	KindSnapshotReadFailed:  "run 'confstack reset' to clear stale snapshots",
	KindCacheDegraded:       "check permissions on cache_dir",
}

// NewLogSink writes events as structured warnings.
func NewLogSink(logger *slog.Logger) Sink {
	logger = logging.NewComponentLogger(logger, "diag")
	return SinkFunc(func(ctx context.Context, event Event) {
		attrs := []logging.Attr{
			logging.String(logging.FieldPath, event.Path),
			logging.String(logging.FieldErrorHint, hintByKind[event.Kind]),
			logging.String(logging.FieldImpact, impactByKind[event.Kind]),
		}
		if event.CorrelationID != "" {
			attrs = append(attrs, logging.String(logging.FieldCorrelationID, event.CorrelationID))
		}
		if event.Err != nil {
			attrs = append(attrs, logging.Error(event.Err))
		}
		if event.Severity == SeverityInfo {
			logger.InfoContext(ctx, event.Message, logging.Args(append(attrs, logging.String(logging.FieldEventType, event.Kind))...)...)
			return
		}
		logging.WarnWithContext(logger, event.Message, event.Kind, attrs...)
	})
}

// Multi fans events out to every non-nil sink.
func Multi(sinks ...Sink) Sink {
	var targets []Sink
	for _, s := range sinks {
		if s != nil {
			targets = append(targets, s)
		}
	}
	return SinkFunc(func(ctx context.Context, event Event) {
		for _, s := range targets {
			s.Report(ctx, event)
		}
	})
}

// Recorder keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Report(_ context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the recorded event kinds in order.
func (r *Recorder) Kinds() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]string, 0, len(r.events))
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

// Reset drops recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
