package event

import "time"

// Kind identifies what happened to a directory during a purge cycle.
type Kind int

const (
	KindWalking Kind = iota + 1
	KindClassified
	KindUnreadable
	KindVanished
	KindBuildsetProtected
	KindProtected
	KindKept
	KindSkippedRoot
	KindDeleted
	KindWouldDelete
)

func (k Kind) String() string {
	switch k {
	case KindWalking:
		return "walking"
	case KindClassified:
		return "classified"
	case KindUnreadable:
		return "unreadable"
	case KindVanished:
		return "vanished"
	case KindBuildsetProtected:
		return "buildset-protected"
	case KindProtected:
		return "protected"
	case KindKept:
		return "kept"
	case KindSkippedRoot:
		return "skipped-root"
	case KindDeleted:
		return "deleted"
	case KindWouldDelete:
		return "would-delete"
	default:
		return "unknown"
	}
}

// Event is a single observable decision made by the walker, resolver or purge engine.
// Only the fields relevant to Kind are set.
type Event struct {
	Kind     Kind
	Path     string
	Marker   string    // classifier rule that matched, for KindClassified
	Project  string    // canonical project name, when known
	Buildset string    // buildset id, when known
	ModTime  time.Time // job directory mtime, for decisions based on age
	Err      error     // for KindUnreadable
}

// Sink receives events. Implementations must not block for long: the core is
// synchronous and waits for Emit to return.
type Sink interface {
	Emit(Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Event)

// Emit implements Sink.
func (f SinkFunc) Emit(e Event) { f(e) }

// Discard drops every event.
var Discard Sink = SinkFunc(func(Event) {})

type multiSink []Sink

func (m multiSink) Emit(e Event) {
	for _, s := range m {
		s.Emit(e)
	}
}

// Multi fans an event out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	var out multiSink
	for _, s := range sinks {
		if s != nil {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return Discard
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// OrDiscard returns s, or Discard when s is nil.
func OrDiscard(s Sink) Sink {
	if s == nil {
		return Discard
	}
	return s
}
