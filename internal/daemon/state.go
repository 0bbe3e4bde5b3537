package daemon

import (
	"sync"
	"time"

	"github.com/ppiankov/purgelogs/internal/event"
)

// Phase represents the current loop phase.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePurging
	PhaseWaiting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "IDLE"
	case PhasePurging:
		return "PURGING"
	case PhaseWaiting:
		return "WAITING"
	default:
		return "UNKNOWN"
	}
}

// CycleSummary captures the outcome of a single purge cycle.
type CycleSummary struct {
	CycleID   string
	StartedAt time.Time
	Duration  time.Duration
	JobDirs   int
	Deleted   int
	Protected int
	Kept      int
	DryRun    bool
	Error     string
}

// LiveCycle tracks progress of the active cycle.
type LiveCycle struct {
	CycleID   string
	StartedAt time.Time
	Visited   int
	Deleted   int
	Protected int
	Kept      int
	LastPath  string
}

// StateSnapshot is an immutable copy of State for TUI rendering.
type StateSnapshot struct {
	Phase         Phase
	PhaseMsg      string
	Current       *LiveCycle
	History       []CycleSummary
	StartedAt     time.Time
	NextRunAt     time.Time
	TotalDeleted  int
	TotalFailures int
	TotalCycles   int
}

const maxHistory = 50

// State is the shared state container between the loop and the dashboard.
// The loop writes; the TUI reads via Snapshot(). State also implements
// event.Sink so live progress can be fed straight from the engine.
type State struct {
	mu sync.RWMutex

	phase    Phase
	phaseMsg string

	current *LiveCycle
	history []CycleSummary

	startedAt time.Time
	nextRunAt time.Time

	totalDeleted  int
	totalFailures int
	totalCycles   int

	// events channel for TUI notification (buffered, non-blocking)
	events chan struct{}
}

// NewState creates a new state container.
func NewState() *State {
	return &State{
		startedAt: time.Now(),
		events:    make(chan struct{}, 1),
	}
}

// Events returns the notification channel for TUI subscription.
func (s *State) Events() <-chan struct{} {
	return s.events
}

// Snapshot returns an immutable copy of the current state.
func (s *State) Snapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := StateSnapshot{
		Phase:         s.phase,
		PhaseMsg:      s.phaseMsg,
		StartedAt:     s.startedAt,
		NextRunAt:     s.nextRunAt,
		TotalDeleted:  s.totalDeleted,
		TotalFailures: s.totalFailures,
		TotalCycles:   s.totalCycles,
	}
	if s.current != nil {
		cur := *s.current
		snap.Current = &cur
	}
	if len(s.history) > 0 {
		snap.History = make([]CycleSummary, len(s.history))
		copy(snap.History, s.history)
	}

	return snap
}

// SetPhase updates the current phase and detail message.
func (s *State) SetPhase(p Phase, msg string) {
	s.mu.Lock()
	s.phase = p
	s.phaseMsg = msg
	s.mu.Unlock()
	s.notify()
}

// SetNextRunAt sets the time of the next scheduled cycle.
func (s *State) SetNextRunAt(t time.Time) {
	s.mu.Lock()
	s.nextRunAt = t
	s.mu.Unlock()
	s.notify()
}

// BeginCycle marks a cycle as active.
func (s *State) BeginCycle(cycleID string) {
	s.mu.Lock()
	s.totalCycles++
	s.current = &LiveCycle{CycleID: cycleID, StartedAt: time.Now()}
	s.phase = PhasePurging
	s.phaseMsg = cycleID
	s.mu.Unlock()
	s.notify()
}

// EndCycle clears the active cycle and prepends its summary to the history.
func (s *State) EndCycle(summary CycleSummary) {
	s.mu.Lock()
	s.current = nil
	s.history = append([]CycleSummary{summary}, s.history...)
	if len(s.history) > maxHistory {
		s.history = s.history[:maxHistory]
	}
	s.totalDeleted += summary.Deleted
	if summary.Error != "" {
		s.totalFailures++
	}
	s.mu.Unlock()
	s.notify()
}

// Emit implements event.Sink.
func (s *State) Emit(e event.Event) {
	s.mu.Lock()
	cur := s.current
	if cur == nil {
		s.mu.Unlock()
		return
	}
	switch e.Kind {
	case event.KindDeleted, event.KindWouldDelete:
		cur.Deleted++
	case event.KindProtected:
		cur.Protected++
	case event.KindKept:
		cur.Kept++
	default:
		s.mu.Unlock()
		return
	}
	cur.Visited++
	cur.LastPath = e.Path
	s.mu.Unlock()
	s.notify()
}

// notify sends a non-blocking signal to the events channel.
func (s *State) notify() {
	select {
	case s.events <- struct{}{}:
	default:
	}
}
