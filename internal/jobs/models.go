package jobs

import (
	"strings"
	"time"

	"zeus/internal/compliance"
	"zeus/internal/transcript"
)

// State represents the lifecycle of a transcription job.
type State string

const (
	StateQueued        State = "queued"
	StateDispatching   State = "dispatching"
	StateTranscribing  State = "transcribing"
	StateConsolidating State = "consolidating"
	StateValidating    State = "validating"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
	StateCancelled     State = "cancelled"
)

var allStates = []State{
	StateQueued,
	StateDispatching,
	StateTranscribing,
	StateConsolidating,
	StateValidating,
	StateCompleted,
	StateFailed,
	StateCancelled,
}

var stateSet = func() map[State]struct{} {
	set := make(map[State]struct{}, len(allStates))
	for _, state := range allStates {
		set[state] = struct{}{}
	}
	return set
}()

// activeStates are the in-flight states a scheduler worker drives.
var activeStates = []State{
	StateDispatching,
	StateTranscribing,
	StateConsolidating,
	StateValidating,
}

// allowedTransitions encodes the forward edges of the job state machine.
// failed and cancelled are reachable from every non-terminal state; the only
// backward edge is the explicit failed -> queued retry.
var allowedTransitions = map[State][]State{
	StateQueued:        {StateDispatching, StateFailed, StateCancelled},
	StateDispatching:   {StateTranscribing, StateFailed, StateCancelled},
	StateTranscribing:  {StateConsolidating, StateFailed, StateCancelled},
	StateConsolidating: {StateValidating, StateFailed, StateCancelled},
	StateValidating:    {StateCompleted, StateFailed, StateCancelled},
	StateFailed:        {StateQueued},
}

// AllStates returns the ordered list of known states.
func AllStates() []State {
	cp := make([]State, len(allStates))
	copy(cp, allStates)
	return cp
}

// ActiveStates returns the states representing in-flight processing.
func ActiveStates() []State {
	cp := make([]State, len(activeStates))
	copy(cp, activeStates)
	return cp
}

// ParseState converts a string into a known State.
func ParseState(value string) (State, bool) {
	normalized := State(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := stateSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a state admits no further transitions besides retry.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the state reflects in-flight processing.
func (s State) IsActive() bool {
	for _, state := range activeStates {
		if s == state {
			return true
		}
	}
	return false
}

// CanTransition reports whether the edge from -> to exists in the state machine.
func CanTransition(from, to State) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Priority orders jobs in the queue. Urgent beats high beats normal beats low;
// within a class dequeue order is first submitted, first served.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

var priorityRank = map[Priority]int{
	PriorityUrgent: 0,
	PriorityHigh:   1,
	PriorityNormal: 2,
	PriorityLow:    3,
}

// AllPriorities returns priorities from most to least urgent.
func AllPriorities() []Priority {
	return []Priority{PriorityUrgent, PriorityHigh, PriorityNormal, PriorityLow}
}

// ParsePriority converts a string into a known Priority. Empty input maps to
// normal.
func ParsePriority(value string) (Priority, bool) {
	normalized := Priority(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return PriorityNormal, true
	}
	_, ok := priorityRank[normalized]
	return normalized, ok
}

// Rank returns the dequeue rank for the priority, lower dequeues first.
func (p Priority) Rank() int {
	rank, ok := priorityRank[p]
	if !ok {
		return priorityRank[PriorityNormal]
	}
	return rank
}

// Job represents a transcription job persisted in SQLite.
type Job struct {
	ID              int64
	RequestID       string
	VideoSource     string
	Priority        Priority
	ComplianceLevel string
	WhisperModel    string
	NumPasses       int
	State           State
	ErrorDetail     string
	PassResults     []transcript.PassResult
	Transcript      []transcript.ConsolidatedSegment
	Report          *compliance.Report
	Outputs         map[string]string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	LastHeartbeat   *time.Time
}

// SucceededPassCount returns how many recorded passes succeeded.
func (j *Job) SucceededPassCount() int {
	count := 0
	for _, result := range j.PassResults {
		if result.Status == transcript.PassSucceeded {
			count++
		}
	}
	return count
}

// HealthSummary describes aggregated job counts per key lifecycle states.
type HealthSummary struct {
	Total     int
	Queued    int
	Active    int
	Completed int
	Failed    int
	Cancelled int
}
