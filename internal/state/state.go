// Package state defines the shared session state threaded through the
// orchestration graph.
//
// State is a plain value type: it is owned by exactly one graph traversal
// at a time and persisted between traversals by the session facade via the
// checkpoint store. It must round-trip through JSON exactly, so every field
// carries an explicit tag and none of the types hold live resources.
package state

import (
	"strings"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Intent is the closed set of conversation intents the router can assign.
// Anything outside this set maps to IntentUnknown; intents are never
// compared as open strings.
type Intent string

// Recognized intents.
const (
	IntentTutoring   Intent = "tutoring"
	IntentScheduling Intent = "scheduling"
	IntentAnalysis   Intent = "analysis"
	IntentMotivation Intent = "motivation"
	IntentUnknown    Intent = "unknown"
)

// ParseIntent maps a raw label to a recognized Intent.
// Unrecognized input (including empty) yields IntentUnknown.
func ParseIntent(raw string) Intent {
	switch Intent(strings.ToLower(strings.TrimSpace(raw))) {
	case IntentTutoring:
		return IntentTutoring
	case IntentScheduling:
		return IntentScheduling
	case IntentAnalysis:
		return IntentAnalysis
	case IntentMotivation:
		return IntentMotivation
	default:
		return IntentUnknown
	}
}

// Node names for the orchestration graph. They live here (not in the graph
// package) because handlers write State.NextNode and must agree on the
// vocabulary without importing the graph.
const (
	NodeRouter     = "router"
	NodeTutoring   = "tutoring"
	NodeAnalysis   = "analysis"
	NodeScheduling = "scheduling"
	NodeMotivation = "motivation"
	NodeEnd        = "end"
)

// Message is a single conversation entry. Agent names the handler that
// produced an assistant message; empty for user messages.
type Message struct {
	Role  Role   `json:"role"`
	Text  string `json:"text"`
	Agent string `json:"agent,omitempty"`
}

// Severity grades how much a learner struggled with a topic.
type Severity string

// Severity tiers, ordered mild < moderate < severe.
const (
	SeverityMild     Severity = "mild"
	SeverityModerate Severity = "moderate"
	SeveritySevere   Severity = "severe"
)

// Rank returns the ordinal position of the severity tier.
// Higher signal must never map to a lower rank.
func (s Severity) Rank() int {
	switch s {
	case SeveritySevere:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMild:
		return 1
	default:
		return 0
	}
}

// WeakTopic is one struggling topic identified by session analysis.
type WeakTopic struct {
	Topic string `json:"topic"`
	// Severity tier derived from occurrence count and confusion signals.
	Severity Severity `json:"severity"`
	// Occurrences counts how many user messages raised the topic.
	Occurrences int `json:"occurrences"`
	// FirstSeen is the message-log index of the topic's first appearance,
	// used as the deterministic tie-break when severities are equal.
	FirstSeen int `json:"first_seen"`
}

// AnalysisResult is produced once per episode by the analysis handler and
// consumed by the scheduling handler if scheduling follows.
type AnalysisResult struct {
	WeakTopics []WeakTopic `json:"weak_topics"`
	// PriorityTopics lists topic names ordered by severity (desc),
	// ties broken by first occurrence in the transcript.
	PriorityTopics []string  `json:"priority_topics"`
	Summary        string    `json:"summary"`
	CreatedAt      time.Time `json:"created_at"`
}

// BlockKind distinguishes study blocks (synced to the calendar) from
// break blocks (never synced).
type BlockKind string

// Block kinds.
const (
	BlockStudy BlockKind = "study"
	BlockBreak BlockKind = "break"
)

// Block is one Pomodoro-style interval. Start and End are wall-clock
/// times in 24-hour "HH:MM" form within the availability window.
type Block struct {
	Kind  BlockKind `json:"kind"`
	Topic string    `json:"topic,omitempty"`
	Start string    `json:"start"`
	End   string    `json:"end"`
}

// Schedule is the study plan generated by the scheduling handler.
type Schedule struct {
	WindowStart string  `json:"window_start"`
	WindowEnd   string  `json:"window_end"`
	Blocks      []Block `json:"blocks"`
	// BasedOnAnalysis records whether weak-topic priorities shaped the plan.
	BasedOnAnalysis bool `json:"based_on_analysis"`
	// SyncedEvents / AttemptedEvents track partial calendar-sync success.
	SyncedEvents    int `json:"synced_events"`
	AttemptedEvents int `json:"attempted_events"`
}

// State is the shared session record for one conversation thread.
type State struct {
	UserID   string    `json:"user_id"`
	Messages []Message `json:"messages"`

	// Per-turn routing fields.
	Intent   Intent `json:"intent"`
	NextNode string `json:"next_node"`

	// TutoringActive is true while the conversation is inside a tutoring
	// loop; it gates re-entry into the tutoring node.
	TutoringActive bool `json:"tutoring_active"`

	Analysis        *AnalysisResult `json:"analysis,omitempty"`
	WantsScheduling bool            `json:"wants_scheduling"`
	Schedule        *Schedule       `json:"schedule,omitempty"`

	// TurnComplete forces routing to terminate regardless of other flags.
	TurnComplete bool `json:"turn_complete"`

	// ExitRequested is per-traversal scratch set by the tutoring handler
	// when the exit check fires, read by the post-tutoring routing
	// predicate. Never persisted.
	ExitRequested bool `json:"-"`
}

// New creates a fresh State for a user. Intent starts unknown; the router
// assigns a real intent on the first traversal.
func New(userID string) *State {
	return &State{
		UserID: userID,
		Intent: IntentUnknown,
	}
}

// BeginTurn resets the per-traversal routing fields. Called by the facade
// before each traversal; conversation history and episode flags
// (TutoringActive, Analysis) survive across turns.
func (s *State) BeginTurn() {
	s.Intent = IntentUnknown
	s.NextNode = ""
	s.TurnComplete = false
	s.ExitRequested = false
}

// BeginEpisode marks the start of a fresh tutoring episode: any analysis
// from a previous, unrelated episode is stale and must not leak into a
// later scheduling request.
func (s *State) BeginEpisode() {
	s.TutoringActive = true
	s.Analysis = nil
	s.WantsScheduling = false
}

// AppendUser appends a user message. The log is append-only; nothing in
// the core ever removes entries.
func (s *State) AppendUser(text string) {
	s.Messages = append(s.Messages, Message{Role: RoleUser, Text: text})
}

// AppendAssistant appends a handler response attributed to agent.
func (s *State) AppendAssistant(agent, text string) {
	s.Messages = append(s.Messages, Message{Role: RoleAssistant, Text: text, Agent: agent})
}

// LastUserMessage returns the most recent user message, if any.
func (s *State) LastUserMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleUser {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// LastAssistantMessage returns the most recent assistant message, if any.
func (s *State) LastAssistantMessage() (Message, bool) {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if s.Messages[i].Role == RoleAssistant {
			return s.Messages[i], true
		}
	}
	return Message{}, false
}

// Recent returns up to n trailing messages (both roles, in order).
func (s *State) Recent(n int) []Message {
	if n <= 0 || len(s.Messages) == 0 {
		return nil
	}
	if n > len(s.Messages) {
		n = len(s.Messages)
	}
	out := make([]Message, n)
	copy(out, s.Messages[len(s.Messages)-n:])
	return out
}

// RecentUser returns up to n trailing user messages, oldest first.
func (s *State) RecentUser(n int) []Message {
	if n <= 0 {
		return nil
	}
	var out []Message
	for i := len(s.Messages) - 1; i >= 0 && len(out) < n; i-- {
		if s.Messages[i].Role == RoleUser {
			out = append(out, s.Messages[i])
		}
	}
	// Collected newest-first; restore chronological order.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Clone returns a deep copy. The facade hands a clone to each traversal so
// a failed traversal cannot corrupt the checkpointed state.
func (s *State) Clone() *State {
	cp := *s
	if s.Messages != nil {
		cp.Messages = make([]Message, len(s.Messages))
		copy(cp.Messages, s.Messages)
	}
	if s.Analysis != nil {
		a := *s.Analysis
		if s.Analysis.WeakTopics != nil {
			a.WeakTopics = make([]WeakTopic, len(s.Analysis.WeakTopics))
			copy(a.WeakTopics, s.Analysis.WeakTopics)
		}
		if s.Analysis.PriorityTopics != nil {
			a.PriorityTopics = make([]string, len(s.Analysis.PriorityTopics))
			copy(a.PriorityTopics, s.Analysis.PriorityTopics)
		}
		cp.Analysis = &a
	}
	if s.Schedule != nil {
		sch := *s.Schedule
		if s.Schedule.Blocks != nil {
			sch.Blocks = make([]Block, len(s.Schedule.Blocks))
			copy(sch.Blocks, s.Schedule.Blocks)
		}
		cp.Schedule = &sch
	}
	return &cp
}
