// Package intent decides which agent handles a message. Cheap keyword and
// time-pattern triggers are checked first; only messages that match nothing
// reach the model classifier. Classifier failures degrade to tutoring so a
// provider outage never blocks the conversation.
package intent

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/studypal/studypal/internal/state"
)

// Classifier is the narrow model surface the router consumes.
// *llm.Client satisfies it.
type Classifier interface {
	Classify(ctx context.Context, text string, labels []string) (string, error)
}

// timePattern recognizes availability-like fragments ("14-15", "2pm",
// "from 2 to 4") which signal a scheduling request even without keywords.
var timePattern = regexp.MustCompile(`(?i)\d{1,2}[-:]\d{1,2}|\d{1,2}\s*(am|pm|to|from)`)

// Keyword trigger lists per intent, matched as lowercase substrings.
var (
	schedulingKeywords = []string{"schedule", "plan", "calendar", "studying"}
	analysisKeywords   = []string{"analyze", "session", "weak points", "finish", "review"}
	motivationKeywords = []string{"motivate", "encourage", "inspiration"}
)

// exitKeywords signal the user wants to leave the tutoring loop.
var exitKeywords = []string{
	"i'm done", "im done", "done for now", "finished",
	"that's all", "that is all", "no more questions",
	"stop", "exit", "quit", "wrap up",
}

// classifyLabels is the closed label set offered to the model.
var classifyLabels = []string{
	string(state.IntentTutoring),
	string(state.IntentScheduling),
	string(state.IntentAnalysis),
	string(state.IntentMotivation),
}

// exitLabels is the binary label set for the tutoring exit check.
var exitLabels = []string{"continue", "end"}

// Router assigns an intent to the latest user message.
type Router struct {
	classifier Classifier
	logger     *slog.Logger
}

// NewRouter creates an intent router.
func NewRouter(classifier Classifier, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{classifier: classifier, logger: logger.With("component", "intent")}
}

// Route determines the intent of the latest user message.
//
// Empty or whitespace-only messages map to IntentUnknown without consulting
// the classifier. Keyword triggers win over the classifier; when neither
// keywords nor the classifier produce an answer, the result is tutoring.
func (r *Router) Route(ctx context.Context, st *state.State) state.Intent {
	msg, ok := st.LastUserMessage()
	text := strings.ToLower(strings.TrimSpace(msg.Text))
	if !ok || text == "" {
		return state.IntentUnknown
	}

	if it, matched := keywordIntent(text); matched {
		r.logger.Debug("intent from keywords", "intent", it)
		return it
	}

	label, err := r.classifier.Classify(ctx, msg.Text, classifyLabels)
	if err != nil {
		r.logger.Warn("intent classification failed, defaulting to tutoring", "error", err)
		return state.IntentTutoring
	}

	it := state.ParseIntent(label)
	if it == state.IntentUnknown {
		// The classifier contract guarantees a label from the set;
		// treat anything else as the default.
		return state.IntentTutoring
	}
	r.logger.Debug("intent from classifier", "intent", it)
	return it
}

// keywordIntent applies the trigger lists. Scheduling wins first so a
// message like "plan my review session" schedules rather than analyzes.
func keywordIntent(text string) (state.Intent, bool) {
	if containsAny(text, schedulingKeywords) || timePattern.MatchString(text) {
		return state.IntentScheduling, true
	}
	if containsAny(text, analysisKeywords) {
		return state.IntentAnalysis, true
	}
	if containsAny(text, motivationKeywords) {
		return state.IntentMotivation, true
	}
	return state.IntentUnknown, false
}

// WantsExit reports whether the user wants to leave the tutoring loop.
//
// Stage one scans the latest user message for exit keywords; with no match
// the answer is continue, without a model call. Stage two confirms a keyword
// hit with the classifier over the last few messages, since phrases like
// "I'm done with this chapter" are not a goodbye. A classifier error means
// continue, never a spurious exit.
func (r *Router) WantsExit(ctx context.Context, st *state.State) bool {
	msg, ok := st.LastUserMessage()
	if !ok {
		return false
	}
	text := strings.ToLower(msg.Text)
	// Analysis requests from inside the tutoring loop count as exit cues too.
	if !containsAny(text, exitKeywords) && !containsAny(text, analysisKeywords) {
		return false
	}

	recent := st.Recent(4)
	var b strings.Builder
	for _, m := range recent {
		b.WriteString(string(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Text)
		b.WriteString("\n")
	}

	label, err := r.classifier.Classify(ctx,
		"Does the student want to end the tutoring session?\n"+b.String(), exitLabels)
	if err != nil {
		r.logger.Debug("exit classification failed, continuing tutoring", "error", err)
		return false
	}
	return label == "end"
}

// HasSchedulingCue reports whether text asks for scheduling. Shared by the
// router and the post-analysis routing predicate.
func HasSchedulingCue(text string) bool {
	lower := strings.ToLower(text)
	return containsAny(lower, schedulingKeywords) || timePattern.MatchString(lower)
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
