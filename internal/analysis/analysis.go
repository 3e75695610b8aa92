// Package analysis inspects a tutoring transcript for topics the learner
// struggled with. Detection is heuristic: topic phrases are extracted from
// user messages, occurrences counted, and confusion signals add weight.
package analysis

import (
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/studypal/studypal/internal/intent"
	"github.com/studypal/studypal/internal/state"
)

// confusionPhrases signal explicit struggle. Each hit adds weight to every
// topic raised in the same message; weight is only ever added.
var confusionPhrases = []string{
	"confused", "don't understand", "dont understand", "do not understand",
	"doesn't make sense", "makes no sense", "still not clear",
	"lost", "stuck", "struggling", "explain again", "what do you mean",
}

// topicPatterns capture the topic phrase following a struggle or question
// cue. The first capture group is the candidate topic.
var topicPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)confused (?:about|by|with) ([a-z0-9][a-z0-9' -]*)`),
	regexp.MustCompile(`(?i)(?:don't|dont|do not) understand ([a-z0-9][a-z0-9' -]*)`),
	regexp.MustCompile(`(?i)struggling with ([a-z0-9][a-z0-9' -]*)`),
	regexp.MustCompile(`(?i)stuck on ([a-z0-9][a-z0-9' -]*)`),
	regexp.MustCompile(`(?i)what (?:is|are) ([a-z0-9][a-z0-9' -]*)`),
	regexp.MustCompile(`(?i)explain ([a-z0-9][a-z0-9' -]*)`),
	regexp.MustCompile(`(?i)help (?:me )?with ([a-z0-9][a-z0-9' -]*)`),
	regexp.MustCompile(`(?i)tell me about ([a-z0-9][a-z0-9' -]*)`),
}

// trailingStopWords are cut from the end of an extracted topic phrase.
var trailingStopWords = map[string]bool{
	"please": true, "again": true, "now": true, "today": true,
	"more": true, "better": true, "though": true, "then": true,
}

// maxTopicWords bounds a topic phrase to keep it a label, not a sentence.
const maxTopicWords = 4

// schedulingLookback is how many trailing user messages are scanned for a
// scheduling wish.
const schedulingLookback = 5

// minUserMessages below which the transcript is considered too short to
// analyze.
const minUserMessages = 1

// Analyzer extracts weak topics from a session transcript.
type Analyzer struct {
	logger *slog.Logger
}

// NewAnalyzer creates a transcript analyzer.
func NewAnalyzer(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger.With("component", "analysis")}
}

// Analyze scans the transcript and produces the session's analysis result.
// A transcript with no detectable struggles yields a result with no weak
// topics, never nil.
func (a *Analyzer) Analyze(st *state.State) *state.AnalysisResult {
	type topicStats struct {
		occurrences int
		confusion   int
		firstSeen   int
	}
	stats := make(map[string]*topicStats)
	var order []string

	userMessages := 0
	for i, msg := range st.Messages {
		if msg.Role != state.RoleUser {
			continue
		}
		userMessages++

		text := strings.ToLower(msg.Text)
		confusion := countConfusion(text)
		topics := extractTopics(msg.Text)

		for _, topic := range topics {
			ts, ok := stats[topic]
			if !ok {
				ts = &topicStats{firstSeen: i}
				stats[topic] = ts
				order = append(order, topic)
			}
			ts.occurrences++
			ts.confusion += confusion
		}
	}

	result := &state.AnalysisResult{CreatedAt: time.Now().UTC()}
	if userMessages < minUserMessages || len(stats) == 0 {
		result.Summary = "No recurring difficulties detected in this session."
		a.logger.Debug("analysis found no weak topics", "user_messages", userMessages)
		return result
	}

	for _, topic := range order {
		ts := stats[topic]
		result.WeakTopics = append(result.WeakTopics, state.WeakTopic{
			Topic:       topic,
			Severity:    severityFor(ts.occurrences + ts.confusion),
			Occurrences: ts.occurrences,
			FirstSeen:   ts.firstSeen,
		})
	}

	// Priority order: severity descending, ties by first appearance.
	sorted := make([]state.WeakTopic, len(result.WeakTopics))
	copy(sorted, result.WeakTopics)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Severity.Rank() != sorted[j].Severity.Rank() {
			return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
		}
		return sorted[i].FirstSeen < sorted[j].FirstSeen
	})
	for _, wt := range sorted {
		result.PriorityTopics = append(result.PriorityTopics, wt.Topic)
	}

	result.Summary = fmt.Sprintf("Identified %d topic(s) needing review; most pressing: %s.",
		len(result.PriorityTopics), result.PriorityTopics[0])

	a.logger.Debug("analysis complete",
		"weak_topics", len(result.WeakTopics),
		"top", result.PriorityTopics[0])
	return result
}

// WantsScheduling reports whether any of the trailing user messages asks
// for a study schedule.
func (a *Analyzer) WantsScheduling(st *state.State) bool {
	for _, msg := range st.RecentUser(schedulingLookback) {
		if intent.HasSchedulingCue(msg.Text) {
			return true
		}
	}
	return false
}

// severityFor maps a combined occurrence + confusion score to a tier.
// Thresholds are monotonic: a higher score never yields a lower tier.
func severityFor(score int) state.Severity {
	switch {
	case score >= 4:
		return state.SeveritySevere
	case score >= 2:
		return state.SeverityModerate
	default:
		return state.SeverityMild
	}
}

func countConfusion(lowerText string) int {
	n := 0
	for _, phrase := range confusionPhrases {
		if strings.Contains(lowerText, phrase) {
			n++
		}
	}
	return n
}

// extractTopics returns the distinct normalized topic phrases in one
// message, in order of appearance.
func extractTopics(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, pat := range topicPatterns {
		for _, m := range pat.FindAllStringSubmatch(text, -1) {
			topic := normalizeTopic(m[1])
			if topic == "" || seen[topic] {
				continue
			}
			seen[topic] = true
			out = append(out, topic)
		}
	}
	return out
}

// normalizeTopic trims punctuation and filler from a captured phrase and
// bounds its length.
func normalizeTopic(raw string) string {
	raw = strings.ToLower(strings.TrimSpace(raw))
	raw = strings.Trim(raw, ".,!?;:'\"-")

	words := strings.Fields(raw)
	for len(words) > 0 && trailingStopWords[words[len(words)-1]] {
		words = words[:len(words)-1]
	}
	if len(words) == 0 {
		return ""
	}
	if len(words) > maxTopicWords {
		words = words[:maxTopicWords]
	}
	return strings.Join(words, " ")
}
