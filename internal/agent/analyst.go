package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/studypal/studypal/internal/analysis"
	"github.com/studypal/studypal/internal/state"
)

// Analyst summarizes a finished tutoring episode: which topics the learner
// struggled with and in what order to review them. It always ends the
// tutoring loop.
type Analyst struct {
	analyzer *analysis.Analyzer
	logger   *slog.Logger
}

// NewAnalyst creates the analysis handler.
func NewAnalyst(analyzer *analysis.Analyzer, logger *slog.Logger) *Analyst {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyst{
		analyzer: analyzer,
		logger:   logger.With("agent", state.NodeAnalysis),
	}
}

// Name returns the node name used for response attribution.
func (a *Analyst) Name() string { return state.NodeAnalysis }

// Handle analyzes the transcript, records the result and the scheduling
// wish on the state, and clears the tutoring loop. A transcript too short
// to analyze yields an empty result and a response saying so, not an error.
func (a *Analyst) Handle(ctx context.Context, st *state.State) error {
	res := a.analyzer.Analyze(st)
	st.Analysis = res
	st.WantsScheduling = a.analyzer.WantsScheduling(st)
	st.TutoringActive = false
	st.ExitRequested = false

	st.AppendAssistant(a.Name(), a.render(res, st.WantsScheduling))
	st.TurnComplete = true
	return nil
}

func (a *Analyst) render(res *state.AnalysisResult, wantsScheduling bool) string {
	if len(res.WeakTopics) == 0 {
		return "Here's today's summary: no recurring difficulty patterns detected. Nice work!"
	}

	byTopic := make(map[string]state.WeakTopic, len(res.WeakTopics))
	for _, wt := range res.WeakTopics {
		byTopic[wt.Topic] = wt
	}

	var b strings.Builder
	b.WriteString("Here's today's summary. ")
	b.WriteString(res.Summary)
	b.WriteString("\nReview order:\n")
	for i, topic := range res.PriorityTopics {
		wt := byTopic[topic]
		fmt.Fprintf(&b, "%d. %s (%s, came up %d time(s))\n", i+1, wt.Topic, wt.Severity, wt.Occurrences)
	}
	if wantsScheduling {
		b.WriteString("\nLet me turn this into a study schedule.")
	} else {
		b.WriteString("\nSay the word and I'll build a study schedule around these.")
	}
	return b.String()
}
