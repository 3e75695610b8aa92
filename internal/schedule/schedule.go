// Package schedule turns availability and session analysis into a
// Pomodoro study plan: fixed-length study blocks separated by short
// breaks, tiled across the availability window. When analysis results
// are present, weak topics claim blocks ahead of everything else.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/studypal/studypal/internal/config"
	"github.com/studypal/studypal/internal/state"
)

// severityBlockWeight is how many study blocks one topic of a given tier
// claims in the rotation before the next topic gets a turn.
var severityBlockWeight = map[state.Severity]int{
	state.SeveritySevere:   3,
	state.SeverityModerate: 2,
	state.SeverityMild:     1,
}

// Generator is the model surface used for availability extraction.
// *llm.Client satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Planner builds study plans.
type Planner struct {
	studyMinutes int
	breakMinutes int
	maxBlocks    int
	gen          Generator
	logger       *slog.Logger
}

// NewPlanner creates a Planner. gen may be nil, in which case availability
// parsing is purely heuristic.
func NewPlanner(cfg config.SchedulerConfig, gen Generator, logger *slog.Logger) *Planner {
	if cfg.StudyMinutes <= 0 {
		cfg.StudyMinutes = config.DefaultStudyMinutes
	}
	if cfg.BreakMinutes <= 0 {
		cfg.BreakMinutes = config.DefaultBreakMinutes
	}
	if cfg.MaxBlocks <= 0 {
		cfg.MaxBlocks = 8
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{
		studyMinutes: cfg.StudyMinutes,
		breakMinutes: cfg.BreakMinutes,
		maxBlocks:    cfg.MaxBlocks,
		gen:          gen,
		logger:       logger.With("component", "schedule"),
	}
}

// Build tiles Pomodoro blocks across the availability window. analysis may
// be nil; when present its weak topics take priority over the user's
// subject list.
func (p *Planner) Build(avail Availability, analysis *state.AnalysisResult) (*state.Schedule, error) {
	start := toMinutes(avail.Start)
	end := toMinutes(avail.End)
	if end <= start {
		return nil, fmt.Errorf("end time %s is not after start time %s", avail.End, avail.Start)
	}
	if start+p.studyMinutes > end {
		return nil, fmt.Errorf("no study block fits between %s and %s", avail.Start, avail.End)
	}

	rotation := subjectRotation(avail.Subjects, analysis)

	sch := &state.Schedule{
		WindowStart:     avail.Start,
		WindowEnd:       avail.End,
		BasedOnAnalysis: analysis != nil && len(analysis.WeakTopics) > 0,
	}

	current := start
	studyBlocks := 0
	for current+p.studyMinutes <= end && studyBlocks < p.maxBlocks {
		blockEnd := current + p.studyMinutes
		sch.Blocks = append(sch.Blocks, state.Block{
			Kind:  state.BlockStudy,
			Topic: rotation[studyBlocks%len(rotation)],
			Start: fromMinutes(current),
			End:   fromMinutes(blockEnd),
		})
		studyBlocks++
		current = blockEnd

		if current+p.breakMinutes > end || studyBlocks == p.maxBlocks {
			break
		}
		sch.Blocks = append(sch.Blocks, state.Block{
			Kind:  state.BlockBreak,
			Start: fromMinutes(current),
			End:   fromMinutes(current + p.breakMinutes),
		})
		current += p.breakMinutes
	}

	p.logger.Debug("plan built",
		"window", avail.Start+"-"+avail.End,
		"study_blocks", studyBlocks,
		"based_on_analysis", sch.BasedOnAnalysis)
	return sch, nil
}

// subjectRotation produces the ordered subject sequence study blocks cycle
// through. Weak topics come first, each repeated by its severity weight
// (severe 3, moderate 2, mild 1), ordered by severity then first
// occurrence. User subjects not already covered follow once each.
func subjectRotation(subjects []string, analysis *state.AnalysisResult) []string {
	var rotation []string
	seen := make(map[string]bool)

	if analysis != nil {
		weak := make([]state.WeakTopic, len(analysis.WeakTopics))
		copy(weak, analysis.WeakTopics)
		sort.SliceStable(weak, func(i, j int) bool {
			if weak[i].Severity.Rank() != weak[j].Severity.Rank() {
				return weak[i].Severity.Rank() > weak[j].Severity.Rank()
			}
			return weak[i].FirstSeen < weak[j].FirstSeen
		})
		for _, wt := range weak {
			if seen[wt.Topic] {
				continue
			}
			seen[wt.Topic] = true
			weight := severityBlockWeight[wt.Severity]
			if weight <= 0 {
				weight = 1
			}
			for i := 0; i < weight; i++ {
				rotation = append(rotation, wt.Topic)
			}
		}
	}

	for _, s := range subjects {
		if !seen[s] {
			seen[s] = true
			rotation = append(rotation, s)
		}
	}

	if len(rotation) == 0 {
		rotation = []string{"General Study"}
	}
	return rotation
}
