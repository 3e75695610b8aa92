package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/studypal/studypal/internal/calendar"
	"github.com/studypal/studypal/internal/schedule"
	"github.com/studypal/studypal/internal/state"
)

// Scheduler builds a Pomodoro study plan from the user's availability and,
// when present, the episode's analysis result. Study blocks are synced to
// the calendar one event at a time; break blocks never are. Per-event
// failures degrade the sync summary, never the turn.
type Scheduler struct {
	planner *schedule.Planner
	cal     EventCreator
	now     func() time.Time
	logger  *slog.Logger
}

// NewScheduler creates the scheduling handler. cal may be nil when no
// calendar integration is configured.
func NewScheduler(planner *schedule.Planner, cal EventCreator, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		planner: planner,
		cal:     cal,
		now:     time.Now,
		logger:  logger.With("agent", state.NodeScheduling),
	}
}

// Name returns the node name used for response attribution.
func (s *Scheduler) Name() string { return state.NodeScheduling }

// Handle parses availability from the latest message, builds the plan,
// attempts the calendar sync, and reports the result. The scheduling wish
// is consumed whether or not a plan could be built.
func (s *Scheduler) Handle(ctx context.Context, st *state.State) error {
	defer func() {
		st.WantsScheduling = false
		st.TurnComplete = true
	}()

	var text string
	if msg, ok := st.LastUserMessage(); ok {
		text = msg.Text
	}

	avail := s.planner.ParseAvailability(ctx, text)
	sch, err := s.planner.Build(avail, st.Analysis)
	if err != nil {
		s.logger.Warn("plan generation failed", "user_id", st.UserID, "error", err)
		st.AppendAssistant(s.Name(), fmt.Sprintf(
			"I couldn't fit a study plan into %s-%s. Could you give me a wider time window?",
			avail.Start, avail.End))
		return nil
	}

	s.sync(ctx, sch)
	st.Schedule = sch

	st.AppendAssistant(s.Name(), s.render(sch))
	return nil
}

// sync creates one calendar event per study block. Each event is attempted
// independently so a failing calendar degrades the summary instead of
// discarding the plan.
func (s *Scheduler) sync(ctx context.Context, sch *state.Schedule) {
	if s.cal == nil {
		return
	}

	day := s.now()
	for _, block := range sch.Blocks {
		if block.Kind != state.BlockStudy {
			continue
		}
		sch.AttemptedEvents++

		ev := calendar.Event{
			Summary:     "Study: " + block.Topic,
			Description: "StudyPal study block",
			Start:       blockTime(day, block.Start),
			End:         blockTime(day, block.End),
		}
		if err := s.cal.CreateEvent(ctx, ev); err != nil {
			s.logger.Warn("calendar event failed", "topic", block.Topic, "start", block.Start, "error", err)
			continue
		}
		sch.SyncedEvents++
	}

	s.logger.Info("calendar sync finished",
		"synced", sch.SyncedEvents, "attempted", sch.AttemptedEvents)
}

func (s *Scheduler) render(sch *state.Schedule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here's your study plan for %s-%s:\n", sch.WindowStart, sch.WindowEnd)
	for _, block := range sch.Blocks {
		if block.Kind == state.BlockStudy {
			fmt.Fprintf(&b, "  %s-%s  Study: %s\n", block.Start, block.End, block.Topic)
		} else {
			fmt.Fprintf(&b, "  %s-%s  Break\n", block.Start, block.End)
		}
	}
	if sch.BasedOnAnalysis {
		b.WriteString("I gave the topics you struggled with the most time.\n")
	}

	switch {
	case s.cal == nil:
		b.WriteString("Calendar sync is not configured, so the plan stays here in the chat.")
	case sch.SyncedEvents == sch.AttemptedEvents:
		fmt.Fprintf(&b, "Synced %d of %d study blocks to your calendar.",
			sch.SyncedEvents, sch.AttemptedEvents)
	default:
		fmt.Fprintf(&b, "Synced %d of %d study blocks to your calendar; the rest could not be created.",
			sch.SyncedEvents, sch.AttemptedEvents)
	}
	return b.String()
}

// blockTime anchors an "HH:MM" wall-clock label to the given day.
func blockTime(day time.Time, clock string) time.Time {
	var h, m int
	fmt.Sscanf(clock, "%d:%d", &h, &m)
	return time.Date(day.Year(), day.Month(), day.Day(), h, m, 0, 0, day.Location())
}
