package schedule

import (
	"context"
	"errors"
	"testing"

	"github.com/studypal/studypal/internal/config"
	"github.com/studypal/studypal/internal/log"
	"github.com/studypal/studypal/internal/state"
)

func testPlanner(gen Generator) *Planner {
	return NewPlanner(config.SchedulerConfig{
		StudyMinutes: 25,
		BreakMinutes: 5,
		MaxBlocks:    8,
	}, gen, log.NewNop())
}

type fakeGenerator struct {
	out string
	err error
}

func (f *fakeGenerator) Generate(context.Context, string) (string, error) {
	return f.out, f.err
}

func TestBuildTilesWindow(t *testing.T) {
	t.Parallel()

	p := testPlanner(nil)
	sch, err := p.Build(Availability{
		Start:    "14:00",
		End:      "16:00",
		Subjects: []string{"math"},
	}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	var study, brk int
	prevEnd := "14:00"
	for _, b := range sch.Blocks {
		if b.Start != prevEnd {
			t.Errorf("gap or overlap: block starts %s, previous ended %s", b.Start, prevEnd)
		}
		prevEnd = b.End
		switch b.Kind {
		case state.BlockStudy:
			study++
			if b.Topic == "" {
				t.Error("study block without topic")
			}
			if toMinutes(b.End)-toMinutes(b.Start) != 25 {
				t.Errorf("study block %s-%s is not 25 minutes", b.Start, b.End)
			}
		case state.BlockBreak:
			brk++
			if toMinutes(b.End)-toMinutes(b.Start) != 5 {
				t.Errorf("break block %s-%s is not 5 minutes", b.Start, b.End)
			}
		}
	}

	if study != 4 {
		t.Errorf("study blocks = %d, want 4 in a 2h window at 25/5", study)
	}
	if toMinutes(prevEnd) > toMinutes("16:00") {
		t.Errorf("plan overruns the window: ends %s", prevEnd)
	}
	if sch.BasedOnAnalysis {
		t.Error("BasedOnAnalysis should be false without analysis")
	}
}

func TestBuildRejectsEmptyWindow(t *testing.T) {
	t.Parallel()

	p := testPlanner(nil)

	if _, err := p.Build(Availability{Start: "16:00", End: "14:00", Subjects: []string{"x"}}, nil); err == nil {
		t.Error("Build with inverted window should fail")
	}
	if _, err := p.Build(Availability{Start: "14:00", End: "14:10", Subjects: []string{"x"}}, nil); err == nil {
		t.Error("Build with window smaller than one study block should fail")
	}
}

func TestBuildHonorsMaxBlocks(t *testing.T) {
	t.Parallel()

	p := NewPlanner(config.SchedulerConfig{StudyMinutes: 25, BreakMinutes: 5, MaxBlocks: 2}, nil, log.NewNop())
	sch, err := p.Build(Availability{Start: "08:00", End: "20:00", Subjects: []string{"math"}}, nil)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	study := 0
	for _, b := range sch.Blocks {
		if b.Kind == state.BlockStudy {
			study++
		}
	}
	if study != 2 {
		t.Errorf("study blocks = %d, want capped at 2", study)
	}
	last := sch.Blocks[len(sch.Blocks)-1]
	if last.Kind == state.BlockBreak {
		t.Error("plan should not end with a dangling break after the cap")
	}
}

func TestSubjectRotationPrioritizesWeakTopics(t *testing.T) {
	t.Parallel()

	analysis := &state.AnalysisResult{
		WeakTopics: []state.WeakTopic{
			{Topic: "integrals", Severity: state.SeverityMild, FirstSeen: 0},
			{Topic: "derivatives", Severity: state.SeveritySevere, FirstSeen: 2},
			{Topic: "limits", Severity: state.SeverityModerate, FirstSeen: 4},
		},
	}

	rotation := subjectRotation([]string{"history"}, analysis)

	want := []string{
		"derivatives", "derivatives", "derivatives", // severe: 3 blocks
		"limits", "limits", // moderate: 2 blocks
		"integrals", // mild: 1 block
		"history",   // user subject last
	}
	if len(rotation) != len(want) {
		t.Fatalf("rotation = %v, want %v", rotation, want)
	}
	for i := range want {
		if rotation[i] != want[i] {
			t.Fatalf("rotation = %v, want %v", rotation, want)
		}
	}
}

func TestSubjectRotationTieBreakByFirstSeen(t *testing.T) {
	t.Parallel()

	analysis := &state.AnalysisResult{
		WeakTopics: []state.WeakTopic{
			{Topic: "later", Severity: state.SeverityModerate, FirstSeen: 6},
			{Topic: "earlier", Severity: state.SeverityModerate, FirstSeen: 1},
		},
	}

	rotation := subjectRotation(nil, analysis)
	if rotation[0] != "earlier" {
		t.Errorf("rotation = %v, want earlier first (same severity, earlier first seen)", rotation)
	}
}

func TestSubjectRotationEmptyFallsBack(t *testing.T) {
	t.Parallel()

	rotation := subjectRotation(nil, nil)
	if len(rotation) != 1 || rotation[0] != "General Study" {
		t.Errorf("rotation = %v, want [General Study]", rotation)
	}
}

func TestBuildSetsBasedOnAnalysis(t *testing.T) {
	t.Parallel()

	p := testPlanner(nil)
	analysis := &state.AnalysisResult{
		WeakTopics: []state.WeakTopic{{Topic: "derivatives", Severity: state.SeveritySevere}},
	}

	sch, err := p.Build(Availability{Start: "14:00", End: "15:00", Subjects: nil}, analysis)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !sch.BasedOnAnalysis {
		t.Error("BasedOnAnalysis should be true with weak topics present")
	}
	if sch.Blocks[0].Topic != "derivatives" {
		t.Errorf("first block topic = %q, want derivatives", sch.Blocks[0].Topic)
	}
}

func TestExtractTimeRange(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text      string
		wantStart string
		wantEnd   string
	}{
		{"I'm free 14-16", "14:00", "16:00"},
		{"from 2pm to 4pm", "14:00", "16:00"},
		{"2-4pm works", "14:00", "16:00"},
		{"between 9:30 and 11:00", "09:30", "11:00"},
		{"I have an hour at 3pm", "15:00", "16:00"},
		{"no times here", "", ""},
	}

	for _, tt := range tests {
		start, end := extractTimeRange(tt.text)
		if start != tt.wantStart || end != tt.wantEnd {
			t.Errorf("extractTimeRange(%q) = %q, %q; want %q, %q",
				tt.text, start, end, tt.wantStart, tt.wantEnd)
		}
	}
}

func TestExtractSubjects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want []string
	}{
		{"I want to study math and physics", []string{"math", "physics"}},
		{"focus on organic chemistry", []string{"organic chemistry"}},
		{"subjects: algebra, geometry", []string{"algebra", "geometry"}},
		{"study math 14-16", []string{"math"}},
		{"just hanging out", nil},
	}

	for _, tt := range tests {
		got := extractSubjects(tt.text)
		if len(got) != len(tt.want) {
			t.Errorf("extractSubjects(%q) = %v, want %v", tt.text, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("extractSubjects(%q) = %v, want %v", tt.text, got, tt.want)
			}
		}
	}
}

func TestParseHeuristicDefaults(t *testing.T) {
	t.Parallel()

	avail := parseHeuristic("help me plan something")
	if avail.Start != DefaultStartTime {
		t.Errorf("start = %q, want default %q", avail.Start, DefaultStartTime)
	}
	if toMinutes(avail.End)-toMinutes(avail.Start) != 60 {
		t.Errorf("window = %s-%s, want one hour default", avail.Start, avail.End)
	}
	if len(avail.Subjects) != 1 || avail.Subjects[0] != "General Study" {
		t.Errorf("subjects = %v, want [General Study]", avail.Subjects)
	}
}

func TestParseAvailabilityModelPath(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{out: `{"start_time":"10:00","end_time":"12:00","subjects":["biology"]}`}
	p := testPlanner(gen)

	avail := p.ParseAvailability(context.Background(), "tomorrow morning, biology")
	if avail.Start != "10:00" || avail.End != "12:00" {
		t.Errorf("window = %s-%s, want 10:00-12:00", avail.Start, avail.End)
	}
	if len(avail.Subjects) != 1 || avail.Subjects[0] != "biology" {
		t.Errorf("subjects = %v, want [biology]", avail.Subjects)
	}
}

func TestParseAvailabilityModelFenced(t *testing.T) {
	t.Parallel()

	gen := &fakeGenerator{out: "```json\n{\"start_time\":\"10:00\",\"end_time\":\"12:00\",\"subjects\":[\"biology\"]}\n```"}
	p := testPlanner(gen)

	avail := p.ParseAvailability(context.Background(), "tomorrow morning, biology")
	if avail.Start != "10:00" {
		t.Errorf("fenced JSON not handled: %+v", avail)
	}
}

func TestParseAvailabilityModelFallsBack(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		gen  *fakeGenerator
	}{
		{"generate error", &fakeGenerator{err: errors.New("down")}},
		{"invalid json", &fakeGenerator{out: "sure! here is your schedule"}},
		{"missing subjects", &fakeGenerator{out: `{"start_time":"10:00","end_time":"12:00","subjects":[]}`}},
		{"inverted window", &fakeGenerator{out: `{"start_time":"12:00","end_time":"10:00","subjects":["x"]}`}},
		{"bad clock", &fakeGenerator{out: `{"start_time":"25:00","end_time":"26:00","subjects":["x"]}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := testPlanner(tt.gen)
			avail := p.ParseAvailability(context.Background(), "study math 14-16")
			// Heuristic fallback should kick in and parse the text itself.
			if avail.Start != "14:00" || avail.End != "16:00" {
				t.Errorf("fallback window = %s-%s, want 14:00-16:00", avail.Start, avail.End)
			}
			if len(avail.Subjects) != 1 || avail.Subjects[0] != "math" {
				t.Errorf("fallback subjects = %v, want [math]", avail.Subjects)
			}
		})
	}
}
