package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DefaultStartTime is assumed when the user gives no usable time.
const DefaultStartTime = "09:00"

// Availability is the parsed study window and subject list.
type Availability struct {
	Start    string   // "HH:MM", 24-hour
	End      string   // "HH:MM", 24-hour
	Subjects []string
	Notes    string
}

// extractionPrompt asks the model for strict JSON; the response is
// validated and any deviation falls back to the heuristic parser.
const extractionPrompt = `You are a scheduling assistant.
Extract the user's study availability and subjects from the note below and respond ONLY with JSON.
Required keys: start_time (HH:MM 24-hour), end_time (HH:MM 24-hour), subjects (array of strings).
Optional key: notes (string) for assumptions or clarifications.
USER_NOTE: %s`

type extractedPreferences struct {
	StartTime string   `json:"start_time"`
	EndTime   string   `json:"end_time"`
	Subjects  []string `json:"subjects"`
	Notes     string   `json:"notes"`
}

// ParseAvailability extracts the availability from free text. When a
// generator is configured it is tried first; the regex heuristics are the
// fallback and never fail.
func (p *Planner) ParseAvailability(ctx context.Context, text string) Availability {
	if p.gen != nil {
		avail, err := p.parseWithModel(ctx, text)
		if err == nil {
			return avail
		}
		p.logger.Warn("model availability extraction failed, using heuristics", "error", err)
	}
	return parseHeuristic(text)
}

func (p *Planner) parseWithModel(ctx context.Context, text string) (Availability, error) {
	raw, err := p.gen.Generate(ctx, fmt.Sprintf(extractionPrompt, text))
	if err != nil {
		return Availability{}, err
	}

	// Models love to wrap JSON in code fences.
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")

	var prefs extractedPreferences
	if err := json.Unmarshal([]byte(raw), &prefs); err != nil {
		return Availability{}, fmt.Errorf("decoding extraction response: %w", err)
	}
	if !validClock(prefs.StartTime) || !validClock(prefs.EndTime) {
		return Availability{}, fmt.Errorf("extraction returned invalid times %q-%q", prefs.StartTime, prefs.EndTime)
	}
	if toMinutes(prefs.EndTime) <= toMinutes(prefs.StartTime) {
		return Availability{}, fmt.Errorf("extraction returned empty window %q-%q", prefs.StartTime, prefs.EndTime)
	}
	subjects := make([]string, 0, len(prefs.Subjects))
	for _, s := range prefs.Subjects {
		if s = strings.TrimSpace(s); s != "" {
			subjects = append(subjects, s)
		}
	}
	if len(subjects) == 0 {
		return Availability{}, fmt.Errorf("extraction returned no subjects")
	}

	return Availability{
		Start:    prefs.StartTime,
		End:      prefs.EndTime,
		Subjects: subjects,
		Notes:    prefs.Notes,
	}, nil
}

var (
	rangePattern  = regexp.MustCompile(`(?i)(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*(?:-|to)\s*(\d{1,2})(?::(\d{2}))?\s*(am|pm)?`)
	singlePattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\b`)
	clockPattern  = regexp.MustCompile(`^([01]?\d|2[0-3]):[0-5]\d$`)
)

// subjectMarkers capture the phrase following a study cue; the phrase is
// then split on separators into individual subjects.
var subjectMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)focus on\s+([^.]+)`),
	regexp.MustCompile(`(?i)study\s+([^.]+)`),
	regexp.MustCompile(`(?i)studying\s+([^.]+)`),
	regexp.MustCompile(`(?i)work on\s+([^.]+)`),
	regexp.MustCompile(`(?i)review\s+([^.]+)`),
	regexp.MustCompile(`(?i)subjects?\s*:\s*([^.]+)`),
	regexp.MustCompile(`(?i)topics?\s*:\s*([^.]+)`),
}

var subjectSeparator = regexp.MustCompile(`(?i),|/|\band\b|\bthen\b|&`)

// parseHeuristic extracts the availability with regexes only. It always
// produces a usable window: missing pieces get defaults.
func parseHeuristic(text string) Availability {
	start, end := extractTimeRange(text)
	subjects := extractSubjects(text)

	if len(subjects) == 0 {
		subjects = []string{"General Study"}
	}
	if start == "" {
		start = DefaultStartTime
	}
	if end == "" || toMinutes(end) <= toMinutes(start) {
		end = addMinutes(start, 60)
	}

	return Availability{
		Start:    start,
		End:      end,
		Subjects: subjects,
		Notes:    "Generated via heuristic parser.",
	}
}

// extractTimeRange finds "14-16", "2pm to 4pm", or standalone times.
// Returns empty strings when nothing time-like is present.
func extractTimeRange(text string) (start, end string) {
	if m := rangePattern.FindStringSubmatch(text); m != nil {
		// A marker on either side applies to both ends ("2-4pm").
		start = formatTime(m[1], m[2], m[3], m[6])
		end = formatTime(m[4], m[5], m[6], m[3])
		return start, end
	}

	times := singlePattern.FindAllStringSubmatch(text, -1)
	switch {
	case len(times) >= 2:
		return formatTime(times[0][1], times[0][2], times[0][3], ""),
			formatTime(times[1][1], times[1][2], times[1][3], "")
	case len(times) == 1:
		start = formatTime(times[0][1], times[0][2], times[0][3], "")
		return start, addMinutes(start, 60)
	default:
		return "", ""
	}
}

func formatTime(hour, minute, ampm, fallbackAmpm string) string {
	h, _ := strconv.Atoi(hour)
	m := 0
	if minute != "" {
		m, _ = strconv.Atoi(minute)
	}
	marker := strings.ToLower(ampm)
	if marker == "" {
		marker = strings.ToLower(fallbackAmpm)
	}
	if marker != "" {
		h = h % 12
		if marker == "pm" {
			h += 12
		}
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func extractSubjects(text string) []string {
	var chunks []string
	for _, marker := range subjectMarkers {
		if m := marker.FindStringSubmatch(text); m != nil {
			chunks = append(chunks, m[1])
		}
	}

	var subjects []string
	seen := make(map[string]bool)
	for _, chunk := range chunks {
		for _, part := range subjectSeparator.Split(chunk, -1) {
			subject := strings.Trim(part, " .")
			// Strip a time range that rode along with the subject phrase.
			subject = strings.TrimSpace(rangePattern.ReplaceAllString(subject, ""))
			subject = strings.Trim(subject, " .,")
			if subject == "" {
				continue
			}
			key := strings.ToLower(subject)
			if !seen[key] {
				seen[key] = true
				subjects = append(subjects, subject)
			}
		}
	}
	return subjects
}

func validClock(s string) bool {
	return clockPattern.MatchString(s)
}

func toMinutes(clock string) int {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0
	}
	h, _ := strconv.Atoi(parts[0])
	m, _ := strconv.Atoi(parts[1])
	return h*60 + m
}

func fromMinutes(total int) string {
	total %= 24 * 60
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

func addMinutes(clock string, minutes int) string {
	return fromMinutes(toMinutes(clock) + minutes)
}
