package service

import (
	"edumentor_backend/internal/util"
	"encoding/json"
	"fmt"
	"strings"
)

// GeneratedPlan is the structure the provider must return. Summary and
// every lesson's title and subtopic are required; anything missing is a
// hard validation failure, never silently repaired.
type GeneratedPlan struct {
	Summary string            `json:"summary"`
	Lessons []GeneratedLesson `json:"lessons"`
}

type GeneratedLesson struct {
	Week        int    `json:"week"`
	Title       string `json:"title"`
	Subtopic    string `json:"subtopic"`
	Description string `json:"description"`
}

const planSystemPrompt = "You are a curriculum planner for a K-12 tutoring platform. " +
	"You respond with a single JSON object and nothing else: no prose, no markdown outside the JSON."

// BuildPlanPrompt renders the mastery map into the structured request the
// provider answers.
func BuildPlanPrompt(subjectCode string, gradeLevel, weeks, lessonCount int, mastery []SubtopicMastery) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Create a %d-week study plan for a grade %d student in subject %q.\n\n", weeks, gradeLevel, subjectCode)
	b.WriteString("Diagnostic mastery per subtopic (0.0 = no mastery, 1.0 = full mastery), weakest first:\n")
	for _, m := range mastery {
		fmt.Fprintf(&b, "- %s: score %.2f, level %s\n", m.SubtopicCode, m.Score, m.Label)
	}

	fmt.Fprintf(&b, "\nPlan exactly %d lessons spread over the %d weeks, spending more lessons on weaker subtopics.\n", lessonCount, weeks)
	b.WriteString("Every lesson's \"subtopic\" must be one of the subtopic codes listed above.\n\n")
	b.WriteString("Respond with JSON matching exactly this shape:\n")
	b.WriteString(`{"summary": "two-sentence overview of the plan", "lessons": [{"week": 1, "title": "lesson title", "subtopic": "subtopic_code", "description": "what the lesson covers"}]}`)

	return b.String()
}

// ParsePlanResponse extracts and validates the provider's plan. Providers
// like to wrap JSON in markdown fences, so those are stripped first.
func ParsePlanResponse(content string, weeks int, knownSubtopics map[string]bool) (*GeneratedPlan, error) {
	cleaned := stripCodeFences(content)

	var plan GeneratedPlan
	if err := json.Unmarshal([]byte(cleaned), &plan); err != nil {
		return nil, fmt.Errorf("%w: not valid JSON: %v", util.ErrSchemaValidation, err)
	}

	if err := validatePlan(&plan, weeks, knownSubtopics); err != nil {
		return nil, err
	}

	return &plan, nil
}

func validatePlan(plan *GeneratedPlan, weeks int, knownSubtopics map[string]bool) error {
	var problems []string

	if strings.TrimSpace(plan.Summary) == "" {
		problems = append(problems, "missing summary")
	}
	if len(plan.Lessons) == 0 {
		problems = append(problems, "no lessons")
	}
	for i, lesson := range plan.Lessons {
		if strings.TrimSpace(lesson.Title) == "" {
			problems = append(problems, fmt.Sprintf("lesson %d: missing title", i+1))
		}
		if strings.TrimSpace(lesson.Subtopic) == "" {
			problems = append(problems, fmt.Sprintf("lesson %d: missing subtopic", i+1))
		} else if len(knownSubtopics) > 0 && !knownSubtopics[lesson.Subtopic] {
			problems = append(problems, fmt.Sprintf("lesson %d: unknown subtopic %q", i+1, lesson.Subtopic))
		}
		if lesson.Week < 1 || lesson.Week > weeks {
			problems = append(problems, fmt.Sprintf("lesson %d: week %d outside plan range 1-%d", i+1, lesson.Week, weeks))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", util.ErrSchemaValidation, strings.Join(problems, "; "))
	}
	return nil
}

func stripCodeFences(s string) string {
	trimmed := strings.TrimSpace(s)

	if strings.HasPrefix(trimmed, "```") {
		if idx := strings.Index(trimmed, "\n"); idx != -1 {
			trimmed = trimmed[idx+1:]
		}
		trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
		return strings.TrimSpace(trimmed)
	}

	// Some providers prepend prose despite instructions; recover the
	// outermost JSON object when one exists.
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start != -1 && end > start {
		return trimmed[start : end+1]
	}

	return trimmed
}
