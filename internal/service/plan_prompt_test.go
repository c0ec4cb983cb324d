package service

import (
	"edumentor_backend/internal/util"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPlanJSON = `{
	"summary": "Focus on fractions first, then decimals.",
	"lessons": [
		{"week": 1, "title": "Fraction basics", "subtopic": "fractions", "description": "intro"},
		{"week": 2, "title": "Decimal place value", "subtopic": "decimals", "description": "drills"}
	]
}`

var planSubtopics = map[string]bool{"fractions": true, "decimals": true}

func TestParsePlanResponsePlainJSON(t *testing.T) {
	plan, err := ParsePlanResponse(validPlanJSON, 2, planSubtopics)
	require.NoError(t, err)
	assert.Len(t, plan.Lessons, 2)
	assert.Equal(t, "fractions", plan.Lessons[0].Subtopic)
}

func TestParsePlanResponseFencedJSON(t *testing.T) {
	fenced := "```json\n" + validPlanJSON + "\n```"
	plan, err := ParsePlanResponse(fenced, 2, planSubtopics)
	require.NoError(t, err)
	assert.Len(t, plan.Lessons, 2)
}

func TestParsePlanResponseProseWrapped(t *testing.T) {
	wrapped := "Here is your plan:\n" + validPlanJSON + "\nLet me know if you need changes."
	plan, err := ParsePlanResponse(wrapped, 2, planSubtopics)
	require.NoError(t, err)
	assert.Len(t, plan.Lessons, 2)
}

func TestParsePlanResponseNotJSON(t *testing.T) {
	_, err := ParsePlanResponse("I cannot produce a plan.", 2, planSubtopics)
	assert.ErrorIs(t, err, util.ErrSchemaValidation)
}

func TestParsePlanResponseRejectsUnknownSubtopic(t *testing.T) {
	bad := `{"summary": "s", "lessons": [{"week": 1, "title": "t", "subtopic": "calculus", "description": ""}]}`
	_, err := ParsePlanResponse(bad, 2, planSubtopics)
	require.ErrorIs(t, err, util.ErrSchemaValidation)
	assert.Contains(t, err.Error(), "calculus")
}

func TestParsePlanResponseRejectsWeekOutOfRange(t *testing.T) {
	bad := `{"summary": "s", "lessons": [{"week": 5, "title": "t", "subtopic": "fractions", "description": ""}]}`
	_, err := ParsePlanResponse(bad, 2, planSubtopics)
	assert.ErrorIs(t, err, util.ErrSchemaValidation)
}

func TestParsePlanResponseRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing summary", `{"lessons": [{"week": 1, "title": "t", "subtopic": "fractions"}]}`},
		{"no lessons", `{"summary": "s", "lessons": []}`},
		{"missing title", `{"summary": "s", "lessons": [{"week": 1, "subtopic": "fractions"}]}`},
		{"missing subtopic", `{"summary": "s", "lessons": [{"week": 1, "title": "t"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlanResponse(tt.body, 2, planSubtopics)
			assert.ErrorIs(t, err, util.ErrSchemaValidation)
		})
	}
}

func TestBuildPlanPromptContents(t *testing.T) {
	mastery := []SubtopicMastery{
		{SubtopicCode: "fractions", Score: 0.2, Label: "needs_support", GapPriority: 1},
		{SubtopicCode: "decimals", Score: 0.8, Label: "proficient", GapPriority: 2},
	}

	prompt := BuildPlanPrompt("math", 4, 3, 9, mastery)
	assert.Contains(t, prompt, "3-week study plan")
	assert.Contains(t, prompt, "grade 4")
	assert.Contains(t, prompt, "fractions: score 0.20")
	assert.Contains(t, prompt, "exactly 9 lessons")
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripCodeFences("noise before {\"a\":1} noise after"))
}
