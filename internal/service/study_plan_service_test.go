package service

import (
	"context"
	"edumentor_backend/internal/model"
	"edumentor_backend/internal/util"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPlanService(h *diagnosticHarness, chat ChatClient) *StudyPlanService {
	return NewStudyPlanService(h.plans, h.profile, h.assessment, chat, h.cfg)
}

// reportedAssessment seeds a completed assessment with an existing report
// snapshot, the state a plan task finds when it runs.
func reportedAssessment(t *testing.T, h *diagnosticHarness, studentID uint, results map[string][]bool) *model.Assessment {
	t.Helper()
	a := seedCompletedAssessment(t, h, studentID, "math", results)
	reports := newReportService(h)
	require.NoError(t, reports.GenerateReports(context.Background(), studentID))
	return a
}

const plannerResponse = `{
	"summary": "Start with the weakest areas.",
	"lessons": [
		{"week": 1, "title": "Lesson one", "subtopic": "decimals", "description": "first"},
		{"week": 2, "title": "Lesson two", "subtopic": "fractions", "description": "second"}
	]
}`

func TestGeneratePlanPersistsPlanAndCourses(t *testing.T) {
	h := newDiagnosticHarness(t)
	chat := &fakeChat{responses: []string{plannerResponse}}
	svc := newPlanService(h, chat)

	a := reportedAssessment(t, h, 1, map[string][]bool{
		"fractions": {true, false},
		"decimals":  {false, false},
	})

	require.NoError(t, svc.GeneratePlan(context.Background(), a.ID))

	plan, err := h.plans.FindByAssessment(a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Start with the weakest areas.", plan.Summary)

	courses, err := h.plans.ListCourses(plan.ID)
	require.NoError(t, err)
	require.Len(t, courses, 2)
	assert.Equal(t, "decimals", courses[0].SubtopicCode)
	assert.Equal(t, 1, courses[0].Week)

	updated, err := h.assessment.FindByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PipelineReady, updated.PlanStatus)
}

// A redelivered task finds the existing plan and never calls the provider
// again.
func TestGeneratePlanIdempotent(t *testing.T) {
	h := newDiagnosticHarness(t)
	chat := &fakeChat{responses: []string{plannerResponse}}
	svc := newPlanService(h, chat)

	a := reportedAssessment(t, h, 1, map[string][]bool{
		"fractions": {true},
		"decimals":  {false},
	})

	require.NoError(t, svc.GeneratePlan(context.Background(), a.ID))
	require.NoError(t, svc.GeneratePlan(context.Background(), a.ID))

	assert.Equal(t, 1, chat.calls)

	var planCount int64
	require.NoError(t, h.db.Model(&model.StudyPlan{}).Count(&planCount).Error)
	assert.Equal(t, int64(1), planCount)
}

func TestGeneratePlanSchemaFailure(t *testing.T) {
	h := newDiagnosticHarness(t)
	chat := &fakeChat{responses: []string{`{"summary": "", "lessons": []}`}}
	svc := newPlanService(h, chat)

	a := reportedAssessment(t, h, 1, map[string][]bool{
		"fractions": {false},
	})

	err := svc.GeneratePlan(context.Background(), a.ID)
	assert.ErrorIs(t, err, util.ErrSchemaValidation)

	_, err = h.plans.FindByAssessment(a.ID)
	assert.Error(t, err)
}

func TestGeneratePlanProviderRetry(t *testing.T) {
	h := newDiagnosticHarness(t)
	h.cfg.StudyPlan.ProviderRetries = 2
	chat := &fakeChat{
		errs:      []error{util.ErrExternalService},
		responses: []string{"", plannerResponse},
	}
	svc := newPlanService(h, chat)

	a := reportedAssessment(t, h, 1, map[string][]bool{
		"fractions": {true},
		"decimals":  {false},
	})

	require.NoError(t, svc.GeneratePlan(context.Background(), a.ID))
	assert.Equal(t, 2, chat.calls)
}

func TestGeneratePlanMissingReport(t *testing.T) {
	h := newDiagnosticHarness(t)
	svc := newPlanService(h, &fakeChat{})

	a := seedCompletedAssessment(t, h, 1, "math", map[string][]bool{
		"fractions": {true},
	})

	err := svc.GeneratePlan(context.Background(), a.ID)
	assert.Error(t, err)
}

func TestRecordPermanentFailure(t *testing.T) {
	h := newDiagnosticHarness(t)
	svc := newPlanService(h, &fakeChat{})

	a := seedCompletedAssessment(t, h, 1, "math", map[string][]bool{
		"fractions": {true},
	})

	svc.RecordPermanentFailure(a.ID, errors.New("provider kept timing out"))

	updated, err := h.assessment.FindByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PipelineFailed, updated.PlanStatus)
	assert.Contains(t, updated.PlanError, "provider kept timing out")
}

func TestRecommendedWeeksScalesWithGaps(t *testing.T) {
	h := newDiagnosticHarness(t)
	svc := newPlanService(h, &fakeChat{})

	assert.Equal(t, 2, svc.RecommendedWeeks([]SubtopicMastery{
		{Label: model.LabelAdvanced},
	}))

	assert.Equal(t, 5, svc.RecommendedWeeks([]SubtopicMastery{
		{Label: model.LabelNeedsSupport},
		{Label: model.LabelDeveloping},
	}))

	// Many gaps still cap at the configured maximum.
	many := make([]SubtopicMastery, 20)
	for i := range many {
		many[i] = SubtopicMastery{Label: model.LabelNeedsSupport}
	}
	assert.Equal(t, 12, svc.RecommendedWeeks(many))
}

func TestLatestPlanIncludesCourses(t *testing.T) {
	h := newDiagnosticHarness(t)
	chat := &fakeChat{responses: []string{plannerResponse}}
	svc := newPlanService(h, chat)

	a := reportedAssessment(t, h, 1, map[string][]bool{
		"fractions": {true},
		"decimals":  {false},
	})
	require.NoError(t, svc.GeneratePlan(context.Background(), a.ID))

	view, err := svc.LatestPlan(1)
	require.NoError(t, err)
	assert.Equal(t, a.ID, view.Plan.AssessmentID)
	assert.Len(t, view.Courses, 2)
}
