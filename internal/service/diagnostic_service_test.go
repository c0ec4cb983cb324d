package service

import (
	"context"
	"edumentor_backend/internal/model"
	"edumentor_backend/internal/util"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextQuestionUnknownSubject(t *testing.T) {
	h := newDiagnosticHarness(t)

	_, err := h.diagnostic.NextQuestion(context.Background(), 1, "latin", 4)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestNextQuestionStartsAssessmentOnFirstFetch(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "a")

	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)
	require.NotNil(t, res.Question)
	assert.False(t, res.Completed)
	assert.Equal(t, 1, res.Question.Sequence)
	assert.NotZero(t, res.Question.AssessmentID)

	assessment, err := h.assessment.FindByID(res.Question.AssessmentID)
	require.NoError(t, err)
	assert.Equal(t, model.AssessmentInProgress, assessment.Status)
	assert.Equal(t, h.cfg.Diagnostic.MaxTotalQuestions, assessment.TotalPlanned)

	// The row is persisted at ask time, unanswered.
	rows, err := h.assessment.ListQuestionRows(assessment.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0].AnsweredAt)
}

func TestNextQuestionRefetchReturnsPending(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "a")
	seedQuestion(t, h.db, "math", "arithmetic", "fractions", 4, 3, "a")

	first, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)
	second, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)

	assert.Equal(t, first.Question.QuestionID, second.Question.QuestionID)

	rows, err := h.assessment.ListQuestionRows(first.Question.AssessmentID)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestNextQuestionNeverLeaksAnswer(t *testing.T) {
	h := newDiagnosticHarness(t)
	seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "secret")

	res, err := h.diagnostic.NextQuestion(context.Background(), 1, "math", 4)
	require.NoError(t, err)
	require.NotNil(t, res.Question)
	assert.NotContains(t, res.Question.Content, "secret")
}

func TestSubmitAnswerScoring(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	q := seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "3/4")
	seedQuestion(t, h.db, "math", "arithmetic", "fractions", 4, 4, "a")

	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)
	require.Equal(t, q.ID, res.Question.QuestionID)

	// Normalization: case and whitespace never make an answer wrong.
	result, err := h.diagnostic.SubmitAnswer(ctx, 1, res.Question.AssessmentID, q.ID, "  3/4  ")
	require.NoError(t, err)
	assert.True(t, result.Correct)
	assert.InDelta(t, 0.65, result.Mastery["decimals"], 1e-9)
	assert.False(t, result.Completed)

	// Correct answer stepped difficulty up.
	state, err := h.sessions.LoadState(ctx, 1, "math", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, state.Difficulty)

	row, err := h.assessment.FindQuestionRow(res.Question.AssessmentID, q.ID)
	require.NoError(t, err)
	assert.True(t, row.IsCorrect)
	require.NotNil(t, row.AnsweredAt)
}

func TestSubmitAnswerEmptyRejected(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	q := seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "a")

	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)

	_, err = h.diagnostic.SubmitAnswer(ctx, 1, res.Question.AssessmentID, q.ID, "")
	assert.ErrorIs(t, err, util.ErrValidation)

	// Nothing changed: the question is still pending.
	row, err := h.assessment.FindQuestionRow(res.Question.AssessmentID, q.ID)
	require.NoError(t, err)
	assert.Nil(t, row.AnsweredAt)
}

func TestSubmitAnswerWrongQuestionConflict(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "a")
	other := seedQuestion(t, h.db, "math", "arithmetic", "fractions", 4, 3, "a")

	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)
	require.NotEqual(t, other.ID, res.Question.QuestionID)

	_, err = h.diagnostic.SubmitAnswer(ctx, 1, res.Question.AssessmentID, other.ID, "a")
	assert.ErrorIs(t, err, util.ErrConflict)
}

func TestSubmitAnswerDuplicateConflict(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	q := seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "a")
	seedQuestion(t, h.db, "math", "arithmetic", "fractions", 4, 4, "a")

	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)

	_, err = h.diagnostic.SubmitAnswer(ctx, 1, res.Question.AssessmentID, q.ID, "a")
	require.NoError(t, err)

	_, err = h.diagnostic.SubmitAnswer(ctx, 1, res.Question.AssessmentID, q.ID, "a")
	assert.ErrorIs(t, err, util.ErrConflict)

	// The stored row kept its first verdict.
	row, err := h.assessment.FindQuestionRow(res.Question.AssessmentID, q.ID)
	require.NoError(t, err)
	assert.True(t, row.IsCorrect)
}

func TestAnswerQuestionRowSingleWriter(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	q := seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "a")

	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)

	// Two submissions read the same unanswered row before either writes.
	base, err := h.assessment.FindQuestionRow(res.Question.AssessmentID, q.ID)
	require.NoError(t, err)
	now := time.Now()

	first := *base
	first.StudentAnswer = "a"
	first.IsCorrect = true
	first.AnsweredAt = &now

	second := *base
	second.StudentAnswer = "b"
	second.IsCorrect = false
	second.AnsweredAt = &now

	claimed, err := h.assessment.AnswerQuestionRow(&first)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = h.assessment.AnswerQuestionRow(&second)
	require.NoError(t, err)
	assert.False(t, claimed)

	got, err := h.assessment.FindQuestionRow(res.Question.AssessmentID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.StudentAnswer)
	assert.True(t, got.IsCorrect)
}

func TestSubmitAnswerLostRaceConflict(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	q := seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "a")

	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)

	// A racing submission wins the row write while the cached state still
	// marks the question pending.
	row, err := h.assessment.FindQuestionRow(res.Question.AssessmentID, q.ID)
	require.NoError(t, err)
	now := time.Now()
	row.StudentAnswer = "a"
	row.IsCorrect = true
	row.AnsweredAt = &now
	claimed, err := h.assessment.AnswerQuestionRow(row)
	require.NoError(t, err)
	require.True(t, claimed)

	_, err = h.diagnostic.SubmitAnswer(ctx, 1, res.Question.AssessmentID, q.ID, "b")
	assert.ErrorIs(t, err, util.ErrConflict)

	got, err := h.assessment.FindQuestionRow(res.Question.AssessmentID, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", got.StudentAnswer)
	assert.True(t, got.IsCorrect)
}

func TestSubmitAnswerWrongStudentNotFound(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	q := seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "a")

	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)

	_, err = h.diagnostic.SubmitAnswer(ctx, 99, res.Question.AssessmentID, q.ID, "a")
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestSessionCompletesAtTotalCap(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	h.cfg.Diagnostic.MaxTotalQuestions = 4
	h.cfg.Diagnostic.MaxPerSubtopic = 2

	for d := 1; d <= 5; d++ {
		seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, d, "a")
		seedQuestion(t, h.db, "math", "arithmetic", "fractions", 4, d, "a")
		seedQuestion(t, h.db, "math", "geometry", "angles", 4, d, "a")
	}

	var assessmentID uint
	for i := 0; i < 4; i++ {
		res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
		require.NoError(t, err)
		require.NotNil(t, res.Question, "question %d", i+1)
		assessmentID = res.Question.AssessmentID

		result, err := h.diagnostic.SubmitAnswer(ctx, 1, assessmentID, res.Question.QuestionID, "a")
		require.NoError(t, err)
		if i == 3 {
			assert.True(t, result.Completed)
		} else {
			assert.False(t, result.Completed)
		}
	}

	assessment, err := h.assessment.FindByID(assessmentID)
	require.NoError(t, err)
	assert.Equal(t, model.AssessmentCompleted, assessment.Status)

	// Subsequent fetches report completion without a new session.
	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.Nil(t, res.Question)
}

func TestPerSubtopicCapHolds(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	h.cfg.Diagnostic.MaxTotalQuestions = 10
	h.cfg.Diagnostic.MaxPerSubtopic = 2

	for d := 1; d <= 5; d++ {
		seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, d, "a")
		seedQuestion(t, h.db, "math", "arithmetic", "fractions", 4, d, "a")
		seedQuestion(t, h.db, "math", "geometry", "angles", 4, d, "a")
	}

	counts := map[string]int{}
	for {
		res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
		require.NoError(t, err)
		if res.Completed {
			break
		}
		counts[res.Question.SubtopicCode]++
		_, err = h.diagnostic.SubmitAnswer(ctx, 1, res.Question.AssessmentID, res.Question.QuestionID, "a")
		require.NoError(t, err)
	}

	for code, n := range counts {
		assert.LessOrEqual(t, n, 2, "subtopic %s over cap", code)
	}
}

// An empty bank for the subject completes the session instead of looping.
func TestBankExhaustionCompletesEarly(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	q := seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "a")

	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)
	assessmentID := res.Question.AssessmentID
	_, err = h.diagnostic.SubmitAnswer(ctx, 1, assessmentID, q.ID, "a")
	require.NoError(t, err)

	// Only one question existed; the next fetch exhausts the bank.
	res, err = h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)
	assert.True(t, res.Completed)

	assessment, err := h.assessment.FindByID(assessmentID)
	require.NoError(t, err)
	assert.Equal(t, model.AssessmentCompleted, assessment.Status)
}

// A subject with no questions at all never creates an assessment row.
func TestEmptyBankCompletesWithAssessment(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()

	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)
	assert.True(t, res.Completed)

	// The empty-bank completion still writes a completed assessment so the
	// status endpoint and cross-subject completion agree with the response.
	a, err := h.assessment.FindLatestDiagnostic(1, "math")
	require.NoError(t, err)
	assert.Equal(t, model.AssessmentCompleted, a.Status)
	assert.Equal(t, 0, a.AnsweredCount)

	status, err := h.diagnostic.Status(ctx, 1)
	require.NoError(t, err)
	for _, entry := range status.Subjects {
		if entry.SubjectCode == "math" {
			assert.Equal(t, model.AssessmentCompleted, entry.Status)
		}
	}
	assert.False(t, status.AllComplete)
}

func TestStatusAcrossSubjects(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()
	h.cfg.Diagnostic.MaxTotalQuestions = 1

	seedQuestion(t, h.db, "math", "arithmetic", "decimals", 4, 3, "a")
	seedQuestion(t, h.db, "reading", "comprehension", "main_idea", 4, 3, "a")

	res, err := h.diagnostic.NextQuestion(ctx, 1, "math", 4)
	require.NoError(t, err)
	_, err = h.diagnostic.SubmitAnswer(ctx, 1, res.Question.AssessmentID, res.Question.QuestionID, "a")
	require.NoError(t, err)

	status, err := h.diagnostic.Status(ctx, 1)
	require.NoError(t, err)
	require.Len(t, status.Subjects, 2)
	assert.False(t, status.AllComplete)
	assert.False(t, status.ReportReady)

	byCode := map[string]SubjectStatus{}
	for _, s := range status.Subjects {
		byCode[s.SubjectCode] = s
	}
	assert.Equal(t, model.AssessmentCompleted, byCode["math"].Status)
	assert.Equal(t, model.AssessmentNotStarted, byCode["reading"].Status)

	// Finish reading: the round flips to complete.
	res, err = h.diagnostic.NextQuestion(ctx, 1, "reading", 4)
	require.NoError(t, err)
	_, err = h.diagnostic.SubmitAnswer(ctx, 1, res.Question.AssessmentID, res.Question.QuestionID, "a")
	require.NoError(t, err)

	status, err = h.diagnostic.Status(ctx, 1)
	require.NoError(t, err)
	assert.True(t, status.AllComplete)
	assert.Equal(t, 1, h.queue.reportCount())
}
