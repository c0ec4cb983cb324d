package service

import (
	"context"
	"edumentor_backend/internal/model"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeDiagnostic(t *testing.T, h *diagnosticHarness, studentID uint, subject string) {
	t.Helper()
	a := &model.Assessment{
		StudentID:   studentID,
		SubjectCode: subject,
		Type:        model.AssessmentDiagnostic,
		Status:      model.AssessmentCompleted,
		GradeLevel:  4,
	}
	require.NoError(t, h.assessment.Create(a))
}

func TestCheckAllSubjectsComplete(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()

	done, err := h.completion.CheckAllSubjectsComplete(ctx, 1)
	require.NoError(t, err)
	assert.False(t, done)

	completeDiagnostic(t, h, 1, "math")
	done, err = h.completion.CheckAllSubjectsComplete(ctx, 1)
	require.NoError(t, err)
	assert.False(t, done)

	completeDiagnostic(t, h, 1, "reading")
	done, err = h.completion.CheckAllSubjectsComplete(ctx, 1)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestOnSessionCompletedSkipsIncompleteRound(t *testing.T) {
	h := newDiagnosticHarness(t)

	completeDiagnostic(t, h, 1, "math")
	require.NoError(t, h.completion.OnSessionCompleted(context.Background(), 1))
	assert.Equal(t, 0, h.queue.reportCount())
}

// Concurrent session completions race for the claim; exactly one wins and
// exactly one report task is enqueued.
func TestOnSessionCompletedClaimRace(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()

	completeDiagnostic(t, h, 1, "math")
	completeDiagnostic(t, h, 1, "reading")

	const racers = 16
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.completion.OnSessionCompleted(ctx, 1)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "racer %d", i)
	}
	assert.Equal(t, 1, h.queue.reportCount())
}

func TestOnSessionCompletedReleasesClaimOnEnqueueFailure(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()

	completeDiagnostic(t, h, 1, "math")
	completeDiagnostic(t, h, 1, "reading")

	h.queue.failEnqueue = true
	err := h.completion.OnSessionCompleted(ctx, 1)
	require.Error(t, err)

	// The claim was released, so a later retry can still dispatch.
	h.queue.failEnqueue = false
	require.NoError(t, h.completion.OnSessionCompleted(ctx, 1))
	assert.Equal(t, 1, h.queue.reportCount())
}

func TestReportReadyFlag(t *testing.T) {
	h := newDiagnosticHarness(t)
	ctx := context.Background()

	assert.False(t, h.completion.IsReportReady(ctx, 1))
	require.NoError(t, h.completion.MarkReportReady(ctx, 1))
	assert.True(t, h.completion.IsReportReady(ctx, 1))
	assert.False(t, h.completion.IsReportReady(ctx, 2))
}
