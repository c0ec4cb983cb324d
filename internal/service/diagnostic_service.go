package service

import (
	"context"
	"edumentor_backend/internal/config"
	"edumentor_backend/internal/model"
	"edumentor_backend/internal/repository"
	"edumentor_backend/internal/util"
	"edumentor_backend/pkg/logger"
	"edumentor_backend/pkg/monitoring"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DiagnosticService drives the interactive path: question fetch and answer
// submission for one (student, subject) session.
type DiagnosticService struct {
	Sessions   *SessionService
	Selector   *Selector
	Completion *CompletionService
	Assessment *repository.AssessmentRepository
	Bank       *repository.QuestionBankRepository
	Taxonomy   *repository.TaxonomyRepository
	Cfg        *config.Config
}

func NewDiagnosticService(
	sessions *SessionService,
	selector *Selector,
	completion *CompletionService,
	assessmentRepo *repository.AssessmentRepository,
	bankRepo *repository.QuestionBankRepository,
	taxonomyRepo *repository.TaxonomyRepository,
	cfg *config.Config,
) *DiagnosticService {
	return &DiagnosticService{
		Sessions:   sessions,
		Selector:   selector,
		Completion: completion,
		Assessment: assessmentRepo,
		Bank:       bankRepo,
		Taxonomy:   taxonomyRepo,
		Cfg:        cfg,
	}
}

func (s *DiagnosticService) SetConfig(cfg *config.Config) {
	s.Cfg = cfg
}

// QuestionView is what the client sees: never the correct answer.
type QuestionView struct {
	AssessmentID uint            `json:"assessmentId"`
	QuestionID   uint            `json:"questionId"`
	SubtopicCode string          `json:"subtopicCode"`
	Difficulty   int             `json:"difficulty"`
	Sequence     int             `json:"sequence"`
	Content      string          `json:"content"`
	Options      json.RawMessage `json:"options"`
}

type NextQuestionResult struct {
	Completed bool          `json:"completed"`
	Question  *QuestionView `json:"question,omitempty"`
}

// NextQuestion loads (or rebuilds) the session, enforces the caps, and
// resolves the next question through the selector. Cap hit and bank
// exhaustion both end the session as a legitimate completion.
func (s *DiagnosticService) NextQuestion(ctx context.Context, studentID uint, subjectCode string, gradeLevel int) (*NextQuestionResult, error) {
	if _, err := s.Taxonomy.FindSubject(subjectCode); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("subject %s: %w", subjectCode, util.ErrNotFound)
		}
		return nil, err
	}

	state, err := s.Sessions.LoadState(ctx, studentID, subjectCode, gradeLevel)
	if err != nil {
		return nil, err
	}

	if state.Status == model.AssessmentCompleted {
		return &NextQuestionResult{Completed: true}, nil
	}

	// Re-fetch of the question already in flight: hand the same one back
	// instead of burning a new slot.
	if state.PendingQuestionID != 0 {
		return s.pendingView(state)
	}

	if state.TotalAsked >= s.Cfg.Diagnostic.MaxTotalQuestions {
		if err := s.finish(ctx, state); err != nil {
			return nil, err
		}
		return &NextQuestionResult{Completed: true}, nil
	}

	question, err := s.Selector.SelectNext(state)
	if err != nil {
		if errors.Is(err, util.ErrBankExhausted) {
			// Sparse content coverage: complete early rather than loop.
			// A subject with no usable content still gets a completed
			// assessment so the status and completion surfaces agree.
			if state.Status == model.AssessmentNotStarted {
				if err := s.Sessions.StartAssessment(ctx, state); err != nil {
					return nil, err
				}
			}
			if err := s.finish(ctx, state); err != nil {
				return nil, err
			}
			return &NextQuestionResult{Completed: true}, nil
		}
		return nil, err
	}

	if state.Status == model.AssessmentNotStarted {
		if err := s.Sessions.StartAssessment(ctx, state); err != nil {
			return nil, err
		}
	}

	sequence := state.TotalAsked + 1
	row := &model.AssessmentQuestion{
		AssessmentID: state.AssessmentID,
		QuestionID:   question.ID,
		SubtopicCode: question.SubtopicCode,
		Difficulty:   question.Difficulty,
		Sequence:     sequence,
	}
	if err := s.Assessment.CreateQuestionRow(row); err != nil {
		return nil, err
	}

	state.AskedIDs = append(state.AskedIDs, question.ID)
	state.SubtopicCounts[question.SubtopicCode]++
	state.TotalAsked++
	state.PendingQuestionID = question.ID
	state.PendingSubtopic = question.SubtopicCode

	if err := s.Sessions.SaveState(ctx, state); err != nil {
		return nil, err
	}

	monitoring.QuestionsServed.WithLabelValues(subjectCode).Inc()

	return &NextQuestionResult{
		Question: &QuestionView{
			AssessmentID: state.AssessmentID,
			QuestionID:   question.ID,
			SubtopicCode: question.SubtopicCode,
			Difficulty:   question.Difficulty,
			Sequence:     sequence,
			Content:      question.Content,
			Options:      question.Options,
		},
	}, nil
}

func (s *DiagnosticService) pendingView(state *SessionState) (*NextQuestionResult, error) {
	question, err := s.Bank.FindByID(state.PendingQuestionID)
	if err != nil {
		return nil, err
	}
	return &NextQuestionResult{
		Question: &QuestionView{
			AssessmentID: state.AssessmentID,
			QuestionID:   question.ID,
			SubtopicCode: question.SubtopicCode,
			Difficulty:   question.Difficulty,
			Sequence:     state.TotalAsked,
			Content:      question.Content,
			Options:      question.Options,
		},
	}, nil
}

func (s *DiagnosticService) finish(ctx context.Context, state *SessionState) error {
	if err := s.Sessions.CompleteSession(ctx, state); err != nil {
		return err
	}
	return s.Completion.OnSessionCompleted(ctx, state.StudentID)
}

type AnswerResult struct {
	Correct   bool               `json:"correct"`
	Mastery   map[string]float64 `json:"mastery"`
	Completed bool               `json:"completed"`
}

// SubmitAnswer scores the submitted answer against the stored one,
// applies the bounded mastery update and the difficulty staircase,
// persists the answer row, and advances the session. A submission for a
// question that is not the current one, or that was already answered, is
// a conflict, never a state change.
func (s *DiagnosticService) SubmitAnswer(ctx context.Context, studentID, assessmentID, questionID uint, rawAnswer string) (*AnswerResult, error) {
	if rawAnswer == "" {
		return nil, fmt.Errorf("empty answer: %w", util.ErrValidation)
	}

	assessment, err := s.Assessment.FindByID(assessmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("assessment %d: %w", assessmentID, util.ErrNotFound)
		}
		return nil, err
	}
	if assessment.StudentID != studentID {
		return nil, fmt.Errorf("assessment %d: %w", assessmentID, util.ErrNotFound)
	}
	if assessment.Status == model.AssessmentCompleted {
		return nil, fmt.Errorf("assessment already completed: %w", util.ErrConflict)
	}

	state, err := s.Sessions.LoadState(ctx, studentID, assessment.SubjectCode, assessment.GradeLevel)
	if err != nil {
		return nil, err
	}
	if state.AssessmentID != assessmentID {
		return nil, fmt.Errorf("assessment %d is not the active session: %w", assessmentID, util.ErrConflict)
	}
	if state.PendingQuestionID != questionID {
		return nil, fmt.Errorf("question %d is not the current question: %w", questionID, util.ErrConflict)
	}

	row, err := s.Assessment.FindQuestionRow(assessmentID, questionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("question %d: %w", questionID, util.ErrNotFound)
		}
		return nil, err
	}
	if row.AnsweredAt != nil {
		return nil, fmt.Errorf("question %d: %w", questionID, util.ErrConflict)
	}

	question, err := s.Bank.FindByID(questionID)
	if err != nil {
		return nil, err
	}

	correct := util.NormalizeAnswer(rawAnswer) == util.NormalizeAnswer(question.Answer)

	now := time.Now()
	row.StudentAnswer = rawAnswer
	row.IsCorrect = correct
	row.AnsweredAt = &now
	claimed, err := s.Assessment.AnswerQuestionRow(row)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// A concurrent submission answered this question between our
		// read and this write; its verdict stands.
		return nil, fmt.Errorf("question %d: %w", questionID, util.ErrConflict)
	}

	d := s.Cfg.Diagnostic
	state.Mastery[question.SubtopicCode] = SteppedMastery(state.MasteryOf(question.SubtopicCode), correct, d.MasteryStep)
	state.Difficulty = SteppedDifficulty(state.Difficulty, correct, d.MinDifficulty, d.MaxDifficulty)
	state.PendingQuestionID = 0
	state.PendingSubtopic = ""

	assessment.AnsweredCount++
	if err := s.Assessment.Update(assessment); err != nil {
		return nil, err
	}

	monitoring.AnswersScored.WithLabelValues(assessment.SubjectCode, strconv.FormatBool(correct)).Inc()

	completed := assessment.AnsweredCount >= d.MaxTotalQuestions
	if completed {
		if err := s.finish(ctx, state); err != nil {
			return nil, err
		}
	} else if err := s.Sessions.SaveState(ctx, state); err != nil {
		return nil, err
	}

	logger.Log.Debug("answer scored",
		zap.Uint("assessmentId", assessmentID),
		zap.Uint("questionId", questionID),
		zap.Bool("correct", correct),
		zap.Bool("completed", completed))

	return &AnswerResult{
		Correct:   correct,
		Mastery:   state.Mastery,
		Completed: completed,
	}, nil
}

// SubjectStatus summarizes one subject's diagnostic progress for the
// status endpoint.
type SubjectStatus struct {
	SubjectCode   string                 `json:"subjectCode"`
	Status        model.AssessmentStatus `json:"status"`
	AnsweredCount int                    `json:"answeredCount"`
	TotalPlanned  int                    `json:"totalPlanned"`
	ReportStatus  model.PipelineStatus   `json:"reportStatus"`
	PlanStatus    model.PipelineStatus   `json:"planStatus"`
}

type DiagnosticStatus struct {
	Subjects    []SubjectStatus `json:"subjects"`
	AllComplete bool            `json:"allComplete"`
	ReportReady bool            `json:"reportReady"`
}

func (s *DiagnosticService) Status(ctx context.Context, studentID uint) (*DiagnosticStatus, error) {
	subjects, err := s.Taxonomy.ListRequiredSubjects()
	if err != nil {
		return nil, err
	}

	status := &DiagnosticStatus{AllComplete: len(subjects) > 0}
	for _, subject := range subjects {
		entry := SubjectStatus{
			SubjectCode: subject.Code,
			Status:      model.AssessmentNotStarted,
		}
		assessment, err := s.Assessment.FindLatestDiagnostic(studentID, subject.Code)
		if err == nil {
			entry.Status = assessment.Status
			entry.AnsweredCount = assessment.AnsweredCount
			entry.TotalPlanned = assessment.TotalPlanned
			entry.ReportStatus = assessment.ReportStatus
			entry.PlanStatus = assessment.PlanStatus
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if entry.Status != model.AssessmentCompleted {
			status.AllComplete = false
		}
		status.Subjects = append(status.Subjects, entry)
	}

	status.ReportReady = s.Completion.IsReportReady(ctx, studentID)
	return status, nil
}
