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
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const sessionKeyPrefix = "diag:session:"

// SessionState is the cached working state of one (student, subject)
// diagnostic. It is a projection of the Assessment/AssessmentQuestion rows:
// the cache may expire or be evicted at any time and the state is then
// rebuilt row by row, so nothing in here is authoritative.
type SessionState struct {
	AssessmentID      uint                   `json:"assessmentId"`
	StudentID         uint                   `json:"studentId"`
	SubjectCode       string                 `json:"subjectCode"`
	GradeLevel        int                    `json:"gradeLevel"`
	Status            model.AssessmentStatus `json:"status"`
	Mastery           map[string]float64     `json:"mastery"`
	AskedIDs          []uint                 `json:"askedIds"`
	SubtopicCounts    map[string]int         `json:"subtopicCounts"`
	TotalAsked        int                    `json:"totalAsked"`
	Difficulty        int                    `json:"difficulty"`
	PendingQuestionID uint                   `json:"pendingQuestionId"`
	PendingSubtopic   string                 `json:"pendingSubtopic"`
}

func (s *SessionState) HasAsked(questionID uint) bool {
	for _, id := range s.AskedIDs {
		if id == questionID {
			return true
		}
	}
	return false
}

func (s *SessionState) MasteryOf(subtopic string) float64 {
	if m, ok := s.Mastery[subtopic]; ok {
		return m
	}
	return 0.5
}

type SessionService struct {
	AssessmentRepo *repository.AssessmentRepository
	Redis          *redis.Client
	Cfg            *config.Config
}

func NewSessionService(assessmentRepo *repository.AssessmentRepository, rdb *redis.Client, cfg *config.Config) *SessionService {
	return &SessionService{
		AssessmentRepo: assessmentRepo,
		Redis:          rdb,
		Cfg:            cfg,
	}
}

func (s *SessionService) SetConfig(cfg *config.Config) {
	s.Cfg = cfg
}

func sessionKey(studentID uint, subjectCode string) string {
	return fmt.Sprintf("%s%d:%s", sessionKeyPrefix, studentID, subjectCode)
}

// LoadState returns the session state for a (student, subject) pair. Cache
// hit wins; on a miss the state is rebuilt deterministically from the
// persisted answer rows of the active assessment. A pair with no active
// assessment yields a fresh NOT_STARTED state.
func (s *SessionService) LoadState(ctx context.Context, studentID uint, subjectCode string, gradeLevel int) (*SessionState, error) {
	key := sessionKey(studentID, subjectCode)

	val, err := s.Redis.Get(ctx, key).Result()
	if err == nil {
		var state SessionState
		if jsonErr := json.Unmarshal([]byte(val), &state); jsonErr == nil {
			return &state, nil
		}
		// Corrupt cache entry: fall through to a rebuild.
		logger.Log.Warn("discarding unreadable session cache entry", zap.String("key", key))
	} else if err != redis.Nil {
		return nil, err
	}

	assessment, err := s.AssessmentRepo.FindActiveDiagnostic(studentID, subjectCode)
	if err != nil {
		// No active run: start from scratch.
		return s.newState(studentID, subjectCode, gradeLevel), nil
	}

	monitoring.SessionRebuilds.Inc()
	state, err := s.RebuildState(assessment)
	if err != nil {
		return nil, err
	}
	if err := s.SaveState(ctx, state); err != nil {
		logger.Log.Warn("failed to re-cache rebuilt session", zap.Error(err))
	}
	return state, nil
}

func (s *SessionService) newState(studentID uint, subjectCode string, gradeLevel int) *SessionState {
	return &SessionState{
		StudentID:      studentID,
		SubjectCode:    subjectCode,
		GradeLevel:     gradeLevel,
		Status:         model.AssessmentNotStarted,
		Mastery:        map[string]float64{},
		SubtopicCounts: map[string]int{},
		Difficulty:     s.Cfg.Diagnostic.StartDifficulty,
	}
}

// RebuildState replays the assessment's question rows in ask order,
// applying the same mastery and staircase updates the interactive path
// applies, so the result is identical to the state the cache held.
func (s *SessionService) RebuildState(assessment *model.Assessment) (*SessionState, error) {
	rows, err := s.AssessmentRepo.ListQuestionRows(assessment.ID)
	if err != nil {
		return nil, err
	}

	d := s.Cfg.Diagnostic
	state := s.newState(assessment.StudentID, assessment.SubjectCode, assessment.GradeLevel)
	state.AssessmentID = assessment.ID
	state.Status = assessment.Status

	for _, row := range rows {
		state.AskedIDs = append(state.AskedIDs, row.QuestionID)
		state.SubtopicCounts[row.SubtopicCode]++
		state.TotalAsked++

		if row.AnsweredAt == nil {
			// Asked but unanswered: this is the pending question.
			state.PendingQuestionID = row.QuestionID
			state.PendingSubtopic = row.SubtopicCode
			continue
		}

		state.Mastery[row.SubtopicCode] = SteppedMastery(state.MasteryOf(row.SubtopicCode), row.IsCorrect, d.MasteryStep)
		state.Difficulty = SteppedDifficulty(state.Difficulty, row.IsCorrect, d.MinDifficulty, d.MaxDifficulty)
	}

	return state, nil
}

func (s *SessionService) SaveState(ctx context.Context, state *SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, sessionKey(state.StudentID, state.SubjectCode), data, s.Cfg.Diagnostic.SessionTTL()).Err()
}

// StartAssessment creates the backing Assessment row on the first
// successful question fetch and moves the state machine to IN_PROGRESS.
// The unique active-diagnostic index makes the insert conditional: when a
// concurrent fetch won the race, the loser reports a conflict and the
// client's retry picks up the winner's session.
func (s *SessionService) StartAssessment(ctx context.Context, state *SessionState) error {
	active := true
	assessment := &model.Assessment{
		StudentID:    state.StudentID,
		SubjectCode:  state.SubjectCode,
		Type:         model.AssessmentDiagnostic,
		Status:       model.AssessmentInProgress,
		GradeLevel:   state.GradeLevel,
		TotalPlanned: s.Cfg.Diagnostic.MaxTotalQuestions,
		Active:       &active,
	}
	if err := s.AssessmentRepo.Create(assessment); err != nil {
		if _, findErr := s.AssessmentRepo.FindActiveDiagnostic(state.StudentID, state.SubjectCode); findErr == nil {
			return fmt.Errorf("diagnostic already started for %s: %w", state.SubjectCode, util.ErrConflict)
		}
		return err
	}
	state.AssessmentID = assessment.ID
	state.Status = model.AssessmentInProgress
	return nil
}

// CompleteSession marks the assessment COMPLETED and drops the cache
// entry; the persisted rows remain the source of truth.
func (s *SessionService) CompleteSession(ctx context.Context, state *SessionState) error {
	assessment, err := s.AssessmentRepo.FindByID(state.AssessmentID)
	if err != nil {
		return err
	}
	if assessment.Status != model.AssessmentCompleted {
		if err := s.AssessmentRepo.MarkCompleted(assessment); err != nil {
			return err
		}
	}
	state.Status = model.AssessmentCompleted

	if err := s.Redis.Del(ctx, sessionKey(state.StudentID, state.SubjectCode)).Err(); err != nil {
		logger.Log.Warn("failed to drop completed session cache", zap.Error(err))
	}
	return nil
}

// SteppedMastery moves a [0,1] mastery estimate one fixed step toward 1.0
// on a correct answer and toward 0.0 on an incorrect one.
func SteppedMastery(current float64, correct bool, step float64) float64 {
	if correct {
		current += step
	} else {
		current -= step
	}
	if current > 1 {
		return 1
	}
	if current < 0 {
		return 0
	}
	return current
}

// SteppedDifficulty is the staircase rule: up after a correct answer, down
// after an incorrect one, bounded to the valid difficulty range.
func SteppedDifficulty(current int, correct bool, min, max int) int {
	if correct {
		current++
	} else {
		current--
	}
	if current > max {
		return max
	}
	if current < min {
		return min
	}
	return current
}
