package service

import (
	"context"
	"edumentor_backend/internal/config"
	"edumentor_backend/internal/model"
	"edumentor_backend/internal/repository"
	"edumentor_backend/pkg/logger"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	completionClaimPrefix = "diag:complete:"
	reportReadyPrefix     = "diag:report_ready:"
)

// Enqueuer hands work to the background queue. The task client implements
// it; tests substitute a recorder.
type Enqueuer interface {
	EnqueueReport(ctx context.Context, studentID uint) error
	EnqueueStudyPlan(ctx context.Context, assessmentID uint) error
}

// CompletionService decides when a student's whole diagnostic round is
// done and dispatches report generation at most once per round.
type CompletionService struct {
	AssessmentRepo *repository.AssessmentRepository
	TaxonomyRepo   *repository.TaxonomyRepository
	Redis          *redis.Client
	Queue          Enqueuer
	Cfg            *config.Config
}

func NewCompletionService(
	assessmentRepo *repository.AssessmentRepository,
	taxonomyRepo *repository.TaxonomyRepository,
	rdb *redis.Client,
	queue Enqueuer,
	cfg *config.Config,
) *CompletionService {
	return &CompletionService{
		AssessmentRepo: assessmentRepo,
		TaxonomyRepo:   taxonomyRepo,
		Redis:          rdb,
		Queue:          queue,
		Cfg:            cfg,
	}
}

func (s *CompletionService) SetConfig(cfg *config.Config) {
	s.Cfg = cfg
}

// CheckAllSubjectsComplete reports whether every required subject has a
// completed diagnostic for the student.
func (s *CompletionService) CheckAllSubjectsComplete(ctx context.Context, studentID uint) (bool, error) {
	subjects, err := s.TaxonomyRepo.ListRequiredSubjects()
	if err != nil {
		return false, err
	}
	if len(subjects) == 0 {
		return false, nil
	}

	for _, subject := range subjects {
		assessment, err := s.AssessmentRepo.FindLatestDiagnostic(studentID, subject.Code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, err
		}
		if assessment.Status != model.AssessmentCompleted {
			return false, nil
		}
	}

	return true, nil
}

// OnSessionCompleted runs synchronously after a session finishes. When all
// required subjects are done it races for the per-student claim flag;
// only the winner enqueues report generation. Losing the race is the
// normal outcome for every request but one.
func (s *CompletionService) OnSessionCompleted(ctx context.Context, studentID uint) error {
	done, err := s.CheckAllSubjectsComplete(ctx, studentID)
	if err != nil {
		return err
	}
	if !done {
		return nil
	}

	key := fmt.Sprintf("%s%d", completionClaimPrefix, studentID)
	claimed, err := s.Redis.SetNX(ctx, key, "1", s.Cfg.Diagnostic.ClaimTTL()).Result()
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	if err := s.Queue.EnqueueReport(ctx, studentID); err != nil {
		// Release the claim so a retry can dispatch; the report task never
		// made it onto the queue.
		if delErr := s.Redis.Del(ctx, key).Err(); delErr != nil {
			logger.Log.Error("failed to release completion claim after enqueue failure",
				zap.Uint("studentId", uint(studentID)), zap.Error(delErr))
		}
		return err
	}

	logger.Log.Info("diagnostic round complete, report generation dispatched",
		zap.Uint("studentId", uint(studentID)))
	return nil
}

// MarkReportReady flips the per-student cache flag the clients poll.
func (s *CompletionService) MarkReportReady(ctx context.Context, studentID uint) error {
	key := fmt.Sprintf("%s%d", reportReadyPrefix, studentID)
	return s.Redis.Set(ctx, key, "1", s.Cfg.Diagnostic.ClaimTTL()).Err()
}

func (s *CompletionService) IsReportReady(ctx context.Context, studentID uint) bool {
	key := fmt.Sprintf("%s%d", reportReadyPrefix, studentID)
	val, err := s.Redis.Get(ctx, key).Result()
	return err == nil && val == "1"
}
