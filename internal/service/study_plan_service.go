package service

import (
	"context"
	"edumentor_backend/internal/config"
	"edumentor_backend/internal/model"
	"edumentor_backend/internal/repository"
	"edumentor_backend/pkg/logger"
	"edumentor_backend/pkg/monitoring"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// StudyPlanService generates the recommended study plan for one completed
// assessment from its mastery report.
type StudyPlanService struct {
	PlanRepo       *repository.StudyPlanRepository
	ProfileRepo    *repository.ProfileRepository
	AssessmentRepo *repository.AssessmentRepository
	AI             ChatClient
	Cfg            *config.Config
}

func NewStudyPlanService(
	planRepo *repository.StudyPlanRepository,
	profileRepo *repository.ProfileRepository,
	assessmentRepo *repository.AssessmentRepository,
	ai ChatClient,
	cfg *config.Config,
) *StudyPlanService {
	return &StudyPlanService{
		PlanRepo:       planRepo,
		ProfileRepo:    profileRepo,
		AssessmentRepo: assessmentRepo,
		AI:             ai,
		Cfg:            cfg,
	}
}

func (s *StudyPlanService) SetConfig(cfg *config.Config) {
	s.Cfg = cfg
}

// GeneratePlan is idempotent per assessment: an existing plan short-
// circuits before the provider is ever called, so at-least-once delivery
// never creates duplicates.
func (s *StudyPlanService) GeneratePlan(ctx context.Context, assessmentID uint) error {
	if _, err := s.PlanRepo.FindByAssessment(assessmentID); err == nil {
		logger.Log.Info("study plan already exists, skipping", zap.Uint("assessmentId", assessmentID))
		return nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	assessment, err := s.AssessmentRepo.FindByID(assessmentID)
	if err != nil {
		return err
	}

	report, err := s.ProfileRepo.FindReportByAssessment(assessmentID)
	if err != nil {
		return fmt.Errorf("report for assessment %d not ready: %w", assessmentID, err)
	}

	var mastery []SubtopicMastery
	if err := json.Unmarshal(report.Mastery, &mastery); err != nil {
		return err
	}
	if len(mastery) == 0 {
		logger.Log.Info("no mastery data, skipping plan", zap.Uint("assessmentId", assessmentID))
		return s.AssessmentRepo.SetPlanStatus(assessmentID, model.PipelineReady, "")
	}

	weeks := s.RecommendedWeeks(mastery)
	lessonCount := weeks * s.Cfg.StudyPlan.LessonsPerWeek

	knownSubtopics := make(map[string]bool, len(mastery))
	for _, m := range mastery {
		knownSubtopics[m.SubtopicCode] = true
	}

	prompt := BuildPlanPrompt(assessment.SubjectCode, assessment.GradeLevel, weeks, lessonCount, mastery)
	content, err := ChatWithRetry(ctx, s.AI, planSystemPrompt, prompt, s.Cfg.StudyPlan.ProviderRetries)
	if err != nil {
		return err
	}

	plan, err := ParsePlanResponse(content, weeks, knownSubtopics)
	if err != nil {
		return err
	}

	record := &model.StudyPlan{
		AssessmentID: assessmentID,
		StudentID:    assessment.StudentID,
		SubjectCode:  assessment.SubjectCode,
		Summary:      plan.Summary,
		Weeks:        weeks,
	}
	courses := make([]model.StudyPlanCourse, len(plan.Lessons))
	for i, lesson := range plan.Lessons {
		courses[i] = model.StudyPlanCourse{
			Week:         lesson.Week,
			Order:        i + 1,
			Title:        lesson.Title,
			SubtopicCode: lesson.Subtopic,
			Description:  lesson.Description,
		}
	}

	if err := s.PlanRepo.CreateWithCourses(record, courses); err != nil {
		return err
	}

	logger.Log.Info("study plan generated",
		zap.Uint("assessmentId", assessmentID),
		zap.Int("weeks", weeks),
		zap.Int("lessons", len(courses)))

	return s.AssessmentRepo.SetPlanStatus(assessmentID, model.PipelineReady, "")
}

// RecordPermanentFailure is invoked by the worker when retries are
// exhausted: the failure becomes visible on the assessment instead of
// dying with the task.
func (s *StudyPlanService) RecordPermanentFailure(assessmentID uint, cause error) {
	monitoring.PlanFailures.Inc()
	logger.Log.Error("study plan generation failed permanently",
		zap.Uint("assessmentId", assessmentID), zap.Error(cause))

	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if err := s.AssessmentRepo.SetPlanStatus(assessmentID, model.PipelineFailed, msg); err != nil {
		logger.Log.Error("failed to record plan failure on assessment",
			zap.Uint("assessmentId", assessmentID), zap.Error(err))
	}
}

// RecommendedWeeks sizes the plan from the number and severity of gaps:
// two points per needs-support subtopic, one per developing, bounded to
// the configured range.
func (s *StudyPlanService) RecommendedWeeks(mastery []SubtopicMastery) int {
	severity := 0
	for _, m := range mastery {
		switch m.Label {
		case model.LabelNeedsSupport:
			severity += 2
		case model.LabelDeveloping:
			severity++
		}
	}

	p := s.Cfg.StudyPlan
	weeks := p.MinWeeks + severity
	if weeks > p.MaxWeeks {
		return p.MaxWeeks
	}
	return weeks
}

// PlanView bundles a plan with its ordered courses for the API.
type PlanView struct {
	Plan    *model.StudyPlan        `json:"plan"`
	Courses []model.StudyPlanCourse `json:"courses"`
}

func (s *StudyPlanService) LatestPlan(studentID uint) (*PlanView, error) {
	plan, err := s.PlanRepo.FindLatestByStudent(studentID)
	if err != nil {
		return nil, err
	}
	courses, err := s.PlanRepo.ListCourses(plan.ID)
	if err != nil {
		return nil, err
	}
	return &PlanView{Plan: plan, Courses: courses}, nil
}
