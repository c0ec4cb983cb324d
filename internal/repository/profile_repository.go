package repository

import (
	"edumentor_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProfileRepository struct {
	DB *gorm.DB
}

func NewProfileRepository(db *gorm.DB) *ProfileRepository {
	return &ProfileRepository{DB: db}
}

// Upsert writes a profile row by its natural key so report re-runs update
// in place instead of duplicating.
func (r *ProfileRepository) Upsert(p *model.StudentKnowledgeProfile) error {
	return r.DB.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "student_id"},
			{Name: "subject_code"},
			{Name: "subtopic_code"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"mastery_score", "label", "gap_priority", "updated_at"}),
	}).Create(p).Error
}

func (r *ProfileRepository) ListByStudent(studentID uint) ([]model.StudentKnowledgeProfile, error) {
	var profiles []model.StudentKnowledgeProfile
	err := r.DB.
		Where("student_id = ?", studentID).
		Order("subject_code asc, gap_priority asc").
		Find(&profiles).Error
	return profiles, err
}

func (r *ProfileRepository) ListByStudentAndSubject(studentID uint, subjectCode string) ([]model.StudentKnowledgeProfile, error) {
	var profiles []model.StudentKnowledgeProfile
	err := r.DB.
		Where("student_id = ? AND subject_code = ?", studentID, subjectCode).
		Order("gap_priority asc").
		Find(&profiles).Error
	return profiles, err
}

func (r *ProfileRepository) CreateReport(report *model.AssessmentReport) error {
	return r.DB.Create(report).Error
}

func (r *ProfileRepository) FindReportByAssessment(assessmentID uint) (*model.AssessmentReport, error) {
	var report model.AssessmentReport
	err := r.DB.Where("assessment_id = ?", assessmentID).First(&report).Error
	if err != nil {
		return nil, err
	}
	return &report, nil
}
