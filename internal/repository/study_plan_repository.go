package repository

import (
	"edumentor_backend/internal/model"

	"gorm.io/gorm"
)

type StudyPlanRepository struct {
	DB *gorm.DB
}

func NewStudyPlanRepository(db *gorm.DB) *StudyPlanRepository {
	return &StudyPlanRepository{DB: db}
}

// CreateWithCourses persists the plan and its ordered courses in one
// transaction so a half-written plan never survives a worker crash.
func (r *StudyPlanRepository) CreateWithCourses(plan *model.StudyPlan, courses []model.StudyPlanCourse) error {
	return r.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(plan).Error; err != nil {
			return err
		}
		for i := range courses {
			courses[i].PlanID = plan.ID
			if err := tx.Create(&courses[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *StudyPlanRepository) FindByAssessment(assessmentID uint) (*model.StudyPlan, error) {
	var plan model.StudyPlan
	err := r.DB.Where("assessment_id = ?", assessmentID).First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *StudyPlanRepository) FindLatestByStudent(studentID uint) (*model.StudyPlan, error) {
	var plan model.StudyPlan
	err := r.DB.
		Where("student_id = ?", studentID).
		Order("created_at desc").
		First(&plan).Error
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *StudyPlanRepository) ListCourses(planID string) ([]model.StudyPlanCourse, error) {
	var courses []model.StudyPlanCourse
	err := r.DB.
		Where("plan_id = ?", planID).
		Order("week asc, `order` asc").
		Find(&courses).Error
	return courses, err
}
