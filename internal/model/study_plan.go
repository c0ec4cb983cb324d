package model

type StudyPlan struct {
	UUIDBase
	AssessmentID uint   `gorm:"uniqueIndex;not null" json:"assessmentId"`
	StudentID    uint   `gorm:"index;not null" json:"studentId"`
	SubjectCode  string `gorm:"size:50;not null" json:"subjectCode"`
	Summary      string `gorm:"type:text" json:"summary"`
	Weeks        int    `gorm:"not null" json:"weeks"`
}

func (StudyPlan) TableName() string {
	return "study_plans"
}

type StudyPlanCourse struct {
	UUIDBase
	PlanID       string `gorm:"size:36;index;not null" json:"planId"`
	Week         int    `gorm:"not null" json:"week"`
	Order        int    `gorm:"default:0" json:"order"`
	Title        string `gorm:"size:255;not null" json:"title"`
	SubtopicCode string `gorm:"size:50;not null" json:"subtopicCode"`
	Description  string `gorm:"type:text" json:"description"`
}

func (StudyPlanCourse) TableName() string {
	return "study_plan_courses"
}
