package model

import "time"

type AssessmentType string

const (
	AssessmentDiagnostic AssessmentType = "diagnostic"
	AssessmentFormative  AssessmentType = "formative"
	AssessmentSummative  AssessmentType = "summative"
)

type AssessmentStatus string

const (
	AssessmentNotStarted AssessmentStatus = "not_started"
	AssessmentInProgress AssessmentStatus = "in_progress"
	AssessmentCompleted  AssessmentStatus = "completed"
)

type PipelineStatus string

const (
	PipelinePending PipelineStatus = "pending"
	PipelineReady   PipelineStatus = "ready"
	PipelineFailed  PipelineStatus = "failed"
)

// Assessment is one diagnostic run for a (student, subject) pair. At most
// one non-completed diagnostic may exist per pair.
type Assessment struct {
	BaseModel
	StudentID   uint             `gorm:"index:idx_assessment_student_subject;uniqueIndex:uniq_active_diagnostic;not null" json:"studentId"`
	SubjectCode string           `gorm:"size:50;index:idx_assessment_student_subject;uniqueIndex:uniq_active_diagnostic;not null" json:"subjectCode"`
	Type        AssessmentType   `gorm:"size:20;default:'diagnostic';uniqueIndex:uniq_active_diagnostic" json:"type"`
	Status      AssessmentStatus `gorm:"size:20;default:'not_started'" json:"status"`
	// Active is 1 while the run is open and NULL once completed; the unique
	// index over (student, subject, type, active) enforces at most one open
	// diagnostic per pair while NULLs keep completed history unbounded.
	Active        *bool      `gorm:"uniqueIndex:uniq_active_diagnostic" json:"-"`
	GradeLevel    int        `gorm:"not null" json:"gradeLevel"`
	AnsweredCount int        `gorm:"default:0" json:"answeredCount"`
	TotalPlanned  int        `gorm:"default:0" json:"totalPlanned"`
	CompletedAt   *time.Time `json:"completedAt,omitempty"`

	// Background pipeline visibility for the student/parent.
	ReportStatus PipelineStatus `gorm:"size:20;default:'pending'" json:"reportStatus"`
	PlanStatus   PipelineStatus `gorm:"size:20;default:'pending'" json:"planStatus"`
	PlanError    string         `gorm:"type:text" json:"planError,omitempty"`
}

func (Assessment) TableName() string {
	return "assessments"
}

// AssessmentQuestion links an assessment to a bank question together with
// the student's answer. Append-only; the unique index forbids asking the
// same question twice within one assessment.
type AssessmentQuestion struct {
	BaseModel
	AssessmentID  uint       `gorm:"uniqueIndex:idx_assessment_question;index;not null" json:"assessmentId"`
	QuestionID    uint       `gorm:"uniqueIndex:idx_assessment_question;not null" json:"questionId"`
	SubtopicCode  string     `gorm:"size:50;index;not null" json:"subtopicCode"`
	Difficulty    int        `gorm:"not null" json:"difficulty"`
	Sequence      int        `gorm:"not null" json:"sequence"`
	StudentAnswer string     `gorm:"type:text" json:"studentAnswer"`
	IsCorrect     bool       `gorm:"default:false" json:"isCorrect"`
	AnsweredAt    *time.Time `json:"answeredAt,omitempty"`
}

func (AssessmentQuestion) TableName() string {
	return "assessment_questions"
}
