package model

import "encoding/json"

type MasteryLabel string

const (
	LabelNeedsSupport MasteryLabel = "needs_support"
	LabelDeveloping   MasteryLabel = "developing"
	LabelProficient   MasteryLabel = "proficient"
	LabelAdvanced     MasteryLabel = "advanced"
)

// StudentKnowledgeProfile is the per-subtopic mastery record, upserted by
// the report generator, keyed by (student, subject, subtopic).
type StudentKnowledgeProfile struct {
	BaseModel
	StudentID    uint         `gorm:"uniqueIndex:idx_profile_key;not null" json:"studentId"`
	SubjectCode  string       `gorm:"size:50;uniqueIndex:idx_profile_key;not null" json:"subjectCode"`
	SubtopicCode string       `gorm:"size:50;uniqueIndex:idx_profile_key;not null" json:"subtopicCode"`
	MasteryScore float64      `gorm:"not null" json:"masteryScore"`
	Label        MasteryLabel `gorm:"size:20;not null" json:"label"`
	GapPriority  int          `gorm:"default:0" json:"gapPriority"`
}

func (StudentKnowledgeProfile) TableName() string {
	return "student_knowledge_profiles"
}

// AssessmentReport is the immutable mastery snapshot for one completed
// assessment; one row per assessment.
type AssessmentReport struct {
	UUIDBase
	AssessmentID uint            `gorm:"uniqueIndex;not null" json:"assessmentId"`
	StudentID    uint            `gorm:"index;not null" json:"studentId"`
	SubjectCode  string          `gorm:"size:50;not null" json:"subjectCode"`
	Mastery      json.RawMessage `gorm:"type:json" json:"mastery"`
	GapCount     int             `gorm:"default:0" json:"gapCount"`
}

func (AssessmentReport) TableName() string {
	return "assessment_reports"
}
