package model

type UserRole string

const (
	Student UserRole = "student"
	Parent  UserRole = "parent"
	Admin   UserRole = "admin"
)

type User struct {
	BaseModel
	Name       string   `gorm:"size:100;not null" json:"name"`
	Email      string   `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password   string   `gorm:"size:255;not null" json:"-"`
	Role       UserRole `gorm:"size:20;default:'student'" json:"role"`
	GradeLevel int      `gorm:"default:1" json:"gradeLevel"`
}

func (User) TableName() string {
	return "users"
}
