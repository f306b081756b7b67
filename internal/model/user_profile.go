package model

import "time"

// Role distinguishes members from gym operators.
type Role string

const (
	RoleMember   Role = "MEMBER"
	RoleOperator Role = "OPERATOR"
)

// ExperienceLevel is the member's self-reported training experience.
type ExperienceLevel string

const (
	ExperienceBeginner     ExperienceLevel = "BEGINNER"
	ExperienceIntermediate ExperienceLevel = "INTERMEDIATE"
	ExperienceAdvanced     ExperienceLevel = "ADVANCED"
)

// UserProfile holds the optional member attributes the duration recommender
// consumes. User identity itself lives in the external auth service; this
// table is keyed by its user id. A user without a profile row simply gets
// base-duration sessions.
type UserProfile struct {
	UserID          int64           `gorm:"primaryKey" json:"user_id"`
	Role            Role            `gorm:"size:10;not null;default:MEMBER" json:"role"`
	Gender          string          `gorm:"size:10" json:"gender,omitempty"`
	Age             int             `json:"age,omitempty"`
	HeightCm        float64         `json:"height_cm,omitempty"`
	WeightKg        float64         `json:"weight_kg,omitempty"`
	FitnessGoal     string          `gorm:"size:128" json:"fitness_goal,omitempty"`
	ExperienceLevel ExperienceLevel `gorm:"size:20" json:"experience_level,omitempty"`
	CreatedAt       time.Time       `json:"-"`
	UpdatedAt       time.Time       `json:"-"`
}
