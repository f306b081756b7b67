package model

import "time"

// OccupancyState reflects who (if anyone) is currently on a machine.
type OccupancyState string

const (
	OccupancyAvailable  OccupancyState = "AVAILABLE"
	OccupancyInUse      OccupancyState = "IN_USE"
	OccupancyOutOfOrder OccupancyState = "OUT_OF_ORDER"
)

// OperationalState is the operator-controlled flag, independent of occupancy.
type OperationalState string

const (
	OperationalNormal      OperationalState = "NORMAL"
	OperationalMaintenance OperationalState = "MAINTENANCE"
)

// BodyPart classifies which muscle group a machine primarily trains.
// Only UPPER and LOWER feed the recommender's usage ratios.
type BodyPart string

const (
	BodyPartUpper  BodyPart = "UPPER"
	BodyPartLower  BodyPart = "LOWER"
	BodyPartCore   BodyPart = "CORE"
	BodyPartCardio BodyPart = "CARDIO"
	BodyPartEtc    BodyPart = "ETC"
)

// Equipment represents one physical machine, usable by a single person at a time.
type Equipment struct {
	ID               int64            `gorm:"primaryKey" json:"id"`
	GymID            int64            `gorm:"index;not null" json:"gym_id"`
	Name             string           `gorm:"size:128;not null" json:"name"`
	NFCTagID         string           `gorm:"uniqueIndex;size:64;not null" json:"nfc_tag_id"`
	// ControllerID is empty for machines with no lock hardware attached.
	ControllerID     string           `gorm:"index;size:64" json:"controller_id"`
	Occupancy        OccupancyState   `gorm:"size:20;not null;default:AVAILABLE" json:"occupancy"`
	OperationalState OperationalState `gorm:"size:20;not null;default:NORMAL" json:"operational_state"`
	BaseMinutes      int              `gorm:"not null;default:15" json:"base_minutes"`
	BodyPart         BodyPart         `gorm:"size:10;not null;default:ETC" json:"body_part"`
	// RecommenderModelID is the machine id the external duration predictor
	// was trained with; it is opaque to this service.
	RecommenderModelID int       `gorm:"not null;default:0" json:"-"`
	ImageURL           string    `gorm:"size:500" json:"image_url,omitempty"`
	CreatedAt          time.Time `json:"-"`
	UpdatedAt          time.Time `json:"-"`

	// Associations
	Gym Gym `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}
