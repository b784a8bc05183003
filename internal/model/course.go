package model

// swagger:model Course
type Course struct {
	BaseModel
	Title       string `gorm:"size:255;not null" json:"title"`
	Description string `gorm:"type:text" json:"description"`
	Subject     string `gorm:"size:100" json:"subject"`
	OwnerID     uint   `gorm:"index;type:bigint unsigned" json:"ownerId"`
	Owner       *User  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Archived    bool   `gorm:"default:false" json:"archived"`
}

func (Course) TableName() string {
	return "courses"
}
