package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Project represents the database model of one canvas document
type Project struct {
	UUID      uuid.UUID      `gorm:"type:uuid;primarykey" json:"uuid"`
	UserID    uuid.UUID      `gorm:"type:uuid;index;not null" json:"user_id"`
	Name      string         `gorm:"not null" json:"name"`
	Shapes    datatypes.JSON `json:"shapes"`
	Thumbnail string         `json:"thumbnail"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DecodeShapes returns the stored shape list, empty when nothing was saved yet.
func (p *Project) DecodeShapes() ([]Shape, error) {
	return UnmarshalShapes(p.Shapes)
}
