package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID                  uuid.UUID `gorm:"type:uuid;primaryKey"`
	Address             string    `gorm:"type:varchar(42);uniqueIndex;not null"`
	SmartAccountAddress string    `gorm:"type:varchar(42);not null"`
	CompanyName         *string   `gorm:"type:varchar(255)"`
	CreatedAt           time.Time
	UpdatedAt           time.Time
	DeletedAt           gorm.DeletedAt `gorm:"index"`
}
