package models

import (
	"time"

	"storefront-system/internal/domain"
)

type User struct {
	ID        int64       `gorm:"primaryKey;autoIncrement"`
	Username  string      `gorm:"type:varchar(150);uniqueIndex;not null"`
	Email     string      `gorm:"type:varchar(254);uniqueIndex;not null"`
	Password  string      `gorm:"not null"`
	Firstname string      `gorm:"type:varchar(150);not null"`
	Lastname  string      `gorm:"type:varchar(150)"`
	Role      domain.Role `gorm:"type:varchar(10);not null"`
	IsActive  bool        `gorm:"not null"`
	LastLogin *time.Time
	CreatedAt *time.Time `gorm:"autoCreateTime"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime"`
}

func (u User) Actor() domain.Actor {
	return domain.Actor{UserID: u.ID, Role: u.Role}
}
