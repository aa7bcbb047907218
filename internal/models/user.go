package models

import "time"

// MaxUsernameLength matches the size of every username column.
const MaxUsernameLength = 150

type User struct {
	ID           uint      `gorm:"primaryKey"`
	Username     string    `gorm:"size:150;not null;uniqueIndex"`
	PasswordHash string    `gorm:"size:100;not null"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}
