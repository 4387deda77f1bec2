package models

import "time"

// Credential is a stored sign-in for one service profile. The token is the
// bearer token returned by the login endpoint.
type Credential struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Profile   string `gorm:"size:64;not null;uniqueIndex"`
	BaseURL   string `gorm:"size:256;not null"`
	Token     string `gorm:"type:text;not null"`
	UserID    int    `gorm:"index"`
	Username  string `gorm:"size:64"`
	Nickname  string `gorm:"size:64"`
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
