package db

import (
	"errors"
	"fmt"

	"github.com/zulandar/huebot/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultProfile is used when no profile name is given.
const DefaultProfile = "default"

// ErrNoCredential is returned when a profile has never signed in.
var ErrNoCredential = errors.New("db: no stored credential")

// SaveCredential writes or replaces the credential for cred.Profile.
func SaveCredential(db *gorm.DB, cred *models.Credential) error {
	if cred.Profile == "" {
		cred.Profile = DefaultProfile
	}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile"}},
		DoUpdates: clause.AssignmentColumns([]string{"base_url", "token", "user_id", "username", "nickname", "expires_at", "updated_at"}),
	}).Create(cred)
	if result.Error != nil {
		return fmt.Errorf("db: save credential %q: %w", cred.Profile, result.Error)
	}
	return nil
}

// LoadCredential returns the credential stored for profile.
func LoadCredential(db *gorm.DB, profile string) (*models.Credential, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	var cred models.Credential
	err := db.Where("profile = ?", profile).First(&cred).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoCredential
	}
	if err != nil {
		return nil, fmt.Errorf("db: load credential %q: %w", profile, err)
	}
	return &cred, nil
}

// DeleteCredential removes the credential for profile. Deleting a missing
// profile is not an error.
func DeleteCredential(db *gorm.DB, profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}
	if err := db.Where("profile = ?", profile).Delete(&models.Credential{}).Error; err != nil {
		return fmt.Errorf("db: delete credential %q: %w", profile, err)
	}
	return nil
}
