package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Las tres familias de tokens de verificación (email, reset de contraseña,
// dispositivo) almacenan únicamente el hash con clave del secreto: el valor
// crudo solo viaja en el link del email. Un token es válido si used_at es
// null y now < expires_at.

type EmailVerificationToken struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	TokenHash string     `gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time `gorm:""`
	CreatedAt time.Time
	User      User `gorm:"foreignKey:UserID"`
}

func (t *EmailVerificationToken) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}

func (t *EmailVerificationToken) IsExpired() bool { return time.Now().After(t.ExpiresAt) }
func (t *EmailVerificationToken) IsUsed() bool    { return t.UsedAt != nil }

type PasswordResetToken struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	TokenHash string     `gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time `gorm:""`
	CreatedAt time.Time
	User      User `gorm:"foreignKey:UserID"`
}

func (t *PasswordResetToken) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}

func (t *PasswordResetToken) IsExpired() bool { return time.Now().After(t.ExpiresAt) }
func (t *PasswordResetToken) IsUsed() bool    { return t.UsedAt != nil }

type DeviceVerificationToken struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;"`
	UserID    uuid.UUID  `gorm:"type:uuid;not null;index"`
	TokenHash string     `gorm:"size:64;uniqueIndex;not null"`
	ExpiresAt time.Time  `gorm:"not null"`
	UsedAt    *time.Time `gorm:""`
	CreatedAt time.Time
	User      User `gorm:"foreignKey:UserID"`
}

func (t *DeviceVerificationToken) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return
}

func (t *DeviceVerificationToken) IsExpired() bool { return time.Now().After(t.ExpiresAt) }
func (t *DeviceVerificationToken) IsUsed() bool    { return t.UsedAt != nil }
