// Package tokens emite y verifica los tokens opacos de un solo uso que
// viajan en los links de email: verificación de cuenta, reset de contraseña
// y verificación de dispositivo. En reposo solo se guarda un HMAC-SHA256 del
// secreto con clave de servidor; el valor crudo nunca se persiste.
package tokens

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"orientia/backend/internal/models"
	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	EmailVerificationTTL  = 24 * time.Hour
	PasswordResetTTL      = 60 * time.Minute
	DeviceVerificationTTL = 60 * time.Minute

	rawTokenBytes = 32
)

var (
	// ErrTokenInvalid: el token presentado no corresponde a ninguna fila.
	ErrTokenInvalid = errors.New("token inválido")
	// ErrTokenExpired: la fila existe pero now >= expires_at.
	ErrTokenExpired = errors.New("token expirado")
	// ErrTokenUsed: la fila ya fue consumida (used_at no nulo).
	ErrTokenUsed = errors.New("token ya utilizado")
	// ErrTokenWrongUser: el token existe pero pertenece a otra cuenta.
	ErrTokenWrongUser = errors.New("token de otra cuenta")
)

var hashKey []byte

// InitializeHashing carga la clave HMAC desde la configuración.
func InitializeHashing() error {
	key := config.Cfg.TokenHashKey
	if key == "" {
		return fmt.Errorf("TOKEN_HASH_KEY environment variable not set")
	}
	hashKey = []byte(key)
	return nil
}

// SetHashKeyForTests fija la clave directamente. Solo para tests.
func SetHashKeyForTests(key string) {
	hashKey = []byte(key)
}

// NewRawToken genera un secreto aleatorio de 32 bytes, base64url sin padding.
func NewRawToken() (string, error) {
	b := make([]byte, rawTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken calcula la forma de almacenamiento de un token crudo.
func HashToken(raw string) string {
	mac := hmac.New(sha256.New, hashKey)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}

// IssueEmailVerification crea un token de verificación de email (24h) y
// devuelve el valor crudo para incluirlo en el link.
func IssueEmailVerification(db *gorm.DB, userID uuid.UUID) (string, error) {
	raw, err := NewRawToken()
	if err != nil {
		return "", err
	}
	row := models.EmailVerificationToken{
		UserID:    userID,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().Add(EmailVerificationTTL),
	}
	if err := db.Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to save email verification token: %w", err)
	}
	return raw, nil
}

// IssuePasswordReset crea un token de reset de contraseña (60 min).
func IssuePasswordReset(db *gorm.DB, userID uuid.UUID) (string, error) {
	raw, err := NewRawToken()
	if err != nil {
		return "", err
	}
	row := models.PasswordResetToken{
		UserID:    userID,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().Add(PasswordResetTTL),
	}
	if err := db.Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to save password reset token: %w", err)
	}
	return raw, nil
}

// IssueDeviceVerification crea un token de verificación de dispositivo (60 min).
func IssueDeviceVerification(db *gorm.DB, userID uuid.UUID) (string, error) {
	raw, err := NewRawToken()
	if err != nil {
		return "", err
	}
	row := models.DeviceVerificationToken{
		UserID:    userID,
		TokenHash: HashToken(raw),
		ExpiresAt: time.Now().Add(DeviceVerificationTTL),
	}
	if err := db.Create(&row).Error; err != nil {
		return "", fmt.Errorf("failed to save device verification token: %w", err)
	}
	return raw, nil
}

// ConsumeEmailVerification verifica y consume un token de verificación de
// email. Una fila expirada se borra al detectarla.
func ConsumeEmailVerification(db *gorm.DB, raw string) (uuid.UUID, error) {
	var row models.EmailVerificationToken
	if err := db.Where("token_hash = ?", HashToken(raw)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, ErrTokenInvalid
		}
		return uuid.Nil, err
	}
	if row.IsUsed() {
		return uuid.Nil, ErrTokenUsed
	}
	if row.IsExpired() {
		if err := db.Delete(&row).Error; err != nil {
			orilog.L.Warn("Failed to delete expired email verification token", zap.Error(err))
		}
		return uuid.Nil, ErrTokenExpired
	}
	if err := markUsed(db.Model(&row)); err != nil {
		return uuid.Nil, err
	}
	return row.UserID, nil
}

// ConsumePasswordReset verifica y consume un token de reset.
// Pasar un *gorm.DB transaccional para que el consumo y el cambio de
// contraseña sean atómicos.
func ConsumePasswordReset(db *gorm.DB, raw string) (uuid.UUID, error) {
	var row models.PasswordResetToken
	if err := db.Where("token_hash = ?", HashToken(raw)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, ErrTokenInvalid
		}
		return uuid.Nil, err
	}
	if row.IsUsed() {
		return uuid.Nil, ErrTokenUsed
	}
	if row.IsExpired() {
		return uuid.Nil, ErrTokenExpired
	}
	if err := markUsed(db.Model(&row)); err != nil {
		return uuid.Nil, err
	}
	return row.UserID, nil
}

// ConsumeDeviceVerification verifica y consume un token de dispositivo en
// nombre de userID. Un token de otra cuenta se rechaza sin marcarlo usado,
// para no quemar el token del usuario legítimo.
func ConsumeDeviceVerification(db *gorm.DB, raw string, userID uuid.UUID) error {
	var row models.DeviceVerificationToken
	if err := db.Where("token_hash = ?", HashToken(raw)).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrTokenInvalid
		}
		return err
	}
	if row.UserID != userID {
		return ErrTokenWrongUser
	}
	if row.IsUsed() {
		return ErrTokenUsed
	}
	if row.IsExpired() {
		return ErrTokenExpired
	}
	return markUsed(db.Model(&row))
}

// markUsed marca used_at de forma condicional: si otra presentación
// concurrente ya consumió la fila, el UPDATE no afecta nada y se reporta
// ErrTokenUsed.
func markUsed(q *gorm.DB) error {
	now := time.Now()
	res := q.Where("used_at IS NULL").Update("used_at", &now)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrTokenUsed
	}
	return nil
}
