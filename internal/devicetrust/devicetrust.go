// Package devicetrust vincula identificadores de navegador con cuentas.
// Un dispositivo pasa a ser de confianza solo tras consumir su token de
// verificación; la confianza persiste hasta que un admin la revoca.
package devicetrust

import (
	"errors"
	"net/http"
	"time"

	"orientia/backend/internal/models"
	"orientia/backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CookieName es la cookie que persiste el device id en el navegador.
// No es httpOnly: el frontend la lee para reenviarla en verificaciones.
const CookieName = "orientia_device_id"

const cookieMaxAge = 365 * 24 * 60 * 60 // 1 año

// IsTrusted comprueba si el par (usuario, dispositivo) está registrado.
func IsTrusted(db *gorm.DB, userID uuid.UUID, deviceID string) (bool, error) {
	if deviceID == "" {
		return false, nil
	}
	var device models.TrustedDevice
	err := db.Where("user_id = ? AND device_id = ?", userID, deviceID).First(&device).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Trust registra el dispositivo para el usuario. Idempotente sobre el par.
func Trust(db *gorm.DB, userID uuid.UUID, deviceID string) error {
	trusted, err := IsTrusted(db, userID, deviceID)
	if err != nil {
		return err
	}
	if trusted {
		return nil
	}
	device := models.TrustedDevice{
		UserID:     userID,
		DeviceID:   deviceID,
		LastSeenAt: time.Now(),
	}
	return db.Create(&device).Error
}

// RevokeAll elimina todos los dispositivos de confianza del usuario.
func RevokeAll(db *gorm.DB, userID uuid.UUID) error {
	return db.Where("user_id = ?", userID).Delete(&models.TrustedDevice{}).Error
}

// SetDeviceCookie deja la cookie de dispositivo en la respuesta.
func SetDeviceCookie(c *gin.Context, deviceID string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     CookieName,
		Value:    deviceID,
		MaxAge:   cookieMaxAge,
		Path:     "/",
		HttpOnly: false,
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

// DeviceIDFromRequest saca el device id de la cookie o, en su defecto, del
// header X-Device-Id que envían los clientes con localStorage.
func DeviceIDFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie != "" {
		return cookie
	}
	return c.GetHeader("X-Device-Id")
}

// RequireTrustedDevice es el gate del área autenticada: con sesión pero sin
// dispositivo de confianza, el request se rechaza pidiendo verificación.
// En desarrollo el gate puede desactivarse por configuración; es un escape
// hatch consciente, no una frontera de seguridad.
func RequireTrustedDevice(getDB func() *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if config.Cfg.DeviceGateBypass {
			c.Next()
			return
		}

		userIDVal, exists := c.Get("userID")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}
		userID := userIDVal.(uuid.UUID)

		deviceID := DeviceIDFromRequest(c)
		if deviceID == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Device verification required",
				"code":  "DEVICE_NOT_VERIFIED",
			})
			return
		}

		trusted, err := IsTrusted(getDB(), userID, deviceID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to check device trust"})
			return
		}
		if !trusted {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "Device verification required",
				"code":  "DEVICE_NOT_VERIFIED",
			})
			return
		}
		c.Next()
	}
}
