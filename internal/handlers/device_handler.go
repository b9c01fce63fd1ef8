package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orientia/backend/internal/auth"
	"orientia/backend/internal/database"
	"orientia/backend/internal/devicetrust"
	"orientia/backend/internal/models"
	"orientia/backend/internal/notifications"
	"orientia/backend/internal/ratelimit"
	"orientia/backend/internal/tokens"
	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type VerifyDevicePayload struct {
	Token    string `json:"token" binding:"required"`
	DeviceID string `json:"device_id"`
}

// VerifyDeviceHandler consume el token de verificación de dispositivo y
// registra el dispositivo actual como de confianza para el usuario.
func VerifyDeviceHandler(c *gin.Context) {
	log := orilog.L.Named("VerifyDeviceHandler")

	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var payload VerifyDevicePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	db := database.GetDB()
	if err := tokens.ConsumeDeviceVerification(db, payload.Token, userID); err != nil {
		switch {
		case errors.Is(err, tokens.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Device verification link has expired", "expired": true})
		case errors.Is(err, tokens.ErrTokenWrongUser):
			// El token sigue sin consumir para la cuenta legítima.
			c.JSON(http.StatusForbidden, gin.H{"error": "Device verification link does not belong to this account"})
		case errors.Is(err, tokens.ErrTokenUsed), errors.Is(err, tokens.ErrTokenInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired device verification link"})
		default:
			log.Error("Failed to consume device verification token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify device"})
		}
		return
	}

	deviceID := strings.TrimSpace(payload.DeviceID)
	if deviceID == "" {
		deviceID = devicetrust.DeviceIDFromRequest(c)
	}
	if deviceID == "" {
		deviceID = uuid.New().String()
	}

	if err := devicetrust.Trust(db, userID, deviceID); err != nil {
		log.Error("Failed to trust device", zap.Error(err), zap.String("user_id", userID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify device"})
		return
	}
	devicetrust.SetDeviceCookie(c, deviceID)

	c.JSON(http.StatusOK, gin.H{"message": "Device verified.", "device_id": deviceID})
}

// ResendDeviceVerificationHandler emite un token nuevo de verificación de
// dispositivo y lo envía por email al usuario autenticado.
func ResendDeviceVerificationHandler(c *gin.Context) {
	log := orilog.L.Named("ResendDeviceVerificationHandler")

	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	rl := ratelimit.Allow("device-verification:"+userID.String(), 3, 15*time.Minute)
	if !rl.Allowed {
		rateLimited(c, "device_verification", rl)
		return
	}

	db := database.GetDB()
	var user models.User
	if err := db.First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	rawToken, err := tokens.IssueDeviceVerification(db, user.ID)
	if err != nil {
		log.Error("Failed to issue device verification token", zap.Error(err), zap.String("user_id", user.ID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send verification email"})
		return
	}

	verifyLink := fmt.Sprintf("%s/auth/verify-device?token=%s",
		strings.TrimSuffix(config.Cfg.FrontendBaseURL, "/"), rawToken)
	bodyHTML := fmt.Sprintf(`
        <h2>Nuevo dispositivo detectado</h2>
        <p>Alguien inició sesión en tu cuenta de Orientia desde un dispositivo no reconocido.</p>
        <p>Si fuiste tú, confirma el dispositivo con este enlace:</p>
        <p><a href="%s">Confirmar dispositivo</a></p>
        <p>Este enlace es válido durante 60 minutos. Si no fuiste tú, cambia tu contraseña.</p>
    `, verifyLink)
	if err := notifications.SendEmail(c.Request.Context(), "device", user.Email, "Confirma tu nuevo dispositivo", bodyHTML); err != nil {
		log.Error("Failed to send device verification email", zap.Error(err), zap.String("email", user.Email))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send verification email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Device verification email sent."})
}

// DeviceStatusHandler informa si el dispositivo actual es de confianza.
func DeviceStatusHandler(c *gin.Context) {
	log := orilog.L.Named("DeviceStatusHandler")

	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	deviceID := devicetrust.DeviceIDFromRequest(c)
	trusted := false
	if deviceID != "" {
		var err error
		trusted, err = devicetrust.IsTrusted(database.GetDB(), userID, deviceID)
		if err != nil {
			log.Warn("Failed to check device trust", zap.Error(err), zap.String("user_id", userID.String()))
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"device_id": deviceID,
		"trusted":   trusted,
		"bypass":    config.Cfg.DeviceGateBypass,
	})
}
