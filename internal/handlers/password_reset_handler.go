package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"orientia/backend/internal/database"
	"orientia/backend/internal/models"
	"orientia/backend/internal/notifications"
	"orientia/backend/internal/ratelimit"
	"orientia/backend/internal/tokens"
	"orientia/backend/internal/turnstile"
	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type ForgotPasswordPayload struct {
	Email          string `json:"email" binding:"required,email"`
	TurnstileToken string `json:"turnstileToken"`
}

// ForgotPasswordHandler inicia el proceso de reset de contraseña. La
// respuesta es idéntica exista o no la cuenta.
func ForgotPasswordHandler(c *gin.Context) {
	log := orilog.L.Named("ForgotPasswordHandler")
	genericResponse := gin.H{"message": "If an account with that email exists, a password reset link has been sent."}

	var payload ForgotPasswordPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))

	rl := ratelimit.Allow("forgot-password:"+clientIP(c), 5, 15*time.Minute)
	if !rl.Allowed {
		rateLimited(c, "forgot_password", rl)
		return
	}

	ok, err := turnstile.Verify(c.Request.Context(), payload.TurnstileToken, clientIP(c))
	if err != nil {
		log.Error("Turnstile verification failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Bot verification unavailable. Please try again."})
		return
	}
	if !ok {
		c.JSON(http.StatusForbidden, gin.H{"error": "Bot verification failed"})
		return
	}

	db := database.GetDB()
	var user models.User
	if err := db.Where("LOWER(email) = ?", email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to look up user", zap.Error(err))
		} else {
			log.Info("Password reset requested for non-existent email", zap.String("email", email))
		}
		c.JSON(http.StatusOK, genericResponse)
		return
	}

	rawToken, err := tokens.IssuePasswordReset(db, user.ID)
	if err != nil {
		log.Error("Failed to issue password reset token", zap.Error(err), zap.String("user_id", user.ID.String()))
		c.JSON(http.StatusOK, genericResponse)
		return
	}

	resetLink := fmt.Sprintf("%s/auth/reset-password?token=%s",
		strings.TrimSuffix(config.Cfg.FrontendBaseURL, "/"), rawToken)
	bodyHTML := fmt.Sprintf(`
        <h2>Restablecer contraseña</h2>
        <p>Pediste restablecer tu contraseña de Orientia. Haz clic en el enlace para continuar:</p>
        <p><a href="%s">Restablecer contraseña</a></p>
        <p>Este enlace es válido durante 60 minutos. Si no lo pediste, ignora este mensaje.</p>
    `, resetLink)
	if err := notifications.SendEmail(c.Request.Context(), "password_reset", user.Email, "Restablece tu contraseña de Orientia", bodyHTML); err != nil {
		// No revelar el fallo al cliente.
		log.Error("Failed to send password reset email", zap.Error(err), zap.String("email", user.Email))
	}

	c.JSON(http.StatusOK, genericResponse)
}

type ResetPasswordPayload struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

// ResetPasswordHandler finaliza el reset: consume el token y actualiza la
// contraseña dentro de la misma transacción, para que un fallo a mitad de
// camino no deje el token reutilizable con la contraseña ya cambiada.
func ResetPasswordHandler(c *gin.Context) {
	log := orilog.L.Named("ResetPasswordHandler")

	var payload ResetPasswordPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if payload.Password != payload.ConfirmPassword {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Passwords do not match"})
		return
	}
	if violations := ValidatePasswordPolicy(payload.Password); len(violations) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password does not meet the policy", "violations": violations})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcryptCost)
	if err != nil {
		log.Error("Failed to hash new password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process new password"})
		return
	}

	db := database.GetDB()
	txErr := db.Transaction(func(tx *gorm.DB) error {
		userID, err := tokens.ConsumePasswordReset(tx, payload.Token)
		if err != nil {
			return err
		}
		// Un reset exitoso prueba control de la casilla: cuenta verificada.
		now := time.Now()
		return tx.Model(&models.User{}).Where("id = ?", userID).
			Updates(map[string]interface{}{
				"password_hash":     string(hashedPassword),
				"email_verified_at": &now,
			}).Error
	})
	if txErr != nil {
		switch {
		case errors.Is(txErr, tokens.ErrTokenExpired):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Reset link has expired", "expired": true})
		case errors.Is(txErr, tokens.ErrTokenUsed), errors.Is(txErr, tokens.ErrTokenInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid or expired reset link"})
		default:
			log.Error("Failed to reset password", zap.Error(txErr))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password has been reset successfully."})
}
