package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"orientia/backend/internal/database"
	"orientia/backend/internal/models"
	"orientia/backend/internal/ratelimit"
	"orientia/backend/internal/tokens"
	orilog "orientia/backend/pkg/log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type VerifyEmailPayload struct {
	Token string `json:"token" binding:"required"`
}

// VerifyEmailHandler consume el token de verificación y marca la cuenta
// como verificada.
func VerifyEmailHandler(c *gin.Context) {
	log := orilog.L.Named("VerifyEmailHandler")

	var payload VerifyEmailPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	db := database.GetDB()
	userID, err := tokens.ConsumeEmailVerification(db, payload.Token)
	if err != nil {
		switch {
		case errors.Is(err, tokens.ErrTokenExpired):
			// expired=true le permite al frontend ofrecer el reenvío.
			c.JSON(http.StatusBadRequest, gin.H{"error": "Verification link has expired", "expired": true})
		case errors.Is(err, tokens.ErrTokenUsed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Verification link has already been used"})
		case errors.Is(err, tokens.ErrTokenInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid verification link"})
		default:
			log.Error("Failed to consume email verification token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify email"})
		}
		return
	}

	now := time.Now()
	if err := db.Model(&models.User{}).Where("id = ?", userID).
		Update("email_verified_at", &now).Error; err != nil {
		log.Error("Failed to mark user as verified", zap.Error(err), zap.String("user_id", userID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify email"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Email verified. You can now sign in."})
}

type ResendVerificationPayload struct {
	Email string `json:"email" binding:"required,email"`
}

// ResendVerificationHandler reenvía el email de verificación. La respuesta
// es idéntica exista o no la cuenta.
func ResendVerificationHandler(c *gin.Context) {
	log := orilog.L.Named("ResendVerificationHandler")
	genericResponse := gin.H{"message": "If an unverified account with that email exists, a new verification link has been sent."}

	var payload ResendVerificationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))

	rl := ratelimit.Allow("resend-verification:"+email, 3, 15*time.Minute)
	if !rl.Allowed {
		rateLimited(c, "resend_verification", rl)
		return
	}

	db := database.GetDB()
	var user models.User
	if err := db.Where("LOWER(email) = ?", email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to look up user", zap.Error(err))
		}
		c.JSON(http.StatusOK, genericResponse)
		return
	}
	if user.IsVerified() {
		c.JSON(http.StatusOK, genericResponse)
		return
	}

	rawToken, err := tokens.IssueEmailVerification(db, user.ID)
	if err != nil {
		log.Error("Failed to issue email verification token", zap.Error(err), zap.String("user_id", user.ID.String()))
		c.JSON(http.StatusOK, genericResponse)
		return
	}
	if err := sendVerificationEmail(c, user.Email, rawToken); err != nil {
		log.Error("Failed to resend verification email", zap.Error(err), zap.String("email", user.Email))
	}

	c.JSON(http.StatusOK, genericResponse)
}
