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
	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"
	appmetrics "orientia/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

const bcryptCost = 12

type RegisterPayload struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// RegisterHandler crea una cuenta nueva y envía el email de verificación.
func RegisterHandler(c *gin.Context) {
	log := orilog.L.Named("RegisterHandler")

	var payload RegisterPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))

	// Clave compuesta IP+email para frenar tanto scripts como reintentos
	// sobre una misma cuenta.
	rl := ratelimit.Allow("register:"+clientIP(c)+":"+email, 10, time.Hour)
	if !rl.Allowed {
		rateLimited(c, "register", rl)
		return
	}

	if violations := ValidatePasswordPolicy(payload.Password); len(violations) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password does not meet the policy", "violations": violations})
		return
	}

	db := database.GetDB()
	var existing models.User
	err := db.Where("LOWER(email) = ?", email).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "An account with that email already exists"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Error("Failed to check for existing user", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(payload.Password), bcryptCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	user := models.User{
		Name:         strings.TrimSpace(payload.Name),
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         models.RoleUsuario,
	}
	if err := db.Create(&user).Error; err != nil {
		// El índice único sobre LOWER(email) cubre la carrera entre el
		// chequeo de arriba y este insert.
		log.Error("Failed to create user", zap.Error(err), zap.String("email", email))
		c.JSON(http.StatusConflict, gin.H{"error": "An account with that email already exists"})
		return
	}

	rawToken, err := tokens.IssueEmailVerification(db, user.ID)
	if err != nil {
		log.Error("Failed to issue email verification token", zap.Error(err), zap.String("user_id", user.ID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create account"})
		return
	}

	if err := sendVerificationEmail(c, user.Email, rawToken); err != nil {
		// La cuenta ya existe; el usuario puede pedir un reenvío.
		log.Error("Failed to send verification email", zap.Error(err), zap.String("email", user.Email))
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created. Check your inbox to verify your email address.",
		"user_id": user.ID.String(),
	})
}

func sendVerificationEmail(c *gin.Context, email, rawToken string) error {
	verifyLink := fmt.Sprintf("%s/auth/verify-email?token=%s",
		strings.TrimSuffix(config.Cfg.FrontendBaseURL, "/"), rawToken)
	bodyHTML := fmt.Sprintf(`
        <h2>Confirma tu dirección de correo</h2>
        <p>Gracias por registrarte en Orientia. Haz clic en el enlace para verificar tu cuenta:</p>
        <p><a href="%s">Verificar mi correo</a></p>
        <p>Este enlace es válido durante 24 horas. Si no creaste esta cuenta, ignora este mensaje.</p>
    `, verifyLink)
	return notifications.SendEmail(c.Request.Context(), "verification", email, "Verifica tu correo en Orientia", bodyHTML)
}

// rateLimited responde 429 con las cabeceras estándar del limitador.
func rateLimited(c *gin.Context, endpoint string, rl ratelimit.Result) {
	appmetrics.RateLimitedCounter.WithLabelValues(endpoint).Inc()
	c.Header("Retry-After", fmt.Sprintf("%d", int(time.Until(rl.Reset).Seconds())+1))
	c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests. Please try again later."})
}
