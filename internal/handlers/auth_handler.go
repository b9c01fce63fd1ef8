package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"orientia/backend/internal/auth"
	"orientia/backend/internal/database"
	"orientia/backend/internal/devicetrust"
	"orientia/backend/internal/models"
	"orientia/backend/internal/ratelimit"
	orilog "orientia/backend/pkg/log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

type LoginPayload struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token         string          `json:"token"`
	UserID        string          `json:"user_id"`
	Email         string          `json:"email"`
	Name          string          `json:"name"`
	Role          models.UserRole `json:"role"`
	DeviceTrusted bool            `json:"device_trusted"`
}

// LoginHandler valida credenciales y emite la sesión JWT.
func LoginHandler(c *gin.Context) {
	log := orilog.L.Named("LoginHandler")

	var payload LoginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	email := strings.ToLower(strings.TrimSpace(payload.Email))

	rl := ratelimit.Allow("login:"+clientIP(c), 20, 15*time.Minute)
	if !rl.Allowed {
		rateLimited(c, "login", rl)
		return
	}

	db := database.GetDB()
	var user models.User
	if err := db.Where("LOWER(email) = ?", email).First(&user).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Error("Failed to look up user", zap.Error(err))
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	// Cuentas provisionadas por SSO pueden no tener contraseña local.
	if user.PasswordHash == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(payload.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}

	// Código propio, distinto de credenciales inválidas: la contraseña es
	// correcta pero la cuenta aún no verificó su email.
	if !user.IsVerified() {
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Email address not verified",
			"code":  "EMAIL_NOT_VERIFIED",
		})
		return
	}

	tokenString, err := auth.GenerateToken(&user)
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err), zap.String("user_id", user.ID.String()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	deviceTrusted := false
	if deviceID := devicetrust.DeviceIDFromRequest(c); deviceID != "" {
		trusted, trustErr := devicetrust.IsTrusted(db, user.ID, deviceID)
		if trustErr != nil {
			log.Warn("Failed to check device trust", zap.Error(trustErr))
		}
		deviceTrusted = trusted
	}

	c.JSON(http.StatusOK, LoginResponse{
		Token:         tokenString,
		UserID:        user.ID.String(),
		Email:         user.Email,
		Name:          user.Name,
		Role:          user.Role,
		DeviceTrusted: deviceTrusted,
	})
}

// MeHandler devuelve los datos básicos del usuario autenticado.
func MeHandler(c *gin.Context) {
	userID, ok := auth.CurrentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var user models.User
	if err := database.GetDB().First(&user, "id = ?", userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id":  user.ID.String(),
		"name":     user.Name,
		"email":    user.Email,
		"role":     user.Role,
		"verified": user.IsVerified(),
	})
}
