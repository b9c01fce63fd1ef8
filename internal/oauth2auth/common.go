package oauth2auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"orientia/backend/internal/auth"
	"orientia/backend/internal/models"
	"orientia/backend/pkg/config"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

var appRootURL string

// InitializeOAuth2GlobalConfig carga la configuración global de OAuth2.
func InitializeOAuth2GlobalConfig() error {
	appRootURL = config.Cfg.AppRootURL
	if appRootURL == "" {
		appRootURL = os.Getenv("APP_ROOT_URL")
	}
	if appRootURL == "" {
		return fmt.Errorf("APP_ROOT_URL not set (required for OAuth2 redirect URIs)")
	}
	return nil
}

// newStateCookie genera el state anti-CSRF y lo deja en una cookie corta.
func newStateCookie(c *gin.Context, cookieName string) (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	state := base64.URLEncoding.EncodeToString(b)
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     cookieName,
		Value:    state,
		Expires:  time.Now().Add(10 * time.Minute),
		HttpOnly: true,
		Path:     "/",
		Secure:   c.Request.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	return state, nil
}

// checkStateCookie verifica y consume la cookie de state.
func checkStateCookie(c *gin.Context, cookieName string) bool {
	stateCookie, err := c.Cookie(cookieName)
	if err != nil {
		return false
	}
	http.SetCookie(c.Writer, &http.Cookie{Name: cookieName, Value: "", MaxAge: -1, Path: "/"})
	return c.Query("state") == stateCookie
}

// provisionOAuthUser busca o crea el usuario para un sign-in social.
// El primer sign-in provisiona la cuenta con rol usuario y la marca
// verificada (el proveedor ya verificó el email); los siguientes solo
// actualizan los datos del proveedor.
func provisionOAuthUser(db *gorm.DB, email, fullName, provider, externalID string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("email not provided by %s", provider)
	}
	if fullName = strings.TrimSpace(fullName); fullName == "" {
		fullName = email
	}

	var user models.User
	err := db.Where("LOWER(email) = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		now := time.Now()
		user = models.User{
			Name:            fullName,
			Email:           email,
			Role:            models.RoleUsuario,
			EmailVerifiedAt: &now,
			SSOProvider:     provider,
			SocialLoginID:   externalID,
		}
		if createErr := db.Create(&user).Error; createErr != nil {
			return nil, createErr
		}
		return &user, nil
	}

	user.SSOProvider = provider
	user.SocialLoginID = externalID
	if user.EmailVerifiedAt == nil {
		now := time.Now()
		user.EmailVerifiedAt = &now
	}
	if saveErr := db.Save(&user).Error; saveErr != nil {
		return nil, saveErr
	}
	return &user, nil
}

// redirectWithSession emite el JWT y redirige al frontend.
func redirectWithSession(c *gin.Context, user *models.User, provider string) {
	jwtToken, err := auth.GenerateToken(user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate session token"})
		return
	}
	frontendRedirectURL := config.Cfg.FrontendBaseURL
	if frontendRedirectURL == "" {
		frontendRedirectURL = "/"
	}
	targetURL := fmt.Sprintf("%s/auth/callback?token=%s&sso_success=true&provider=%s",
		strings.TrimSuffix(frontendRedirectURL, "/"), jwtToken, provider)
	c.Redirect(http.StatusFound, targetURL)
}
