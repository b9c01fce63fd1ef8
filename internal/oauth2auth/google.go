package oauth2auth

import (
	"fmt"
	"net/http"
	"os"

	"orientia/backend/internal/database"
	"orientia/backend/pkg/log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const googleStateCookie = "oauthstate_google"

func googleOAuthConfig() (*oauth2.Config, error) {
	clientID := os.Getenv("GOOGLE_CLIENT_ID")
	clientSecret := os.Getenv("GOOGLE_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("Google OAuth is not configured")
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  fmt.Sprintf("%s/auth/oauth2/google/callback", appRootURL),
		Scopes: []string{
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		},
		Endpoint: googleoauth.Endpoint,
	}, nil
}

// GoogleLoginHandler inicia el flujo de OAuth2 con Google.
func GoogleLoginHandler(c *gin.Context) {
	conf, err := googleOAuthConfig()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	state, err := newStateCookie(c, googleStateCookie)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate state token"})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, conf.AuthCodeURL(state))
}

// GoogleCallbackHandler procesa el callback de Google y emite la sesión.
func GoogleCallbackHandler(c *gin.Context) {
	if !checkStateCookie(c, googleStateCookie) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state"})
		return
	}
	conf, err := googleOAuthConfig()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	token, err := conf.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		log.L.Error("Google OAuth code exchange failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Failed to exchange authorization code"})
		return
	}

	oauth2Service, err := oauth2api.NewService(c.Request.Context(),
		option.WithTokenSource(conf.TokenSource(c.Request.Context(), token)))
	if err != nil {
		log.L.Error("Failed to create Google OAuth2 service", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query user info"})
		return
	}
	userInfo, err := oauth2Service.Userinfo.Get().Do()
	if err != nil {
		log.L.Error("Failed to fetch Google user info", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query user info"})
		return
	}

	user, err := provisionOAuthUser(database.GetDB(), userInfo.Email, userInfo.Name, "google", userInfo.Id)
	if err != nil {
		log.L.Error("Failed to provision Google user", zap.Error(err), zap.String("email", userInfo.Email))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in with Google"})
		return
	}
	redirectWithSession(c, user, "google")
}
