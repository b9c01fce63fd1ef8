package oauth2auth

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"orientia/backend/internal/database"
	"orientia/backend/pkg/log"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
)

const facebookStateCookie = "oauthstate_facebook"

func facebookOAuthConfig() (*oauth2.Config, error) {
	clientID := os.Getenv("FACEBOOK_CLIENT_ID")
	clientSecret := os.Getenv("FACEBOOK_CLIENT_SECRET")
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("Facebook OAuth is not configured")
	}
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  fmt.Sprintf("%s/auth/oauth2/facebook/callback", appRootURL),
		Scopes:       []string{"email", "public_profile"},
		Endpoint:     facebook.Endpoint,
	}, nil
}

// FacebookLoginHandler inicia el flujo de OAuth2 con Facebook.
func FacebookLoginHandler(c *gin.Context) {
	conf, err := facebookOAuthConfig()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}
	state, err := newStateCookie(c, facebookStateCookie)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate state token"})
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, conf.AuthCodeURL(state))
}

// FacebookCallbackHandler procesa el callback de Facebook y emite la sesión.
func FacebookCallbackHandler(c *gin.Context) {
	if !checkStateCookie(c, facebookStateCookie) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OAuth state"})
		return
	}
	conf, err := facebookOAuthConfig()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	token, err := conf.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		log.L.Error("Facebook OAuth code exchange failed", zap.Error(err))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Failed to exchange authorization code"})
		return
	}

	client := conf.Client(c.Request.Context(), token)
	resp, err := client.Get("https://graph.facebook.com/me?fields=id,name,email")
	if err != nil {
		log.L.Error("Failed to fetch Facebook user info", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query user info"})
		return
	}
	defer resp.Body.Close()

	var fbUser struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&fbUser); err != nil {
		log.L.Error("Failed to decode Facebook user info", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to query user info"})
		return
	}

	user, err := provisionOAuthUser(database.GetDB(), fbUser.Email, fbUser.Name, "facebook", fbUser.ID)
	if err != nil {
		log.L.Error("Failed to provision Facebook user", zap.Error(err), zap.String("email", fbUser.Email))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to sign in with Facebook"})
		return
	}
	redirectWithSession(c, user, "facebook")
}
