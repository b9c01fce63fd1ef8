package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"orientia/backend/internal/models"
	"orientia/backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	config.Cfg.JWTSecret = "testsecretkeyforjwtauthentication"
	config.Cfg.JWTTokenLifespan = time.Hour
	if err := InitializeJWT(); err != nil {
		panic("Failed to initialize JWT for testing: " + err.Error())
	}
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func testUser() *models.User {
	return &models.User{
		ID:    uuid.New(),
		Email: "Test@Example.com",
		Role:  models.RoleUsuario,
	}
}

func TestGenerateToken(t *testing.T) {
	user := testUser()

	tokenString, err := GenerateToken(user)
	assert.NoError(t, err)
	assert.NotEmpty(t, tokenString)

	claims, err := ValidateToken(tokenString)
	assert.NoError(t, err)
	assert.NotNil(t, claims)
	assert.Equal(t, user.ID, claims.UserID)
	// El email del claim siempre va normalizado.
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, models.RoleUsuario, claims.Role)
	assert.Equal(t, "orientia", claims.Issuer)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 5*time.Second)
}

func TestValidateToken_InvalidSignature(t *testing.T) {
	user := testUser()
	tokenString, _ := GenerateToken(user)

	originalKey := jwtKey
	jwtKey = []byte("wrongsecretkey")
	defer func() { jwtKey = originalKey }()

	_, err := ValidateToken(tokenString)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "signature is invalid")
}

func TestValidateToken_Expired(t *testing.T) {
	originalLifespan := config.Cfg.JWTTokenLifespan
	config.Cfg.JWTTokenLifespan = -time.Hour
	defer func() { config.Cfg.JWTTokenLifespan = originalLifespan }()

	tokenString, err := GenerateToken(testUser())
	assert.NoError(t, err)

	_, err = ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := ValidateToken("definitely.not.ajwt")
	assert.Error(t, err)
}

func TestAuthMiddleware(t *testing.T) {
	user := testUser()
	tokenString, _ := GenerateToken(user)

	router := gin.New()
	router.Use(AuthMiddleware())
	router.GET("/protected", func(c *gin.Context) {
		userID, ok := CurrentUserID(c)
		assert.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": userID.String()})
	})

	cases := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{"valid bearer token", "Bearer " + tokenString, http.StatusOK},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + tokenString, http.StatusUnauthorized},
		{"malformed header", "Bearer", http.StatusUnauthorized},
		{"tampered token", "Bearer " + tokenString + "x", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
			if tc.authHeader != "" {
				req.Header.Set("Authorization", tc.authHeader)
			}
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, tc.wantStatus, rr.Code)
		})
	}
}

func TestAdminRequired(t *testing.T) {
	router := gin.New()
	router.Use(AuthMiddleware(), AdminRequired())
	router.GET("/admin", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	adminToken, _ := GenerateToken(&models.User{ID: uuid.New(), Email: "admin@example.com", Role: models.RoleAdmin})
	userToken, _ := GenerateToken(&models.User{ID: uuid.New(), Email: "user@example.com", Role: models.RoleUsuario})

	req, _ := http.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+adminToken)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req, _ = http.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+userToken)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
