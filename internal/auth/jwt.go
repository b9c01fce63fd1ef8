package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"orientia/backend/internal/models"
	"orientia/backend/pkg/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var jwtKey []byte

// Claims es la estructura codificada en el JWT de sesión.
// UserID y Role son el id durable y rol persistidos en la base de datos:
// los flujos OAuth y de credenciales convergen sobre la misma identidad.
type Claims struct {
	UserID uuid.UUID       `json:"user_id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	jwt.RegisteredClaims
}

// InitializeJWT carga la clave de firma desde la configuración.
func InitializeJWT() error {
	secret := config.Cfg.JWTSecret
	if secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY environment variable not set")
	}
	jwtKey = []byte(secret)
	return nil
}

// GenerateToken genera un JWT de sesión para un usuario.
func GenerateToken(user *models.User) (string, error) {
	if len(jwtKey) == 0 {
		return "", fmt.Errorf("JWT secret key not initialized. Call InitializeJWT() first")
	}

	lifespan := config.Cfg.JWTTokenLifespan
	if lifespan == 0 {
		lifespan = 24 * time.Hour
	}
	expirationTime := time.Now().Add(lifespan)

	claims := &Claims{
		UserID: user.ID,
		Email:  strings.ToLower(user.Email),
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "orientia",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(jwtKey)
	if err != nil {
		return "", fmt.Errorf("error signing token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken valida un JWT y devuelve sus claims.
func ValidateToken(tokenString string) (*Claims, error) {
	if len(jwtKey) == 0 {
		return nil, fmt.Errorf("JWT secret key not initialized")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return jwtKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error parsing token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	return claims, nil
}

// AuthMiddleware exige un Bearer token válido y deja los claims en el contexto.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header format must be Bearer {token}"})
			return
		}

		claims, err := ValidateToken(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}

		c.Set("userID", claims.UserID)
		c.Set("userEmail", claims.Email)
		c.Set("userRole", claims.Role)
		c.Set("claims", claims)
		c.Next()
	}
}

// AdminRequired exige rol admin. Aplicar después de AuthMiddleware.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get("userRole")
		if !exists || role.(models.UserRole) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin role required"})
			return
		}
		c.Next()
	}
}

// CurrentUserID devuelve el id de usuario dejado por AuthMiddleware.
func CurrentUserID(c *gin.Context) (uuid.UUID, bool) {
	val, exists := c.Get("userID")
	if !exists {
		return uuid.Nil, false
	}
	id, ok := val.(uuid.UUID)
	return id, ok
}
