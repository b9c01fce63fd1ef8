package router

import (
	"net/http"
	"time"

	"orientia/backend/internal/auth"
	"orientia/backend/internal/database"
	"orientia/backend/internal/devicetrust"
	"orientia/backend/internal/handlers"
	orimiddleware "orientia/backend/internal/middleware"
	"orientia/backend/internal/oauth2auth"
	orilog "orientia/backend/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SetupRouter configura y devuelve una instancia del Gin Engine.
func SetupRouter(log *zap.Logger) *gin.Engine {
	router := gin.New()

	// Middlewares globales
	router.Use(orimiddleware.Metrics())
	router.Use(orimiddleware.GinZap(log, time.RFC3339, true))
	router.Use(orimiddleware.GinRecovery(log, time.RFC3339, true, true))

	// Métricas Prometheus
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Rutas de salud
	router.GET("/health", healthCheckHandler)

	// Rutas públicas (sin sesión JWT)
	setupPublicRoutes(router)

	// Rutas de autenticación
	setupAuthRoutes(router)

	// Rutas de la API v1 (protegidas por JWT)
	setupV1Routes(router)

	return router
}

func healthCheckHandler(c *gin.Context) {
	sqlDB, err := database.DB.DB()
	if err != nil {
		orilog.L.Error("Failed to obtain DB instance for health check", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database instance error"})
		return
	}

	if err := sqlDB.Ping(); err != nil {
		orilog.L.Error("Database ping failed during health check", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database ping failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"database": "connected",
	})
}

func setupPublicRoutes(r *gin.Engine) {
	publicApi := r.Group("/api")
	{
		publicApi.POST("/register", handlers.RegisterHandler)
		publicApi.POST("/verify-email", handlers.VerifyEmailHandler)
		publicApi.POST("/resend-verification", handlers.ResendVerificationHandler)
		publicApi.POST("/forgot-password", handlers.ForgotPasswordHandler)
		publicApi.POST("/reset-password", handlers.ResetPasswordHandler)
		publicApi.POST("/login", handlers.LoginHandler)
		// GET para el clic desde el correo, POST para clientes API.
		publicApi.GET("/communications/unsubscribe", handlers.UnsubscribeHandler)
		publicApi.POST("/communications/unsubscribe", handlers.UnsubscribeHandler)
	}
}

func setupAuthRoutes(r *gin.Engine) {
	authRoutes := r.Group("/auth")
	{
		oauth2GoogleGroup := authRoutes.Group("/oauth2/google")
		{
			oauth2GoogleGroup.GET("/login", oauth2auth.GoogleLoginHandler)
			oauth2GoogleGroup.GET("/callback", oauth2auth.GoogleCallbackHandler)
		}

		oauth2FacebookGroup := authRoutes.Group("/oauth2/facebook")
		{
			oauth2FacebookGroup.GET("/login", oauth2auth.FacebookLoginHandler)
			oauth2FacebookGroup.GET("/callback", oauth2auth.FacebookCallbackHandler)
		}
	}
}

func setupV1Routes(r *gin.Engine) {
	apiV1 := r.Group("/api/v1")
	apiV1.Use(auth.AuthMiddleware())
	{
		apiV1.GET("/me", handlers.MeHandler)

		// Verificación de dispositivo: accesible con sesión aunque el
		// dispositivo actual no sea de confianza todavía.
		deviceRoutes := apiV1.Group("/device")
		{
			deviceRoutes.POST("/verify", handlers.VerifyDeviceHandler)
			deviceRoutes.POST("/resend-verification", handlers.ResendDeviceVerificationHandler)
			deviceRoutes.GET("/status", handlers.DeviceStatusHandler)
		}

		// Preferencias de comunicación del propio usuario
		apiV1.GET("/communications/preferences", handlers.CommunicationPreferencesHandler)
		apiV1.PUT("/communications/preferences", handlers.UpdateCommunicationPreferencesHandler)

		// El área de trabajo exige un dispositivo de confianza.
		trustedDeviceGate := devicetrust.RequireTrustedDevice(func() *gorm.DB { return database.GetDB() })

		informeRoutes := apiV1.Group("/informes")
		informeRoutes.Use(trustedDeviceGate)
		{
			informeRoutes.POST("", handlers.CreateInformeHandler)
			informeRoutes.GET("", handlers.ListInformesHandler)
			informeRoutes.POST("/generate", handlers.GenerateInformeHandler)
			informeRoutes.GET("/:informeId", handlers.GetInformeHandler)
			informeRoutes.PUT("/:informeId", handlers.UpdateInformeHandler)
			informeRoutes.DELETE("/:informeId", handlers.DeleteInformeHandler)
		}

		// Rutas de administración
		adminRoutes := apiV1.Group("/admin")
		adminRoutes.Use(auth.AdminRequired())
		{
			adminRoutes.GET("/users", handlers.ListUsersHandler)
			adminRoutes.PUT("/users/:userId/role", handlers.UpdateUserRoleHandler)
			adminRoutes.DELETE("/users/:userId", handlers.DeleteUserHandler)
			adminRoutes.POST("/users/:userId/revoke-devices", handlers.RevokeUserDevicesHandler)

			adminRoutes.GET("/communications/users", handlers.ListCommunicationUsersHandler)
			adminRoutes.PUT("/communications/preferences", handlers.AdminUpdatePreferencesHandler)
			adminRoutes.POST("/communications/send", handlers.SendCommunicationsHandler)
		}
	}
}
