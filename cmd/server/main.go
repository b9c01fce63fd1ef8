package main

import (
	"fmt"

	"orientia/backend/internal/auth"
	"orientia/backend/internal/database"
	"orientia/backend/internal/filestorage"
	"orientia/backend/internal/llm"
	"orientia/backend/internal/notifications"
	"orientia/backend/internal/oauth2auth"
	"orientia/backend/internal/router"
	"orientia/backend/internal/tokens"
	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	"go.uber.org/zap"
)

func buildDSN() string {
	sslMode := "disable"
	if config.Cfg.EnableDBSSL {
		sslMode = "require"
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
		config.Cfg.DBHost, config.Cfg.DBPort, config.Cfg.DBUser,
		config.Cfg.DBPassword, config.Cfg.DBName, sslMode)
}

func main() {
	defer orilog.Sync()
	log := orilog.L

	if err := auth.InitializeJWT(); err != nil {
		log.Fatal("Failed to initialize JWT", zap.Error(err))
	}
	if err := tokens.InitializeHashing(); err != nil {
		log.Fatal("Failed to initialize token hashing", zap.Error(err))
	}
	if err := oauth2auth.InitializeOAuth2GlobalConfig(); err != nil {
		log.Warn("OAuth2 not fully configured. Social login disabled.", zap.Error(err))
	}

	if err := database.ConnectDB(buildDSN()); err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := database.MigrateDB(); err != nil {
		log.Fatal("Failed to apply database migrations", zap.Error(err))
	}

	notifications.InitEmailService()
	if err := filestorage.InitFileStorage(); err != nil {
		log.Warn("File storage not configured. Opt-out registry persistence disabled.", zap.Error(err))
	}
	llm.InitLLM()

	r := router.SetupRouter(log)

	log.Info("Starting Orientia backend",
		zap.String("port", config.Cfg.Port),
		zap.String("environment", config.Cfg.Environment),
		zap.String("version", config.Cfg.AppVersion))
	if err := r.Run(":" + config.Cfg.Port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
