package database

import (
	"fmt"
	"log"
	"os"

	"github.com/golang-migrate/migrate/v4"
	postgresdriver "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// ConnectDB inicializa la conexión a la base de datos.
func ConnectDB(dsn string) error {
	var err error
	logLevel := logger.Silent
	if os.Getenv("ENVIRONMENT") == "development" {
		logLevel = logger.Info
	}

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established.")
	return nil
}

// MigrateDB aplica las migraciones SQL usando golang-migrate.
func MigrateDB() error {
	if DB == nil {
		return fmt.Errorf("database connection is not initialized. Call ConnectDB first")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Path relativo al directorio de ejecución del binario (raíz del proyecto).
	sourceURL := "file://internal/database/migrations"

	driver, err := postgresdriver.WithInstance(sqlDB, &postgresdriver.Config{})
	if err != nil {
		return fmt.Errorf("could not create postgres driver for migrate: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
	if err != nil {
		// Fallback si el binario corre desde cmd/server.
		sourceURL = "file://../../internal/database/migrations"
		m, err = migrate.NewWithDatabaseInstance(sourceURL, "postgres", driver)
		if err != nil {
			return fmt.Errorf("failed to initialize migrate with source '%s': %w", sourceURL, err)
		}
	}

	log.Println("Applying database migrations...")
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil {
		log.Printf("Warning: could not get migration version after applying: %v", err)
	} else {
		log.Printf("Database migrations applied. Current version: %d, Dirty: %t", version, dirty)
	}
	return nil
}

// GetDB devuelve la instancia actual de la base de datos.
func GetDB() *gorm.DB {
	return DB
}

// SetDB sustituye la instancia global. Usado por los tests con sqlmock.
func SetDB(db *gorm.DB) {
	DB = db
}
