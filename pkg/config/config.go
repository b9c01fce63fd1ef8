package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig detiene la configuración de la aplicación.
type AppConfig struct {
	Port             string
	Environment      string // "development", "staging", "production"
	AppVersion       string
	AppRootURL       string // URL pública del backend (callbacks OAuth)
	FrontendBaseURL  string // URL base del frontend (links en emails)
	JWTSecret        string
	JWTTokenLifespan time.Duration

	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	EnableDBSSL bool

	// Claves de firma para tokens opacos y de unsubscribe.
	TokenHashKey      string
	UnsubscribeSecret string

	// Verificación anti-bot (Cloudflare Turnstile).
	TurnstileSecret string

	// Email saliente: "ses" o "resend".
	EmailProvider     string
	AWSRegion         string
	AWSSESEmailSender string
	ResendAPIKey      string
	ResendEmailSender string

	// Object storage: "gcs" o "s3".
	FileStorageProvider string
	GCSProjectID        string
	GCSBucketName       string
	AWSS3Bucket         string

	// Generación de informes (proveedor LLM).
	OpenAIAPIKey string
	OpenAIModel  string

	// Escape hatch para desarrollo local: desactiva el gate de dispositivo.
	DeviceGateBypass bool
}

var Cfg AppConfig

// LoadConfig carga la configuración de la aplicación desde variables de entorno.
func LoadConfig() {
	// Cargar .env para desarrollo local, ignorar error si no existe (producción)
	if err := godotenv.Load(); err != nil {
		log.Println("Aviso: archivo .env no encontrado o error al cargar:", err)
	}

	Cfg.Port = getEnv("PORT", "8080")
	Cfg.Environment = getEnv("ENVIRONMENT", "development")
	Cfg.AppVersion = getEnv("APP_VERSION", "dev")
	Cfg.AppRootURL = getEnv("APP_ROOT_URL", "http://localhost:8080")
	Cfg.FrontendBaseURL = getEnv("FRONTEND_BASE_URL", "http://localhost:3000")

	Cfg.JWTSecret = getEnv("JWT_SECRET_KEY", "")
	jwtLifespanHours, err := strconv.Atoi(getEnv("JWT_TOKEN_LIFESPAN_HOURS", "24"))
	if err != nil {
		log.Printf("Aviso: JWT_TOKEN_LIFESPAN_HOURS inválido, usando default 24h. Error: %v", err)
		jwtLifespanHours = 24
	}
	Cfg.JWTTokenLifespan = time.Duration(jwtLifespanHours) * time.Hour

	Cfg.DBHost = getEnv("DB_HOST", "localhost")
	Cfg.DBPort = getEnv("DB_PORT", "5432")
	Cfg.DBUser = getEnv("DB_USER", "orientia_user")
	Cfg.DBPassword = getEnv("DB_PASSWORD", "orientia_pass")
	Cfg.DBName = getEnv("DB_NAME", "orientia_db")
	Cfg.EnableDBSSL = getEnvAsBool("DB_SSL_ENABLE", false)

	Cfg.TokenHashKey = getEnv("TOKEN_HASH_KEY", "")
	Cfg.UnsubscribeSecret = getEnv("UNSUBSCRIBE_SECRET", "")
	Cfg.TurnstileSecret = getEnv("TURNSTILE_SECRET_KEY", "")

	Cfg.EmailProvider = getEnv("EMAIL_PROVIDER", "ses")
	Cfg.AWSRegion = getEnv("AWS_REGION", "")
	Cfg.AWSSESEmailSender = getEnv("AWS_SES_EMAIL_SENDER", "")
	Cfg.ResendAPIKey = getEnv("RESEND_API_KEY", "")
	Cfg.ResendEmailSender = getEnv("RESEND_EMAIL_SENDER", "")

	Cfg.FileStorageProvider = getEnv("FILE_STORAGE_PROVIDER", "gcs")
	Cfg.GCSProjectID = getEnv("GCS_PROJECT_ID", "")
	Cfg.GCSBucketName = getEnv("GCS_BUCKET_NAME", "")
	Cfg.AWSS3Bucket = getEnv("AWS_S3_BUCKET", "")

	Cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", "")
	Cfg.OpenAIModel = getEnv("OPENAI_MODEL", "gpt-4o-mini")

	Cfg.DeviceGateBypass = getEnvAsBool("DEVICE_GATE_BYPASS", Cfg.Environment == "development")

	log.Printf("Configuración cargada para el entorno: %s", Cfg.Environment)
}

// getEnv devuelve el valor de una variable de entorno o un valor default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsBool devuelve el valor booleano de una variable de entorno o un default.
func getEnvAsBool(key string, defaultValue bool) bool {
	valStr := getEnv(key, "")
	if valStr == "" {
		return defaultValue
	}
	valBool, err := strconv.ParseBool(valStr)
	if err != nil {
		log.Printf("Aviso: variable booleana '%s' con valor inválido '%s', usando default: %t", key, valStr, defaultValue)
		return defaultValue
	}
	return valBool
}

func init() {
	LoadConfig()
}
