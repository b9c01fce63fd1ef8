package log

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// L es el logger global estructurado (zap.Logger).
	L *zap.Logger
	// S es el logger global sugarizado (zap.SugaredLogger), para logging printf-style.
	S *zap.SugaredLogger
)

// Init inicializa los loggers globales L y S.
// logLevel puede ser "debug", "info", "warn", "error", "dpanic", "panic", "fatal".
// env puede ser "development" o "production" (cualquier otro valor usa production).
func Init(logLevel string, env string) {
	var cfg zap.Config
	if strings.ToLower(env) == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	level, err := zapcore.ParseLevel(strings.ToLower(logLevel))
	if err != nil {
		level = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(fmt.Sprintf("fallo al construir el logger zap: %v", err))
	}

	L = logger
	S = logger.Sugar()

	// Permite acceder al logger via zap.L() y zap.S() desde otros paquetes.
	zap.ReplaceGlobals(L)
}

// Sync vacía los buffers de log. Llamar con defer desde main.
func Sync() {
	if L != nil {
		_ = L.Sync()
	}
}

func init() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	appEnv := os.Getenv("ENVIRONMENT")
	if appEnv == "" {
		appEnv = "development"
	}
	Init(logLevel, appEnv)
}
