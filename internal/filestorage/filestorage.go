package filestorage

import (
	"context"
	"io"

	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	"go.uber.org/zap"
)

// Provider define las operaciones de object storage que usa la aplicación:
// documentos por usuario (informes exportados) y los documentos JSON
// compartidos del sistema (lista de opt-out, preferencias).
type Provider interface {
	// UploadFile sube un archivo y devuelve el objectName almacenado.
	UploadFile(ctx context.Context, objectName string, fileContent io.Reader) (storedObjectName string, err error)
	DeleteFile(ctx context.Context, objectName string) error
	GetSignedURL(ctx context.Context, objectName string, durationMinutes int) (signedURL string, err error)

	// ReadObject devuelve el contenido completo de un objeto.
	// Debe devolver ErrObjectNotFound si el objeto no existe.
	ReadObject(ctx context.Context, objectName string) ([]byte, error)
	// WriteObject sobreescribe el objeto completo (read-modify-write).
	WriteObject(ctx context.Context, objectName string, data []byte) error
}

// DefaultProvider es el provider inicializado por InitFileStorage.
var DefaultProvider Provider

// InitFileStorage inicializa el provider según la configuración.
// No bloquea el arranque si el storage no está configurado.
func InitFileStorage() error {
	providerType := config.Cfg.FileStorageProvider
	orilog.L.Info("Initializing file storage", zap.String("provider_type", providerType))

	var err error
	switch providerType {
	case "s3":
		DefaultProvider, err = InitializeS3Provider()
		if err != nil {
			orilog.L.Error("Failed to initialize S3 storage provider", zap.Error(err))
		}
	case "gcs":
		DefaultProvider, err = InitializeGCSProvider()
		if err != nil {
			orilog.L.Error("Failed to initialize GCS storage provider", zap.Error(err))
		}
	default:
		orilog.L.Warn("Unsupported FILE_STORAGE_PROVIDER. Object storage disabled.", zap.String("provider_type", providerType))
	}

	if DefaultProvider != nil {
		orilog.L.Info("File storage provider initialized successfully.", zap.String("provider_type", providerType))
	} else {
		orilog.L.Warn("No file storage provider initialized. Object storage disabled.")
	}
	return nil
}
