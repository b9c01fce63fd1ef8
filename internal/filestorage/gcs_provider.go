package filestorage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// GCSStorageProvider implementa Provider usando Google Cloud Storage.
type GCSStorageProvider struct {
	client     *storage.Client
	bucketName string
	projectID  string

	bucketEnsured bool
}

// InitializeGCSProvider inicializa el cliente de Google Cloud Storage.
// Devuelve nil, nil si GCS no está configurado, para no bloquear el arranque.
func InitializeGCSProvider() (*GCSStorageProvider, error) {
	ctx := context.Background()

	projectID := config.Cfg.GCSProjectID
	bucketName := config.Cfg.GCSBucketName
	if projectID == "" || bucketName == "" {
		orilog.L.Warn("GCS_PROJECT_ID or GCS_BUCKET_NAME not set. GCS storage disabled.")
		return nil, nil
	}

	// GOOGLE_APPLICATION_CREDENTIALS lo lee la librería cliente directamente.
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Cloud Storage client: %w", err)
	}

	orilog.L.Info("Google Cloud Storage provider initialized",
		zap.String("projectID", projectID), zap.String("bucketName", bucketName))

	return &GCSStorageProvider{
		client:     client,
		bucketName: bucketName,
		projectID:  projectID,
	}, nil
}

// ensureBucket comprueba (y crea si hace falta) el bucket privado, una vez
// por proceso. Los buckets se crean sin acceso público.
func (g *GCSStorageProvider) ensureBucket(ctx context.Context) error {
	if g.bucketEnsured {
		return nil
	}
	bucket := g.client.Bucket(g.bucketName)
	_, err := bucket.Attrs(ctx)
	if err == nil {
		g.bucketEnsured = true
		return nil
	}
	if !errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("failed to check GCS bucket '%s': %w", g.bucketName, err)
	}
	if err := bucket.Create(ctx, g.projectID, nil); err != nil {
		return fmt.Errorf("failed to create GCS bucket '%s': %w", g.bucketName, err)
	}
	orilog.L.Info("GCS bucket created", zap.String("bucket", g.bucketName))
	g.bucketEnsured = true
	return nil
}

// UploadFile sube un archivo al bucket y devuelve su objectName.
func (g *GCSStorageProvider) UploadFile(ctx context.Context, objectName string, fileContent io.Reader) (string, error) {
	if g.client == nil || g.bucketName == "" {
		return "", fmt.Errorf("GCS provider not initialized or configured correctly")
	}
	if err := g.ensureBucket(ctx); err != nil {
		return "", err
	}

	wc := g.client.Bucket(g.bucketName).Object(objectName).NewWriter(ctx)
	if _, err := io.Copy(wc, fileContent); err != nil {
		return "", fmt.Errorf("failed to copy file content to GCS object writer: %w", err)
	}
	if err := wc.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS object writer: %w", err)
	}

	orilog.L.Info("File uploaded successfully to GCS",
		zap.String("bucket", g.bucketName), zap.String("objectName", objectName))
	return objectName, nil
}

// DeleteFile elimina un objeto. Un objeto inexistente se considera éxito.
func (g *GCSStorageProvider) DeleteFile(ctx context.Context, objectName string) error {
	if g.client == nil || g.bucketName == "" {
		return fmt.Errorf("GCS provider not initialized or configured correctly")
	}
	if objectName == "" {
		return fmt.Errorf("object name cannot be empty for DeleteFile")
	}

	obj := g.client.Bucket(g.bucketName).Object(objectName)
	if err := obj.Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("failed to delete object '%s' from GCS bucket '%s': %w", objectName, g.bucketName, err)
	}
	return nil
}

// GetSignedURL genera una URL firmada de lectura.
func (g *GCSStorageProvider) GetSignedURL(ctx context.Context, objectName string, durationMinutes int) (string, error) {
	if g.client == nil || g.bucketName == "" {
		return "", fmt.Errorf("GCS provider not initialized or configured correctly")
	}
	opts := &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(time.Duration(durationMinutes) * time.Minute),
	}
	url, err := g.client.Bucket(g.bucketName).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("failed to generate signed URL for '%s': %w", objectName, err)
	}
	return url, nil
}

// ReadObject devuelve el contenido completo de un objeto.
func (g *GCSStorageProvider) ReadObject(ctx context.Context, objectName string) ([]byte, error) {
	if g.client == nil || g.bucketName == "" {
		return nil, fmt.Errorf("GCS provider not initialized or configured correctly")
	}
	if err := g.ensureBucket(ctx); err != nil {
		return nil, err
	}

	rc, err := g.client.Bucket(g.bucketName).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open GCS object '%s': %w", objectName, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read GCS object '%s': %w", objectName, err)
	}
	return data, nil
}

// WriteObject sobreescribe el objeto completo.
func (g *GCSStorageProvider) WriteObject(ctx context.Context, objectName string, data []byte) error {
	if g.client == nil || g.bucketName == "" {
		return fmt.Errorf("GCS provider not initialized or configured correctly")
	}
	if err := g.ensureBucket(ctx); err != nil {
		return err
	}

	wc := g.client.Bucket(g.bucketName).Object(objectName).NewWriter(ctx)
	wc.ContentType = "application/json"
	if _, err := wc.Write(data); err != nil {
		return fmt.Errorf("failed to write GCS object '%s': %w", objectName, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close GCS object writer for '%s': %w", objectName, err)
	}
	return nil
}
