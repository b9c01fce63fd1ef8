package filestorage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsGoConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// S3StorageProvider implementa Provider usando Amazon S3.
type S3StorageProvider struct {
	client     *s3.Client
	uploader   *manager.Uploader
	presigner  *s3.PresignClient
	bucketName string
	region     string

	bucketEnsured bool
}

// InitializeS3Provider inicializa el cliente S3.
// Devuelve nil, nil si S3 no está configurado, para no bloquear el arranque.
func InitializeS3Provider() (*S3StorageProvider, error) {
	bucket := config.Cfg.AWSS3Bucket
	region := config.Cfg.AWSRegion
	if bucket == "" || region == "" {
		orilog.L.Warn("AWS_S3_BUCKET or AWS_REGION not set. S3 storage disabled.")
		return nil, nil
	}

	sdkConfig, err := awsGoConfig.LoadDefaultConfig(context.TODO(), awsGoConfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for S3: %w", err)
	}

	client := s3.NewFromConfig(sdkConfig)
	orilog.L.Info("Amazon S3 storage provider initialized",
		zap.String("bucket", bucket), zap.String("region", region))

	return &S3StorageProvider{
		client:     client,
		uploader:   manager.NewUploader(client),
		presigner:  s3.NewPresignClient(client),
		bucketName: bucket,
		region:     region,
	}, nil
}

// ensureBucket comprueba (y crea si hace falta) el bucket, una vez por proceso.
func (s *S3StorageProvider) ensureBucket(ctx context.Context) error {
	if s.bucketEnsured {
		return nil
	}
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucketName)})
	if err == nil {
		s.bucketEnsured = true
		return nil
	}
	var notFound *s3types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("failed to check S3 bucket '%s': %w", s.bucketName, err)
	}
	input := &s3.CreateBucketInput{Bucket: aws.String(s.bucketName)}
	if s.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, input); err != nil {
		return fmt.Errorf("failed to create S3 bucket '%s': %w", s.bucketName, err)
	}
	orilog.L.Info("S3 bucket created", zap.String("bucket", s.bucketName))
	s.bucketEnsured = true
	return nil
}

// UploadFile sube un archivo usando el upload manager (multipart).
func (s *S3StorageProvider) UploadFile(ctx context.Context, objectName string, fileContent io.Reader) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("S3 provider not initialized")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return "", err
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectName),
		Body:   fileContent,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload object '%s' to S3: %w", objectName, err)
	}

	orilog.L.Info("File uploaded successfully to S3",
		zap.String("bucket", s.bucketName), zap.String("objectName", objectName))
	return objectName, nil
}

// DeleteFile elimina un objeto. S3 es idempotente para claves inexistentes.
func (s *S3StorageProvider) DeleteFile(ctx context.Context, objectName string) error {
	if s.client == nil {
		return fmt.Errorf("S3 provider not initialized")
	}
	if objectName == "" {
		return fmt.Errorf("object name cannot be empty for DeleteFile")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectName),
	})
	if err != nil {
		return fmt.Errorf("failed to delete object '%s' from S3: %w", objectName, err)
	}
	return nil
}

// GetSignedURL genera una URL prefirmada de lectura.
func (s *S3StorageProvider) GetSignedURL(ctx context.Context, objectName string, durationMinutes int) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("S3 provider not initialized")
	}
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectName),
	}, s3.WithPresignExpires(time.Duration(durationMinutes)*time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to presign URL for '%s': %w", objectName, err)
	}
	return req.URL, nil
}

// ReadObject devuelve el contenido completo de un objeto.
func (s *S3StorageProvider) ReadObject(ctx context.Context, objectName string) ([]byte, error) {
	if s.client == nil {
		return nil, fmt.Errorf("S3 provider not initialized")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(objectName),
	})
	if err != nil {
		var noSuchKey *s3types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to get object '%s' from S3: %w", objectName, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object '%s' from S3: %w", objectName, err)
	}
	return data, nil
}

// WriteObject sobreescribe el objeto completo.
func (s *S3StorageProvider) WriteObject(ctx context.Context, objectName string, data []byte) error {
	if s.client == nil {
		return fmt.Errorf("S3 provider not initialized")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(objectName),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to S3: %w", objectName, err)
	}
	return nil
}
