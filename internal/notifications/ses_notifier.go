package notifications

import (
	"context"
	"errors"
	"fmt"

	appconfig "orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsGoConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"go.uber.org/zap"
)

// SESEmailNotifier implementa EmailNotifier usando AWS SES.
type SESEmailNotifier struct {
	client *sesv2.Client
	sender string
}

// InitializeSESNotifier crea el notificador SES desde la configuración.
func InitializeSESNotifier() (*SESEmailNotifier, error) {
	region := appconfig.Cfg.AWSRegion
	sender := appconfig.Cfg.AWSSESEmailSender
	if region == "" || sender == "" {
		return nil, fmt.Errorf("missing AWS_REGION or AWS_SES_EMAIL_SENDER")
	}

	cfg, err := awsGoConfig.LoadDefaultConfig(context.TODO(), awsGoConfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS SDK config for SES: %w", err)
	}

	orilog.L.Info("AWS SES email service initialized",
		zap.String("sender", sender), zap.String("region", region))
	return &SESEmailNotifier{
		client: sesv2.NewFromConfig(cfg),
		sender: sender,
	}, nil
}

func (s *SESEmailNotifier) Send(ctx context.Context, to, subject, bodyHTML string) error {
	if s.client == nil {
		return errors.New("SES client not initialized")
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: &s.sender,
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Body: &types.Body{
					Html: &types.Content{
						Data:    aws.String(bodyHTML),
						Charset: aws.String("UTF-8"),
					},
				},
				Subject: &types.Content{
					Data:    aws.String(subject),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := s.client.SendEmail(ctx, input); err != nil {
		orilog.L.Error("Failed to send email via SES", zap.Error(err), zap.String("recipient", to))
		return err
	}
	return nil
}
