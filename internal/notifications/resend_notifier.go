package notifications

import (
	"context"
	"fmt"

	appconfig "orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"

	"github.com/resendlabs/resend-go"
	"go.uber.org/zap"
)

// ResendEmailNotifier implementa EmailNotifier usando la API de Resend.
type ResendEmailNotifier struct {
	client *resend.Client
	sender string
}

// InitializeResendNotifier crea el notificador Resend desde la configuración.
func InitializeResendNotifier() (*ResendEmailNotifier, error) {
	apiKey := appconfig.Cfg.ResendAPIKey
	sender := appconfig.Cfg.ResendEmailSender
	if apiKey == "" || sender == "" {
		return nil, fmt.Errorf("missing RESEND_API_KEY or RESEND_EMAIL_SENDER")
	}

	orilog.L.Info("Resend email service initialized", zap.String("sender", sender))
	return &ResendEmailNotifier{
		client: resend.NewClient(apiKey),
		sender: sender,
	}, nil
}

func (r *ResendEmailNotifier) Send(ctx context.Context, to, subject, bodyHTML string) error {
	params := &resend.SendEmailRequest{
		From:    r.sender,
		To:      []string{to},
		Subject: subject,
		Html:    bodyHTML,
	}
	if _, err := r.client.Emails.Send(params); err != nil {
		orilog.L.Error("Failed to send email via Resend", zap.Error(err), zap.String("recipient", to))
		return err
	}
	return nil
}
