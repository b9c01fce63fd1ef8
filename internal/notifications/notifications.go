package notifications

import (
	"context"

	"orientia/backend/pkg/config"
	orilog "orientia/backend/pkg/log"
	"orientia/backend/pkg/metrics"

	"go.uber.org/zap"
)

// EmailNotifier define la interfaz de un notificador de email.
type EmailNotifier interface {
	Send(ctx context.Context, to, subject, bodyHTML string) error
}

// DefaultEmailNotifier es el notificador usado por la aplicación.
var DefaultEmailNotifier EmailNotifier

// InitEmailService inicializa el notificador según EMAIL_PROVIDER.
func InitEmailService() {
	log := orilog.L.Named("InitEmailService")

	switch config.Cfg.EmailProvider {
	case "resend":
		notifier, err := InitializeResendNotifier()
		if err != nil {
			log.Warn("Resend email service not configured. Email sends will be simulated.", zap.Error(err))
			return
		}
		DefaultEmailNotifier = notifier
	case "ses":
		notifier, err := InitializeSESNotifier()
		if err != nil {
			log.Warn("AWS SES email service not configured. Email sends will be simulated.", zap.Error(err))
			return
		}
		DefaultEmailNotifier = notifier
	default:
		log.Warn("Unsupported EMAIL_PROVIDER. Email sends will be simulated.",
			zap.String("provider", config.Cfg.EmailProvider))
	}
}

// SendEmail envía un email con el notificador configurado. kind etiqueta la
// métrica de envíos ("verification", "password_reset", "device", "communication").
// Sin notificador configurado (desarrollo local) el envío se simula y se loguea.
func SendEmail(ctx context.Context, kind, to, subject, bodyHTML string) error {
	if DefaultEmailNotifier == nil {
		orilog.L.Info("--- SIMULATING EMAIL SEND ---",
			zap.String("kind", kind),
			zap.String("to", to),
			zap.String("subject", subject))
		return nil
	}
	err := DefaultEmailNotifier.Send(ctx, to, subject, bodyHTML)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.EmailSendCounter.WithLabelValues(kind, result).Inc()
	return err
}
