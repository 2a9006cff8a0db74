package bootstrap

import (
	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/transcenda-leads/internal/config"
	"github.com/wolfman30/transcenda-leads/internal/notify"
	"github.com/wolfman30/transcenda-leads/pkg/logging"
)

// BuildOpsNotifier picks SendGrid, then SES, then a logging stub.
func BuildOpsNotifier(cfg *appconfig.Config, ses *sesv2.Client, logger *logging.Logger) *notify.OpsNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return notify.NewOpsNotifier(buildEmailSender(cfg, ses, logger), cfg.AlertEmailTo, logger)
}

func buildEmailSender(cfg *appconfig.Config, ses *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		logger.Info("ops alerts via sendgrid")
		return sg
	}
	if ses != nil {
		if s := notify.NewSESSender(ses, notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); s != nil {
			logger.Info("ops alerts via ses")
			return s
		}
	}
	logger.Warn("no email provider configured; ops alerts are logged only")
	return notify.NewStubEmailSender(logger)
}
