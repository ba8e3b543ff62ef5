// Package report emails user-submitted issue reports to the marketplace mailbox.
package report

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Vasu1712/campus-marketplace/internal/apperr"
	"github.com/Vasu1712/campus-marketplace/internal/config"
	"github.com/Vasu1712/campus-marketplace/internal/logging"
)

const Subject = "Issue Report -- ASU Marketplace"

type Notifier struct {
	cfg       config.Mail
	newMailer MailerFactory
	log       *logrus.Entry
}

type Option func(*Notifier)

// WithMailerFactory replaces the SMTP transport.
func WithMailerFactory(f MailerFactory) Option {
	return func(n *Notifier) { n.newMailer = f }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(n *Notifier) { n.log = logging.Component(log, "report") }
}

func NewNotifier(cfg config.Mail, opts ...Option) *Notifier {
	n := &Notifier{cfg: cfg, newMailer: NewSMTPMailer, log: logging.Component(nil, "report")}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Report emails reportText from and to the configured mailbox and returns the
// Message-ID. Credentials are resolved on every call so a misconfiguration
// surfaces as a ConfigurationError on the request that hit it.
func (n *Notifier) Report(ctx context.Context, reportText, userEmail string) (string, error) {
	if strings.TrimSpace(reportText) == "" {
		return "", apperr.Validation("reportText is required")
	}

	creds, err := ResolveCredentials(n.cfg)
	if err != nil {
		n.log.WithError(err).Error("mail transport unavailable")
		return "", err
	}
	mailer, err := n.newMailer(creds)
	if err != nil {
		return "", apperr.Wrap(err, "Error creating mail transport")
	}

	id, err := mailer.Send(ctx, Email{
		From:    creds.User,
		To:      creds.User,
		Subject: Subject,
		Body:    Body(reportText, userEmail),
	})
	if err != nil {
		n.log.WithError(err).WithField("auth", creds.Method).Error("issue report delivery failed")
		return "", &apperr.Error{Kind: apperr.KindTransport, Message: err.Error(), Err: err}
	}
	n.log.WithFields(logrus.Fields{"message_id": id, "auth": creds.Method}).Info("issue report sent")
	return id, nil
}

// Body formats the email text.
func Body(reportText, userEmail string) string {
	from := strings.TrimSpace(userEmail)
	if from == "" {
		from = "Anonymous"
	}
	return "Report from user " + from + ":\n\n" + reportText
}
