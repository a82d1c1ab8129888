package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/shopkeeper/internal/logging"
)

// Mailer delivers one-time codes.
type Mailer interface {
	SendCode(ctx context.Context, email, code string, expiresAt time.Time) error
}

// LogMailer writes codes to the log instead of sending mail. Development only.
type LogMailer struct {
	logger logging.Logger
}

func NewLogMailer(l logging.Logger) *LogMailer {
	return &LogMailer{logger: l.With("module", "mailer")}
}

func (m *LogMailer) SendCode(ctx context.Context, email, code string, expiresAt time.Time) error {
	m.logger.Info(ctx, "one-time code issued", "email", email, "code", code, "expires_at", expiresAt.Format(time.RFC3339))
	return nil
}
