// Package mailer delivers notification emails through the Gmail API.
package mailer

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"seatwatch-service/internal/domain/entity"
	"seatwatch-service/pkg/logger"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GmailSender sends notification emails from the configured account
type GmailSender struct {
	service  *gmail.Service
	from     string
	fromName string
	timeout  time.Duration
	logger   logger.Logger
}

// NewGmailSender creates a new Gmail API sender
func NewGmailSender(ctx context.Context, tokenSource oauth2.TokenSource, from, fromName string, timeout time.Duration, logger logger.Logger) (*GmailSender, error) {
	service, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	return &GmailSender{
		service:  service,
		from:     from,
		fromName: fromName,
		timeout:  timeout,
		logger:   logger,
	}, nil
}

// Send delivers one email and returns the Gmail message id
func (s *GmailSender) Send(ctx context.Context, to, subject, body string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	message := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(s.buildMessage(to, subject, body))),
	}

	sent, err := s.service.Users.Messages.Send("me", message).Context(ctx).Do()
	if err != nil {
		return "", classifySendError(err)
	}

	s.logger.Info("Notification email sent", "to", to, "messageId", sent.Id)
	return sent.Id, nil
}

// buildMessage assembles an RFC 2822 message with an HTML body
func (s *GmailSender) buildMessage(to, subject, body string) string {
	var b strings.Builder
	if s.fromName != "" {
		fmt.Fprintf(&b, "From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", s.fromName), s.from)
	} else {
		fmt.Fprintf(&b, "From: %s\r\n", s.from)
	}
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return b.String()
}

// classifySendError separates permanently rejected sends from transient
// failures. Rate limiting and timeouts stay retryable; any other 4xx means
// the provider will never accept this message.
func classifySendError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests,
			apiErr.Code == http.StatusRequestTimeout:
			return fmt.Errorf("gmail send throttled: %w", err)
		case apiErr.Code >= 400 && apiErr.Code < 500:
			return entity.Permanent(fmt.Errorf("gmail rejected message: %w", err))
		}
	}
	return fmt.Errorf("gmail send failed: %w", err)
}
