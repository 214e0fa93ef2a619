package notifications

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

// mailSender is the part of gomail.Dialer the transport uses
type mailSender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPTransport sends notifications as HTML email
type SMTPTransport struct {
	from   string
	domain string
	sender mailSender
}

// Ensure SMTPTransport implements Transport
var _ Transport = (*SMTPTransport)(nil)

// NewSMTPTransport creates an email transport. from defaults to username.
func NewSMTPTransport(host string, port int, username, password, from string) *SMTPTransport {
	if from == "" {
		from = username
	}
	return &SMTPTransport{
		from:   from,
		domain: messageIDDomain(from, host),
		sender: gomail.NewDialer(host, port, username, password),
	}
}

func (t *SMTPTransport) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if to == "" {
		return "", fmt.Errorf("recipient address is required")
	}

	messageID := fmt.Sprintf("<%s@%s>", uuid.NewString(), t.domain)

	m := gomail.NewMessage()
	m.SetHeader("From", t.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/html", htmlBody)

	// gomail has no context support; the dial itself is bounded by the SMTP server
	if err := t.sender.DialAndSend(m); err != nil {
		return "", fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	logrus.Debugf("Sent email %s to %s", messageID, to)
	return messageID, nil
}

func messageIDDomain(from, host string) string {
	if i := strings.LastIndex(from, "@"); i >= 0 && i < len(from)-1 {
		return strings.Trim(from[i+1:], "> ")
	}
	if host != "" {
		return host
	}
	return "localhost"
}

// ConsoleTransport logs notifications instead of sending them. It is used
// for dry runs.
type ConsoleTransport struct{}

// Ensure ConsoleTransport implements Transport
var _ Transport = ConsoleTransport{}

func (ConsoleTransport) Send(ctx context.Context, to, subject, htmlBody string) (string, error) {
	messageID := "console-" + uuid.NewString()
	logrus.WithFields(logrus.Fields{
		"to":         to,
		"subject":    subject,
		"bytes":      len(htmlBody),
		"message_id": messageID,
	}).Info("Notification (dry run)")
	return messageID, nil
}
