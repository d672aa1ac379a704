// Package notify reports batch outcomes to the operators by mail. When no
// recipients are configured, a noop implementation is used.
package notify

import (
	"fmt"
	"log/slog"
	"strings"

	gomail "gopkg.in/gomail.v2"

	"github.com/kaigo-tools/attendrelay/internal/config"
)

// Report summarizes the processing of one mail message.
type Report struct {
	BatchID     string
	MailSubject string
	MailFrom    string
	Records     int
	Succeeded   int
	Skipped     int
	Failed      int
	Failures    []string
}

// Service is the notification surface the pipeline uses. Notification
// failures are logged by the caller, never fatal.
type Service interface {
	BatchProcessed(report Report) error
	BatchFailed(report Report, cause error) error
}

// NewService builds a mail-backed notification service, or a noop when no
// recipients are configured.
func NewService(smtp config.SMTP, recipients []string, logger *slog.Logger) Service {
	if len(recipients) == 0 || smtp.Server == "" {
		return noopService{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &mailService{smtp: smtp, recipients: recipients, logger: logger}
}

type noopService struct{}

func (noopService) BatchProcessed(Report) error     { return nil }
func (noopService) BatchFailed(Report, error) error { return nil }

type mailService struct {
	smtp       config.SMTP
	recipients []string
	logger     *slog.Logger
}

func (m *mailService) BatchProcessed(report Report) error {
	subject := fmt.Sprintf("[attendrelay] Processed: %s (%d/%d ok)",
		report.MailSubject, report.Succeeded, report.Records)
	return m.send(subject, report, nil)
}

func (m *mailService) BatchFailed(report Report, cause error) error {
	subject := fmt.Sprintf("[attendrelay] FAILED: %s", report.MailSubject)
	return m.send(subject, report, cause)
}

func (m *mailService) send(subject string, report Report, cause error) error {
	var body strings.Builder
	fmt.Fprintf(&body, "Batch %s\n", report.BatchID)
	fmt.Fprintf(&body, "Mail from %s: %s\n\n", report.MailFrom, report.MailSubject)
	fmt.Fprintf(&body, "Records extracted: %d\n", report.Records)
	fmt.Fprintf(&body, "Succeeded: %d\nSkipped: %d\nFailed: %d\n", report.Succeeded, report.Skipped, report.Failed)

	if cause != nil {
		fmt.Fprintf(&body, "\nBatch aborted: %v\n", cause)
	}
	if len(report.Failures) > 0 {
		body.WriteString("\nFailures:\n")
		for _, f := range report.Failures {
			fmt.Fprintf(&body, "  - %s\n", f)
		}
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.smtp.Username)
	msg.SetHeader("To", m.recipients...)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body.String())

	dialer := gomail.NewDialer(m.smtp.Server, m.smtp.Port, m.smtp.Username, m.smtp.Password)
	if m.smtp.Security == "ssl" {
		dialer.SSL = true
	}

	if err := dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("send notification mail: %w", err)
	}

	m.logger.Info("Notification sent", "subject", subject, "recipients", len(m.recipients))
	return nil
}
