package notify

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
)

// EmailSender delivers rendered notification events over SMTP.
type EmailSender struct {
	smtpHost     string
	smtpPort     string
	smtpUsername string
	smtpPassword string
	fromEmail    string
}

// NewEmailSender reads SMTP settings from the environment.
func NewEmailSender() *EmailSender {
	return &EmailSender{
		smtpHost:     os.Getenv("SMTP_HOST"),
		smtpPort:     os.Getenv("SMTP_PORT"),
		smtpUsername: os.Getenv("SMTP_USERNAME"),
		smtpPassword: os.Getenv("SMTP_PASSWORD"),
		fromEmail:    os.Getenv("FROM_EMAIL"),
	}
}

// Send renders the event as HTML mail and sends it.
func (s *EmailSender) Send(event Event) error {
	if event.Recipient == "" {
		return fmt.Errorf("event has no recipient")
	}

	body := fmt.Sprintf(`
	<!DOCTYPE html>
	<html>
	<head>
		<style>
			body { font-family: Arial, sans-serif; line-height: 1.6; }
			.container { max-width: 600px; margin: 0 auto; padding: 20px; }
			.header { background-color: #1D4ED8; color: white; padding: 10px; text-align: center; }
			.content { padding: 20px; }
		</style>
	</head>
	<body>
		<div class="container">
			<div class="header">
				<h1>EduVerify</h1>
			</div>
			<div class="content">
				<h2>Hello %s,</h2>
				<p>%s</p>
				<p>You can review the full status of your verification in the institution dashboard.</p>
				<p>Best regards,<br>The EduVerify Team</p>
			</div>
		</div>
	</body>
	</html>
	`, event.TenantName, event.Detail)

	return s.sendEmail(event.Recipient, event.Subject, body)
}

func (s *EmailSender) sendEmail(toEmail, subject, htmlBody string) error {
	if s.smtpHost == "" || s.smtpPort == "" || s.smtpUsername == "" || s.smtpPassword == "" {
		log.Println("Email service not configured properly. Check environment variables.")
		return fmt.Errorf("email service not configured")
	}

	mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
	from := fmt.Sprintf("From: EduVerify <%s>\n", s.fromEmail)
	to := fmt.Sprintf("To: %s\n", toEmail)
	subjectLine := fmt.Sprintf("Subject: %s\n", subject)

	message := []byte(from + to + subjectLine + mime + htmlBody)

	auth := smtp.PlainAuth("", s.smtpUsername, s.smtpPassword, s.smtpHost)
	addr := fmt.Sprintf("%s:%s", s.smtpHost, s.smtpPort)

	return smtp.SendMail(addr, auth, s.fromEmail, []string{toEmail}, message)
}
