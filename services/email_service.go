package services

import (
	"bytes"
	"crypto/tls"
	"fmt"
	"html/template"
	"net"
	"net/smtp"

	"quiz-portal-go/logging"
)

// EmailConfig holds SMTP configuration
type EmailConfig struct {
	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	FromEmail    string
	FromName     string
}

// EmailService handles sending emails
type EmailService struct {
	config EmailConfig
	logger *logging.Logger
}

// NewEmailService creates a new email service
func NewEmailService(config EmailConfig) *EmailService {
	return &EmailService{
		config: config,
		logger: logging.WithPrefix("Email"),
	}
}

const resetHTMLTemplate = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>Password Reset</title>
    <style>
        body { font-family: Georgia, serif; line-height: 1.6; margin: 0; padding: 20px; background-color: #14101e; color: #e8e2d0; }
        .container { max-width: 600px; margin: 0 auto; background: #1f1a2e; padding: 24px; border-radius: 8px; border: 1px solid #3b3154; }
        .header { text-align: center; margin-bottom: 24px; }
        .header h1 { color: #d3a625; margin: 0; }
        .button { display: inline-block; padding: 12px 24px; background-color: #740001; color: #e8e2d0; text-decoration: none; border-radius: 4px; font-weight: bold; }
        .notice { background-color: #2a2340; border: 1px solid #3b3154; padding: 14px; border-radius: 4px; margin: 20px 0; }
        .footer { text-align: center; font-size: 0.9em; color: #8f86a8; margin-top: 24px; padding-top: 16px; border-top: 1px solid #3b3154; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.EventName}}</h1>
            <h2>Password Reset Request</h2>
        </div>
        <p>Hello {{.Username}},</p>
        <p>We received a request to reset the password for your {{.EventName}} account. Click the button below to choose a new one:</p>
        <p style="text-align: center; margin: 30px 0;">
            <a href="{{.ResetURL}}" class="button">Reset Your Password</a>
        </p>
        <div class="notice">
            <strong>Important:</strong>
            <ul>
                <li>This link will expire in 24 hours</li>
                <li>If you didn't request a password reset, you can safely ignore this email</li>
                <li>For security, don't share this link with anyone</li>
            </ul>
        </div>
        <p>If the button doesn't work, copy and paste this link into your browser:</p>
        <p style="word-break: break-all; background-color: #2a2340; padding: 10px; border-radius: 4px; font-family: monospace;">{{.ResetURL}}</p>
        <div class="footer">
            <p>This email was sent to {{.Email}} because a password reset was requested for your {{.EventName}} account.</p>
        </div>
    </div>
</body>
</html>`

const resetTextTemplate = `
{{.EventName}} - Password Reset

Hello {{.Username}},

We received a request to reset the password for your {{.EventName}} account.

Reset your password by visiting this link:
{{.ResetURL}}

Important:
- This link will expire in 24 hours
- If you didn't request a password reset, you can safely ignore this email
- For security, don't share this link with anyone

This email was sent to {{.Email}} because a password reset was requested for your {{.EventName}} account.
`

// SendPasswordResetEmail sends a password reset email
func (e *EmailService) SendPasswordResetEmail(toEmail, username, resetToken, baseURL, eventName string) error {
	resetURL := fmt.Sprintf("%s/reset-password?token=%s", baseURL, resetToken)
	subject := fmt.Sprintf("%s - Password Reset", eventName)

	data := struct {
		Username  string
		Email     string
		ResetURL  string
		EventName string
	}{
		Username:  username,
		Email:     toEmail,
		ResetURL:  resetURL,
		EventName: eventName,
	}

	htmlTmpl, err := template.New("html").Parse(resetHTMLTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %v", err)
	}
	textTmpl, err := template.New("text").Parse(resetTextTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse text template: %v", err)
	}

	var htmlBody bytes.Buffer
	if err := htmlTmpl.Execute(&htmlBody, data); err != nil {
		return fmt.Errorf("failed to execute HTML template: %v", err)
	}
	var textBody bytes.Buffer
	if err := textTmpl.Execute(&textBody, data); err != nil {
		return fmt.Errorf("failed to execute text template: %v", err)
	}

	return e.sendEmail(toEmail, subject, textBody.String(), htmlBody.String())
}

// sendEmail sends an email using SMTP with STARTTLS when the server
// supports it
func (e *EmailService) sendEmail(to, subject, textBody, htmlBody string) error {
	client, err := e.connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if err = client.Mail(e.config.FromEmail); err != nil {
		return fmt.Errorf("failed to set sender: %v", err)
	}
	if err = client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %v", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to get data writer: %v", err)
	}
	defer writer.Close()

	from := fmt.Sprintf("%s <%s>", e.config.FromName, e.config.FromEmail)
	boundary := "boundary123456789"

	msg := fmt.Sprintf(`From: %s
To: %s
Subject: %s
MIME-Version: 1.0
Content-Type: multipart/alternative; boundary="%s"

--%s
Content-Type: text/plain; charset=UTF-8

%s

--%s
Content-Type: text/html; charset=UTF-8

%s

--%s--
`, from, to, subject, boundary, boundary, textBody, boundary, htmlBody, boundary)

	if _, err = writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write email body: %v", err)
	}

	e.logger.Infof("Password reset email sent to %s", to)
	return nil
}

// connect dials the SMTP server, upgrades to TLS when offered, and
// authenticates
func (e *EmailService) connect() (*smtp.Client, error) {
	smtpAddr := fmt.Sprintf("%s:%s", e.config.SMTPHost, e.config.SMTPPort)

	conn, err := net.Dial("tcp", smtpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SMTP server: %v", err)
	}

	client, err := smtp.NewClient(conn, e.config.SMTPHost)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create SMTP client: %v", err)
	}

	if ok, _ := client.Extension("STARTTLS"); ok {
		tlsConfig := &tls.Config{ServerName: e.config.SMTPHost}
		if err = client.StartTLS(tlsConfig); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to start TLS: %v", err)
		}
	}

	auth := smtp.PlainAuth("", e.config.SMTPUsername, e.config.SMTPPassword, e.config.SMTPHost)
	if err = client.Auth(auth); err != nil {
		client.Close()
		return nil, fmt.Errorf("SMTP authentication failed: %v", err)
	}

	return client, nil
}

// IsConfigured checks if the email service is properly configured
func (e *EmailService) IsConfigured() bool {
	return e.config.SMTPHost != "" &&
		e.config.SMTPPort != "" &&
		e.config.SMTPUsername != "" &&
		e.config.SMTPPassword != "" &&
		e.config.FromEmail != ""
}

// TestConnection tests the SMTP connection and credentials
func (e *EmailService) TestConnection() error {
	if !e.IsConfigured() {
		return fmt.Errorf("email service not configured")
	}

	client, err := e.connect()
	if err != nil {
		return err
	}
	client.Close()
	return nil
}
