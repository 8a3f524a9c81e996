package report

import (
	"errors"
	"fmt"
	"net/smtp"
	"strings"

	"clubprogress/internal/config"

	"github.com/jordan-wright/email"
)

var ErrMailDisabled = errors.New("mail delivery is not configured")

// Mailer sends a rendered report to the configured recipients.
type Mailer struct {
	config config.Mail
	// send is swapped out in tests.
	send func(mail *email.Email, addr string, auth smtp.Auth) error
}

func NewMailer(cfg config.Mail) Mailer {
	return Mailer{
		config: cfg,
		send: func(mail *email.Email, addr string, auth smtp.Auth) error {
			return mail.Send(addr, auth)
		},
	}
}

func (m Mailer) Enabled() bool {
	return m.config.Enabled()
}

func (m Mailer) message(clubName string, html []byte, attachmentPath string) (*email.Email, error) {
	mail := email.NewEmail()
	mail.From = m.config.From
	if mail.From == "" {
		mail.From = m.config.Username
	}
	mail.To = m.config.To
	mail.Subject = fmt.Sprintf("%s - Club Progress Summary", clubName)
	mail.HTML = html
	mail.Text = []byte("The club progress summary is attached as an HTML document.")
	if attachmentPath != "" {
		_, err := mail.AttachFile(attachmentPath)
		if err != nil {
			return nil, err
		}
	}
	return mail, nil
}

// Send mails the HTML report, attachmentPath is optional.
func (m Mailer) Send(clubName string, html []byte, attachmentPath string) error {
	if !m.Enabled() {
		return ErrMailDisabled
	}
	mail, err := m.message(clubName, html, attachmentPath)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", m.config.SmtpHost, m.config.SmtpPort)
	var auth smtp.Auth
	if m.config.Username != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.SmtpHost)
	}
	err = m.send(mail, addr, auth)
	if err != nil && auth != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = m.send(mail, addr, nil)
	}
	return err
}
