package smtp

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/magabrotheeeer/rhmaster-billing/internal/config"
)

// ErrNoStartTLS возвращается, если сервер не поддерживает STARTTLS.
var ErrNoStartTLS = errors.New("smtp server does not support STARTTLS")

const dialTimeout = 10 * time.Second

// Transport подключается к серверу из конфига SMTP.
type Transport struct {
	cfg config.SMTP
}

// NewTransport создает Transport.
func NewTransport(cfg config.SMTP) *Transport {
	return &Transport{cfg: cfg}
}

// From адрес отправителя.
func (t *Transport) From() string {
	return t.cfg.SMTPUser
}

// Connect подключается, включает TLS и авторизуется.
func (t *Transport) Connect() (Client, error) {
	const op = "smtp.Connect"
	addr := net.JoinHostPort(t.cfg.SMTPHost, t.cfg.SMTPPort)

	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%s: dial: %w", op, err)
	}

	client, err := smtp.NewClient(conn, t.cfg.SMTPHost)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if ok, _ := client.Extension("STARTTLS"); !ok {
		_ = client.Close()
		return nil, fmt.Errorf("%s: %w", op, ErrNoStartTLS)
	}
	if err := client.StartTLS(&tls.Config{ServerName: t.cfg.SMTPHost, MinVersion: tls.VersionTLS12}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%s: starttls: %w", op, err)
	}

	if t.cfg.SMTPUser != "" {
		auth := smtp.PlainAuth("", t.cfg.SMTPUser, t.cfg.SMTPPass, t.cfg.SMTPHost)
		if err := client.Auth(auth); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("%s: auth: %w", op, err)
		}
	}

	return client, nil
}
