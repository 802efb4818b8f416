// Package smtp подключается к почтовому серверу по STARTTLS и отправляет письма уведомлений.
package smtp

import "io"

// Client часть *smtp.Client, нужная для отправки письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}

// Dialer устанавливает авторизованное соединение с почтовым сервером.
type Dialer interface {
	Connect() (Client, error)
	From() string
}
