// Package rabbitmq подключается к брокеру, объявляет обменник событий биллинга,
// публикует события жизненного цикла подписки и раздает их обработчикам.
package rabbitmq

import (
	"context"
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Connect подключается к брокеру, делая до retries попыток с паузой delay.
func Connect(ctx context.Context, url string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	if retries < 1 {
		retries = 1
	}

	var err error
	for attempt := 0; attempt < retries; attempt++ {
		var conn *amqp.Connection
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		if attempt == retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("%s: %w", op, err)
}
