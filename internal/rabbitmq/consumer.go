package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/rhmaster-billing/internal/lib/sl"
)

// prefetch ограничивает число сообщений в обработке одновременно.
const prefetch = 10

// Consume читает очередь и вызывает handler не более чем для prefetch сообщений одновременно.
// Ошибка обработчика возвращает сообщение в очередь. Блокируется до отмены ctx
// или закрытия канала и дожидается завершения начатых обработчиков.
func Consume(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string, handler func(context.Context, []byte) error) error {
	const op = "rabbitmq.Consume"
	deliveries, err := ch.Consume(queueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	sem := make(chan struct{}, prefetch)
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: delivery channel closed", op)
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(d amqp.Delivery) {
				defer wg.Done()
				defer func() { <-sem }()
				if err := handler(ctx, d.Body); err != nil {
					log.Error("failed to handle message", slog.String("queue", queueName), sl.Err(err))
					if nackErr := d.Nack(false, true); nackErr != nil {
						log.Error("failed to nack message", sl.Err(nackErr))
					}
					return
				}
				if ackErr := d.Ack(false); ackErr != nil {
					log.Error("failed to ack message", sl.Err(ackErr))
				}
			}(d)
		}
	}
}
