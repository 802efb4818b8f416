package rabbitmq

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Имена обменника и очередей событий биллинга.
const (
	Exchange          = "billing"
	NotificationQueue = "billing.notifications"
	LifecycleKey      = "lifecycle"
)

// QueueConfig очередь и ключ, которым она привязана к обменнику.
type QueueConfig struct {
	QueueName  string
	RoutingKey string
}

// BillingQueues очереди, которые слушает сервис уведомлений.
func BillingQueues() []QueueConfig {
	return []QueueConfig{
		{QueueName: NotificationQueue, RoutingKey: LifecycleKey},
	}
}

// SetupChannel открывает канал, объявляет обменник и привязывает очереди.
func SetupChannel(conn *amqp.Connection, queues []QueueConfig) (*amqp.Channel, error) {
	const op = "rabbitmq.SetupChannel"

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := ch.Qos(prefetch, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: set qos: %w", op, err)
	}

	if err := ch.ExchangeDeclare(Exchange, "direct", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, q := range queues {
		if _, err := ch.QueueDeclare(q.QueueName, true, false, false, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: declare queue %s: %w", op, q.QueueName, err)
		}
		if err := ch.QueueBind(q.QueueName, q.RoutingKey, Exchange, false, nil); err != nil {
			_ = ch.Close()
			return nil, fmt.Errorf("%s: bind queue %s to %s: %w", op, q.QueueName, q.RoutingKey, err)
		}
	}

	return ch, nil
}
