package mq

import (
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Топология обмена событиями жизненного цикла экземпляров.
const (
	// InstanceExchange — direct exchange для событий экземпляров.
	InstanceExchange = "vizir.instances"

	// EventQueue — очередь, в которую складываются все события экземпляров
	// (подписчики уведомлений читают отсюда).
	EventQueue = "instances.events"
)

// DeclareTopology объявляет exchange, очередь и привязки.
// Идемпотентна: повторный вызов на существующей топологии безопасен.
func DeclareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		InstanceExchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		EventQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Одна очередь собирает все типы событий.
	for _, key := range routingKeys() {
		if err := ch.QueueBind(EventQueue, key, InstanceExchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", EventQueue, key, err)
		}
	}

	return nil
}

// routingKeys возвращает все ключи маршрутизации событий экземпляров.
func routingKeys() []string {
	return []string{
		"instance.started",
		"instance.advanced",
		"instance.completed",
		"instance.rejected",
		"instance.cancelled",
		"instance.timed_out",
	}
}
