// vizir-events — операторская утилита: подписывается на очередь
// событий instances.events и печатает события в stdout.
//
// Использование:
//
//	AMQP_URL=amqp://... vizir-events
//
// Удобна для отладки интеграций и проверки, что движок публикует
// события после переходов.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/Vizir/internal/mq"
	"github.com/shaiso/Vizir/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()

	amqpURL := os.Getenv("AMQP_URL")
	if amqpURL == "" {
		amqpURL = mq.DefaultURL()
	}

	conn, err := mq.NewConnection(amqpURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	// Топология объявляется идемпотентно: утилита может стартовать
	// раньше API.
	if err := mq.DeclareTopology(conn.Channel()); err != nil {
		logger.Error("failed to declare topology", "error", err)
		os.Exit(1)
	}

	consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
		Queue: mq.EventQueue,
		Handler: func(ctx context.Context, d *mq.Delivery) error {
			event, err := mq.ParsePayload[mq.InstanceEvent](&d.Message)
			if err != nil {
				return err
			}

			line, err := json.Marshal(map[string]any{
				"type":        d.Message.Type,
				"instance_id": event.InstanceID,
				"entity":      event.EntityType + "/" + event.EntityID,
				"status":      event.Status,
				"step_id":     event.CurrentStepID,
				"version":     event.Version,
				"action":      event.Action,
				"occurred_at": event.OccurredAt,
			})
			if err != nil {
				return err
			}

			fmt.Println(string(line))
			return nil
		},
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("tailing instance events", "queue", mq.EventQueue)
	if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
		logger.Error("consumer error", "error", err)
		os.Exit(1)
	}
}
