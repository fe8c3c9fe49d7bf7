package mq

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Vizir/internal/domain"
)

// Message — конверт сообщения в очереди.
type Message struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// InstanceEvent — payload события жизненного цикла экземпляра.
type InstanceEvent struct {
	InstanceID    uuid.UUID             `json:"instance_id"`
	TemplateID    uuid.UUID             `json:"template_id"`
	EntityType    string                `json:"entity_type"`
	EntityID      string                `json:"entity_id"`
	Status        domain.InstanceStatus `json:"status"`
	CurrentStepID uuid.UUID             `json:"current_step_id"`
	Version       int                   `json:"version"`
	Action        string                `json:"action,omitempty"`
	OccurredAt    time.Time             `json:"occurred_at"`
}

// Publisher публикует события экземпляров в exchange.
// Публикация best-effort: ошибки логируются и не всплывают к вызывающему,
// доменная транзакция к этому моменту уже зафиксирована.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт publisher и объявляет топологию.
func NewPublisher(conn *Connection, logger *slog.Logger) (*Publisher, error) {
	if err := DeclareTopology(conn.Channel()); err != nil {
		return nil, err
	}

	return &Publisher{
		conn:   conn,
		logger: logger,
	}, nil
}

// PublishInstanceEvent публикует событие экземпляра.
// Тип события служит routing key (instance.started, instance.advanced, ...).
func (p *Publisher) PublishInstanceEvent(ctx context.Context, event string, inst *domain.WorkflowInstance, action string) {
	payload, err := json.Marshal(InstanceEvent{
		InstanceID:    inst.ID,
		TemplateID:    inst.TemplateID,
		EntityType:    inst.EntityType,
		EntityID:      inst.EntityID,
		Status:        inst.Status,
		CurrentStepID: inst.CurrentStepID,
		Version:       inst.Version,
		Action:        action,
		OccurredAt:    time.Now(),
	})
	if err != nil {
		p.logger.Error("failed to marshal event payload", "event", event, "error", err)
		return
	}

	msg := Message{
		ID:        uuid.New(),
		Type:      event,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("failed to marshal message", "event", event, "error", err)
		return
	}

	err = p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		return ch.PublishWithContext(ctx,
			InstanceExchange,
			event, // routing key
			false, // mandatory
			false, // immediate
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID.String(),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
	})
	if err != nil {
		p.logger.Error("failed to publish event",
			"event", event,
			"instance_id", inst.ID,
			"error", err)
		return
	}

	p.logger.Debug("event published",
		"event", event,
		"instance_id", inst.ID,
		"version", inst.Version)
}
