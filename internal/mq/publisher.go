package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/bqflow/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunFinished  MessageType = "run.finished"
	MessageTypeTaskReported MessageType = "task.reported"
)

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// newMessage создаёт сообщение с новым ID.
func newMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
}

// RunRequestedPayload — запрос на запуск workflow (serve mode).
type RunRequestedPayload struct {
	// RunID — ID run; пустой ID назначается при получении.
	RunID uuid.UUID `json:"run_id"`

	// Source — путь к файлу определения workflow на стороне serve.
	Source string `json:"source"`

	// Entrypoint переопределяет entrypoint workflow.
	Entrypoint string `json:"entrypoint,omitempty"`
}

// RunFinishedPayload — итог run.
type RunFinishedPayload struct {
	RunID       uuid.UUID        `json:"run_id"`
	Source      string           `json:"source"`
	Entrypoint  string           `json:"entrypoint"`
	Status      domain.RunStatus `json:"status"`
	Error       string           `json:"error,omitempty"`
	Duration    float64          `json:"duration"`
	Tasks       int              `json:"tasks"`
	FailedTasks int              `json:"failed_tasks"`
	BytesBilled int64            `json:"total_bytes_billed"`
}

// TaskReportedPayload — отчёт leaf-задачи run.
type TaskReportedPayload struct {
	RunID  uuid.UUID         `json:"run_id"`
	Report domain.TaskReport `json:"report"`
}

// NewRunFinishedPayload собирает итог run из его отчётов.
func NewRunFinishedPayload(run *domain.Run, reports []domain.TaskReport) RunFinishedPayload {
	payload := RunFinishedPayload{
		RunID:      run.ID,
		Source:     run.Source,
		Entrypoint: run.Entrypoint,
		Status:     run.Status,
		Error:      run.Error,
		Duration:   run.Duration().Seconds(),
		Tasks:      len(reports),
	}
	for _, r := range reports {
		if r.Status == domain.TaskStatusFailed {
			payload.FailedTasks++
		}
		payload.BytesBilled += r.TotalBytesBilled
	}
	return payload
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

// PublishRunRequested публикует запрос на запуск workflow.
// Потребитель: bqflow serve.
func (p *Publisher) PublishRunRequested(ctx context.Context, payload RunRequestedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyRequested, newMessage(MessageTypeRunRequested, payload))
}

// PublishRunFinished публикует итог run.
func (p *Publisher) PublishRunFinished(ctx context.Context, payload RunFinishedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyFinished, newMessage(MessageTypeRunFinished, payload))
}

// PublishTaskReported публикует отчёт задачи.
func (p *Publisher) PublishTaskReported(ctx context.Context, payload TaskReportedPayload) error {
	return p.Publish(ctx, ExchangeRuns, RoutingKeyReported, newMessage(MessageTypeTaskReported, payload))
}
