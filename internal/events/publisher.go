package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Harvester/internal/domain"
)

// EventType — тип события жизненного цикла.
type EventType string

// Типы событий.
const (
	EventAccountStarted    EventType = "account.started"
	EventAccountFinished   EventType = "account.finished"
	EventEndpointFailed    EventType = "endpoint.failed"
	EventEndpointRecovered EventType = "endpoint.recovered"
	EventStepSkipped       EventType = "step.skipped"
)

// Exchange — обменник событий жизненного цикла.
const Exchange = "harvester.events"

// publishTimeout — дедлайн одной публикации. Публикация событий
// не должна тормозить прогоны.
const publishTimeout = 5 * time.Second

// Event — событие жизненного цикла для внешних потребителей.
type Event struct {
	// ID — уникальный идентификатор события.
	ID string `json:"id"`

	// Type — тип события.
	Type EventType `json:"type"`

	// Address — адрес аккаунта (если применимо).
	Address string `json:"address,omitempty"`

	// RunID — идентификатор прогона (если применимо).
	RunID string `json:"run_id,omitempty"`

	// Endpoint — URL endpoint'а (события endpoint.*).
	Endpoint string `json:"endpoint,omitempty"`

	// Step — тип шага (события step.*).
	Step string `json:"step,omitempty"`

	// Reason — причина пропуска шага или текст ошибки.
	Reason string `json:"reason,omitempty"`

	// Success — результат прогона (account.finished).
	Success bool `json:"success,omitempty"`

	// StepsDone / StepsSkipped — статистика прогона (account.finished).
	StepsDone    int `json:"steps_done,omitempty"`
	StepsSkipped int `json:"steps_skipped,omitempty"`

	// Timestamp — время события.
	Timestamp time.Time `json:"timestamp"`
}

// Publisher публикует события жизненного цикла в RabbitMQ.
//
// Реализует telemetry.Observer: ошибки публикации логируются,
// но никогда не влияют на прогоны — шина событий вспомогательная.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт Publisher и объявляет exchange.
func NewPublisher(conn *Connection, logger *slog.Logger) (*Publisher, error) {
	err := conn.WithChannel(func(ch *amqp.Channel) error {
		return ch.ExchangeDeclare(
			Exchange, // name
			"topic",  // type
			true,     // durable
			false,    // auto-deleted
			false,    // internal
			false,    // no-wait
			nil,      // args
		)
	})
	if err != nil {
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{conn: conn, logger: logger}, nil
}

// publish отправляет событие с routing key, равным его типу.
func (p *Publisher) publish(event *Event) {
	event.ID = uuid.New().String()
	event.Timestamp = time.Now()

	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to marshal event", "type", event.Type, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.conn.WithChannel(func(ch *amqp.Channel) error {
		return ch.PublishWithContext(
			ctx,
			Exchange,
			string(event.Type), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				MessageId:   event.ID,
				Timestamp:   event.Timestamp,
				Body:        body,
			},
		)
	})
	if err != nil {
		// Не фатально: события вспомогательные, прогоны важнее.
		p.logger.Warn("failed to publish event", "type", event.Type, "error", err)
	}
}

// AccountStarted реализует telemetry.Observer.
func (p *Publisher) AccountStarted(address string, runID string) {
	p.publish(&Event{
		Type:    EventAccountStarted,
		Address: address,
		RunID:   runID,
	})
}

// AccountFinished реализует telemetry.Observer.
func (p *Publisher) AccountFinished(address string, outcome *domain.Outcome) {
	p.publish(&Event{
		Type:         EventAccountFinished,
		Address:      address,
		RunID:        outcome.RunID.String(),
		Success:      outcome.Success,
		Reason:       outcome.ErrorText(),
		StepsDone:    outcome.StepsDone,
		StepsSkipped: outcome.StepsSkipped,
	})
}

// EndpointFailed реализует telemetry.Observer.
func (p *Publisher) EndpointFailed(url string, err error) {
	p.publish(&Event{
		Type:     EventEndpointFailed,
		Endpoint: url,
		Reason:   err.Error(),
	})
}

// EndpointRecovered реализует telemetry.Observer.
func (p *Publisher) EndpointRecovered(url string) {
	p.publish(&Event{
		Type:     EventEndpointRecovered,
		Endpoint: url,
	})
}

// StepSkipped реализует telemetry.Observer.
func (p *Publisher) StepSkipped(address string, step domain.StepKind, reason string) {
	p.publish(&Event{
		Type:    EventStepSkipped,
		Address: address,
		Step:    string(step),
		Reason:  reason,
	})
}
