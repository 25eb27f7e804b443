// Package publish forwards attestation records to the downstream mint worker
// over AMQP.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"echorank.dev/attest/model"
)

// EventType labels every message this package publishes.
const EventType = "attestation.created"

// Event is the message body.
type Event struct {
	ID          string               `json:"id"`
	Type        string               `json:"type"`
	Time        time.Time            `json:"time"`
	Attestation model.Attestation    `json:"attestation"`
	Result      model.AnalysisResult `json:"result"`
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Config struct {
	URL   string
	Queue string
	// Timeout bounds one publish. Defaults to 5s.
	Timeout time.Duration
}

// Publisher sends one durable message per attestation to a named queue.
// It is safe for concurrent use.
type Publisher struct {
	mu      sync.Mutex
	conn    *amqp.Connection
	ch      channel
	queue   string
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

// Dial connects, opens a channel and declares the durable queue.
func Dial(cfg Config) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("publish: AMQP URL is required")
	}
	if cfg.Queue == "" {
		return nil, errors.New("publish: queue is required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("publish: connect: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("publish: open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("publish: declare queue %s: %w", cfg.Queue, err)
	}
	p := newPublisher(ch, cfg.Queue, cfg.Timeout)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, queue string, timeout time.Duration) *Publisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Publisher{
		ch:      ch,
		queue:   queue,
		timeout: timeout,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

func (p *Publisher) Name() string { return "publish" }

// Record publishes one attestation event.
func (p *Publisher) Record(ctx context.Context, att model.Attestation, result model.AnalysisResult) error {
	ev := Event{
		ID:          p.newID(),
		Type:        EventType,
		Time:        p.now().UTC(),
		Attestation: att,
		Result:      result,
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("publish: encode event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		return errors.New("publish: publisher is closed")
	}
	err = p.ch.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID,
		Type:         EventType,
		Timestamp:    ev.Time,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}
