package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/scheduler"
)

// Sender delivers one event to the broker.
type Sender interface {
	Send(ctx context.Context, ev model.Event) error
	Close() error
}

// EventObserver counts delivery outcomes: published, dropped or failed.
type EventObserver interface {
	ObserveEvent(outcome string)
}

// Publisher is a scheduler.Notifier that buffers events in memory and
// hands them to a Sender from a background goroutine started by Run.
// When the buffer is full new events are dropped and logged; the
// reservation change itself is already committed.
type Publisher struct {
	events   chan model.Event
	sender   Sender
	log      *slog.Logger
	observer EventObserver
	timeout  time.Duration
}

var _ scheduler.Notifier = (*Publisher)(nil)

// NewPublisher returns a Publisher with room for buffer pending events.
// observer may be nil.
func NewPublisher(sender Sender, buffer int, log *slog.Logger, observer EventObserver) *Publisher {
	if buffer < 1 {
		buffer = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Publisher{
		events:   make(chan model.Event, buffer),
		sender:   sender,
		log:      log.With("component", "event-publisher"),
		observer: observer,
		timeout:  5 * time.Second,
	}
}

// Notify implements scheduler.Notifier.  It never blocks.
func (p *Publisher) Notify(events ...model.Event) {
	for _, ev := range events {
		select {
		case p.events <- ev:
		default:
			p.observe("dropped")
			p.log.Warn("event buffer full, dropping event", "event_id", ev.ID, "type", ev.Type, "reservation_id", ev.ReservationID)
		}
	}
}

// Run delivers events until ctx is cancelled, then flushes whatever is
// still buffered and closes the sender.
func (p *Publisher) Run(ctx context.Context) {
	defer func() {
		if err := p.sender.Close(); err != nil {
			p.log.Warn("close sender", "err", err)
		}
	}()
	for {
		select {
		case ev := <-p.events:
			p.deliver(ctx, ev)
		case <-ctx.Done():
			p.flush()
			return
		}
	}
}

func (p *Publisher) flush() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	for {
		select {
		case ev := <-p.events:
			p.deliver(ctx, ev)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, ev model.Event) {
	sendCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.sender.Send(sendCtx, ev); err != nil {
		p.observe("failed")
		p.log.Error("publish event", "event_id", ev.ID, "type", ev.Type, "reservation_id", ev.ReservationID, "err", err)
		return
	}
	p.observe("published")
}

func (p *Publisher) observe(outcome string) {
	if p.observer != nil {
		p.observer.ObserveEvent(outcome)
	}
}

// AMQPSender publishes to EventsQueue over a lazily opened connection that
// is re-dialled after any failure.
type AMQPSender struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPSender returns a sender for the broker at url.  No connection is
// made until the first Send.
func NewAMQPSender(url string) *AMQPSender { return &AMQPSender{url: url} }

// Send publishes ev as a persistent JSON message.
func (s *AMQPSender) Send(ctx context.Context, ev model.Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, err := s.channel()
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		MessageId:    ev.ID,
		Type:         string(ev.Type),
		Timestamp:    ev.OccurredAt,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", EventsQueue, false, false, pub); err != nil {
		s.reset()
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (s *AMQPSender) channel() (*amqp.Channel, error) {
	if s.ch != nil && !s.ch.IsClosed() {
		return s.ch, nil
	}
	s.reset()
	conn, err := amqp.Dial(s.url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(EventsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	s.conn, s.ch = conn, ch
	return ch, nil
}

func (s *AMQPSender) reset() {
	if s.ch != nil {
		_ = s.ch.Close()
	}
	if s.conn != nil {
		_ = s.conn.Close()
	}
	s.conn, s.ch = nil, nil
}

// Close releases the broker connection.
func (s *AMQPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
	return nil
}
