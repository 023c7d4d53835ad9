package infrastructure

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"hr-evaluator/domain"
)

// RabbitMQ publishes notifications to a durable queue and consumes them for
// delivery.
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   amqp.Queue
	log     logrus.FieldLogger
}

func NewRabbitMQ(url, queueName string, log logrus.FieldLogger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q, err := ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	log.WithField("queue", q.Name).Info("connected to RabbitMQ and declared queue")
	return &RabbitMQ{conn: conn, channel: ch, queue: q, log: log}, nil
}

// Notify publishes n as a persistent JSON message.
func (r *RabbitMQ) Notify(ctx context.Context, n domain.Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return r.channel.PublishWithContext(
		ctx,
		"",           // exchange
		r.queue.Name, // routing key
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    n.ID,
			Type:         string(n.Kind),
			Timestamp:    n.CreatedAt,
			Body:         body,
		},
	)
}

// ConsumeNotifications hands every queued notification to deliver. Messages
// are acked after a successful delivery and dropped with a log line otherwise.
func (r *RabbitMQ) ConsumeNotifications(deliver func(domain.Notification) error) error {
	msgs, err := r.channel.Consume(
		r.queue.Name,
		"",
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for d := range msgs {
			var n domain.Notification
			if err := json.Unmarshal(d.Body, &n); err != nil {
				r.log.WithError(err).Warn("invalid notification format")
				_ = d.Nack(false, false)
				continue
			}
			if err := deliver(n); err != nil {
				r.log.WithFields(logrus.Fields{
					"notification_id": n.ID,
					"kind":            n.Kind,
					"recipient_id":    n.RecipientID,
				}).WithError(err).Warn("notification delivery failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}()
	return nil
}

func (r *RabbitMQ) Close() error {
	if err := r.channel.Close(); err != nil {
		r.conn.Close()
		return err
	}
	return r.conn.Close()
}
