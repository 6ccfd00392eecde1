package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"localchat/internal/model"
)

type UsagePublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewUsagePublisher(conn *amqp.Connection, queueName string) *UsagePublisher {
	return &UsagePublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *UsagePublisher) Publish(ctx context.Context, record model.UsageRecord) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	if err := DeclareQueue(ch, p.queueName); err != nil {
		return err
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal usage payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
			Timestamp:    record.CreatedAt,
		},
	); err != nil {
		return fmt.Errorf("publish usage record failed: %w", err)
	}
	return nil
}
