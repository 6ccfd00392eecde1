package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"localchat/internal/model"
	"localchat/internal/platform/rabbitmq"
)

type UsageStore interface {
	Create(ctx context.Context, record *model.UsageRecord) error
}

// UsagePersistWorker drains the usage queue into the usage table.
type UsagePersistWorker struct {
	conn      *amqp.Connection
	store     UsageStore
	queueName string
	log       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewUsagePersistWorker(conn *amqp.Connection, store UsageStore, queueName string, log *slog.Logger) *UsagePersistWorker {
	return &UsagePersistWorker{
		conn:      conn,
		store:     store,
		queueName: queueName,
		log:       log,
	}
}

func (w *UsagePersistWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	if err := rabbitmq.DeclareQueue(ch, w.queueName); err != nil {
		_ = ch.Close()
		cancel()
		return err
	}
	if err := ch.Qos(32, 0, false); err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("set worker qos failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				if err := w.handle(workerCtx, d.Body); err != nil {
					w.log.Error("usage worker dropped record", "error", err)
					_ = d.Nack(false, false)
					continue
				}
				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *UsagePersistWorker) handle(ctx context.Context, body []byte) error {
	var record model.UsageRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return fmt.Errorf("decode usage record failed: %w", err)
	}
	if record.UserID == 0 || record.SessionID == 0 {
		return fmt.Errorf("usage record missing owner or session")
	}
	record.ID = 0
	return w.store.Create(ctx, &record)
}

func (w *UsagePersistWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
