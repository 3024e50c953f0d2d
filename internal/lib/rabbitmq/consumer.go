package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/vpn-subscription/internal/lib/sl"
)

// Handler обрабатывает тело сообщения. Ошибка возвращает сообщение в очередь.
type Handler func([]byte) error

// retryDelay пауза перед возвратом сообщения в очередь после ошибки обработки.
const retryDelay = 5 * time.Second

// ConsumerMessage запускает потребителя очереди и блокируется до отмены ctx
// или закрытия канала. Одновременно обрабатывается не больше 10 сообщений.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, log *slog.Logger, handler Handler) error {
	const op = "rabbitmq.ConsumerMessage"
	log = log.With(slog.String("op", op), slog.String("queue", queueName))

	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	sem := make(chan struct{}, 10)
	for {
		select {
		case d, ok := <-delivery:
			if !ok {
				return nil
			}
			sem <- struct{}{}
			wg.Add(1)
			go func(delivery amqp.Delivery) {
				defer func() {
					<-sem
					wg.Done()
				}()
				process(ctx, log, delivery, handler, retryDelay)
			}(d)
		case <-ctx.Done():
			return nil
		}
	}
}

// process обрабатывает одно сообщение. Ошибка обработчика возвращает сообщение
// в очередь после паузы delay. Паника обработчика отбрасывает сообщение без
// возврата в очередь.
func process(ctx context.Context, log *slog.Logger, d amqp.Delivery, handler Handler, delay time.Duration) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("message handler panicked, dropping message", slog.Any("panic", rec))
			if err := d.Nack(false, false); err != nil {
				log.Error("failed to nack message", sl.Err(err))
			}
		}
	}()

	if err := handler(d.Body); err != nil {
		log.Warn("message handling failed, requeue", sl.Err(err), slog.Duration("delay", delay))
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if err := d.Ack(false); err != nil {
		log.Error("failed to ack message", sl.Err(err))
	}
}
