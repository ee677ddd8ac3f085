package mq

import (
	"context"
	"log/slog"
	"sync"

	"github.com/shaiso/Negotium/internal/events"
	"github.com/shaiso/Negotium/internal/telemetry"
)

// EventForwarder переливает события внутрипроцессного хаба в fanout-обменник
// для внешних подписчиков. Мост best-effort в обе стороны: переполненный
// буфер подписки и недоступный брокер теряют событие без повторной
// доставки — источник истины остаётся в строках БД.
type EventForwarder struct {
	hub    *events.Hub
	pub    *Publisher
	logger *slog.Logger

	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// NewEventForwarder создаёт мост hub → RabbitMQ.
func NewEventForwarder(hub *events.Hub, pub *Publisher, logger *slog.Logger) *EventForwarder {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventForwarder{
		hub:    hub,
		pub:    pub,
		logger: logger,
	}
}

// Start подписывается на все события хаба и ретранслирует их до отмены
// контекста или Stop.
func (f *EventForwarder) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	f.cancelFunc = cancel

	sub := f.hub.Subscribe("")

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		defer f.hub.Unsubscribe(sub)

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub.C():
				if !ok {
					return
				}
				if err := f.pub.PublishEvent(ctx, ev); err != nil {
					f.logger.Warn("failed to forward event",
						"type", ev.Type,
						"queue_id", ev.QueueID,
						"error", err,
					)
					continue
				}
				telemetry.EventsForwarded.Inc()
			}
		}
	}()

	f.logger.Info("event forwarder started", "exchange", ExchangeEvents)
}

// Stop останавливает ретрансляцию и дожидается выхода горутины.
func (f *EventForwarder) Stop() {
	if f.cancelFunc != nil {
		f.cancelFunc()
	}
	f.wg.Wait()
}
