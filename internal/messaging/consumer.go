package messaging

import (
	"context"
	"encoding/json"
	"log/slog"

	"shadownet-chat/internal/websocket"
)

// AlertConsumer drains the alerts exchange and pushes each announcement to
// every client connected to this instance.
type AlertConsumer struct {
	rmq *RabbitMQ
	hub *websocket.Hub
}

func NewAlertConsumer(rmq *RabbitMQ, hub *websocket.Hub) *AlertConsumer {
	return &AlertConsumer{
		rmq: rmq,
		hub: hub,
	}
}

func (c *AlertConsumer) Start(ctx context.Context) error {
	queue, err := c.rmq.channel.QueueDeclare(
		"",    // auto-generated name
		false, // durable
		true,  // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return err
	}

	if err := c.rmq.channel.QueueBind(
		queue.Name,     // queue name
		"",             // routing key
		alertsExchange, // exchange
		false,
		nil,
	); err != nil {
		return err
	}

	msgs, err := c.rmq.channel.Consume(
		queue.Name, // queue
		"",         // consumer
		true,       // auto-ack
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return err
	}

	slog.Info("started consuming platform alerts",
		slog.String("queue", queue.Name),
		slog.String("exchange", alertsExchange))

	go func() {
		for {
			select {
			case <-ctx.Done():
				slog.Info("stopping alert consumer")
				return
			case msg, ok := <-msgs:
				if !ok {
					slog.Warn("alert consumer channel closed")
					return
				}

				var alert Alert
				if err := json.Unmarshal(msg.Body, &alert); err != nil {
					slog.Error("error unmarshaling alert",
						slog.String("error", err.Error()))
					continue
				}

				c.deliver(&alert)
			}
		}
	}()

	return nil
}

// Alerts are not persisted; a client connecting later simply misses them.
func (c *AlertConsumer) deliver(alert *Alert) {
	data, err := json.Marshal(websocket.ServerFrame{
		Type: "alert",
		From: alert.IssuedBy,
		Text: alert.Text,
	})
	if err != nil {
		slog.Error("failed to marshal alert frame",
			slog.String("error", err.Error()))
		return
	}

	c.hub.BroadcastAll(data)
}
