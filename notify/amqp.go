package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/pedalfleet/courier-ops/core"
)

// AMQPNotifier publishes notification envelopes to a durable topic
// exchange. Routing keys follow "notify.<kind>" so mailer workers can
// bind per notification kind.
type AMQPNotifier struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

// NotificationEnvelope is the wire shape published to the exchange.
type NotificationEnvelope struct {
	Kind           string            `json:"kind"`
	OrderID        string            `json:"order_id"`
	TrackingNumber string            `json:"tracking_number"`
	Leg            string            `json:"leg"`
	Recipient      envelopeRecipient `json:"recipient"`
	Subject        string            `json:"subject"`
	Body           string            `json:"body"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	PublishedAt    time.Time         `json:"published_at"`
}

type envelopeRecipient struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
	Email string `json:"email,omitempty"`
}

func DialAMQP(url, exchange string) (*AMQPNotifier, error) {
	if url == "" {
		return nil, fmt.Errorf("notify: amqp url is required")
	}
	if exchange == "" {
		exchange = "courier.status"
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "notify: amqp dial failed")
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "notify: amqp channel failed")
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "notify: declare exchange failed")
	}
	return &AMQPNotifier{
		conn:     conn,
		ch:       ch,
		exchange: exchange,
	}, nil
}

func (n *AMQPNotifier) Send(ctx context.Context, recipient core.Contact, notification core.Notification) error {
	if n == nil || n.ch == nil {
		return fmt.Errorf("notify: amqp notifier is not configured")
	}
	envelope := NotificationEnvelope{
		Kind:           string(notification.Kind),
		OrderID:        notification.OrderID,
		TrackingNumber: notification.TrackingNumber,
		Leg:            string(notification.Leg),
		Recipient: envelopeRecipient{
			Name:  recipient.Name,
			Phone: recipient.Phone,
			Email: recipient.Email,
		},
		Subject:     notification.Subject,
		Body:        notification.Body,
		Metadata:    notification.Metadata,
		PublishedAt: time.Now().UTC(),
	}
	body, err := json.Marshal(envelope)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "notify: marshal envelope failed")
	}

	routingKey := "notify." + string(notification.Kind)
	err = n.ch.PublishWithContext(ctx, n.exchange, routingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		ContentType:  "application/json",
		Body:         body,
	})
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "notify: publish failed").
			WithMetadata(map[string]any{
				"exchange":    n.exchange,
				"routing_key": routingKey,
			})
	}
	return nil
}

func (n *AMQPNotifier) Close() {
	if n == nil {
		return
	}
	if n.ch != nil {
		_ = n.ch.Close()
	}
	if n.conn != nil {
		_ = n.conn.Close()
	}
}
