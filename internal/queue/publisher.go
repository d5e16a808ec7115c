package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/campusbid/auction-service/internal/auction"
)

// Publisher writes settlement audit records to the auction.settled
// queue. Settlement volume is low, so each publish opens and closes
// its own connection rather than maintaining a broker session.
type Publisher struct {
	url string
}

// NewPublisher returns a publisher for the given broker URL. It does
// not dial; broker availability is checked per publish.
func NewPublisher(url string) *Publisher {
	return &Publisher{url: url}
}

// AuctionSettled publishes one persistent audit record. The caller
// treats errors as non-fatal: settlement has already committed.
func (p *Publisher) AuctionSettled(ctx context.Context, out auction.Outcome) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable so records survive broker restarts. Declare is idempotent.
	if _, err := ch.QueueDeclare(settledQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}

	ev := AuctionSettledEvent{
		AuctionID:  out.AuctionID,
		FinalPrice: out.FinalPrice,
		SettledAt:  time.Now().UTC().Format(time.RFC3339),
	}
	if out.WinnerID != nil {
		ev.WinnerID = *out.WinnerID
	}
	if out.WinnerName != nil {
		ev.WinnerName = *out.WinnerName
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", settledQueueName, false, false, pub); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}
