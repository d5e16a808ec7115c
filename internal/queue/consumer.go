package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
)

// StartSettlementConsumer consumes auction.settled and appends each
// record to logs/settlement.log. It runs a reconnect loop with
// exponential backoff and never returns; malformed messages are
// rejected without requeue so one bad record cannot wedge the queue.
func StartSettlementConsumer(url string) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("settlement consumer: dial failed, retrying in %s", backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeSettled(conn); err != nil {
			log.WithError(err).Warn("settlement consumer: loop ended, reconnecting")
			_ = conn.Close()
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeSettled(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.WithError(err).Warn("settlement consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(settledQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(settledQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := appendSettlementLog(d.Body); err != nil {
			log.WithError(err).Warn("settlement consumer: handle message failed")
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func appendSettlementLog(body []byte) error {
	var ev AuctionSettledEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", "settlement.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	winner := "none"
	if ev.WinnerID != "" {
		winner = fmt.Sprintf("%s (%s)", ev.WinnerName, ev.WinnerID)
	}
	line := fmt.Sprintf("[%s] Auction settled | auction_id=%s | winner=%s | final_price=%.2f\n",
		ev.SettledAt, ev.AuctionID, winner, ev.FinalPrice)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}
