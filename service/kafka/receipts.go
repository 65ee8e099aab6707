package kafka

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/Shopify/sarama"

	"CardArena/logger"
)

type Config struct {
	Brokers      []string
	ReceiptTopic string
}

func buildBaseConfig() *sarama.Config {
	cfg := sarama.NewConfig()

	cfg.Producer.Return.Successes = false
	cfg.Producer.Return.Errors = true
	cfg.Producer.RequiredAcks = sarama.WaitForLocal
	cfg.Producer.Retry.Max = 1
	cfg.Producer.Partitioner = sarama.NewHashPartitioner // key keeps one user's receipts ordered

	cfg.Net.DialTimeout = 10 * time.Second
	cfg.Net.ReadTimeout = 30 * time.Second
	cfg.Net.WriteTimeout = 30 * time.Second
	return cfg
}

// Receipts publishes a fire-and-forget event for every chat delivery the
// gateway completes, so the persistence side can mark messages delivered.
type Receipts struct {
	prod  sarama.AsyncProducer
	topic string
}

func NewReceipts(c Config) (*Receipts, error) {
	prod, err := sarama.NewAsyncProducer(c.Brokers, buildBaseConfig())
	if err != nil {
		return nil, err
	}

	go func() {
		for err := range prod.Errors() {
			logger.Warnf("[kafka] receipt publish err=%v", err)
		}
	}()

	return &Receipts{prod: prod, topic: c.ReceiptTopic}, nil
}

type receiptEvent struct {
	SenderUserID    int64 `json:"sender_user_id"`
	RecipientUserID int64 `json:"recipient_user_id"`
	DeliveredAt     int64 `json:"delivered_at"`
}

func (r *Receipts) Delivered(senderUserID, recipientUserID, timestamp int64) {
	data, err := json.Marshal(receiptEvent{
		SenderUserID:    senderUserID,
		RecipientUserID: recipientUserID,
		DeliveredAt:     timestamp,
	})
	if err != nil {
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: r.topic,
		Key:   sarama.StringEncoder(strconv.FormatInt(recipientUserID, 10)),
		Value: sarama.ByteEncoder(data),
	}
	select {
	case r.prod.Input() <- msg:
	default:
		// Producer backed up; receipts are best effort, drop rather than
		// stall the relay.
		logger.Warnf("[kafka] receipt channel full, dropped recipient=%d", recipientUserID)
	}
}

func (r *Receipts) Close() error {
	return r.prod.Close()
}
