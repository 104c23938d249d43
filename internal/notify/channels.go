package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
)

// LogNotifier writes events to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, e Event) error {
	n.logger.InfoContext(ctx, e.Summary(),
		"kind", e.Kind,
		"audience", e.Audience,
		"invoice_id", e.InvoiceID,
		"transaction_id", e.TransactionID,
		"provider", e.Provider,
		"recipient", e.Recipient,
	)

	return nil
}

// KafkaNotifier publishes events as JSON keyed by invoice id, so every event
// for one invoice lands on the same partition in order.
type KafkaNotifier struct {
	producer sarama.SyncProducer
	topic    string
}

func NewKafkaNotifier(producer sarama.SyncProducer, topic string) *KafkaNotifier {
	return &KafkaNotifier{producer: producer, topic: topic}
}

// NewKafkaProducer builds a synchronous producer that waits for all in-sync
// replicas.
func NewKafkaProducer(brokers []string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("creating kafka producer: %w", err)
	}

	return producer, nil
}

type kafkaMessage struct {
	Event
	Summary string `json:"summary"`
}

func (n *KafkaNotifier) Notify(_ context.Context, e Event) error {
	body, err := json.Marshal(kafkaMessage{Event: e, Summary: e.Summary()})
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(e.InvoiceID.String()),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("kind"), Value: []byte(e.Kind)},
			{Key: []byte("audience"), Value: []byte(e.Audience)},
		},
	}

	if _, _, err := n.producer.SendMessage(msg); err != nil {
		return fmt.Errorf("publishing %s event: %w", e.Kind, err)
	}

	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.producer.Close()
}
