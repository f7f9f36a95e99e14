package collector

import (
	"encoding/json"
	"fmt"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Producer publishes bar batches to one Kafka topic.
type Producer struct {
	producer *kafka.Producer
	topic    string
	logger   *logrus.Logger
}

func NewProducer(broker, topic string, logger *logrus.Logger) (*Producer, error) {
	config := kafka.ConfigMap{
		"bootstrap.servers": broker,
	}
	producer, err := kafka.NewProducer(&config)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	p := &Producer{producer: producer, topic: topic, logger: logger}
	go p.deliveryReport()
	logger.Info("Kafka producer initialized successfully")
	return p, nil
}

func (p *Producer) deliveryReport() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.Errorf("[Producer] delivery failed: %v", ev.TopicPartition.Error)
			}
		}
	}
}

// Publish serializes the batch and hands it to the broker asynchronously,
// keyed by asset so one asset's bars stay ordered within a partition.
func (p *Producer) Publish(batch BarBatch) error {
	if len(batch.Bars) == 0 {
		return nil
	}
	if batch.BatchID == "" {
		batch.BatchID = uuid.NewString()
	}
	value, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("marshaling bar batch: %w", err)
	}
	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(batch.Asset),
		Value:          value,
	}, nil)
}

// Close flushes outstanding messages and releases the producer.
func (p *Producer) Close() {
	p.producer.Flush(5000)
	p.producer.Close()
}
