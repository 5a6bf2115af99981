// Package queue carries the alert journal over Kafka.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"github.com/smukkama/weather-dashboard/internal/protocol"
)

// Producer writes alert events to the journal topic.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a journal producer. Messages are partitioned by key so
// every event for one location and alert type stays ordered.
func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: true,
		},
	}
}

// Publish sends one message.
func (p *Producer) Publish(ctx context.Context, key string, value []byte) error {
	msg := kafka.Message{
		Key:   []byte(key),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// Consumer reads alert events from the journal topic.
type Consumer struct {
	reader *kafka.Reader
}

// NewConsumer creates a journal reader. With an empty groupID it reads the
// whole topic from the first offset; with a group it resumes from the
// group's committed offset.
func NewConsumer(brokers []string, topic, groupID string) *Consumer {
	cfg := kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	}
	if groupID == "" {
		cfg.StartOffset = kafka.FirstOffset
	}
	return &Consumer{reader: kafka.NewReader(cfg)}
}

// Next blocks until the next event arrives or ctx is done.
func (c *Consumer) Next(ctx context.Context) (*protocol.AlertEvent, error) {
	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch message: %w", err)
	}
	event, err := protocol.DecodeAlertEvent(msg.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to decode message at offset %d: %w", msg.Offset, err)
	}
	return event, nil
}

// Tail calls fn for every event until ctx is cancelled. Undecodable messages
// are passed to onSkip and skipped.
func (c *Consumer) Tail(ctx context.Context, fn func(*protocol.AlertEvent), onSkip func(error)) error {
	for {
		event, err := c.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, protocol.ErrMalformedEvent) {
				if onSkip != nil {
					onSkip(err)
				}
				continue
			}
			return err
		}
		fn(event)
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// EnsureTopic creates topic through the cluster controller. An existing topic
// is not an error.
func EnsureTopic(brokers []string, topic string, numPartitions, replicationFactor int) error {
	if len(brokers) == 0 {
		return errors.New("no brokers configured")
	}

	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("failed to get controller: %w", err)
	}

	controllerConn, err := kafka.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("failed to dial controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     numPartitions,
		ReplicationFactor: replicationFactor,
	})
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("failed to create topic: %w", err)
	}
	return nil
}
