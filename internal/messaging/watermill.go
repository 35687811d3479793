package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-kafka/v3/pkg/kafka"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/solemates/commerce-backend/internal/entity"
)

const (
	metadataEventType    = "event_type"
	metadataPartitionKey = "partition_key"
)

// Broker bundles a watermill publisher/subscriber pair behind the Publisher
// and Subscriber interfaces.
type Broker struct {
	pub message.Publisher
	sub message.Subscriber
}

// NewKafkaBroker connects a Kafka-backed broker. Messages are partitioned by
// the event key, which keeps per-order event ordering.
func NewKafkaBroker(brokers []string, consumerGroup string) (*Broker, error) {
	logger := watermill.NewSlogLogger(slog.Default())

	marshaler := kafka.NewWithPartitioningMarshaler(func(topic string, msg *message.Message) (string, error) {
		return msg.Metadata.Get(metadataPartitionKey), nil
	})

	pubConfig := kafka.DefaultSaramaSyncPublisherConfig()
	pubConfig.ClientID = "commerce-backend"
	pub, err := kafka.NewPublisher(kafka.PublisherConfig{
		Brokers:               brokers,
		Marshaler:             marshaler,
		OverwriteSaramaConfig: pubConfig,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka publisher: %w", err)
	}

	subConfig := kafka.DefaultSaramaSubscriberConfig()
	subConfig.ClientID = "commerce-backend"
	subConfig.Consumer.Offsets.Initial = sarama.OffsetOldest
	sub, err := kafka.NewSubscriber(kafka.SubscriberConfig{
		Brokers:               brokers,
		Unmarshaler:           marshaler,
		ConsumerGroup:         consumerGroup,
		OverwriteSaramaConfig: subConfig,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka subscriber: %w", err)
	}

	return &Broker{pub: pub, sub: sub}, nil
}

// NewChannelBroker is an in-process broker for single-process mode and tests.
func NewChannelBroker() *Broker {
	logger := watermill.NewSlogLogger(slog.Default())
	gc := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	return &Broker{pub: gc, sub: gc}
}

func (b *Broker) PublishEvent(ctx context.Context, topic string, key string, event entity.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(metadataEventType, event.EventType())
	msg.Metadata.Set(metadataPartitionKey, key)
	return b.pub.Publish(topic, msg)
}

func (b *Broker) Consume(ctx context.Context, topic string, handler Handler) error {
	messages, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	for msg := range messages {
		eventType := msg.Metadata.Get(metadataEventType)
		if err := handler(ctx, eventType, msg.Payload); err != nil {
			if entity.Transient(err) {
				// Withhold the ack so the broker redelivers; the idempotent
				// handler retries from where it left off.
				slog.Warn("Transient handler failure, message will be redelivered",
					"topic", topic, "event_type", eventType, "err", err)
				msg.Nack()
				continue
			}
			// Permanent failures are acked; redelivery cannot fix them.
			slog.Error("Error handling message", "topic", topic, "event_type", eventType, "err", err)
		}
		msg.Ack()
	}
	return nil
}

func (b *Broker) Close() error {
	if err := b.pub.Close(); err != nil {
		return err
	}
	// gochannel shares one instance for both roles; avoid double close.
	if any(b.sub) != any(b.pub) {
		return b.sub.Close()
	}
	return nil
}
