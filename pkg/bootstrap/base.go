package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"almaconnector/internal/broker"
	"almaconnector/internal/config"
	"almaconnector/internal/logger"
)

// Base owns the broker side of a process: the producer for task messages
// and batch events, and the consumer of workers.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// InitBroker creates the producer and, for workers, the consumer. Without
// a configured broker both stay nil.
func (b *Base) InitBroker(serviceName string, withConsumer bool) error {
	if !b.Config.Broker.Enabled() {
		b.Logger.Infow("No broker configured, tasks run in process")
		return nil
	}

	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}

	if withConsumer {
		consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
		if err != nil {
			producer.Close()
			return fmt.Errorf("failed to create consumer: %w", err)
		}
		consumer.SetServiceName(serviceName)
		b.Consumer = consumer
	}

	b.Producer = producer
	b.Logger.Infow("Broker connected",
		"brokers", b.Config.Broker.Kafka.Brokers,
		"encoding", b.Config.Broker.Kafka.Encoding,
		"consumer", withConsumer,
	)
	return nil
}

// Tasks returns the task queue, or nil without a broker.
func (b *Base) Tasks() *broker.TaskPublisher {
	if b.Producer == nil {
		return nil
	}
	return broker.NewTaskPublisher(b.Producer, b.Config.Broker.Kafka.TaskTopic)
}

// Events returns the batch event recorder, or nil without a broker.
func (b *Base) Events() *broker.EventPublisher {
	if b.Producer == nil {
		return nil
	}
	return broker.NewEventPublisher(b.Producer, b.Config.Broker.Kafka.EventTopic)
}

// ShutdownBroker stops consuming before the producer goes away.
func (b *Base) ShutdownBroker() error {
	var errs []error

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) error) error {
	b.Logger.Info("Shutting down application...")

	err := b.ShutdownBroker()
	if additionalShutdown != nil {
		err = errors.Join(err, additionalShutdown(ctx))
	}
	if err != nil {
		return fmt.Errorf("shutdown errors: %w", err)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
