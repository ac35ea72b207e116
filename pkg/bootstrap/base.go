package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"logworker/internal/broker"
	"logworker/internal/config"
	"logworker/internal/constants"
	"logworker/internal/deadletter"
	"logworker/internal/logger"
)

// Base owns the long-lived clients of the worker and closes them in reverse order.
type Base struct {
	Config     *config.Config
	Logger     logger.Logger
	Databases  *Databases
	DeadLetter deadletter.Sink
	Producer   broker.Producer
	Consumer   broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitDatabases(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, constants.InitTimeout)
	defer cancel()

	dbs, err := NewDatabaseConnector(b.Config, b.Logger).Connect(ctx)
	if err != nil {
		return err
	}
	b.Databases = dbs
	return nil
}

func (b *Base) InitDeadLetter() error {
	sink, err := deadletter.New(b.Config.DeadLetter, b.Config.Broker.Kafka.Brokers, b.redis())
	if err != nil {
		return fmt.Errorf("failed to create dead-letter sink: %w", err)
	}
	b.DeadLetter = sink
	b.Logger.Infow("Dead-letter sink ready", "sink", sink.Name(), "enabled", sink.Enabled())
	return nil
}

// InitConsumer creates the pull consumer. It is left nil in push mode.
func (b *Base) InitConsumer() error {
	consumer, err := broker.NewConsumer(b.Config.Broker, b.Config.Processing.MaxConcurrency, b.redis(), b.DeadLetter, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	b.Consumer = consumer
	return nil
}

func (b *Base) InitProducer() error {
	producer, err := broker.NewProducer(b.Config.Broker, b.redis(), b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	b.Producer = producer
	return nil
}

func (b *Base) redis() redis.UniversalClient {
	if b.Databases == nil {
		return nil
	}
	return b.Databases.Redis
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	if b.DeadLetter != nil {
		if err := b.DeadLetter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("dead-letter close error: %w", err))
		}
	}

	return errs
}

// Shutdown closes brokers first, then any additional resources, then database clients.
func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownBroker()...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	errs = append(errs, NewDatabaseConnector(b.Config, b.Logger).ShutdownDatabases(ctx, b.Databases)...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
