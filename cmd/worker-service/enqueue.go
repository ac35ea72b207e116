package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"logworker/internal/broker"
	"logworker/internal/constants"
	"logworker/internal/logger"
	"logworker/pkg/bootstrap"
	"logworker/pkg/logging"
	"logworker/pkg/models"
)

type enqueueOptions struct {
	tenantID string
	logID    string
	text     string
	source   string
}

func enqueueCmd() *cobra.Command {
	opts := &enqueueOptions{}

	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Publish one log message through the configured broker",
		Long:  "Publishes a contract-valid message to the configured Kafka topic or Redis stream. In push mode the push envelope is printed instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			earlyLog := logging.NewEarlyLog()

			cfg, err := loadConfig(earlyLog)
			if err != nil {
				return err
			}

			msg, err := opts.message(time.Now())
			if err != nil {
				return err
			}

			if cfg.Broker.Type == constants.BrokerTypePush || cfg.Broker.Type == "" {
				return printEnvelope(msg)
			}

			log, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := context.WithTimeout(cmd.Context(), constants.InitTimeout)
			defer cancel()

			// Only the broker transport is needed here; storage clients stay closed.
			brokerOnly := *cfg
			brokerOnly.Storage.Backend = constants.StorageBackendMemory
			brokerOnly.DeadLetter.Type = constants.DeadLetterNone

			base := bootstrap.NewBase(&brokerOnly, log)
			defer func() {
				if err := base.Shutdown(context.Background(), nil); err != nil {
					log.Warnw("Shutdown error", "error", err)
				}
			}()

			if err := base.InitDatabases(ctx); err != nil {
				return err
			}
			if err := base.InitProducer(); err != nil {
				return err
			}

			body, err := json.Marshal(msg)
			if err != nil {
				return fmt.Errorf("failed to encode message: %w", err)
			}

			destination := broker.Destination(cfg.Broker)
			if err := base.Producer.Publish(ctx, destination, broker.Message{
				Key:        []byte(msg.TenantID),
				Value:      body,
				Attributes: map[string]string{"tenant_id": msg.TenantID},
			}); err != nil {
				return fmt.Errorf("failed to publish: %w", err)
			}

			log.Infow("Message enqueued",
				"destination", destination,
				"tenant_id", msg.TenantID,
				"log_id", msg.LogID,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.tenantID, "tenant", "", "Tenant id (required)")
	cmd.Flags().StringVar(&opts.logID, "log-id", "", "Log id (generated when empty)")
	cmd.Flags().StringVar(&opts.text, "text", "", "Log text (required)")
	cmd.Flags().StringVar(&opts.source, "source", string(models.SourceTextUpload), "json_upload or text_upload")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("text")

	return cmd
}

func (o *enqueueOptions) message(now time.Time) (models.InternalMessage, error) {
	return models.NewInternalMessage(o.tenantID, o.logID, o.text, models.Source(o.source), now)
}

func printEnvelope(msg models.InternalMessage) error {
	env := models.NewPushEnvelopeBuilder().
		WithMessageID(uuid.NewString()).
		WithMessage(msg).
		WithPublishTime(time.Now()).
		WithSubscription("local/" + constants.ServiceName).
		Build()

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}
