package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/fjod/storefront-checkout/internal/publisher"
	"github.com/spf13/cobra"
)

func NewOutboxCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "outbox",
		Short: "Relay committed order events to Kafka",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			if err := requireMongo(cfg); err != nil {
				return err
			}
			if len(cfg.KafkaBrokers) == 0 {
				return fmt.Errorf("KAFKA_BROKERS is not set")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			repo, err := openMongo(ctx, cfg, log, false)
			if err != nil {
				return err
			}
			defer repo.Close(context.Background())

			writer := publisher.NewKafkaWriter(cfg.OutboxTopic, cfg.KafkaBrokers...)
			defer writer.Close()

			log.Info("outbox relay started", "topic", cfg.OutboxTopic, "brokers", cfg.KafkaBrokers)
			publisher.NewOutboxPoller(repo, writer, nil, log).Run(ctx)
			log.Info("outbox relay stopped")
			return nil
		},
	}
}
