package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fjod/storefront-checkout/internal/config"
	h "github.com/fjod/storefront-checkout/internal/http"
	"github.com/fjod/storefront-checkout/internal/metrics"
	"github.com/fjod/storefront-checkout/internal/publisher"
	"github.com/fjod/storefront-checkout/internal/repository"
	"github.com/fjod/storefront-checkout/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func NewServeCommand() *cobra.Command {
	var withOutbox bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the checkout HTTP API",
		Long: `Run the checkout HTTP API.

With STORE=memory the service keeps catalog and orders in memory, which is
only useful for local development.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), withOutbox)
		},
	}

	cmd.Flags().BoolVar(&withOutbox, "with-outbox", true, "relay outbox events to Kafka from this process when KAFKA_BROKERS is set")
	return cmd
}

func serve(ctx context.Context, withOutbox bool) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var store repository.Store
	var outbox repository.OutboxStore
	if cfg.Store == config.StoreMemory {
		mem := repository.NewMemoryStore()
		store, outbox = mem, mem
		log.Warn("using in-memory store, data is lost on exit")
	} else {
		repo, err := openMongo(ctx, cfg, log, cfg.RunMigrations)
		if err != nil {
			return err
		}
		store, outbox = repo, repo
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			log.Error("failed to close store", "error", err)
		}
	}()

	replay, closeCache := newReplayCache(ctx, cfg, log)
	defer closeCache()

	svc := service.NewCheckoutService(store, service.Options{
		ExpressFee: cfg.ExpressShippingFee,
		TxTimeout:  cfg.TxTimeout,
		Cache:      replay,
		Metrics:    m,
	})

	if withOutbox && len(cfg.KafkaBrokers) > 0 {
		writer := publisher.NewKafkaWriter(cfg.OutboxTopic, cfg.KafkaBrokers...)
		stopPoller := publisher.NewOutboxPoller(outbox, writer, m, log).Start(ctx)
		defer func() {
			stopPoller()
			if err := writer.Close(); err != nil {
				log.Error("failed to close kafka writer", "error", err)
			}
		}()
		log.Info("outbox relay started", "topic", cfg.OutboxTopic, "brokers", cfg.KafkaBrokers)
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: h.NewRouter(h.RouterConfig{
			Checkout:           svc,
			Logger:             log,
			Metrics:            m,
			Gatherer:           reg,
			RequestTimeout:     cfg.RequestTimeout,
			MaxRequestBodySize: cfg.MaxRequestBodySize,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("checkout API starting", "port", cfg.HTTPPort, "store", cfg.Store)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server exited")
	return nil
}
