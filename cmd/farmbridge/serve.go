package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nerrad567/farm-bridge/internal/account"
	"github.com/nerrad567/farm-bridge/internal/alert"
	"github.com/nerrad567/farm-bridge/internal/api"
	"github.com/nerrad567/farm-bridge/internal/control"
	"github.com/nerrad567/farm-bridge/internal/correlation"
	"github.com/nerrad567/farm-bridge/internal/device"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/config"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/database"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/metrics"
	"github.com/nerrad567/farm-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/farm-bridge/internal/telemetry"
	"github.com/nerrad567/farm-bridge/migrations"
)

func newServeCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bridge until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg, log)
		},
	}
}

// run wires every component and blocks until ctx is cancelled.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context, cfg *config.Config, log *logging.Logger) error {
	log.Info("starting farm bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	devices := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	devices.SetLogger(log)
	accounts := account.NewSQLiteRepository(db.DB)
	samples := telemetry.NewSQLiteStore(db.DB)

	registry := metrics.NewRegistry()
	bridgeMetrics := metrics.NewBridge(registry)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	hub := api.NewHub(cfg.WebSocket, log)

	// Every consumer registers on the shared router before the broker
	// subscriptions go out, so nothing delivered early is missed.
	ingester := telemetry.NewIngester(samples, devices)
	ingester.SetLogger(log)
	ingester.SetMetrics(bridgeMetrics)
	ingester.SetBroadcaster(hub)
	if influxClient != nil {
		ingester.SetMirror(influxClient)
	}
	mqttClient.AddHandler(mqtt.Topics{}.Graph(), ingester.HandleGraph)
	mqttClient.AddHandler(mqtt.Topics{}.Realtime(), ingester.HandleRealtime)

	notifier, err := newNotifier(cfg.Notify, log)
	if err != nil {
		return fmt.Errorf("configuring alert mail: %w", err)
	}
	forwarder := alert.NewForwarder(devices, accounts, notifier)
	forwarder.SetLogger(log)
	forwarder.SetMetrics(bridgeMetrics)
	for _, topic := range alert.Topics() {
		mqttClient.AddHandler(topic, forwarder.Handle)
	}

	waits := correlation.NewRegistry(mqttClient)
	waits.SetLogger(log)
	waits.SetMetrics(bridgeMetrics)

	commands := control.NewDispatcher(mqttClient)
	commands.SetLogger(log)
	commands.SetMetrics(bridgeMetrics)

	thresholds := control.NewThresholdPublisher(mqttClient)
	thresholds.SetLogger(log)
	thresholds.SetMetrics(bridgeMetrics)

	if err := mqttClient.SubscribeAll(inboundTopics(), byte(cfg.MQTT.QoS)); err != nil {
		return fmt.Errorf("subscribing to device topics: %w", err)
	}
	log.Info("subscribed to device topics", "count", mqttClient.SubscriptionCount())

	server, err := api.New(api.Deps{
		Config:     cfg.API,
		WS:         cfg.WebSocket,
		Security:   cfg.Security,
		Bridge:     cfg.Bridge,
		Logger:     log,
		Devices:    devices,
		Accounts:   accounts,
		Samples:    samples,
		Commands:   commands,
		Thresholds: thresholds,
		Realtime:   correlation.NewRealtimeQuery(waits, devices),
		DB:         db,
		Bus:        mqttClient,
		Metrics:    registry,
		Hub:        hub,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error stopping API server", "error", closeErr)
		}
	}()

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

// inboundTopics lists every device topic the bridge consumes.
func inboundTopics() []string {
	attrs := telemetry.AllAttributes()
	names := make([]string, len(attrs))
	for i, a := range attrs {
		names[i] = string(a)
	}
	return mqtt.Topics{}.Inbound(names)
}

// newNotifier mails alerts when SMTP is configured and logs them otherwise.
func newNotifier(cfg config.NotifyConfig, log *logging.Logger) (alert.Notifier, error) {
	if !cfg.SMTP.Enabled {
		log.Info("SMTP disabled, alerts are logged only")
		return alert.LogNotifier{Logger: log.Logger}, nil
	}
	notifier, err := alert.NewSMTPNotifier(cfg.SMTP)
	if err != nil {
		return nil, err
	}
	log.Info("alert mail enabled", "host", cfg.SMTP.Host, "from", cfg.SMTP.From)
	return notifier, nil
}

func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if err := requireSubscriptions(mqttClient, inboundTopics()); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}

type subscriptionChecker interface {
	HasSubscription(topic string) bool
}

// requireSubscriptions fails when any inbound topic is missing from the
// bus connection's required set.
func requireSubscriptions(c subscriptionChecker, topics []string) error {
	var missing []string
	for _, topic := range topics {
		if !c.HasSubscription(topic) {
			missing = append(missing, topic)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("not subscribed to %s", strings.Join(missing, ", "))
	}
	return nil
}
